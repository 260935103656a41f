package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/models"
)

// UserRepository stores the user directory as an ordered snapshot.
type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) LoadAll(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, username, password, profile_picture, pronouns, description, created_at
		FROM users ORDER BY position`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Username, &u.Password, &u.ProfilePicture, &u.Pronouns, &u.Description, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// SaveUsers replaces the stored directory with users, keeping their order.
func (r *UserRepository) SaveUsers(ctx context.Context, users []models.User) error {
	return r.db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
			return fmt.Errorf("clearing users: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO users (id, position, name, username, password, profile_picture, pronouns, description, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		)
		if err != nil {
			return fmt.Errorf("preparing user insert: %w", err)
		}
		defer stmt.Close()

		for i, u := range users {
			if _, err := stmt.ExecContext(ctx, u.ID, i, u.Name, u.Username, u.Password, u.ProfilePicture, u.Pronouns, u.Description, u.CreatedAt.UTC()); err != nil {
				return fmt.Errorf("inserting user %s: %w", u.ID, err)
			}
		}
		return nil
	})
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}
