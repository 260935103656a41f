// Package users keeps the registered accounts and their profiles.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/mediaurl"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/models"
)

const (
	MinUsernameLength = 3
	MinPasswordLength = 4
	dataURLPrefix     = "data:"
)

var (
	ErrNotFound          = errors.New("user not found")
	ErrAuthFailed        = errors.New("login failed")
	ErrDuplicateUsername = errors.New("username already taken")
	ErrInvalidInput      = errors.New("invalid input")
	ErrWrongPassword     = errors.New("current password is incorrect")
)

// ErrUntrustedPicture is an ErrInvalidInput for picture URLs outside the
// trusted hosts.
var ErrUntrustedPicture = fmt.Errorf("%w: profile picture host is not allowed", ErrInvalidInput)

// Persister durably stores the full user list in directory order.
type Persister interface {
	SaveUsers(ctx context.Context, users []models.User) error
}

// PictureStore turns uploaded data URLs into stored media owned by a user.
type PictureStore interface {
	StoreDataURL(ctx context.Context, ownerID, dataURL string) (string, error)
	Owns(ctx context.Context, ownerID, pictureURL string) bool
	Release(ctx context.Context, ownerID, pictureURL string)
}

type Options struct {
	Persister         Persister
	Pictures          PictureStore
	TrustedImageHosts []string
	MediaBaseURL      string
}

type Directory struct {
	mu       sync.RWMutex
	users    []models.User
	position map[string]int
	opts     Options
	now      func() time.Time
	newID    func() string
}

func NewDirectory(initial []models.User, opts Options) *Directory {
	d := &Directory{
		users:    make([]models.User, 0, len(initial)),
		position: make(map[string]int, len(initial)),
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, u := range initial {
		if u.ID == "" {
			u.ID = d.newID()
		}
		if _, dup := d.position[u.ID]; dup {
			slog.Warn("skipping user with duplicate id", "component", "users", "user_id", u.ID)
			continue
		}
		d.position[u.ID] = len(d.users)
		d.users = append(d.users, u)
	}
	return d
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}

// FindByUsername returns the first user whose username matches exactly.
func (d *Directory) FindByUsername(username string) (models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if i := d.usernameIndexLocked(username); i >= 0 {
		return d.users[i], nil
	}
	return models.User{}, ErrNotFound
}

func (d *Directory) Authenticate(username, password string) (models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, u := range d.users {
		if u.Username == username && u.Password == password {
			return u, nil
		}
	}
	return models.User{}, ErrAuthFailed
}

func (d *Directory) Get(id string) (models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	i, ok := d.position[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return d.users[i], nil
}

func (d *Directory) Register(ctx context.Context, name, username, password string) (models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.User{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if len(username) < MinUsernameLength {
		return models.User{}, fmt.Errorf("%w: username must be at least %d characters", ErrInvalidInput, MinUsernameLength)
	}
	if len(password) < MinPasswordLength {
		return models.User{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.usernameIndexLocked(username) >= 0 {
		return models.User{}, ErrDuplicateUsername
	}

	u := models.User{
		ID:        d.newID(),
		Name:      name,
		Username:  username,
		Password:  password,
		CreatedAt: d.now(),
	}
	d.position[u.ID] = len(d.users)
	d.users = append(d.users, u)
	d.persistLocked(ctx)

	return u, nil
}

// ProfileUpdate carries the fields to change. Nil fields are left alone.
type ProfileUpdate struct {
	Name           *string
	Username       *string
	ProfilePicture *string
	Pronouns       *string
	Description    *string
}

// UpdateProfile applies a partial profile update. A data URL picture is
// stored as media and the field is rewritten to its URL; any other picture
// must come from a trusted host or this server's own media.
func (d *Directory) UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (models.User, error) {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return models.User{}, fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
	}
	if in.Username != nil && len(*in.Username) < MinUsernameLength {
		return models.User{}, fmt.Errorf("%w: username must be at least %d characters", ErrInvalidInput, MinUsernameLength)
	}
	if _, err := d.Get(id); err != nil {
		return models.User{}, err
	}

	var picture string
	storedNew := false
	if in.ProfilePicture != nil {
		var err error
		picture, storedNew, err = d.resolvePicture(ctx, id, strings.TrimSpace(*in.ProfilePicture))
		if err != nil {
			return models.User{}, err
		}
	}

	d.mu.Lock()
	u, replaced, err := d.updateLocked(id, in, picture)
	if err == nil {
		d.persistLocked(ctx)
	}
	d.mu.Unlock()

	if err != nil {
		if storedNew {
			d.opts.Pictures.Release(context.WithoutCancel(ctx), id, picture)
		}
		return models.User{}, err
	}
	if replaced != "" && d.opts.Pictures != nil {
		d.opts.Pictures.Release(context.WithoutCancel(ctx), id, replaced)
	}

	return u, nil
}

// updateLocked returns the updated user and the picture it replaced, if any.
func (d *Directory) updateLocked(id string, in ProfileUpdate, picture string) (models.User, string, error) {
	i, ok := d.position[id]
	if !ok {
		return models.User{}, "", ErrNotFound
	}
	if in.Username != nil {
		if j := d.usernameIndexLocked(*in.Username); j >= 0 && j != i {
			return models.User{}, "", ErrDuplicateUsername
		}
	}

	u := &d.users[i]
	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Username != nil {
		u.Username = *in.Username
	}
	if in.Pronouns != nil {
		u.Pronouns = strings.TrimSpace(*in.Pronouns)
	}
	if in.Description != nil {
		u.Description = strings.TrimSpace(*in.Description)
	}
	var replaced string
	if in.ProfilePicture != nil && picture != u.ProfilePicture {
		replaced = u.ProfilePicture
		u.ProfilePicture = picture
	}

	return *u, replaced, nil
}

func (d *Directory) ChangePassword(ctx context.Context, id, current, next string) error {
	if len(next) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	i, ok := d.position[id]
	if !ok {
		return ErrNotFound
	}
	if d.users[i].Password != current {
		return ErrWrongPassword
	}
	d.users[i].Password = next
	d.persistLocked(ctx)

	return nil
}

// Snapshot returns every user in directory order.
func (d *Directory) Snapshot() []models.User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.users)
}

// resolvePicture returns the value to store for a requested picture and
// whether a new media object was created for it.
func (d *Directory) resolvePicture(ctx context.Context, ownerID, raw string) (string, bool, error) {
	if raw == "" {
		return "", false, nil
	}

	if strings.HasPrefix(strings.ToLower(raw), dataURLPrefix) {
		if d.opts.Pictures == nil {
			return "", false, fmt.Errorf("%w: picture uploads are not enabled", ErrInvalidInput)
		}
		stored, err := d.opts.Pictures.StoreDataURL(ctx, ownerID, raw)
		if err != nil {
			return "", false, err
		}
		return stored, true, nil
	}

	if err := d.checkPictureURL(ctx, ownerID, raw); err != nil {
		return "", false, err
	}
	return raw, false, nil
}

// checkPictureURL accepts this server's media only when ownerID uploaded it.
func (d *Directory) checkPictureURL(ctx context.Context, ownerID, raw string) error {
	if _, ok := mediaurl.Owned(d.opts.MediaBaseURL, raw); ok {
		if d.opts.Pictures != nil && d.opts.Pictures.Owns(ctx, ownerID, raw) {
			return nil
		}
		return ErrUntrustedPicture
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return fmt.Errorf("%w: profile picture must be an absolute http(s) URL", ErrInvalidInput)
	}

	host := u.Hostname()
	for _, trusted := range d.opts.TrustedImageHosts {
		if strings.EqualFold(host, trusted) {
			return nil
		}
	}
	return ErrUntrustedPicture
}

func (d *Directory) usernameIndexLocked(username string) int {
	return slices.IndexFunc(d.users, func(u models.User) bool { return u.Username == username })
}

func (d *Directory) persistLocked(ctx context.Context) {
	if d.opts.Persister == nil {
		return
	}
	if err := d.opts.Persister.SaveUsers(context.WithoutCancel(ctx), slices.Clone(d.users)); err != nil {
		slog.Error("error persisting users", "component", "users", "error", err)
	}
}
