package models

import "time"

// User is a registered account. Password is kept in cleartext and never
// serialized to JSON, so a User can be handed to the token codec or written
// to a response as-is.
type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Username       string    `json:"username"`
	Password       string    `json:"-"`
	ProfilePicture string    `json:"profilePicture"`
	Pronouns       string    `json:"pronouns"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"createdAt"`
}
