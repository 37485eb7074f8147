// Package domain contains entity without logic, just meta-data
package domain

import (
	"strings"

	"github.com/google/uuid"
)

// AnonymousName is the identity used when a client joins without a username.
const AnonymousName = "Anonymous"

type UserID string

type User struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
// Identities are display strings only: they are neither unique nor validated,
// and a blank name falls back to AnonymousName.
func NewUser(username string) *User {
	if strings.TrimSpace(username) == "" {
		username = AnonymousName
	}
	return &User{ID: UserID(uuid.NewString()), Username: username}
}
