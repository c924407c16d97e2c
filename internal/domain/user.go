package domain

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `json:"_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	AvatarURL    *string   `json:"avatarUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleEmployee
}

// Identity is the authenticated principal bound to a request or socket session.
type Identity struct {
	UserID    uuid.UUID
	Name      string
	Role      string
	AvatarURL string
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

func (u *User) Identity() Identity {
	id := Identity{UserID: u.ID, Name: u.Name, Role: u.Role}
	if u.AvatarURL != nil {
		id.AvatarURL = *u.AvatarURL
	}
	return id
}
