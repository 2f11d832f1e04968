// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
)

const (
	MaxUserIDLen   = 64
	MaxFullNameLen = 128
)

var (
	ErrUserIDEmpty     = errors.New("user id empty")
	ErrUserIDTooLong   = errors.New("user id too long")
	ErrFullNameTooLong = errors.New("full name too long")
)

// UserID is the opaque identity issued by the auth collaborator.
type UserID string

type User struct {
	ID       UserID `json:"id"`
	FullName string `json:"fullName,omitempty"`
}

// NewUser validates what the identity verifier handed us.
func NewUser(id, fullName string) (*User, error) {
	if len(id) == 0 {
		return nil, ErrUserIDEmpty
	}
	if len(id) > MaxUserIDLen {
		return nil, ErrUserIDTooLong
	}
	if len(fullName) > MaxFullNameLen {
		return nil, ErrFullNameTooLong
	}
	return &User{ID: UserID(id), FullName: fullName}, nil
}

// DisplayName falls back to the id when the verifier gave no name.
func (u *User) DisplayName() string {
	if u.FullName == "" {
		return string(u.ID)
	}
	return u.FullName
}
