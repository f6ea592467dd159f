// Package model defines the data structures used throughout the application.
package model

import "time"

// Account represents a registered user of the assistant.
//
// The email is the login identifier and is UNIQUE in the database — two
// accounts can never share one. PasswordHash holds the bcrypt-derived
// credential; the cleartext password is never stored anywhere.
//
// WHY `json:"-"` ON PasswordHash?
// The Account struct is serialized in API responses (/api/me, register,
// login). The dash tag tells encoding/json to always skip the field, so the
// hash can never leak into a response body even if a handler forgets to
// strip it.
type Account struct {
	ID           string    `json:"id"        db:"id"`
	Name         string    `json:"name"      db:"name"`
	Email        string    `json:"email"     db:"email"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	IsAdmin      bool      `json:"isAdmin"   db:"is_admin"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}
