package model

import "time"

// Exchange is one recorded request/reply pair: the user's message, the
// assistant's reply, and the mode/language it was produced under.
//
// Exchanges are append-only — created exactly once per completed round-trip
// and never updated. The only delete path is the cascade when the owning
// account is removed.
//
// WHY AccountID *string?
// Anonymous use is permitted: an exchange submitted without a login has no
// owning account, which maps to a NULL foreign key in the database. A nil
// pointer models that cleanly; an empty string would be ambiguous (is ""
// an account ID or the absence of one?).
type Exchange struct {
	ID        string    `json:"id"                  db:"id"`
	AccountID *string   `json:"accountId,omitempty" db:"account_id"`
	Mode      string    `json:"mode"                db:"mode"`
	Language  string    `json:"lang"                db:"lang"`
	Input     string    `json:"input"               db:"input"`
	Output    string    `json:"output"              db:"output"`
	CreatedAt time.Time `json:"createdAt"           db:"created_at"`
}
