package model

import (
	"strings"
	"time"
)

// User is a managed account. The password is stored as a bcrypt hash and is
// never exposed in JSON. The Email column holds the raw address the account
// was last saved with; the externally visible address is computed from the
// Addresses collection (see the serializer package).
type User struct {
	ID           int64      `json:"id" db:"id"`
	Username     string     `json:"username" db:"username"`
	PasswordHash string     `json:"-" db:"password_hash"` // bcrypt hash, never expose
	FirstName    string     `json:"first_name" db:"first_name"`
	LastName     string     `json:"last_name" db:"last_name"`
	Email        string     `json:"email" db:"email"` // raw column, fallback display value only
	IsStaff      bool       `json:"is_staff" db:"is_staff"`
	IsSuperuser  bool       `json:"is_superuser" db:"is_superuser"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`

	// Addresses is the user's email-address history, eagerly loaded by the
	// store in insertion order.
	Addresses []EmailAddress `json:"-" db:"-"`
}

// FullName returns "First Last" with surrounding whitespace trimmed, or the
// empty string for an unsaved record.
func (u *User) FullName() string {
	if u.ID == 0 {
		return ""
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// EmailAddress is one entry in a user's email history, owned by the
// verification bookkeeping. At most one address per user should be primary
// at a time; the rotation procedure in the store maintains that, not a
// database constraint.
type EmailAddress struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Email     string    `json:"email" db:"email"`
	Verified  bool      `json:"verified" db:"verified"`
	IsPrimary bool      `json:"is_primary" db:"is_primary"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ReservedUsernames are excluded from the manageable collection. The literal
// "admin" account is never listed, retrieved, updated, or deleted through
// the REST endpoint.
var ReservedUsernames = []string{"admin"}

// IsReservedUsername reports whether name is in ReservedUsernames.
func IsReservedUsername(name string) bool {
	for _, r := range ReservedUsernames {
		if name == r {
			return true
		}
	}
	return false
}
