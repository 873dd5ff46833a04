// Package serializer maps user records to and from their external REST
// representation. It owns the effective-email precedence rule, field-level
// validation, and the action-set policy; persistence stays in the store.
package serializer

import (
	"context"
	"strings"

	"github.com/brontes/usereditor/internal/model"
)

// EmailDirectory is the slice of the store the serializer needs to validate
// email ownership.
type EmailDirectory interface {
	EmailTakenByOther(ctx context.Context, email string, excludeUserID int64) (bool, error)
}

// UserSerializer converts users to representations and validates submitted
// attribute sets.
type UserSerializer struct {
	dir EmailDirectory
}

// New creates a UserSerializer backed by the given email directory.
func New(dir EmailDirectory) *UserSerializer {
	return &UserSerializer{dir: dir}
}

// ---------------------------------------------------------------------------
// Read path
// ---------------------------------------------------------------------------

// EffectiveEmail computes the single externally visible email address and
// verification flag for a user:
//
//  1. The candidate is the first verified address record; a later verified
//     record whose address exactly equals the user's raw email column
//     overrides it.
//  2. With no verified record, the raw email column (if non-empty) is shown
//     as an unverified fallback.
func EffectiveEmail(u *model.User) (string, bool) {
	var match *model.EmailAddress
	for i := range u.Addresses {
		e := &u.Addresses[i]
		if e.Verified && (match == nil || e.Email == u.Email) {
			match = e
		}
	}
	if match != nil {
		return match.Email, true
	}
	if u.Email != "" {
		return u.Email, false
	}
	return "", false
}

// Represent maps a user record to its external representation.
func (s *UserSerializer) Represent(u *model.User) map[string]interface{} {
	email, verified := EffectiveEmail(u)
	return map[string]interface{}{
		"id":             u.ID,
		"full_name":      u.FullName(),
		"username":       u.Username,
		"first_name":     u.FirstName,
		"last_name":      u.LastName,
		"is_staff":       u.IsStaff,
		"is_superuser":   u.IsSuperuser,
		"is_active":      u.IsActive,
		"email":          email,
		"email_verified": verified,
	}
}

// ---------------------------------------------------------------------------
// Write path
// ---------------------------------------------------------------------------

// UserInput is the accepted write representation. Pointer fields distinguish
// an omitted attribute from an explicitly submitted zero value; for email in
// particular, nil means "leave the address history alone" while a pointer to
// the empty string clears the raw email column.
type UserInput struct {
	Username    *string `json:"username"`
	Password    *string `json:"password"`
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	IsStaff     *bool   `json:"is_staff"`
	IsSuperuser *bool   `json:"is_superuser"`
	IsActive    *bool   `json:"is_active"`
	Email       *string `json:"email"`
}

// ValidationError carries field-keyed messages for a rejected submission.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

const (
	msgRequired   = "This field is required."
	msgEmailTaken = "This e-mail address is already associated with another account."
	msgReserved   = "This username is reserved."
)

// Validate checks a submitted attribute set. existing is nil on create. The
// one cross-record rule: a non-empty email owned by any other user's address
// record is rejected, keyed to the email field.
func (s *UserSerializer) Validate(ctx context.Context, in *UserInput, existing *model.User) error {
	fields := map[string]string{}

	if existing == nil {
		if in.Username == nil || *in.Username == "" {
			fields["username"] = msgRequired
		}
		if in.Password == nil || *in.Password == "" {
			fields["password"] = msgRequired
		}
	}
	if in.Username != nil && model.IsReservedUsername(*in.Username) {
		fields["username"] = msgReserved
	}

	if in.Email != nil && *in.Email != "" {
		var excludeID int64
		if existing != nil {
			excludeID = existing.ID
		}
		taken, err := s.dir.EmailTakenByOther(ctx, *in.Email, excludeID)
		if err != nil {
			return err
		}
		if taken {
			fields["email"] = msgEmailTaken
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Apply copies the submitted non-password attributes onto u. Omitted fields
// are left as they are; the email column itself is handled by the store's
// rotation step, not here.
func (s *UserSerializer) Apply(u *model.User, in *UserInput) {
	if in.Username != nil {
		u.Username = *in.Username
	}
	if in.FirstName != nil {
		u.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		u.LastName = *in.LastName
	}
	if in.IsStaff != nil {
		u.IsStaff = *in.IsStaff
	}
	if in.IsSuperuser != nil {
		u.IsSuperuser = *in.IsSuperuser
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
}

// ---------------------------------------------------------------------------
// Actions
// ---------------------------------------------------------------------------

// Action names the operations a presentation layer may offer on the user
// collection.
type Action string

const (
	ActionAdd    Action = "add"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionFilter Action = "filter"
)

// VisibleActions returns the action set available to a caller. Callers
// without staff status lose add, edit, and delete.
func VisibleActions(isStaff bool) []Action {
	if isStaff {
		return []Action{ActionAdd, ActionEdit, ActionDelete, ActionFilter}
	}
	return []Action{ActionFilter}
}
