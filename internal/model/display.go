package model

import "encoding/json"

// DisplayMode controls how a representation field is rendered by a consuming
// presentation layer. Each field carries one mode for table (list) contexts
// and one for form (detail/edit) contexts.
type DisplayMode int

const (
	// DisplayNormal renders the field in the given context.
	DisplayNormal DisplayMode = iota
	// DisplaySuppressed keeps the field out of the rendered output but still
	// transmits it.
	DisplaySuppressed
	// DisplayHidden omits the field from rendering entirely.
	DisplayHidden
)

// String returns the lowercase name of the display mode.
func (m DisplayMode) String() string {
	switch m {
	case DisplaySuppressed:
		return "suppressed"
	case DisplayHidden:
		return "hidden"
	default:
		return "normal"
	}
}

// MarshalJSON encodes the mode as its string name.
func (m DisplayMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// FieldMeta describes one representation field: its label and per-context
// display modes, plus whether it is computed (read-only) or accepted on
// writes only (write-only).
type FieldMeta struct {
	Name      string      `json:"name"`
	Label     string      `json:"label"`
	Table     DisplayMode `json:"display_table"`
	Form      DisplayMode `json:"display_form"`
	ReadOnly  bool        `json:"read_only,omitempty"`
	WriteOnly bool        `json:"write_only,omitempty"`
}

// UserFields returns the declarative field policy for the user resource, in
// representation order. The password is write-only and never shown in
// tables; the id is hidden; username and the account flags are form-only;
// full_name and email_verified are computed.
func UserFields() []FieldMeta {
	return []FieldMeta{
		{Name: "id", Label: "ID", Table: DisplayHidden, Form: DisplayHidden},
		{Name: "full_name", Label: "Full name", Table: DisplayNormal, Form: DisplaySuppressed, ReadOnly: true},
		{Name: "username", Label: "Username", Table: DisplaySuppressed, Form: DisplayNormal},
		{Name: "password", Label: "Password", Table: DisplaySuppressed, Form: DisplayNormal, WriteOnly: true},
		{Name: "first_name", Label: "First name", Table: DisplaySuppressed, Form: DisplayNormal},
		{Name: "last_name", Label: "Last name", Table: DisplaySuppressed, Form: DisplayNormal},
		{Name: "is_staff", Label: "Staff", Table: DisplayNormal, Form: DisplayNormal},
		{Name: "is_superuser", Label: "Superuser", Table: DisplaySuppressed, Form: DisplayNormal},
		{Name: "is_active", Label: "Active", Table: DisplaySuppressed, Form: DisplayNormal},
		{Name: "email", Label: "Email", Table: DisplayNormal, Form: DisplayNormal},
		{Name: "email_verified", Label: "Email verified", Table: DisplaySuppressed, Form: DisplayNormal, ReadOnly: true},
	}
}

// FormTitles returns the presentation titles for the user resource.
func FormTitles() map[string]string {
	return map[string]string{
		"table": "Users",
		"new":   "New user",
		"edit":  "Editing user",
	}
}
