package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestUserJSONHidesPasswordHash(t *testing.T) {
	u := User{
		ID:           1,
		Username:     "jdoe",
		PasswordHash: "$2a$10$secret",
		FirstName:    "John",
		LastName:     "Doe",
		Email:        "jdoe@example.com",
		IsActive:     true,
		CreatedAt:    time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(data), "secret") {
		t.Errorf("password hash leaked into JSON: %s", data)
	}
	if !strings.Contains(string(data), `"username":"jdoe"`) {
		t.Errorf("username missing from JSON: %s", data)
	}
}

func TestFullName(t *testing.T) {
	tests := []struct {
		name string
		user User
		want string
	}{
		{"both names", User{ID: 1, FirstName: "John", LastName: "Doe"}, "John Doe"},
		{"first only", User{ID: 1, FirstName: "John"}, "John"},
		{"last only", User{ID: 1, LastName: "Doe"}, "Doe"},
		{"neither", User{ID: 1, Username: "jdoe"}, ""},
		{"unsaved record", User{FirstName: "John", LastName: "Doe"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.FullName(); got != tt.want {
				t.Errorf("FullName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDisplayModeJSON(t *testing.T) {
	fields := UserFields()

	data, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, want := range []string{`"normal"`, `"suppressed"`, `"hidden"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("expected %s in field metadata JSON: %s", want, data)
		}
	}
}

func TestUserFieldsPolicy(t *testing.T) {
	byName := map[string]FieldMeta{}
	for _, f := range UserFields() {
		byName[f.Name] = f
	}

	if f := byName["password"]; !f.WriteOnly || f.Table != DisplaySuppressed {
		t.Errorf("password field = %+v, want write-only and table-suppressed", f)
	}
	if f := byName["id"]; f.Table != DisplayHidden || f.Form != DisplayHidden {
		t.Errorf("id field = %+v, want hidden in both contexts", f)
	}
	if f := byName["username"]; f.Table != DisplaySuppressed || f.Form != DisplayNormal {
		t.Errorf("username field = %+v, want form-only", f)
	}
	for _, name := range []string{"full_name", "email_verified"} {
		if f := byName[name]; !f.ReadOnly {
			t.Errorf("%s field = %+v, want read-only", name, f)
		}
	}
}

func TestIsReservedUsername(t *testing.T) {
	if !IsReservedUsername("admin") {
		t.Error("admin should be reserved")
	}
	if IsReservedUsername("jdoe") {
		t.Error("jdoe should not be reserved")
	}
}
