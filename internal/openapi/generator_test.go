package openapi

import (
	"encoding/json"
	"testing"
)

func TestGenerate(t *testing.T) {
	doc := Generate("http://localhost:8080")

	if doc.OpenAPI != "3.1.0" {
		t.Errorf("openapi version = %q, want 3.1.0", doc.OpenAPI)
	}
	if len(doc.Servers) != 1 || doc.Servers[0].URL != "http://localhost:8080" {
		t.Errorf("servers = %+v", doc.Servers)
	}

	for _, path := range []string{"/rest/session", "/rest/users", "/rest/users/{userId}", "/rest/users/meta"} {
		if doc.Paths.Find(path) == nil {
			t.Errorf("missing path %s", path)
		}
	}

	for _, name := range []string{"User", "UserInput", "UserList", "ErrorResponse"} {
		if _, ok := doc.Components.Schemas[name]; !ok {
			t.Errorf("missing component schema %s", name)
		}
	}

	if _, ok := doc.Components.SecuritySchemes["bearerAuth"]; !ok {
		t.Error("missing bearerAuth security scheme")
	}

	users := doc.Paths.Find("/rest/users")
	if users.Get == nil || users.Post == nil {
		t.Error("expected GET and POST on /rest/users")
	}
	user := doc.Paths.Find("/rest/users/{userId}")
	if user.Get == nil || user.Put == nil || user.Patch == nil || user.Delete == nil {
		t.Error("expected full CRUD on /rest/users/{userId}")
	}

	// Login must be reachable without a token.
	session := doc.Paths.Find("/rest/session")
	if session.Post.Security == nil || len(*session.Post.Security) != 0 {
		t.Error("login operation must override the global security requirement")
	}
}

func TestGenerateMarshalsToJSON(t *testing.T) {
	doc := Generate("http://localhost:8080")

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["openapi"] != "3.1.0" {
		t.Errorf("round-tripped version = %v", out["openapi"])
	}
}
