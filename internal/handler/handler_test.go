package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/brontes/usereditor/internal/model"
	"github.com/brontes/usereditor/internal/service"
	"github.com/brontes/usereditor/internal/store"
)

const (
	testJWTSecret = "test-secret-for-handler-tests"
	testPassword  = "supersecretpassword"
)

// testEnv holds shared state for handler integration tests.
type testEnv struct {
	store    *store.Store
	authSvc  *service.AuthService
	users    *UsersHandler
	sessions *SessionHandler
	router   chi.Router
}

// newTestEnv creates a fresh test environment with an in-memory store and a
// Chi router with routes mounted (no auth middleware).
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.Open(store.DriverSQLite, "")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	authSvc := service.NewAuthService(st, testJWTSecret)
	usersHandler := NewUsersHandler(st)
	sessionHandler := NewSessionHandler(authSvc, time.Hour)

	// Mount routes without auth middleware for direct handler testing.
	r := chi.NewRouter()
	r.Route("/rest", func(r chi.Router) {
		r.Post("/session", sessionHandler.Login)
		r.Delete("/session", sessionHandler.Logout)

		r.Get("/users", usersHandler.List)
		r.Post("/users", usersHandler.Create)
		r.Get("/users/meta", usersHandler.Meta)
		r.Get("/users/{userId}", usersHandler.Get)
		r.Put("/users/{userId}", usersHandler.Update)
		r.Patch("/users/{userId}", usersHandler.Update)
		r.Delete("/users/{userId}", usersHandler.Delete)
	})

	return &testEnv{
		store:    st,
		authSvc:  authSvc,
		users:    usersHandler,
		sessions: sessionHandler,
		router:   r,
	}
}

// seedUser creates a user with the shared test password and returns it.
func (e *testEnv) seedUser(t *testing.T, username, email string) *model.User {
	t.Helper()
	hash, err := service.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	u := &model.User{
		Username:     username,
		PasswordHash: hash,
		FirstName:    "Test",
		LastName:     username,
		IsStaff:      true,
		IsActive:     true,
	}
	if err := e.store.CreateUser(context.Background(), u, email); err != nil {
		t.Fatalf("seedUser: %v", err)
	}
	return u
}

// do executes an HTTP request against the test router and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func toJSON(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("toJSON: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
