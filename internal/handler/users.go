package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/brontes/usereditor/internal/model"
	"github.com/brontes/usereditor/internal/serializer"
	"github.com/brontes/usereditor/internal/server/middleware"
	"github.com/brontes/usereditor/internal/service"
	"github.com/brontes/usereditor/internal/store"
)

// UsersHandler exposes the user collection: list, retrieve, create, update,
// and delete, plus the field/action metadata endpoint. Attribute mapping and
// validation are delegated to the serializer; persistence and the email
// rotation side effect to the store.
type UsersHandler struct {
	store *store.Store
	ser   *serializer.UserSerializer
}

// NewUsersHandler creates a new UsersHandler.
func NewUsersHandler(st *store.Store) *UsersHandler {
	return &UsersHandler{
		store: st,
		ser:   serializer.New(st),
	}
}

// List returns a page of users ordered by display name.
// GET /rest/users
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(queryInt(r, "limit", 50), 1, 200)
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	opts := store.ListOptions{
		Limit:    limit,
		Offset:   offset,
		FullName: queryString(r, "full_name"),
		Username: queryString(r, "username"),
	}

	users, total, err := h.store.ListUsers(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list users: "+err.Error())
		return
	}

	resources := make([]map[string]interface{}, 0, len(users))
	for i := range users {
		resources = append(resources, h.ser.Represent(&users[i]))
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: resources,
		Meta: &model.ResponseMeta{
			Count:  len(resources),
			Total:  &total,
			Limit:  limit,
			Offset: offset,
		},
	})
}

// Get returns a single user by ID.
// GET /rest/users/{userId}
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	u, err := h.store.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get user: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, h.ser.Represent(u))
}

// Create adds a new user. The password is bcrypt-hashed before the insert;
// the user row and the email-address record are written in one transaction.
// POST /rest/users
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in serializer.UserInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := h.ser.Validate(r.Context(), &in, nil); err != nil {
		h.writeValidationError(w, err)
		return
	}

	hash, err := service.HashPassword(*in.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to hash password: "+err.Error())
		return
	}

	u := &model.User{IsActive: true, PasswordHash: hash}
	h.ser.Apply(u, &in)

	email := ""
	if in.Email != nil {
		email = *in.Email
	}

	if err := h.store.CreateUser(r.Context(), u, email); err != nil {
		if isUniqueViolation(err) {
			h.writeValidationError(w, &serializer.ValidationError{
				Fields: map[string]string{"username": "A user with that username already exists."},
			})
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create user: "+err.Error())
		return
	}

	created, err := h.store.GetUser(r.Context(), u.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load created user: "+err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, h.ser.Represent(created))
}

// Update modifies an existing user. Full (PUT) and partial (PATCH) updates
// share this path; omitted attributes are left unchanged either way. The
// write protocol runs in three steps: the current record (and its password
// hash) is read first, all non-password changes plus the email rotation are
// applied in one transaction, and only an explicitly supplied non-empty
// password is hashed and stored afterwards.
// PUT|PATCH /rest/users/{userId}
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	existing, err := h.store.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get user: "+err.Error())
		return
	}

	var in serializer.UserInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := h.ser.Validate(r.Context(), &in, existing); err != nil {
		h.writeValidationError(w, err)
		return
	}

	h.ser.Apply(existing, &in)
	if err := h.store.UpdateUser(r.Context(), existing, in.Email); err != nil {
		if isUniqueViolation(err) {
			h.writeValidationError(w, &serializer.ValidationError{
				Fields: map[string]string{"username": "A user with that username already exists."},
			})
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update user: "+err.Error())
		return
	}

	if in.Password != nil && *in.Password != "" {
		hash, err := service.HashPassword(*in.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to hash password: "+err.Error())
			return
		}
		if err := h.store.SetPassword(r.Context(), id, hash); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to set password: "+err.Error())
			return
		}
	}

	updated, err := h.store.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load updated user: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.ser.Represent(updated))
}

// Delete removes a user by ID.
// DELETE /rest/users/{userId}
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete user: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "User deleted",
	})
}

// Meta returns the declarative field policy and the caller's visible action
// set. Callers without staff status do not see add, edit, or delete.
// GET /rest/users/meta
func (h *UsersHandler) Meta(w http.ResponseWriter, r *http.Request) {
	isStaff := false
	if p := middleware.GetPrincipal(r.Context()); p != nil {
		isStaff = p.IsStaff
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"titles":  model.FormTitles(),
		"fields":  model.UserFields(),
		"actions": serializer.VisibleActions(isStaff),
	})
}

func (h *UsersHandler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := chi.URLParam(r, "userId")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID: "+idStr)
		return 0, false
	}
	return id, true
}

func (h *UsersHandler) writeValidationError(w http.ResponseWriter, err error) {
	var verr *serializer.ValidationError
	if errors.As(err, &verr) {
		ctx := make(map[string]interface{}, len(verr.Fields))
		for field, msg := range verr.Fields {
			ctx[field] = msg
		}
		writeError(w, http.StatusBadRequest, "Validation failed", ctx)
		return
	}
	writeError(w, http.StatusInternalServerError, "Validation error: "+err.Error())
}

// isUniqueViolation reports whether a store error is a unique constraint
// violation, across the supported backends.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "violation of unique")
}
