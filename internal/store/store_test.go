package store

import (
	"context"
	"testing"

	"github.com/brontes/usereditor/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(DriverSQLite, "") // in-memory
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s *Store, username, first, last, email string) *model.User {
	t.Helper()
	u := &model.User{
		Username:     username,
		PasswordHash: "x",
		FirstName:    first,
		LastName:     last,
		IsActive:     true,
	}
	if err := s.CreateUser(context.Background(), u, email); err != nil {
		t.Fatalf("CreateUser(%s): %v", username, err)
	}
	return u
}

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "jdoe", "John", "Doe", "jdoe@example.com")
	if u.ID == 0 {
		t.Fatal("expected non-zero ID after create")
	}

	got, err := s.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Username != "jdoe" {
		t.Errorf("got username %q, want %q", got.Username, "jdoe")
	}
	if got.Email != "jdoe@example.com" {
		t.Errorf("got raw email %q, want %q", got.Email, "jdoe@example.com")
	}

	got2, err := s.GetUserByUsername(ctx, "jdoe")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if got2.ID != u.ID {
		t.Errorf("got ID %d, want %d", got2.ID, u.ID)
	}

	got.FirstName = "Jane"
	if err := s.UpdateUser(ctx, got, nil); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	got3, _ := s.GetUser(ctx, u.ID)
	if got3.FirstName != "Jane" {
		t.Errorf("got first name %q, want %q", got3.FirstName, "Jane")
	}

	if err := s.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := s.GetUser(ctx, u.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateUserRecordsAddress(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "jdoe", "John", "Doe", "jdoe@example.com")

	addrs, err := s.ListAddresses(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListAddresses: %v", err)
	}
	if len(addrs) != 1 {
		t.Fatalf("got %d addresses, want 1", len(addrs))
	}
	a := addrs[0]
	if a.Email != "jdoe@example.com" || !a.IsPrimary || a.Verified {
		t.Errorf("address = %+v, want primary unverified jdoe@example.com", a)
	}
}

func TestCreateUserWithoutEmail(t *testing.T) {
	s := newTestStore(t)
	u := seedUser(t, s, "jdoe", "John", "Doe", "")

	addrs, err := s.ListAddresses(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("ListAddresses: %v", err)
	}
	if len(addrs) != 0 {
		t.Errorf("got %d addresses, want 0", len(addrs))
	}
}

func TestEmailRotation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "jdoe", "John", "Doe", "old@example.com")

	// New address: old one demoted, new one primary and unverified.
	newEmail := "new@example.com"
	if err := s.UpdateUser(ctx, u, &newEmail); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}

	addrs, _ := s.ListAddresses(ctx, u.ID)
	if len(addrs) != 2 {
		t.Fatalf("got %d addresses, want 2", len(addrs))
	}
	if addrs[0].Email != "old@example.com" || addrs[0].IsPrimary {
		t.Errorf("old address = %+v, want demoted", addrs[0])
	}
	if addrs[1].Email != "new@example.com" || !addrs[1].IsPrimary || addrs[1].Verified {
		t.Errorf("new address = %+v, want primary unverified", addrs[1])
	}

	// Identical resubmission: no new record, no flag changes.
	if err := s.UpdateUser(ctx, u, &newEmail); err != nil {
		t.Fatalf("UpdateUser (resubmit): %v", err)
	}
	again, _ := s.ListAddresses(ctx, u.ID)
	if len(again) != 2 {
		t.Fatalf("resubmission grew address list to %d", len(again))
	}
	if !again[1].IsPrimary || again[0].IsPrimary {
		t.Error("resubmission changed primary flags")
	}
}

func TestUpdateEmailOmittedVersusBlank(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "jdoe", "John", "Doe", "jdoe@example.com")

	// Omitted: raw email and history untouched.
	if err := s.UpdateUser(ctx, u, nil); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	got, _ := s.GetUser(ctx, u.ID)
	if got.Email != "jdoe@example.com" {
		t.Errorf("omitted email changed raw column to %q", got.Email)
	}

	// Explicit blank: raw email cleared, history untouched.
	blank := ""
	if err := s.UpdateUser(ctx, got, &blank); err != nil {
		t.Fatalf("UpdateUser (blank): %v", err)
	}
	got2, _ := s.GetUser(ctx, u.ID)
	if got2.Email != "" {
		t.Errorf("blank email left raw column %q", got2.Email)
	}
	if len(got2.Addresses) != 1 {
		t.Errorf("blank email changed history: %d records", len(got2.Addresses))
	}
}

func TestUpdateUserNeverTouchesPassword(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "jdoe", "John", "Doe", "")
	if err := s.SetPassword(ctx, u.ID, "hash-one"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}

	u.FirstName = "Jane"
	if err := s.UpdateUser(ctx, u, nil); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	got, _ := s.GetUser(ctx, u.ID)
	if got.PasswordHash != "hash-one" {
		t.Errorf("UpdateUser altered password hash to %q", got.PasswordHash)
	}
}

func TestEmailTakenByOther(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := seedUser(t, s, "alice", "Alice", "A", "alice@example.com")
	seedUser(t, s, "bob", "Bob", "B", "bob@example.com")

	taken, err := s.EmailTakenByOther(ctx, "bob@example.com", a.ID)
	if err != nil {
		t.Fatalf("EmailTakenByOther: %v", err)
	}
	if !taken {
		t.Error("bob's address should be taken for alice")
	}

	taken, _ = s.EmailTakenByOther(ctx, "alice@example.com", a.ID)
	if taken {
		t.Error("alice's own address should not count as taken")
	}

	taken, _ = s.EmailTakenByOther(ctx, "free@example.com", a.ID)
	if taken {
		t.Error("unused address reported as taken")
	}
}

func TestListUsersExcludesAdminAndOrders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "admin", "Root", "Root", "")
	seedUser(t, s, "zed", "Zed", "", "") // last name blank, display name falls back to username
	seedUser(t, s, "alice", "Alice", "B", "")
	seedUser(t, s, "bob", "Bob", "A", "")

	users, total, err := s.ListUsers(ctx, ListOptions{Limit: 10, Offset: 0})
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3 (admin excluded)", total)
	}
	for _, u := range users {
		if u.Username == "admin" {
			t.Error("admin present in collection")
		}
	}
	// Display-name ordering: "Alice B" < "Bob A" < "Zed zed".
	gotOrder := []string{users[0].Username, users[1].Username, users[2].Username}
	wantOrder := []string{"alice", "bob", "zed"}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Fatalf("order = %v, want %v", gotOrder, wantOrder)
		}
	}
}

func TestListUsersFullNameFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "alice", "Alice", "Wonder", "")
	seedUser(t, s, "bob", "Bob", "Builder", "")
	seedUser(t, s, "carol", "Carol", "", "") // display name falls back to username

	tests := []struct {
		filter string
		want   int
	}{
		{"wonder", 1},
		{"WONDER", 1},
		{"bob b", 1},
		{"carol", 1},
		{"nobody", 0},
	}

	for _, tt := range tests {
		users, total, err := s.ListUsers(ctx, ListOptions{Limit: 10, FullName: tt.filter})
		if err != nil {
			t.Fatalf("ListUsers(%q): %v", tt.filter, err)
		}
		if int(total) != tt.want || len(users) != tt.want {
			t.Errorf("filter %q: got %d users (total %d), want %d", tt.filter, len(users), total, tt.want)
		}
	}
}

func TestListUsersPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "u1", "A", "A", "")
	seedUser(t, s, "u2", "B", "B", "")
	seedUser(t, s, "u3", "C", "C", "")

	users, total, err := s.ListUsers(ctx, ListOptions{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(users) != 1 || users[0].Username != "u3" {
		t.Errorf("page = %v, want just u3", users)
	}
}

func TestGetUserReservedUsername(t *testing.T) {
	s := newTestStore(t)
	u := seedUser(t, s, "admin", "Root", "Root", "")

	if _, err := s.GetUser(context.Background(), u.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for reserved username, got %v", err)
	}
}

func TestMarkEmailVerified(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "jdoe", "John", "Doe", "jdoe@example.com")
	if err := s.MarkEmailVerified(ctx, u.ID, "jdoe@example.com"); err != nil {
		t.Fatalf("MarkEmailVerified: %v", err)
	}
	addrs, _ := s.ListAddresses(ctx, u.ID)
	if !addrs[0].Verified {
		t.Error("address not marked verified")
	}

	if err := s.MarkEmailVerified(ctx, u.ID, "missing@example.com"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for unknown address, got %v", err)
	}
}

func TestDeleteUserCascadesAddresses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "jdoe", "John", "Doe", "jdoe@example.com")
	if err := s.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	addrs, err := s.ListAddresses(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListAddresses: %v", err)
	}
	if len(addrs) != 0 {
		t.Errorf("got %d orphaned addresses, want 0", len(addrs))
	}
}
