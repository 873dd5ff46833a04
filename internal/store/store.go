package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	"github.com/brontes/usereditor/internal/model"
)

// Supported database drivers.
const (
	DriverSQLite    = "sqlite"
	DriverPostgres  = "postgres"
	DriverMySQL     = "mysql"
	DriverSQLServer = "sqlserver"
)

// sqlDriverName maps our driver names to the registered database/sql drivers.
var sqlDriverName = map[string]string{
	DriverSQLite:    "sqlite",
	DriverPostgres:  "pgx",
	DriverMySQL:     "mysql",
	DriverSQLServer: "sqlserver",
}

// Store persists users and their email-address history. SQLite is the
// default embedded backend; postgres, mysql, and sqlserver are selected by
// driver name and DSN.
type Store struct {
	db     *sqlx.DB
	driver string
}

// Open connects to the user database and runs migrations. For the sqlite
// driver, dsn is a data directory; pass empty string for in-memory.
func Open(driver, dsn string) (*Store, error) {
	name, ok := sqlDriverName[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported driver: %q", driver)
	}

	if driver == DriverSQLite {
		if dsn == "" {
			dsn = ":memory:?_journal_mode=WAL"
		} else {
			if err := os.MkdirAll(dsn, 0755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
			dsn = filepath.Join(dsn, "usereditor.db") + "?_journal_mode=WAL&_busy_timeout=5000"
		}
	}

	db, err := sqlx.Connect(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open user database: %w", err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate user database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// displayNameExpr returns the SQL expression for the computed display name:
// first name joined with the last name, falling back to the username when
// the last name is blank. Used for ordering and the full_name filter only.
func (s *Store) displayNameExpr() string {
	const fallback = `CASE WHEN last_name = '' THEN username ELSE last_name END`
	switch s.driver {
	case DriverMySQL, DriverSQLServer:
		return `TRIM(CONCAT(first_name, ' ', ` + fallback + `))`
	default:
		return `TRIM(first_name || ' ' || ` + fallback + `)`
	}
}

// pageClause returns the dialect-appropriate pagination suffix. The query it
// is appended to must carry an ORDER BY for sqlserver.
func (s *Store) pageClause(limit, offset int) string {
	if s.driver == DriverSQLServer {
		return fmt.Sprintf(" OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", offset, limit)
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
}

// ---------------------------------------------------------------------------
// User CRUD
// ---------------------------------------------------------------------------

// ListOptions controls pagination and filtering of the user collection.
type ListOptions struct {
	Limit    int
	Offset   int
	FullName string // case-insensitive substring match on the display name
	Username string // exact match
}

// ListUsers returns a page of users ordered by computed display name,
// excluding reserved usernames, with email addresses eagerly loaded. The
// second return value is the total matching count before pagination.
func (s *Store) ListUsers(ctx context.Context, opts ListOptions) ([]model.User, int64, error) {
	where := "WHERE username <> 'admin'"
	var args []interface{}

	if opts.FullName != "" {
		where += " AND LOWER(" + s.displayNameExpr() + ") LIKE ?"
		args = append(args, "%"+strings.ToLower(opts.FullName)+"%")
	}
	if opts.Username != "" {
		where += " AND username = ?"
		args = append(args, opts.Username)
	}

	var total int64
	countQ := s.db.Rebind("SELECT COUNT(*) FROM users " + where)
	if err := s.db.GetContext(ctx, &total, countQ, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	q := s.db.Rebind("SELECT * FROM users " + where +
		" ORDER BY " + s.displayNameExpr() + s.pageClause(opts.Limit, opts.Offset))
	var users []model.User
	if err := s.db.SelectContext(ctx, &users, q, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	for i := range users {
		addrs, err := s.ListAddresses(ctx, users[i].ID)
		if err != nil {
			return nil, 0, err
		}
		users[i].Addresses = addrs
	}
	return users, total, nil
}

// GetUser returns a user by ID with email addresses loaded. Reserved
// usernames are reported as not found.
func (s *Store) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	q := s.db.Rebind("SELECT * FROM users WHERE id = ?")
	if err := s.db.GetContext(ctx, &u, q, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if model.IsReservedUsername(u.Username) {
		return nil, ErrNotFound
	}

	addrs, err := s.ListAddresses(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.Addresses = addrs
	return &u, nil
}

// GetUserByUsername returns a user by its unique username. Unlike GetUser it
// does not exclude reserved usernames; login for the bootstrap admin account
// goes through here.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	q := s.db.Rebind("SELECT * FROM users WHERE username = ?")
	if err := s.db.GetContext(ctx, &u, q, username); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	addrs, err := s.ListAddresses(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.Addresses = addrs
	return &u, nil
}

// CreateUser inserts a new user and, when email is non-empty, records it in
// the address history, all within one transaction. The PasswordHash field
// must already be set. The ID, CreatedAt, and UpdatedAt fields on u are
// populated after a successful insert.
func (s *Store) CreateUser(ctx context.Context, u *model.User, email string) error {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.Email = email

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	id, err := s.insertUserTx(ctx, tx, u)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID = id

	if email != "" {
		if err := s.rotateEmailTx(ctx, tx, id, email); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpdateUser updates a user's non-password attributes and synchronizes the
// email-address history in one transaction. The email parameter carries the
// submitted value: nil means the field was omitted (raw email and history
// untouched), an explicit empty string clears the raw email without touching
// history, and a non-empty value sets the raw email and rotates the primary
// address. The password hash column is never written here.
func (s *Store) UpdateUser(ctx context.Context, u *model.User, email *string) error {
	u.UpdatedAt = time.Now().UTC()
	if email != nil {
		u.Email = *email
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const q = `UPDATE users SET
		username = :username, first_name = :first_name, last_name = :last_name,
		email = :email, is_staff = :is_staff, is_superuser = :is_superuser,
		is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`

	result, err := tx.NamedExecContext(ctx, q, u)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	if email != nil && *email != "" {
		if err := s.rotateEmailTx(ctx, tx, u.ID, *email); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SetPassword stores a new password hash for the user. This is the only
// write path for the password_hash column after creation.
func (s *Store) SetPassword(ctx context.Context, id int64, hash string) error {
	q := s.db.Rebind("UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?")
	result, err := s.db.ExecContext(ctx, q, hash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set password rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes a user by ID. Address history is cascade deleted by the
// foreign key constraint.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	q := s.db.Rebind("DELETE FROM users WHERE id = ?")
	result, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// HasAnyUser reports whether at least one user account exists. Used for
// first-run detection.
func (s *Store) HasAnyUser(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM users"); err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return count > 0, nil
}

// UpdateUserLastLogin sets the last_login_at timestamp for a user.
func (s *Store) UpdateUserLastLogin(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	q := s.db.Rebind("UPDATE users SET last_login_at = ? WHERE id = ?")
	if _, err := s.db.ExecContext(ctx, q, now, id); err != nil {
		return fmt.Errorf("update user last login: %w", err)
	}
	return nil
}

// insertUserTx inserts a user row and returns the new id, handling the
// dialect differences around retrieving autoincrement keys.
func (s *Store) insertUserTx(ctx context.Context, tx *sqlx.Tx, u *model.User) (int64, error) {
	const cols = `(username, password_hash, first_name, last_name, email,
		is_staff, is_superuser, is_active, created_at, updated_at)`
	const vals = `(:username, :password_hash, :first_name, :last_name, :email,
		:is_staff, :is_superuser, :is_active, :created_at, :updated_at)`

	switch s.driver {
	case DriverPostgres:
		return s.insertReturningID(ctx, tx, `INSERT INTO users `+cols+` VALUES `+vals+` RETURNING id`, u)
	case DriverSQLServer:
		return s.insertReturningID(ctx, tx, `INSERT INTO users `+cols+` OUTPUT INSERTED.id VALUES `+vals, u)
	default:
		result, err := tx.NamedExecContext(ctx, `INSERT INTO users `+cols+` VALUES `+vals, u)
		if err != nil {
			return 0, err
		}
		return result.LastInsertId()
	}
}

func (s *Store) insertReturningID(ctx context.Context, tx *sqlx.Tx, q string, arg interface{}) (int64, error) {
	rows, err := sqlx.NamedQueryContext(ctx, tx, q, arg)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	if !rows.Next() {
		return 0, sql.ErrNoRows
	}
	var id int64
	if err := rows.Scan(&id); err != nil {
		return 0, err
	}
	return id, rows.Err()
}

// ---------------------------------------------------------------------------
// Email-address history
// ---------------------------------------------------------------------------

// ListAddresses returns a user's email-address records in insertion order.
func (s *Store) ListAddresses(ctx context.Context, userID int64) ([]model.EmailAddress, error) {
	var addrs []model.EmailAddress
	q := s.db.Rebind("SELECT * FROM email_addresses WHERE user_id = ? ORDER BY id")
	if err := s.db.SelectContext(ctx, &addrs, q, userID); err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	return addrs, nil
}

// EmailTakenByOther reports whether any address record with the given email
// belongs to a user other than excludeUserID. Pass zero to check all users.
func (s *Store) EmailTakenByOther(ctx context.Context, email string, excludeUserID int64) (bool, error) {
	var count int
	q := s.db.Rebind("SELECT COUNT(*) FROM email_addresses WHERE email = ? AND user_id <> ?")
	if err := s.db.GetContext(ctx, &count, q, email, excludeUserID); err != nil {
		return false, fmt.Errorf("check email ownership: %w", err)
	}
	return count > 0, nil
}

// MarkEmailVerified sets the verified flag on a user's address record.
func (s *Store) MarkEmailVerified(ctx context.Context, userID int64, email string) error {
	q := s.db.Rebind("UPDATE email_addresses SET verified = ? WHERE user_id = ? AND email = ?")
	result, err := s.db.ExecContext(ctx, q, true, userID, email)
	if err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark email verified rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// rotateEmailTx installs email as the user's primary address: if no record
// with that exact address exists yet, every existing record is demoted and a
// new primary, unverified record is inserted. A record that already exists
// is left untouched, making identical resubmission idempotent. History is
// never deleted.
func (s *Store) rotateEmailTx(ctx context.Context, tx *sqlx.Tx, userID int64, email string) error {
	var count int
	q := tx.Rebind("SELECT COUNT(*) FROM email_addresses WHERE user_id = ? AND email = ?")
	if err := tx.GetContext(ctx, &count, q, userID, email); err != nil {
		return fmt.Errorf("check existing address: %w", err)
	}
	if count > 0 {
		return nil
	}

	demote := tx.Rebind("UPDATE email_addresses SET is_primary = ? WHERE user_id = ?")
	if _, err := tx.ExecContext(ctx, demote, false, userID); err != nil {
		return fmt.Errorf("demote addresses: %w", err)
	}

	insert := tx.Rebind(`INSERT INTO email_addresses (user_id, email, verified, is_primary, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, insert, userID, email, false, true, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert address: %w", err)
	}
	return nil
}

// SeedAddress inserts an address record directly, bypassing rotation. Meant
// for bootstrap tooling and tests that need specific verified/primary flags.
func (s *Store) SeedAddress(ctx context.Context, addr *model.EmailAddress) error {
	addr.CreatedAt = time.Now().UTC()
	switch s.driver {
	case DriverPostgres, DriverSQLServer:
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck
		q := `INSERT INTO email_addresses (user_id, email, verified, is_primary, created_at)
			VALUES (:user_id, :email, :verified, :is_primary, :created_at)`
		if s.driver == DriverPostgres {
			q += ` RETURNING id`
		} else {
			q = `INSERT INTO email_addresses (user_id, email, verified, is_primary, created_at)
			OUTPUT INSERTED.id VALUES (:user_id, :email, :verified, :is_primary, :created_at)`
		}
		id, err := s.insertReturningID(ctx, tx, q, addr)
		if err != nil {
			return fmt.Errorf("insert address: %w", err)
		}
		addr.ID = id
		return tx.Commit()
	default:
		result, err := s.db.NamedExecContext(ctx,
			`INSERT INTO email_addresses (user_id, email, verified, is_primary, created_at)
			VALUES (:user_id, :email, :verified, :is_primary, :created_at)`, addr)
		if err != nil {
			return fmt.Errorf("insert address: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("get address id: %w", err)
		}
		addr.ID = id
		return nil
	}
}
