package store

import (
	"fmt"
	"strings"
)

// dialect carries the DDL fragments that differ between supported backends.
type dialect struct {
	idPK      string // autoincrement primary key column definition
	boolT     string
	boolFalse string
	boolTrue  string
	timeT     string
}

func (s *Store) dialectDefs() dialect {
	switch s.driver {
	case DriverPostgres:
		return dialect{
			idPK:      "BIGSERIAL PRIMARY KEY",
			boolT:     "BOOLEAN",
			boolFalse: "FALSE",
			boolTrue:  "TRUE",
			timeT:     "TIMESTAMPTZ",
		}
	case DriverMySQL:
		return dialect{
			idPK:      "BIGINT PRIMARY KEY AUTO_INCREMENT",
			boolT:     "BOOLEAN",
			boolFalse: "FALSE",
			boolTrue:  "TRUE",
			timeT:     "DATETIME",
		}
	case DriverSQLServer:
		return dialect{
			idPK:      "BIGINT IDENTITY(1,1) PRIMARY KEY",
			boolT:     "BIT",
			boolFalse: "0",
			boolTrue:  "1",
			timeT:     "DATETIME2",
		}
	default: // sqlite
		return dialect{
			idPK:      "INTEGER PRIMARY KEY AUTOINCREMENT",
			boolT:     "INTEGER",
			boolFalse: "0",
			boolTrue:  "1",
			timeT:     "DATETIME",
		}
	}
}

// createTable wraps a CREATE TABLE body with the dialect's existence guard.
// sqlserver has no IF NOT EXISTS for tables.
func (s *Store) createTable(name, body string) string {
	if s.driver == DriverSQLServer {
		return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (%s)", name, name, body)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", name, body)
}

func (s *Store) migrate() error {
	d := s.dialectDefs()

	migrations := []string{
		s.createTable("users", fmt.Sprintf(`
			id %s,
			username VARCHAR(150) UNIQUE NOT NULL,
			password_hash VARCHAR(128) NOT NULL,
			first_name VARCHAR(150) NOT NULL DEFAULT '',
			last_name VARCHAR(150) NOT NULL DEFAULT '',
			email VARCHAR(254) NOT NULL DEFAULT '',
			is_staff %s NOT NULL DEFAULT %s,
			is_superuser %s NOT NULL DEFAULT %s,
			is_active %s NOT NULL DEFAULT %s,
			last_login_at %s,
			created_at %s NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at %s NOT NULL DEFAULT CURRENT_TIMESTAMP`,
			d.idPK,
			d.boolT, d.boolFalse,
			d.boolT, d.boolFalse,
			d.boolT, d.boolTrue,
			d.timeT, d.timeT, d.timeT)),

		s.createTable("email_addresses", fmt.Sprintf(`
			id %s,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			email VARCHAR(254) NOT NULL,
			verified %s NOT NULL DEFAULT %s,
			is_primary %s NOT NULL DEFAULT %s,
			created_at %s NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, email)`,
			d.idPK,
			d.boolT, d.boolFalse,
			d.boolT, d.boolFalse,
			d.timeT)),

		`CREATE INDEX idx_email_addresses_email ON email_addresses(email)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// Reruns hit existing objects on backends without IF NOT EXISTS
			// support for every statement; treat those as no-ops.
			lower := strings.ToLower(err.Error())
			if strings.Contains(lower, "already exists") ||
				strings.Contains(lower, "duplicate") {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
