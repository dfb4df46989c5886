package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type migration struct {
	version    int
	name       string
	statements []string
	// apply runs after statements, inside the same transaction, for steps
	// that need Go rather than SQL.
	apply func(ctx context.Context, h *QueryHelper) error
}

// migrations are applied in order and never edited once released.
// {{serial}} expands to the dialect's auto-increment primary key.
var migrations = []migration{
	{
		version: 1,
		name:    "create owners and rooms",
		statements: []string{
			`CREATE TABLE owners (
				id VARCHAR(64) NOT NULL PRIMARY KEY,
				name VARCHAR(200) NOT NULL UNIQUE,
				kind VARCHAR(16) NOT NULL CHECK (kind IN ('centre', 'department')),
				parent_id VARCHAR(64) NULL,
				FOREIGN KEY (parent_id) REFERENCES owners(id)
			)`,
			`CREATE TABLE rooms (
				id VARCHAR(64) NOT NULL PRIMARY KEY,
				name VARCHAR(200) NOT NULL,
				owner_id VARCHAR(64) NOT NULL,
				capacity INTEGER NOT NULL CHECK (capacity >= 0),
				computers INTEGER NOT NULL CHECK (computers >= 0),
				FOREIGN KEY (owner_id) REFERENCES owners(id)
			)`,
			`CREATE INDEX idx_rooms_owner ON rooms (owner_id)`,
		},
	},
	{
		version: 2,
		name:    "create reservations",
		statements: []string{
			`CREATE TABLE reservations (
				id VARCHAR(64) NOT NULL PRIMARY KEY,
				room_id VARCHAR(64) NOT NULL,
				owner_id VARCHAR(64) NOT NULL,
				res_date VARCHAR(10) NOT NULL,
				start_sec INTEGER NOT NULL,
				end_sec INTEGER NOT NULL,
				subject VARCHAR(200) NOT NULL,
				CHECK (start_sec < end_sec),
				FOREIGN KEY (room_id) REFERENCES rooms(id),
				FOREIGN KEY (owner_id) REFERENCES owners(id)
			)`,
			`CREATE INDEX idx_reservations_room_date ON reservations (room_id, res_date)`,
			`CREATE INDEX idx_reservations_date ON reservations (res_date, start_sec)`,
		},
	},
	{
		version: 3,
		name:    "create audit ledger",
		statements: []string{
			`CREATE TABLE audit_records (
				seq {{serial}},
				reservation_id VARCHAR(64) NOT NULL,
				operation VARCHAR(8) NOT NULL CHECK (operation IN ('CREATE', 'UPDATE', 'DELETE')),
				occurred_at VARCHAR(32) NOT NULL,
				actor_id VARCHAR(64) NOT NULL,
				actor_name VARCHAR(200) NOT NULL,
				room_id VARCHAR(64) NOT NULL,
				room_name VARCHAR(200) NOT NULL,
				room_owner_name VARCHAR(200) NOT NULL,
				owner_id VARCHAR(64) NOT NULL,
				owner_name VARCHAR(200) NOT NULL,
				res_date VARCHAR(10) NOT NULL,
				start_sec INTEGER NOT NULL,
				end_sec INTEGER NOT NULL,
				subject VARCHAR(200) NOT NULL,
				prev_digest VARCHAR(64) NOT NULL,
				digest VARCHAR(64) NOT NULL,
				UNIQUE (reservation_id, operation, occurred_at)
			)`,
			`CREATE INDEX idx_audit_records_occurred_at ON audit_records (occurred_at)`,
			`CREATE TABLE audit_head (
				id INTEGER NOT NULL PRIMARY KEY,
				digest VARCHAR(64) NOT NULL
			)`,
			`INSERT INTO audit_head (id, digest) VALUES (1, '')`,
		},
	},
	{
		version: 4,
		name:    "key owner names",
		statements: []string{
			`ALTER TABLE owners ADD COLUMN name_key VARCHAR(200) NOT NULL DEFAULT ''`,
			`CREATE INDEX idx_owners_name_key ON owners (name_key)`,
		},
		apply: backfillOwnerNameKeys,
	},
	{
		version: 5,
		name:    "chain audit records per room",
		apply:   chainAuditPerRoom,
	},
}

func backfillOwnerNameKeys(ctx context.Context, h *QueryHelper) error {
	rows, err := h.Query(ctx, `SELECT id, name FROM owners`)
	if err != nil {
		return err
	}
	names := map[string]string{}
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			rows.Close()
			return err
		}
		names[id] = name
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for id, name := range names {
		if _, err := h.Exec(ctx, `UPDATE owners SET name_key = ? WHERE id = ?`, nameKey(name), id); err != nil {
			return err
		}
	}
	return nil
}

// chainAuditPerRoom moves the chain head from the single audit_head row onto
// each room. Records written under the single head link to the previous
// record of any room and cannot be re-linked without changing their digests,
// so the step refuses to run over a non-empty ledger. The check comes first
// because MySQL commits DDL implicitly.
func chainAuditPerRoom(ctx context.Context, h *QueryHelper) error {
	var n int
	if err := h.QueryRow(ctx, `SELECT COUNT(*) FROM audit_records`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%d audit records are chained globally; export and clear the ledger before upgrading", n)
	}
	for _, stmt := range []string{
		`ALTER TABLE rooms ADD COLUMN audit_head VARCHAR(64) NOT NULL DEFAULT ''`,
		`CREATE INDEX idx_audit_records_room ON audit_records (room_id)`,
		`DROP TABLE audit_head`,
	} {
		if _, err := h.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Migrate applies pending migrations and records each in schema_migrations.
func (s *Store) Migrate(ctx context.Context) error {
	return s.migrateTo(ctx, migrations[len(migrations)-1].version)
}

func (s *Store) migrateTo(ctx context.Context, target int) error {
	helper := NewQueryHelper(s.pool.DB(), s.pool.Dialect())
	if _, err := helper.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER NOT NULL PRIMARY KEY,
		name VARCHAR(200) NOT NULL,
		applied_at VARCHAR(32) NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := s.appliedVersions(ctx, helper)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.version] || m.version > target {
			continue
		}
		err := s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			txHelper := NewQueryHelper(tx, s.pool.Dialect())
			for _, stmt := range m.statements {
				stmt = strings.ReplaceAll(stmt, "{{serial}}", s.pool.Dialect().serialPrimaryKey())
				if _, err := txHelper.Exec(ctx, stmt); err != nil {
					return err
				}
			}
			if m.apply != nil {
				if err := m.apply(ctx, txHelper); err != nil {
					return err
				}
			}
			_, err := txHelper.Exec(ctx,
				`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
				m.version, m.name, s.now().UTC().Format(time.RFC3339),
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

// SchemaVersion returns the highest applied migration, or 0.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	applied, err := s.appliedVersions(ctx, NewQueryHelper(s.pool.DB(), s.pool.Dialect()))
	if err != nil {
		return 0, err
	}
	version := 0
	for v := range applied {
		version = max(version, v)
	}
	return version, nil
}

func (s *Store) appliedVersions(ctx context.Context, helper *QueryHelper) (map[int]bool, error) {
	rows, err := helper.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}
