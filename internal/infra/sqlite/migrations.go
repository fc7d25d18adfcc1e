package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"time"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migration is one schema change file, named NNNN_name.sql.
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
}

// MigrationStatus pairs a known migration with its applied record, if any.
type MigrationStatus struct {
	Migration
	Applied *AppliedMigration
}

var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

const createSchemaMigrations = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TEXT NOT NULL,
    checksum   TEXT NOT NULL
)`

// Migrate applies every pending embedded migration and returns the ones it ran.
func Migrate(ctx context.Context, db *sql.DB) ([]Migration, error) {
	return migrate(ctx, db, migrationFiles)
}

// Status lists every embedded migration with its applied record.
func Status(ctx context.Context, db *sql.DB) ([]MigrationStatus, error) {
	migrations, err := readMigrations(migrationFiles)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, createSchemaMigrations); err != nil {
		return nil, fmt.Errorf("creating schema_migrations: %w", err)
	}
	applied, err := appliedMigrations(ctx, db)
	if err != nil {
		return nil, err
	}

	out := make([]MigrationStatus, 0, len(migrations))
	for _, m := range migrations {
		st := MigrationStatus{Migration: m}
		if am, ok := applied[m.Version]; ok {
			am := am
			st.Applied = &am
		}
		out = append(out, st)
	}
	return out, nil
}

func migrate(ctx context.Context, db *sql.DB, fsys fs.FS) ([]Migration, error) {
	migrations, err := readMigrations(fsys)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, createSchemaMigrations); err != nil {
		return nil, fmt.Errorf("creating schema_migrations: %w", err)
	}
	applied, err := appliedMigrations(ctx, db)
	if err != nil {
		return nil, err
	}

	var ran []Migration
	for _, m := range migrations {
		if am, ok := applied[m.Version]; ok {
			if am.Checksum != m.Checksum {
				return ran, fmt.Errorf("migration %04d_%s was modified after it was applied (checksum %s, recorded %s)",
					m.Version, m.Name, m.Checksum, am.Checksum)
			}
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return ran, fmt.Errorf("applying migration %04d_%s: %w", m.Version, m.Name, err)
		}
		ran = append(ran, m)
	}
	return ran, nil
}

// readMigrations loads migrations/*.sql from fsys ordered by version.
func readMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, "migrations")
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		matches := migrationPattern.FindStringSubmatch(e.Name())
		if matches == nil {
			return nil, fmt.Errorf("invalid migration filename %q", e.Name())
		}
		version, err := strconv.Atoi(matches[1])
		if err != nil {
			return nil, fmt.Errorf("invalid migration version in %q: %w", e.Name(), err)
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations %q and %q share version %d", prev, e.Name(), version)
		}
		seen[version] = e.Name()

		content, err := fs.ReadFile(fsys, "migrations/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		migrations = append(migrations, Migration{
			Version:  version,
			Name:     matches[2],
			Filename: e.Name(),
			SQL:      string(content),
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

func appliedMigrations(ctx context.Context, db *sql.DB) (map[int]AppliedMigration, error) {
	rows, err := db.QueryContext(ctx, `SELECT version, name, applied_at, checksum FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]AppliedMigration)
	for rows.Next() {
		var am AppliedMigration
		var at string
		if err := rows.Scan(&am.Version, &am.Name, &at, &am.Checksum); err != nil {
			return nil, fmt.Errorf("scanning applied migration: %w", err)
		}
		if am.AppliedAt, err = parseTimestamp(at); err != nil {
			return nil, err
		}
		applied[am.Version] = am
	}
	return applied, rows.Err()
}

// applyMigration runs the migration and records it in one transaction.
func applyMigration(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("executing: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name, applied_at, checksum) VALUES (?, ?, ?, ?)`,
		m.Version, m.Name, formatTimestamp(time.Now()), m.Checksum,
	); err != nil {
		return fmt.Errorf("recording: %w", err)
	}
	return tx.Commit()
}
