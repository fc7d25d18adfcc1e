// Package sqlite is the SQLite-backed ledger store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/mattn/go-sqlite3"
)

// driverName is go-sqlite3 with the ledger's SQL functions registered on
// every new connection.
const driverName = "sqlite3_ledger"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			// Text search must fold exactly like ledger.TextContains.Match.
			return conn.RegisterFunc("casefold", ledger.Casefold, true)
		},
	})
}

// Store is a ledger.Store over one SQLite database file.
type Store struct {
	db     *sql.DB
	dbPath string
	ops
}

// Open opens (creating if needed) the database at dbPath and applies pending
// migrations.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	db, err := OpenDB(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: %w", err)
	}

	return &Store{db: db, dbPath: dbPath, ops: ops{q: db}}, nil
}

// OpenDB connects to dbPath without touching the schema. WAL mode and foreign
// keys are enabled, and every transaction starts with BEGIN IMMEDIATE so
// concurrent writers queue on the lock instead of failing at commit.
func OpenDB(ctx context.Context, dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("OpenDB: creating database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000", dbPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("OpenDB: opening database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("OpenDB: pinging database: %w", err)
	}
	return db, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying handle for tooling such as cmd/migrate.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// RunInTx executes fn within a database transaction. The transaction is rolled
// back when fn returns an error or panics, and committed otherwise.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("RunInTx: beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &txOps{ops: ops{q: tx}}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("RunInTx: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("RunInTx: committing transaction: %w", err)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ops implements the read side against any querier.
type ops struct {
	q querier
}

// txOps adds the write side; it only ever wraps a *sql.Tx.
type txOps struct {
	ops
}

var (
	_ ledger.Store = (*Store)(nil)
	_ ledger.Tx    = (*txOps)(nil)
)
