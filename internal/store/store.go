package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Warehouse table names
const (
	APIIngestTable      = "api_ingest"
	SnapshotIngestTable = "sqlite_ingest"
	CommonTable         = "common_table"
	TopWordsTable       = "top_words"
	MaterializedTable   = "materializations"
)

// snapshotIngestPhysical stores SnapshotIngestTable. SQLite reserves every
// name starting with "sqlite_" for internal objects.
const snapshotIngestPhysical = "snapshot_ingest"

// physical maps a warehouse table name to the name it has in the database file.
func physical(table string) string {
	if table == SnapshotIngestTable {
		return snapshotIngestPhysical
	}
	return table
}

// ErrUnknownTable is returned when a caller names a table the warehouse does not manage.
var ErrUnknownTable = errors.New("unknown warehouse table")

// Tables lists the data tables in pipeline order.
var Tables = []string{APIIngestTable, SnapshotIngestTable, CommonTable, TopWordsTable}

// Store handles all warehouse operations
type Store struct {
	db *sql.DB
}

// New creates a new Store with SQLite backend
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One connection keeps transactions and the merge read-then-write on the same handle.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// NewWithDB wraps an already opened database without migrating it.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ingestSchema is shared by both ingest tables so that SELECT * lines up in the merge.
const ingestSchema = `(
		id INTEGER,
		title TEXT,
		kids TEXT,
		"by" TEXT,
		time INTEGER,
		score INTEGER,
		url TEXT,
		type TEXT,
		descendants INTEGER,
		text TEXT,
		data_transfer_timestamp TEXT NOT NULL,
		hashkey TEXT NOT NULL
	)`

// migrate creates the database schema. common_table and top_words are
// created lazily by the merge and aggregation steps.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ` + APIIngestTable + ` ` + ingestSchema + `;
	CREATE TABLE IF NOT EXISTS ` + snapshotIngestPhysical + ` ` + ingestSchema + `;

	CREATE TABLE IF NOT EXISTS ` + MaterializedTable + ` (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		variant TEXT NOT NULL,
		step TEXT NOT NULL,
		metadata TEXT,
		preview TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_api_ingest_hashkey ON ` + APIIngestTable + `(hashkey);
	CREATE INDEX IF NOT EXISTS idx_snapshot_ingest_hashkey ON ` + snapshotIngestPhysical + `(hashkey);
	CREATE INDEX IF NOT EXISTS idx_materializations_run ON ` + MaterializedTable + `(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func tableExists(ctx context.Context, q queryer, name string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, physical(name),
	).Scan(&n)
	return n > 0, err
}

func countRows(ctx context.Context, q queryer, table string) (int64, error) {
	var n int64
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+physical(table)).Scan(&n)
	return n, err
}

func knownTable(name string) bool {
	switch name {
	case APIIngestTable, SnapshotIngestTable, CommonTable, TopWordsTable, MaterializedTable:
		return true
	}
	return false
}

// TableExists reports whether a warehouse table has been created.
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	if !knownTable(table) {
		return false, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return tableExists(ctx, s.db, table)
}

// Count returns the number of rows in a warehouse table. Tables that have
// not been created yet count as zero.
func (s *Store) Count(ctx context.Context, table string) (int64, error) {
	exists, err := s.TableExists(ctx, table)
	if err != nil || !exists {
		return 0, err
	}
	n, err := countRows(ctx, s.db, table)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// Wipe deletes all records from the data tables, keeping their schema.
func (s *Store) Wipe(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range Tables {
		exists, err := tableExists(ctx, tx, table)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+physical(table)); err != nil {
			return fmt.Errorf("failed to wipe %s: %w", table, err)
		}
	}

	return tx.Commit()
}
