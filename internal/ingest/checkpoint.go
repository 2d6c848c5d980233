package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure Go driver, no cgo
)

// CheckpointStore records which chunk ids have already been embedded and
// upserted for a collection, so a restarted Run can skip work a prior run
// already finished instead of re-embedding the whole tree. It is keyed on
// the same content-addressable chunkID scheme the pipeline already uses,
// so an unchanged chunk is recognized as done and a changed one is not.
type CheckpointStore struct {
	db *sql.DB
}

// OpenCheckpointStore opens (creating if necessary) a checkpoint database
// at path. An empty path opens an in-memory store, useful for one-off runs
// that don't need to resume.
func OpenCheckpointStore(path string) (*CheckpointStore, error) {
	dsn := ":memory:"
	if path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("checkpoint: create dir %s: %w", dir, err)
			}
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open %s: %w", path, err)
	}

	// A single ingestion run is the only writer; WAL still lets another
	// process read the same file without blocking.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("checkpoint: set pragma %q: %w", pragma, err)
		}
	}

	store := &CheckpointStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("checkpoint: init schema: %w", err)
	}
	return store, nil
}

func (s *CheckpointStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS ingested_chunks (
		collection  TEXT NOT NULL,
		chunk_id    TEXT NOT NULL,
		file_path   TEXT NOT NULL,
		ingested_at INTEGER NOT NULL,
		PRIMARY KEY (collection, chunk_id)
	);

	CREATE INDEX IF NOT EXISTS idx_ingested_chunks_file
		ON ingested_chunks (collection, file_path);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Seen reports which of the given chunk ids are already checkpointed for
// collection. The returned set contains only ids that were found.
func (s *CheckpointStore) Seen(ctx context.Context, collection string, chunkIDs []string) (map[string]bool, error) {
	seen := make(map[string]bool, len(chunkIDs))
	if len(chunkIDs) == 0 {
		return seen, nil
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("checkpoint: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`SELECT 1 FROM ingested_chunks WHERE collection = ? AND chunk_id = ?`)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: prepare: %w", err)
	}
	defer stmt.Close()

	for _, id := range chunkIDs {
		var exists int
		err := stmt.QueryRowContext(ctx, collection, id).Scan(&exists)
		switch {
		case err == nil:
			seen[id] = true
		case err == sql.ErrNoRows:
			// not yet ingested
		default:
			return nil, fmt.Errorf("checkpoint: query %s: %w", id, err)
		}
	}
	return seen, nil
}

// MarkIngested records chunkIDs as ingested for collection, stamped with
// ingestedAtUnix, which the caller supplies (Pipeline.Run passes
// time.Now().Unix()).
func (s *CheckpointStore) MarkIngested(ctx context.Context, collection, filePath string, chunkIDs []string, ingestedAtUnix int64) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("checkpoint: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO ingested_chunks(collection, chunk_id, file_path, ingested_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("checkpoint: prepare: %w", err)
	}
	defer stmt.Close()

	for _, id := range chunkIDs {
		if _, err := stmt.ExecContext(ctx, collection, id, filePath, ingestedAtUnix); err != nil {
			return fmt.Errorf("checkpoint: insert %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// ForgetFile removes every checkpointed chunk for filePath in collection.
// Pipeline.Run does not call it: checkpoints for chunks that no longer
// appear in a file stay in the store until ForgetFile removes them.
func (s *CheckpointStore) ForgetFile(ctx context.Context, collection, filePath string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM ingested_chunks WHERE collection = ? AND file_path = ?`, collection, filePath)
	if err != nil {
		return fmt.Errorf("checkpoint: forget %s: %w", filePath, err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *CheckpointStore) Close() error {
	return s.db.Close()
}
