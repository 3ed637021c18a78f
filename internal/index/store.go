// Package index persists the document catalog, chunk index, and interaction
// log in a single DuckDB file.
package index

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when a document or blob reference does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStaleGeneration is returned when a pipeline write is conditioned on a
	// generation that another run has since replaced.
	ErrStaleGeneration = errors.New("stale pipeline generation")
)

// Store wraps a DuckDB database holding the documents, chunks, and
// interaction_log tables. All methods are safe for concurrent use; each
// write is an independent small commit, there is no cross-table transaction
// spanning a whole pipeline run.
type Store struct {
	db     *sql.DB
	dbPath string
	logger *zap.Logger
}

// Options tunes the underlying DuckDB instance.
type Options struct {
	Threads     int
	MemoryLimit string
}

// Open opens (or creates) the index database at dbPath.
func Open(dbPath string, opts Options, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Threads <= 0 {
		opts.Threads = 4
	}
	if opts.MemoryLimit == "" {
		opts.MemoryLimit = "1GB"
	}

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			fmt.Sprintf("PRAGMA memory_limit='%s'", opts.MemoryLimit),
			fmt.Sprintf("PRAGMA threads=%d", opts.Threads),
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)

	s := &Store{
		db:     db,
		dbPath: dbPath,
		logger: logger.With(zap.String("component", "index")),
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("index opened", zap.String("path", dbPath))
	return s, nil
}

func (s *Store) createSchema() error {
	stmts := []string{
		// Generations are drawn from one global sequence, which keeps them
		// monotonic per file across delete/recreate cycles.
		`CREATE SEQUENCE IF NOT EXISTS doc_generation_seq`,
		`CREATE SEQUENCE IF NOT EXISTS interaction_id_seq`,
		`CREATE TABLE IF NOT EXISTS documents (
			file_name   VARCHAR PRIMARY KEY,
			parsed_text VARCHAR,
			status      VARCHAR NOT NULL,
			generation  BIGINT NOT NULL,
			updated_at  TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			file_name  VARCHAR NOT NULL,
			chunk_id   INTEGER NOT NULL,
			chunk_text VARCHAR NOT NULL,
			embedding  BLOB,
			UNIQUE (file_name, chunk_id)
		)`,
		`CREATE TABLE IF NOT EXISTS interaction_log (
			id            BIGINT PRIMARY KEY DEFAULT nextval('interaction_id_seq'),
			principal     VARCHAR NOT NULL,
			question      VARCHAR NOT NULL,
			asked_at      TIMESTAMP NOT NULL,
			success       BOOLEAN NOT NULL,
			response      VARCHAR,
			error_message VARCHAR
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}

// Ping verifies the database is reachable, for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
