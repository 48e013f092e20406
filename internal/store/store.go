// Package store provides the durable, transactional black box: schema
// creation, a single-writer discipline enforced by an in-process mutex
// (one writer at a time, concurrent readers), and whole-file hot backup.
// It is deliberately the only package in this repository that knows
// about SQL; every higher layer goes through the methods here.
package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/mauriceling/serebo/internal/clock"
	"github.com/mauriceling/serebo/internal/randomstring"
	"github.com/mauriceling/serebo/internal/storeerrors"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Store wraps one SQLite file (opened through the pure-Go modernc.org/sqlite
// driver, so the binary never needs cgo) and the mutex that serializes
// writers across the insertion protocol's steps 3-7 and backups.
type Store struct {
	db     *sql.DB
	path   string
	mu     sync.Mutex
	logger zerolog.Logger
}

// Open creates the black box at path if it does not already exist,
// applying the schema and seeding the required metadata keys, then
// returns a ready-to-use Store. Opening an existing black box is
// idempotent: the metadata seed is a no-op on a store that already has a
// blackboxID.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	s := &Store{db: db, path: path, logger: logger.With().Str("component", "store").Logger()}
	if path != ":memory:" {
		// WAL lets readers observe a consistent snapshot concurrently
		// with the single writer, rather than blocking on its lock.
		if _, err := db.Exec(`pragma journal_mode=WAL`); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: enable WAL: %w", err)
		}
	}
	// LIKE is case-insensitive for ASCII by default; the search
	// operations promise case-sensitive matching.
	if _, err := db.Exec(`pragma case_sensitive_like=ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable case-sensitive LIKE: %w", err)
	}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.seedMetadata(); err != nil {
		db.Close()
		return nil, err
	}
	s.logger.Info().Str("path", path).Msg("black box opened")
	return s, nil
}

func dsn(path string) string {
	if path == ":memory:" {
		// A shared-cache in-memory database keyed by a random name, so
		// every Open(":memory:") call — even within the same test binary
		// — gets its own isolated database instead of colliding on the
		// single unnamed ":memory:" database sqlite would otherwise
		// share across every connection in the pool. The name is
		// hex-encoded so no URI-reserved character reaches the DSN.
		return fmt.Sprintf("file:%s?mode=memory&cache=shared", hex.EncodeToString([]byte(randomstring.Generate(32))))
	}
	return path
}

// Path returns the black box's on-disk path (or ":memory:" for an
// in-memory test store).
func (s *Store) Path() string { return s.path }

// DB exposes the underlying *sql.DB for read-only query packages
// (ledger's search operations, audit). Writers must go through WriteTx
// instead, so the single-writer discipline stays centralized here.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) createSchema() error {
	for _, stmt := range createTableStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: create schema: %w", err)
		}
	}
	return nil
}

func (s *Store) seedMetadata() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.insertMetadataIfAbsent(MetaCreationTimestamp, clock.Stamp()); err != nil {
		return err
	}
	if _, err := s.insertMetadataIfAbsent(MetaBlackboxID, randomstring.Generate(BlackboxIDLength)); err != nil {
		return err
	}
	if _, err := s.insertMetadataIfAbsent(MetaBlackboxPath, s.path); err != nil {
		return err
	}
	return nil
}

// insertMetadataIfAbsent inserts (key, value) only if key is not already
// present, without relying on driver-specific error codes to detect the
// collision. Returns true if the row was inserted.
func (s *Store) insertMetadataIfAbsent(key, value string) (bool, error) {
	res, err := s.db.Exec(
		`insert into metadata (key, value) select ?, ? where not exists (select 1 from metadata where key = ?)`,
		key, value, key)
	if err != nil {
		return false, fmt.Errorf("store: seed metadata %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: seed metadata %s: %w", key, err)
	}
	return n > 0, nil
}

// SetMetadata inserts a metadata key. metadata keys are write-once:
// re-insertion of an existing key — blackboxID and creation_timestamp
// included — fails with ErrDuplicateRecord and leaves the stored value
// untouched. Idempotent seeding on Open goes through
// insertMetadataIfAbsent instead.
func (s *Store) SetMetadata(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted, err := s.insertMetadataIfAbsent(key, value)
	if err != nil {
		return err
	}
	if !inserted {
		return fmt.Errorf("%w: metadata key %q", storeerrors.ErrDuplicateRecord, key)
	}
	return nil
}

// Metadata reads a single metadata value. Returns sql.ErrNoRows if the
// key is unset.
func (s *Store) Metadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`select value from metadata where key = ?`, key).Scan(&value)
	return value, err
}

// WriteTx runs fn inside a single transaction while holding the store's
// write mutex, so no other writer can observe a partially-built chain
// extension. fn's transaction is committed if fn returns nil and rolled
// back otherwise, so datalog, blockchain and eventlog never drift apart
// on a failed write.
func (s *Store) WriteTx(ctx context.Context, fn func(*sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error().Err(rbErr).Msg("rollback failed after write error")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit transaction: %w", err)
	}
	return nil
}

// Backup takes a consistent snapshot of the black box at dest without
// mutating the source: it holds the write mutex (so no insertion can run
// concurrently) and asks SQLite itself to produce the copy via
// VACUUM INTO, which reads a transactionally-consistent view rather than
// racing a raw file copy against a live writer.
func (s *Store) Backup(ctx context.Context, dest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(dest) == "" {
		return fmt.Errorf("store: backup destination must not be empty")
	}
	if _, err := s.db.ExecContext(ctx, `vacuum into ?`, dest); err != nil {
		return fmt.Errorf("store: backup to %s: %w", dest, err)
	}
	s.logger.Info().Str("dest", dest).Msg("backup written")
	return nil
}
