package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/toolroom/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection keeps :memory: databases alive across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// LoadHandledOrders implements Store.
func (s *SQLiteStore) LoadHandledOrders(ctx context.Context) (*model.HandledOrders, error) {
	raw, ok, err := s.get(ctx, keyHandledOrders)
	if err != nil {
		return nil, err
	}
	handled := model.NewHandledOrders()
	if !ok {
		return handled, nil
	}
	if err := json.Unmarshal([]byte(raw), handled); err != nil {
		return nil, fmt.Errorf("unmarshaling handled orders: %w", err)
	}
	return handled, nil
}

// SaveHandledOrders implements Store.
func (s *SQLiteStore) SaveHandledOrders(ctx context.Context, handled *model.HandledOrders) error {
	raw, err := json.Marshal(handled)
	if err != nil {
		return fmt.Errorf("marshaling handled orders: %w", err)
	}
	return s.put(ctx, keyHandledOrders, string(raw))
}

// LoadWatermark implements Store.
func (s *SQLiteStore) LoadWatermark(ctx context.Context) (time.Time, error) {
	raw, ok, err := s.get(ctx, keyReadWatermark)
	if err != nil || !ok {
		return time.Time{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing read watermark %q: %w", raw, err)
	}
	return ts, nil
}

// SaveWatermark implements Store.
func (s *SQLiteStore) SaveWatermark(ctx context.Context, watermark time.Time) error {
	return s.put(ctx, keyReadWatermark, watermark.UTC().Format(time.RFC3339Nano))
}

// ClearDeviceState implements Store.
func (s *SQLiteStore) ClearDeviceState(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM device_state WHERE key IN (?, ?)",
		keyHandledOrders, keyReadWatermark,
	)
	if err != nil {
		return fmt.Errorf("clearing device state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM device_state WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO device_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}
