package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	// DefaultPollInterval is how often Watch reads the change log
	DefaultPollInterval = 500 * time.Millisecond

	// ChangeRetention is how long change log rows are kept for slow watchers
	ChangeRetention = time.Hour

	pollBatch = 100
)

// SQLiteStore is a durable store backed by a single SQLite file. Several
// processes may open the same file; each one is a separate origin. Writes are
// recorded in a change log which Watch polls.
type SQLiteStore struct {
	db           *sql.DB
	origin       string
	pollInterval time.Duration
	pruneTick    time.Duration
	logger       *zap.Logger
}

// OpenSQLite opens (creating if needed) the database at path and applies
// migrations.
func OpenSQLite(path string, pollInterval time.Duration, logger *zap.Logger) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	s := &SQLiteStore{
		db:           db,
		origin:       uuid.NewString(),
		pollInterval: pollInterval,
		pruneTick:    time.Minute,
		logger:       logger,
	}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) runMigrations() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Origin() string {
	return s.origin
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query key: %w", err)
	}
	return value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	return s.SetMany(ctx, map[string]string{key: value})
}

func (s *SQLiteStore) SetMany(ctx context.Context, entries map[string]string) error {
	return s.Update(ctx, entries, nil)
}

func (s *SQLiteStore) Delete(ctx context.Context, keys ...string) error {
	return s.Update(ctx, nil, keys)
}

func (s *SQLiteStore) Update(ctx context.Context, set map[string]string, del []string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, k := range del {
			if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, k); err != nil {
				return fmt.Errorf("failed to delete key: %w", err)
			}
			if err := s.recordChange(ctx, tx, k); err != nil {
				return err
			}
		}
		for k, v := range set {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO kv (key, value) VALUES (?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value
			`, k, v); err != nil {
				return fmt.Errorf("failed to upsert key: %w", err)
			}
			if err := s.recordChange(ctx, tx, k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Watch polls the change log from its current head. Rows written by this
// handle are skipped.
func (s *SQLiteStore) Watch(ctx context.Context) (<-chan Change, error) {
	var head int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM changes`).Scan(&head); err != nil {
		return nil, fmt.Errorf("failed to read change log head: %w", err)
	}

	out := make(chan Change, watchBuffer)
	go func() {
		defer close(out)

		pollTicker := time.NewTicker(s.pollInterval)
		pruneTicker := time.NewTicker(s.pruneTick)
		defer pollTicker.Stop()
		defer pruneTicker.Stop()
		for {
			select {
			case <-pollTicker.C:
				head = s.pollChanges(ctx, head, out)
			case <-pruneTicker.C:
				s.pruneChanges(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// pollChanges reads the rows after the given sequence and forwards foreign
// ones. Rows are fully read before sending so the connection is released while
// a receiver reacts to the change.
func (s *SQLiteStore) pollChanges(ctx context.Context, after int64, out chan<- Change) int64 {
	changes, head, err := s.changesAfter(ctx, after)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("failed to poll change log", zap.Error(err))
		}
		return after
	}

	for _, c := range changes {
		select {
		case out <- c:
		case <-ctx.Done():
			return head
		}
	}
	return head
}

func (s *SQLiteStore) changesAfter(ctx context.Context, after int64) ([]Change, int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, key, origin FROM changes
		WHERE seq > ?
		ORDER BY seq
		LIMIT ?
	`, after, pollBatch)
	if err != nil {
		return nil, after, fmt.Errorf("failed to query changes: %w", err)
	}
	defer rows.Close()

	var changes []Change
	head := after
	for rows.Next() {
		var (
			seq int64
			c   Change
		)
		if err := rows.Scan(&seq, &c.Key, &c.Origin); err != nil {
			return nil, after, fmt.Errorf("failed to scan change: %w", err)
		}
		head = seq
		if c.Origin != s.origin {
			changes = append(changes, c)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, after, fmt.Errorf("failed to iterate changes: %w", err)
	}
	return changes, head, nil
}

func (s *SQLiteStore) pruneChanges(ctx context.Context) {
	cutoff := time.Now().Add(-ChangeRetention).UTC().Format("2006-01-02 15:04:05")
	if _, err := s.db.ExecContext(ctx, `DELETE FROM changes WHERE changed_at < ?`, cutoff); err != nil && ctx.Err() == nil {
		s.logger.Warn("failed to prune change log", zap.Error(err))
	}
}

func (s *SQLiteStore) recordChange(ctx context.Context, tx *sql.Tx, key string) error {
	if _, err := tx.ExecContext(ctx, `INSERT INTO changes (key, origin) VALUES (?, ?)`, key, s.origin); err != nil {
		return fmt.Errorf("failed to record change: %w", err)
	}
	return nil
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
