package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Values are kept as TEXT, not JSONB, so compare-and-swap compares the exact
// bytes that were read.
const schema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	k          TEXT PRIMARY KEY,
	v          TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// SQL is a Store over a single kv_entries table in Postgres or SQLite.
type SQL struct {
	DB *sqlx.DB
	keyLocks
}

// NewPostgres opens a Postgres-backed store through the pgx driver.
func NewPostgres(ctx context.Context, dsn string) (*SQL, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return newSQL(ctx, db)
}

// NewSQLite opens a file-backed store, or a private in-memory database when
// path is ":memory:".
func NewSQLite(ctx context.Context, path string) (*SQL, error) {
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrap(err, "create sqlite dir")
			}
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sqlx.ConnectContext(ctx, "sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connect sqlite")
	}
	// one connection: sqlite serializes writers anyway and ":memory:" is per connection
	db.SetMaxOpenConns(1)
	return newSQL(ctx, db)
}

func newSQL(ctx context.Context, db *sqlx.DB) (*SQL, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate kv_entries")
	}
	return &SQL{DB: db}, nil
}

func (s *SQL) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v string
	err := s.DB.GetContext(ctx, &v, s.DB.Rebind(`SELECT v FROM kv_entries WHERE k = ?`), key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fail("get", key, err)
	}
	return []byte(v), true, nil
}

func (s *SQL) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.DB.ExecContext(ctx, s.DB.Rebind(`
		INSERT INTO kv_entries (k, v, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (k) DO UPDATE SET v = excluded.v, updated_at = CURRENT_TIMESTAMP
	`), key, string(value))
	return fail("set", key, err)
}

func (s *SQL) Remove(ctx context.Context, key string) error {
	_, err := s.DB.ExecContext(ctx, s.DB.Rebind(`DELETE FROM kv_entries WHERE k = ?`), key)
	return fail("remove", key, err)
}

func (s *SQL) CompareAndSwap(ctx context.Context, key string, prev, next []byte) (bool, error) {
	var (
		res sql.Result
		err error
	)
	switch {
	case prev == nil && next == nil:
		var n int
		err = s.DB.GetContext(ctx, &n, s.DB.Rebind(`SELECT COUNT(*) FROM kv_entries WHERE k = ?`), key)
		if err != nil {
			return false, fail("cas", key, err)
		}
		return n == 0, nil
	case prev == nil:
		res, err = s.DB.ExecContext(ctx, s.DB.Rebind(`
			INSERT INTO kv_entries (k, v, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT (k) DO NOTHING
		`), key, string(next))
	case next == nil:
		res, err = s.DB.ExecContext(ctx, s.DB.Rebind(`DELETE FROM kv_entries WHERE k = ? AND v = ?`), key, string(prev))
	default:
		res, err = s.DB.ExecContext(ctx, s.DB.Rebind(`
			UPDATE kv_entries SET v = ?, updated_at = CURRENT_TIMESTAMP
			WHERE k = ? AND v = ?
		`), string(next), key, string(prev))
	}
	if err != nil {
		return false, fail("cas", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fail("cas", key, err)
	}
	return n == 1, nil
}

func (s *SQL) Ping(ctx context.Context) error {
	return fail("ping", "", s.DB.PingContext(ctx))
}

// Close closes the underlying connection.
func (s *SQL) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
