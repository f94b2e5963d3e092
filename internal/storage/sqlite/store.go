package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"net/url"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scrypster/chronicle/internal/logging"
	"github.com/scrypster/chronicle/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Options configures Open.
type Options struct {
	// BusyTimeout is how long sqlite waits on a locked database before
	// returning SQLITE_BUSY (default: 5s).
	BusyTimeout time.Duration

	// ReadConns caps the read pool (default: 4).
	ReadConns int

	// Retry bounds the retry of transient lock contention in WriteTx.
	Retry storage.RetryPolicy

	// Logger receives recovery and retry messages.
	Logger *logging.Logger
}

func (o *Options) normalize() {
	if o.BusyTimeout <= 0 {
		o.BusyTimeout = 5 * time.Second
	}
	if o.ReadConns < 1 {
		o.ReadConns = 4
	}
	o.Logger = logging.OrNop(o.Logger)
	o.Retry.Normalize()
	if o.Retry.OnRetry == nil {
		logger := o.Logger
		o.Retry.OnRetry = func(err error, wait time.Duration) {
			logger.Warn("sqlite: retrying after lock contention", "error", err, "wait", wait)
		}
	}
}

// Store implements storage.Store and storage.VectorStore on one SQLite
// database file in WAL mode. Writes go through a single-connection pool so
// there is exactly one writer; reads use a separate query-only pool and see
// the last committed snapshot without waiting on the writer.
type Store struct {
	reader
	writeDB *sql.DB
	readDB  *sql.DB
	path    string
	retry   storage.RetryPolicy
	logger  *logging.Logger
}

var (
	_ storage.Store       = (*Store)(nil)
	_ storage.VectorStore = (*Store)(nil)
	_ storage.Writer      = (*writer)(nil)
)

// Open opens (creating if needed) the database at path, applies pending
// migrations and returns the store. If the first open fails because of stale
// WAL files left by a crashed process, they are removed and the open retried
// once.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	if path == "" || path == ":memory:" {
		return nil, fmt.Errorf("%w: sqlite store needs a file path", storage.ErrInvalidInput)
	}
	opts.normalize()

	store, err := open(ctx, path, opts)
	if err == nil {
		return store, nil
	}
	if !isRecoverableWALError(err) || !isWALStale(path) {
		return nil, err
	}

	removeStaleWAL(path, opts.Logger)
	store, retryErr := open(ctx, path, opts)
	if retryErr != nil {
		return nil, fmt.Errorf("failed after WAL recovery: %w (original: %v)", retryErr, err)
	}
	opts.Logger.Info("sqlite: recovered from stale WAL files", "path", path)
	return store, nil
}

func open(ctx context.Context, path string, opts Options) (*Store, error) {
	writeDB, err := sql.Open("sqlite", buildDSN(path, opts.BusyTimeout, false))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer connection serialises writes; WAL lets readers proceed.
	writeDB.SetMaxOpenConns(1)
	writeDB.SetMaxIdleConns(1)
	writeDB.SetConnMaxLifetime(0)

	if err := writeDB.PingContext(ctx); err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	mgr, err := storage.NewMigrationManager(ctx, writeDB, migrationsFS, "migrations")
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("sqlite: failed to create migration manager: %w", err)
	}
	if _, err := mgr.Up(ctx); err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("sqlite: failed to run migrations: %w", err)
	}

	readDB, err := sql.Open("sqlite", buildDSN(path, opts.BusyTimeout, true))
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("failed to open read pool: %w", err)
	}
	readDB.SetMaxOpenConns(opts.ReadConns)
	readDB.SetMaxIdleConns(opts.ReadConns)

	return &Store{
		reader:  reader{q: readDB},
		writeDB: writeDB,
		readDB:  readDB,
		path:    path,
		retry:   opts.Retry,
		logger:  opts.Logger,
	}, nil
}

// buildDSN renders a modernc file: DSN. The writer takes an immediate lock at
// BEGIN so contention surfaces before any statement runs.
func buildDSN(path string, busy time.Duration, readOnly bool) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	q.Add("_pragma", "foreign_keys(1)")
	if readOnly {
		q.Add("_pragma", "query_only(1)")
	} else {
		q.Add("_pragma", "journal_mode(WAL)")
		q.Add("_pragma", "synchronous(NORMAL)")
		q.Set("_txlock", "immediate")
	}
	return "file:" + path + "?" + q.Encode()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// WriteTx implements storage.Store.
func (s *Store) WriteTx(ctx context.Context, fn func(w storage.Writer) error) error {
	return storage.Retry(ctx, s.retry, func() error {
		tx, err := s.writeDB.BeginTx(ctx, nil)
		if err != nil {
			return wrapErr("begin", err)
		}
		if err := fn(&writer{reader: reader{q: tx}}); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return wrapErr("commit", err)
		}
		return nil
	})
}

// Close closes both pools.
func (s *Store) Close() error {
	rerr := s.readDB.Close()
	werr := s.writeDB.Close()
	if werr != nil {
		return werr
	}
	return rerr
}
