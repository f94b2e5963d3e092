package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/scrypster/chronicle/internal/storage"
	"github.com/scrypster/chronicle/pkg/types"
)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// reader implements storage.Reader over any queryer.
type reader struct {
	q queryer
}

// writer implements storage.Writer inside a transaction.
type writer struct {
	reader
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// wrapErr converts a driver error into a *types.StorageError, flagging lock
// contention as transient. Constraint violations become storage.ErrConflict.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *types.StorageError
	if errors.As(err, &se) {
		return err
	}
	var nf *types.NotFoundError
	if errors.As(err, &nf) {
		return err
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return &types.StorageError{Op: op, Err: err, Transient: true}
		case sqlite3.SQLITE_CONSTRAINT:
			return fmt.Errorf("%w: %s: %v", storage.ErrConflict, op, err)
		}
	}
	return &types.StorageError{Op: op, Err: err}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullableValue(v *types.Value) (sql.NullString, error) {
	if v == nil || v.IsZero() {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func scanValue(ns sql.NullString) (*types.Value, error) {
	if !ns.Valid {
		return nil, nil
	}
	var v types.Value
	if err := json.Unmarshal([]byte(ns.String), &v); err != nil {
		return nil, err
	}
	if v.IsZero() {
		return nil, nil
	}
	return &v, nil
}

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
