// Package postgres keeps the latest value of every metric in Postgres.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"maps"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"

	"github.com/vshulcz/dslbridge/internal/domain"
	"github.com/vshulcz/dslbridge/internal/misc"
	"github.com/vshulcz/dslbridge/internal/ports"
)

// Repo upserts snapshot values with retryable operations.
type Repo struct {
	db *sql.DB
}

var _ ports.SnapshotSink = (*Repo)(nil)

var retryablePGCodes = map[string]struct{}{
	pgerrcode.ConnectionException:                           {},
	pgerrcode.ConnectionDoesNotExist:                        {},
	pgerrcode.ConnectionFailure:                             {},
	pgerrcode.SQLClientUnableToEstablishSQLConnection:       {},
	pgerrcode.SQLServerRejectedEstablishmentOfSQLConnection: {},
	pgerrcode.TransactionResolutionUnknown:                  {},
	pgerrcode.ProtocolViolation:                             {},
	pgerrcode.SerializationFailure:                          {},
	pgerrcode.DeadlockDetected:                              {},
	pgerrcode.LockNotAvailable:                              {},
	pgerrcode.TooManyConnections:                            {},
	pgerrcode.AdminShutdown:                                 {},
	pgerrcode.CrashShutdown:                                 {},
	pgerrcode.CannotConnectNow:                              {},
	pgerrcode.QueryCanceled:                                 {},
}

const qUpsert = `
INSERT INTO metric_values (key, text_value, num_value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (key)
DO UPDATE SET text_value=EXCLUDED.text_value, num_value=EXCLUDED.num_value, updated_at=now();`

// New returns a Postgres-backed snapshot sink.
func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// Save upserts every value of s inside one transaction, retrying
// connection-level failures with misc.DefaultBackoff.
func (r *Repo) Save(ctx context.Context, s domain.Snapshot) error {
	return misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, func() error {
		return r.save(ctx, s)
	})
}

func (r *Repo) save(ctx context.Context, s domain.Snapshot) error {
	if len(s) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, k := range slices.Sorted(maps.Keys(s)) {
		text, num := columns(s[k])
		if !text.Valid && !num.Valid {
			continue
		}
		if _, err := tx.ExecContext(ctx, qUpsert, k, text, num); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Restore loads every stored value.
func (r *Repo) Restore(ctx context.Context) (domain.Snapshot, error) {
	const q = `SELECT key, text_value, num_value FROM metric_values`
	result := domain.Snapshot{}

	op := func() error {
		rows, err := r.db.QueryContext(ctx, q)
		if err != nil {
			return err
		}
		defer func() {
			_ = rows.Close()
		}()

		out := domain.Snapshot{}
		var key string
		var (
			text sql.NullString
			num  sql.NullFloat64
		)
		for rows.Next() {
			if err := rows.Scan(&key, &text, &num); err != nil {
				return err
			}
			switch {
			case text.Valid:
				out[key] = text.String
			case num.Valid:
				out[key] = num.Float64
			default:
			}
		}
		if err := rows.Err(); err != nil {
			return err
		}
		result = out
		return nil
	}
	if err := misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, op); err != nil {
		return nil, err
	}
	return result, nil
}

// Notify stores the snapshot carried by a poll result in a single attempt.
// The next poll carries a fresher snapshot anyway.
func (r *Repo) Notify(ctx context.Context, res domain.PollResult) error {
	if err := r.save(ctx, res.Snapshot); err != nil {
		return fmt.Errorf("postgres sink: %w", err)
	}
	return nil
}

// Ping verifies the database connection using a short-lived context.
func (r *Repo) Ping(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	op := func() error {
		return r.db.PingContext(ctx)
	}
	return misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, op)
}

func columns(v any) (sql.NullString, sql.NullFloat64) {
	switch x := v.(type) {
	case string:
		return sql.NullString{String: x, Valid: true}, sql.NullFloat64{}
	case float64:
		return sql.NullString{}, sql.NullFloat64{Float64: x, Valid: true}
	case nil:
		return sql.NullString{}, sql.NullFloat64{}
	default:
		return sql.NullString{String: fmt.Sprint(x), Valid: true}, sql.NullFloat64{}
	}
}

// IsRetryable reports whether the error should trigger a retry according to Postgres semantics.
func IsRetryable(err error) bool {
	return isRetryablePG(err)
}

func isRetryablePG(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var pqe *pq.Error
	if errors.As(err, &pqe) {
		return isRetryablePGCode(string(pqe.Code))
	}
	return false
}

func isRetryablePGCode(code string) bool {
	if _, ok := retryablePGCodes[code]; ok {
		return true
	}
	return strings.HasPrefix(code, "08") || strings.HasPrefix(code, "40")
}
