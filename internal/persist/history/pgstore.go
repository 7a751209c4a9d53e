package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is a Store backed by Postgres via pgx/v5 and pgxpool, grounded
// on the parameterized-SQL-plus-pgx.Identifier.Sanitize pattern used by
// the retention-service Postgres store in the example pack. History
// attributes are stored as a single jsonb column rather than one column
// per vendor-specific attribute set, since the attribute shape varies by
// reconciler and the diff logic already treats it as an opaque map.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore connects to uri. The pool connects lazily; callers that need
// a fail-fast startup check should call Ping.
func NewPGStore(ctx context.Context, uri string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("history: connect %s: %w", uri, err)
	}
	return &PGStore{pool: pool}, nil
}

// Ping verifies connectivity, used by the supervisor's fatal-at-start
// database check.
func (s *PGStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("history: ping: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *PGStore) Close() { s.pool.Close() }

func (s *PGStore) ResolveDeviceID(ctx context.Context, deviceName string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM device WHERE name = $1 AND end_time IS NULL`, deviceName,
	).Scan(&id)
	if err == pgx.ErrNoRows {
		return 0, fmt.Errorf("device %s: %w", deviceName, ErrDeviceNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("resolve device %s: %w", deviceName, err)
	}
	return id, nil
}

func (s *PGStore) LiveRows(ctx context.Context, table string, deviceID int64) ([]Row, error) {
	ident := pgx.Identifier{table}.Sanitize()
	query := fmt.Sprintf(`SELECT id, deviceid, begin_time, end_time, attrs FROM %s WHERE deviceid = $1 AND end_time IS NULL`, ident)

	rows, err := s.pool.Query(ctx, query, deviceID)
	if err != nil {
		return nil, fmt.Errorf("live rows %s: %w", table, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var attrsJSON []byte
		if err := rows.Scan(&r.ID, &r.DeviceID, &r.BeginTime, &r.EndTime, &attrsJSON); err != nil {
			return nil, fmt.Errorf("scan row in %s: %w", table, err)
		}
		if len(attrsJSON) > 0 {
			if err := json.Unmarshal(attrsJSON, &r.Attrs); err != nil {
				return nil, fmt.Errorf("decode attrs in %s row %d: %w", table, r.ID, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PGStore) CloseRow(ctx context.Context, table string, id int64, endTime time.Time) error {
	ident := pgx.Identifier{table}.Sanitize()
	query := fmt.Sprintf(`UPDATE %s SET end_time = $1 WHERE id = $2`, ident)
	if _, err := s.pool.Exec(ctx, query, endTime, id); err != nil {
		return fmt.Errorf("close row %s/%d: %w", table, id, err)
	}
	return nil
}

func (s *PGStore) InsertRow(ctx context.Context, table string, row Row) error {
	ident := pgx.Identifier{table}.Sanitize()
	attrsJSON, err := json.Marshal(row.Attrs)
	if err != nil {
		return fmt.Errorf("encode attrs for %s: %w", table, err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (deviceid, begin_time, end_time, attrs) VALUES ($1, $2, $3, $4)`, ident)
	if _, err := s.pool.Exec(ctx, query, row.DeviceID, row.BeginTime, row.EndTime, attrsJSON); err != nil {
		return fmt.Errorf("insert row into %s: %w", table, err)
	}
	return nil
}
