package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/nelhattab/electratrack/internal/tabular"
)

// Pool is the subset of pgxpool.Pool the store uses, kept as an interface so
// pgxmock can stand in during tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
	ttl  time.Duration
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, ttl time.Duration) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &PostgresStore{pool: pool, ttl: ttl}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS slot_datasets (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	slot        TEXT NOT NULL,
	payload     BYTEA NOT NULL,
	row_count   INTEGER NOT NULL,
	uploaded_at TIMESTAMPTZ NOT NULL,
	expires_at  TIMESTAMPTZ NOT NULL,
	UNIQUE (session_id, slot)
);

CREATE INDEX IF NOT EXISTS idx_slot_datasets_session ON slot_datasets(session_id);
CREATE INDEX IF NOT EXISTS idx_slot_datasets_expires_at ON slot_datasets(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveDataset(ctx context.Context, sessionID, slot string, ds *tabular.Dataset) error {
	blob, err := encodeDataset(ds)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO slot_datasets (id, session_id, slot, payload, row_count, uploaded_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (session_id, slot) DO UPDATE SET
		   payload = EXCLUDED.payload,
		   row_count = EXCLUDED.row_count,
		   uploaded_at = EXCLUDED.uploaded_at,
		   expires_at = EXCLUDED.expires_at`,
		uuid.New().String(), sessionID, slot, blob, ds.Len(), now, now.Add(s.ttl),
	)
	return eris.Wrapf(err, "postgres: save slot %s", slot)
}

func (s *PostgresStore) GetDataset(ctx context.Context, sessionID, slot string) (*tabular.Dataset, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT payload FROM slot_datasets
		 WHERE session_id = $1 AND slot = $2 AND expires_at > now()`,
		sessionID, slot,
	)
	var blob []byte
	err := row.Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get slot %s", slot)
	}
	return decodeDataset(blob)
}

func (s *PostgresStore) ListSlots(ctx context.Context, sessionID string) ([]SlotInfo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT slot, row_count, uploaded_at FROM slot_datasets
		 WHERE session_id = $1 AND expires_at > now()
		 ORDER BY slot`,
		sessionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list slots")
	}
	defer rows.Close()

	var infos []SlotInfo
	for rows.Next() {
		var info SlotInfo
		if err := rows.Scan(&info.Slot, &info.RowCount, &info.UploadedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan slot")
		}
		infos = append(infos, info)
	}
	return infos, eris.Wrap(rows.Err(), "postgres: list slots iterate")
}

func (s *PostgresStore) DeleteExpired(ctx context.Context) (int, error) {
	res, err := s.pool.Exec(ctx, `DELETE FROM slot_datasets WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired")
	}
	return int(res.RowsAffected()), nil
}
