package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/nelhattab/electratrack/internal/tabular"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode. ttl bounds how long a persisted slot outlives its upload.
func NewSQLite(dsn string, ttl time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SQLiteStore{db: db, ttl: ttl}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS slot_datasets (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	slot        TEXT NOT NULL,
	payload     BLOB NOT NULL,
	row_count   INTEGER NOT NULL,
	uploaded_at DATETIME NOT NULL,
	expires_at  DATETIME NOT NULL,
	UNIQUE (session_id, slot)
);

CREATE INDEX IF NOT EXISTS idx_slot_datasets_session ON slot_datasets(session_id);
CREATE INDEX IF NOT EXISTS idx_slot_datasets_expires_at ON slot_datasets(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveDataset(ctx context.Context, sessionID, slot string, ds *tabular.Dataset) error {
	blob, err := encodeDataset(ds)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO slot_datasets (id, session_id, slot, payload, row_count, uploaded_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (session_id, slot) DO UPDATE SET
		   payload = excluded.payload,
		   row_count = excluded.row_count,
		   uploaded_at = excluded.uploaded_at,
		   expires_at = excluded.expires_at`,
		uuid.New().String(), sessionID, slot, blob, ds.Len(), now, now.Add(s.ttl),
	)
	return eris.Wrapf(err, "sqlite: save slot %s", slot)
}

func (s *SQLiteStore) GetDataset(ctx context.Context, sessionID, slot string) (*tabular.Dataset, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM slot_datasets
		 WHERE session_id = ? AND slot = ? AND expires_at > ?`,
		sessionID, slot, time.Now().UTC(),
	)
	var blob []byte
	err := row.Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get slot %s", slot)
	}
	return decodeDataset(blob)
}

func (s *SQLiteStore) ListSlots(ctx context.Context, sessionID string) ([]SlotInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT slot, row_count, uploaded_at FROM slot_datasets
		 WHERE session_id = ? AND expires_at > ?
		 ORDER BY slot`,
		sessionID, time.Now().UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list slots")
	}
	defer rows.Close()

	var infos []SlotInfo
	for rows.Next() {
		var info SlotInfo
		if err := rows.Scan(&info.Slot, &info.RowCount, &info.UploadedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan slot")
		}
		infos = append(infos, info)
	}
	return infos, eris.Wrap(rows.Err(), "sqlite: list slots iterate")
}

func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM slot_datasets WHERE expires_at <= ?`,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}
