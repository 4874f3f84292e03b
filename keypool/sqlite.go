package keypool

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists pool state in a SQLite database instead of the JSON
// state file. It satisfies the same Persister contract, so selection logic
// never notices which backing store is in use.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS credentials (
	position       INTEGER PRIMARY KEY,
	secret         TEXT NOT NULL UNIQUE,
	model          TEXT NOT NULL DEFAULT '',
	last_used_at   TEXT NOT NULL DEFAULT '',
	cooldown_until TEXT NOT NULL DEFAULT '',
	failures       INTEGER NOT NULL DEFAULT 0
);`

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, NewPoolError(ErrorTypePersistence, "open sqlite database", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, NewPoolError(ErrorTypePersistence, "create credentials table", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load() ([]Record, error) {
	rows, err := s.db.Query(
		"SELECT secret, model, last_used_at, cooldown_until, failures FROM credentials ORDER BY position")
	if err != nil {
		return nil, NewPoolError(ErrorTypePersistence, "query credentials", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var lastUsed, cooldown string
		if err := rows.Scan(&r.Secret, &r.Model, &lastUsed, &cooldown, &r.Failures); err != nil {
			return nil, NewPoolError(ErrorTypePersistence, "scan credential row", err)
		}
		if r.LastUsedAt, err = parseDBTime(lastUsed); err != nil {
			return nil, NewPoolError(ErrorTypePersistence, "parse last_used_at", err)
		}
		if r.CooldownUntil, err = parseDBTime(cooldown); err != nil {
			return nil, NewPoolError(ErrorTypePersistence, "parse cooldown_until", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, NewPoolError(ErrorTypePersistence, "iterate credential rows", err)
	}
	return records, nil
}

func (s *SQLiteStore) Save(records []Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return NewPoolError(ErrorTypePersistence, "begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM credentials"); err != nil {
		return NewPoolError(ErrorTypePersistence, "clear credentials", err)
	}

	stmt, err := tx.Prepare(
		"INSERT INTO credentials (position, secret, model, last_used_at, cooldown_until, failures) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return NewPoolError(ErrorTypePersistence, "prepare insert", err)
	}
	defer stmt.Close()

	for i, r := range records {
		_, err := stmt.Exec(i, r.Secret, r.Model, formatDBTime(r.LastUsedAt), formatDBTime(r.CooldownUntil), r.Failures)
		if err != nil {
			return NewPoolError(ErrorTypePersistence, "insert credential", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return NewPoolError(ErrorTypePersistence, "commit transaction", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatDBTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func parseDBTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, v)
}
