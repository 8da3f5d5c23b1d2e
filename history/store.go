package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/marketsim/market"
)

// Schema for the gap-free one-minute candle store. Times are unix seconds
// of the candle start; prices are pippete-encoded.
const Schema = `
CREATE TABLE IF NOT EXISTS instrument_candles (
	instrument TEXT NOT NULL,
	time       INTEGER NOT NULL,
	open       INTEGER NOT NULL,
	high       INTEGER NOT NULL,
	low        INTEGER NOT NULL,
	close      INTEGER NOT NULL,
	PRIMARY KEY (instrument, time)
);
CREATE INDEX IF NOT EXISTS idx_instrument_candles_time ON instrument_candles(time);
`

// Store persists one-minute candles in SQLite.
type Store struct {
	db *sql.DB
}

func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open candle store: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create candle schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Append stores the series for the instrument. Re-fetched candles are
// ignored rather than rewritten: published history does not change.
func (s *Store) Append(instrument string, series market.Series) error {
	if len(series) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("append candles: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO instrument_candles
		(instrument, time, open, high, low, close)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("append candles: %w", err)
	}
	defer stmt.Close()

	for _, ts := range series.Times() {
		c := series[ts]
		if _, err := stmt.Exec(instrument, ts.Unix(), c.Open, c.High, c.Low, c.Close); err != nil {
			tx.Rollback()
			return fmt.Errorf("append candle %s: %w", ts, err)
		}
	}

	return tx.Commit()
}

// LatestStoredMinute returns the most recent candle start for the
// instrument; ok is false when the store holds nothing for it.
func (s *Store) LatestStoredMinute(instrument string) (time.Time, bool, error) {
	var max sql.NullInt64
	err := s.db.QueryRow(
		`SELECT MAX(time) FROM instrument_candles WHERE instrument = ?`,
		instrument).Scan(&max)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("latest stored minute: %w", err)
	}
	if !max.Valid {
		return time.Time{}, false, nil
	}
	return time.Unix(max.Int64, 0).UTC(), true, nil
}

// Range returns stored candles with start times inside the closed range.
func (s *Store) Range(instrument string, r market.TimeRange) (market.Series, error) {
	rows, err := s.db.Query(`
		SELECT time, open, high, low, close
		FROM instrument_candles
		WHERE instrument = ? AND time BETWEEN ? AND ?
		ORDER BY time`,
		instrument, r.Lower.Unix(), r.Upper.Unix())
	if err != nil {
		return nil, fmt.Errorf("read candle range: %w", err)
	}
	defer rows.Close()

	series := market.Series{}
	for rows.Next() {
		var ts int64
		var c market.Candle
		if err := rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		series[time.Unix(ts, 0).UTC()] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read candle range: %w", err)
	}
	return series, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
