package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/marketsim/market"
)

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordOrder(r OrderRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO orders
		(order_id, instrument, units, side, kind, limit_price, status, submitted_at, processed_at, execution_price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.OrderID, r.Instrument, r.Units, r.Side, r.Kind, int64(r.Limit),
		r.Status, r.SubmittedAt.Unix(), r.ProcessedAt.Unix(), int64(r.ExecutionPrice),
	)
	return err
}

func (j *SQLiteJournal) RecordSnapshot(s SnapshotRecord) error {
	_, err := j.db.Exec(`INSERT INTO snapshots (time, pips) VALUES (?, ?)`,
		s.Time.Unix(), s.Pips)
	return err
}

// Orders returns the journaled orders for the instrument, oldest first.
func (j *SQLiteJournal) Orders(instrument string) ([]OrderRecord, error) {
	rows, err := j.db.Query(`
		SELECT order_id, instrument, units, side, kind, limit_price, status, submitted_at, processed_at, execution_price
		FROM orders WHERE instrument = ? ORDER BY processed_at, order_id`,
		instrument)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var r OrderRecord
		var limit, exec, submitted, processed int64
		if err := rows.Scan(&r.OrderID, &r.Instrument, &r.Units, &r.Side, &r.Kind,
			&limit, &r.Status, &submitted, &processed, &exec); err != nil {
			return nil, err
		}
		r.Limit = market.Price(limit)
		r.ExecutionPrice = market.Price(exec)
		r.SubmittedAt = time.Unix(submitted, 0).UTC()
		r.ProcessedAt = time.Unix(processed, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Snapshots returns every journaled valuation, oldest first.
func (j *SQLiteJournal) Snapshots() ([]SnapshotRecord, error) {
	rows, err := j.db.Query(`SELECT time, pips FROM snapshots ORDER BY time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotRecord
	for rows.Next() {
		var s SnapshotRecord
		var ts int64
		if err := rows.Scan(&ts, &s.Pips); err != nil {
			return nil, err
		}
		s.Time = time.Unix(ts, 0).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
