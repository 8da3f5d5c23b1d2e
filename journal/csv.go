package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"github.com/rustyeddy/marketsim/market"
)

type CSVJournal struct {
	orders *csv.Writer
	snaps  *csv.Writer
	of, sf *os.File
}

func NewCSV(ordersPath, snapshotsPath string) (*CSVJournal, error) {
	of, err := os.Create(ordersPath)
	if err != nil {
		return nil, err
	}
	sf, err := os.Create(snapshotsPath)
	if err != nil {
		of.Close()
		return nil, err
	}

	ow := csv.NewWriter(of)
	sw := csv.NewWriter(sf)

	if err := ow.Write([]string{"order_id", "instrument", "units", "side", "kind", "limit_price", "status", "submitted_at", "processed_at", "execution_price"}); err != nil {
		return nil, err
	}
	if err := sw.Write([]string{"time", "pips"}); err != nil {
		return nil, err
	}

	ow.Flush()
	if err := ow.Error(); err != nil {
		return nil, err
	}
	sw.Flush()
	if err := sw.Error(); err != nil {
		return nil, err
	}

	return &CSVJournal{ow, sw, of, sf}, nil
}

func (j *CSVJournal) RecordOrder(r OrderRecord) error {
	err := j.orders.Write([]string{
		r.OrderID,
		r.Instrument,
		strconv.Itoa(r.Units),
		r.Side,
		r.Kind,
		p(r.Limit),
		r.Status,
		r.SubmittedAt.Format(time.RFC3339),
		r.ProcessedAt.Format(time.RFC3339),
		p(r.ExecutionPrice),
	})
	if err != nil {
		return err
	}

	j.orders.Flush()
	return j.orders.Error()
}

func (j *CSVJournal) RecordSnapshot(s SnapshotRecord) error {
	err := j.snaps.Write([]string{
		s.Time.Format(time.RFC3339),
		strconv.FormatFloat(s.Pips, 'f', 1, 64),
	})
	if err != nil {
		return err
	}

	j.snaps.Flush()
	return j.snaps.Error()
}

func (j *CSVJournal) Close() error {
	j.orders.Flush()
	if err := j.orders.Error(); err != nil {
		return err
	}
	j.snaps.Flush()
	if err := j.snaps.Error(); err != nil {
		return err
	}

	if err := j.of.Close(); err != nil {
		return err
	}
	return j.sf.Close()
}

func p(x market.Price) string {
	return strconv.FormatFloat(market.ToFloat(x), 'f', 5, 64)
}
