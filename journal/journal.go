package journal

import (
	"time"

	"github.com/rustyeddy/marketsim/market"
	"github.com/rustyeddy/marketsim/sim"
)

// OrderRecord is the journaled view of a resolved order: one row per
// terminal transition.
type OrderRecord struct {
	OrderID        string
	Instrument     string
	Units          int
	Side           string
	Kind           string
	Limit          market.Price
	Status         string
	SubmittedAt    time.Time
	ProcessedAt    time.Time
	ExecutionPrice market.Price
}

// RecordFromRequest flattens an order request into its journal row.
func RecordFromRequest(req sim.OrderRequest) OrderRecord {
	return OrderRecord{
		OrderID:        req.ID,
		Instrument:     req.Instrument,
		Units:          req.Units,
		Side:           req.Side.String(),
		Kind:           req.Kind.String(),
		Limit:          req.Limit,
		Status:         req.Status.String(),
		SubmittedAt:    req.SubmissionDate,
		ProcessedAt:    req.ProcessedDate,
		ExecutionPrice: req.ExecutionPrice,
	}
}

// SnapshotRecord is a portfolio valuation in pips at a point in time.
type SnapshotRecord struct {
	Time time.Time
	Pips float64
}

type Journal interface {
	RecordOrder(OrderRecord) error
	RecordSnapshot(SnapshotRecord) error
	Close() error
}
