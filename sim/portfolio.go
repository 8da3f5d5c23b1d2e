package sim

import (
	"sort"
	"time"

	"github.com/rustyeddy/marketsim/market"
)

// Position is an open position acquired from a filled order.
type Position struct {
	Instrument string
	Units      int
	Side       Side
	EntryPrice market.Price
}

// UnrealizedPips is the position's current profit in pips for its
// instrument's pip size.
func (p Position) UnrealizedPips(current market.Price) float64 {
	delta := current - p.EntryPrice
	if p.Side == Sell {
		delta = -delta
	}
	return market.Pips(p.Instrument, delta)
}

// ClosedTrade records a position exit for reporting.
type ClosedTrade struct {
	Instrument string
	Units      int
	Side       Side
	EntryPrice market.Price
	ExitPrice  market.Price
	ClosedAt   time.Time
	Pips       float64
}

// Portfolio tracks realized pips and open positions.
type Portfolio struct {
	RealizedPips float64
	Positions    []Position
	Closed       []ClosedTrade
}

// Pips values the portfolio: realized pips plus the sum of each open
// position's unrealized pips at the current price.
func (p Portfolio) Pips(currentPrice func(instrument string) market.Price) float64 {
	total := p.RealizedPips
	for _, pos := range p.Positions {
		total += pos.UnrealizedPips(currentPrice(pos.Instrument))
	}
	return total
}

// ClosedTrades returns closed trades ordered by close time ascending. The
// ordering is for deterministic reporting only.
func (p Portfolio) ClosedTrades() []ClosedTrade {
	out := make([]ClosedTrade, len(p.Closed))
	copy(out, p.Closed)
	sort.Slice(out, func(i, j int) bool { return out[i].ClosedAt.Before(out[j].ClosedAt) })
	return out
}

// Snapshot is a point-in-time portfolio valuation.
type Snapshot struct {
	Time time.Time
	Pips float64
}

// SortSnapshots orders snapshots by timestamp ascending, in place.
func SortSnapshots(snaps []Snapshot) {
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Time.Before(snaps[j].Time) })
}
