package sim

import (
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/marketsim/market"
)

type Side int8

const (
	Buy  Side = +1
	Sell Side = -1
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	}
	return fmt.Sprintf("Side(%d)", int8(s))
}

type Kind int8

const (
	Market Kind = iota
	Limit
)

func (k Kind) String() string {
	switch k {
	case Market:
		return "MARKET"
	case Limit:
		return "LIMIT"
	}
	return fmt.Sprintf("Kind(%d)", int8(k))
}

// Order is an immutable order description. One flat record covers all four
// buy/sell market/limit combinations; Limit is meaningful only for Kind ==
// Limit, and a zero Expiration means good-till-cancelled.
type Order struct {
	Instrument string
	Units      int
	Side       Side
	Kind       Kind
	Limit      market.Price
	Expiration time.Time
}

var ErrInvalidOrder = errors.New("invalid order")

func (o Order) validate() error {
	if o.Units <= 0 {
		return fmt.Errorf("%w: units must be positive, got %d", ErrInvalidOrder, o.Units)
	}
	if o.Side != Buy && o.Side != Sell {
		return fmt.Errorf("%w: unknown side %d", ErrInvalidOrder, o.Side)
	}
	if o.Kind == Limit && o.Limit <= 0 {
		return fmt.Errorf("%w: limit price must be positive, got %d", ErrInvalidOrder, o.Limit)
	}
	if !market.KnownInstrument(o.Instrument) {
		return fmt.Errorf("%w: unknown instrument %q", ErrInvalidOrder, o.Instrument)
	}
	return nil
}

// BuyMarket, SellMarket, BuyLimit and SellLimit are the usual order shapes.
func BuyMarket(instrument string, units int) Order {
	return Order{Instrument: instrument, Units: units, Side: Buy, Kind: Market}
}

func SellMarket(instrument string, units int) Order {
	return Order{Instrument: instrument, Units: units, Side: Sell, Kind: Market}
}

func BuyLimit(instrument string, units int, limit market.Price) Order {
	return Order{Instrument: instrument, Units: units, Side: Buy, Kind: Limit, Limit: limit}
}

func SellLimit(instrument string, units int, limit market.Price) Order {
	return Order{Instrument: instrument, Units: units, Side: Sell, Kind: Limit, Limit: limit}
}

// WithExpiration returns a copy of the order that expires at t.
func (o Order) WithExpiration(t time.Time) Order {
	o.Expiration = t
	return o
}

type Status int8

const (
	Open Status = iota
	Executed
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Open:
		return "OPEN"
	case Executed:
		return "EXECUTED"
	case Cancelled:
		return "CANCELLED"
	}
	return fmt.Sprintf("Status(%d)", int8(s))
}

// OrderRequest is the ledger's view of a submitted order. Values returned by
// the engine are snapshots; the ledger owns the live record.
type OrderRequest struct {
	Order
	ID             string
	SubmissionDate time.Time
	Status         Status
	ProcessedDate  time.Time    // set on the terminal transition
	ExecutionPrice market.Price // set only when Status == Executed
}

// Expired reports whether the order's expiration has passed at now.
func (r OrderRequest) Expired(now time.Time) bool {
	return !r.Expiration.IsZero() && !r.Expiration.After(now)
}
