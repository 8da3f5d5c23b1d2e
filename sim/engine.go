package sim

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rustyeddy/marketsim/id"
	"github.com/rustyeddy/marketsim/market"
)

// PriceSource supplies the current price and market availability. In
// production it is backed by the historical data gateway; tests use a
// synthetic feed.
type PriceSource interface {
	CurrentPrice(instrument string) market.Price
	IsAvailable() bool
	IsAvailableOn(date time.Time) bool
}

// Listener receives exactly one terminal event per resolved order.
type Listener interface {
	OnFilled(OrderRequest)
	OnCancelled(OrderRequest)
}

// ExpiryPolicy decides whether order expirations elapse while the market is
// closed. The default only evaluates expiration during a processed tick, so
// a weekend does not cancel anything until the market reopens.
type ExpiryPolicy int8

const (
	ExpireOnOpenTicks ExpiryPolicy = iota
	ExpireWhileClosed
)

var ErrOrderNotFound = errors.New("order not found")

// Engine matches open orders against the current price once per tick.
//
// Tick is driven synchronously by an external scheduler; the ledger is not
// safe for concurrent ticks and the mutex only protects submit/lookup racing
// a tick, not tick re-entry.
type Engine struct {
	mu     sync.Mutex
	prices PriceSource
	clock  market.Clock
	policy ExpiryPolicy

	open      []string // FIFO submission order
	cancels   map[string]bool
	orders    map[string]OrderRequest
	listeners map[string]Listener

	log zerolog.Logger
}

func NewEngine(prices PriceSource, clock market.Clock, policy ExpiryPolicy) *Engine {
	return &Engine{
		prices:    prices,
		clock:     clock,
		policy:    policy,
		cancels:   map[string]bool{},
		orders:    map[string]OrderRequest{},
		listeners: map[string]Listener{},
		log:       log.With().Str("component", "engine").Logger(),
	}
}

// Submit validates the order and appends it to the open ledger. No price
// check happens at submission; the order is first evaluated on the next tick.
// The listener is bound to the order for its one terminal event.
func (e *Engine) Submit(l Listener, o Order) (OrderRequest, error) {
	if err := o.validate(); err != nil {
		return OrderRequest{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	req := OrderRequest{
		Order:          o,
		ID:             id.New(),
		SubmissionDate: e.clock.Now(),
		Status:         Open,
	}

	e.orders[req.ID] = req
	e.listeners[req.ID] = l
	e.open = append(e.open, req.ID)

	return req, nil
}

// Cancel requests cancellation of an open order. The cancellation takes
// effect on the next processed tick, emitting OnCancelled.
func (e *Engine) Cancel(orderID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	req, ok := e.orders[orderID]
	if !ok {
		return fmt.Errorf("cancel: %w: %q", ErrOrderNotFound, orderID)
	}
	if req.Status != Open {
		return nil
	}
	e.cancels[orderID] = true
	return nil
}

// GetOrder returns a snapshot of the order's current state.
func (e *Engine) GetOrder(orderID string) (OrderRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	req, ok := e.orders[orderID]
	if !ok {
		return OrderRequest{}, fmt.Errorf("get order: %w: %q", ErrOrderNotFound, orderID)
	}
	return req, nil
}

// OpenOrders returns the ids of orders still open, in submission order.
func (e *Engine) OpenOrders() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]string, len(e.open))
	copy(out, e.open)
	return out
}

// Tick evaluates every open order against the current price and time, in
// FIFO submission order. Expiration is checked before the limit condition:
// an order that is both expired and fillable on the same tick is cancelled.
// Each order reaching a terminal state emits exactly one listener event
// during the tick; orders left open emit nothing and stay in the ledger.
//
// When the market is unavailable the tick is a no-op (unless the engine was
// built with ExpireWhileClosed, in which case only expirations advance).
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()

	if !e.prices.IsAvailable() {
		if e.policy == ExpireWhileClosed {
			e.expireLocked(now)
			return
		}
		e.log.Debug().Time("now", now).Msg("market is closed")
		return
	}

	remaining := e.open[:0]
	for _, orderID := range e.open {
		req := e.orders[orderID]

		switch {
		case req.Expired(now) || e.cancels[orderID]:
			e.resolveLocked(req, Cancelled, 0, now)

		case req.Kind == Limit && !limitMet(req, e.prices.CurrentPrice(req.Instrument)):
			remaining = append(remaining, orderID)

		default:
			e.resolveLocked(req, Executed, e.prices.CurrentPrice(req.Instrument), now)
		}
	}
	e.open = remaining
}

// limitMet reports whether the limit condition allows a fill: buys fill at
// or below the limit, sells at or above it.
func limitMet(req OrderRequest, price market.Price) bool {
	if req.Side == Buy {
		return price <= req.Limit
	}
	return price >= req.Limit
}

// expireLocked cancels expired orders only, leaving everything else untouched.
func (e *Engine) expireLocked(now time.Time) {
	remaining := e.open[:0]
	for _, orderID := range e.open {
		req := e.orders[orderID]
		if req.Expired(now) {
			e.resolveLocked(req, Cancelled, 0, now)
			continue
		}
		remaining = append(remaining, orderID)
	}
	e.open = remaining
}

// resolveLocked applies the one-and-only terminal transition and notifies
// the listener bound at submission.
func (e *Engine) resolveLocked(req OrderRequest, status Status, price market.Price, now time.Time) {
	req.Status = status
	req.ProcessedDate = now
	if status == Executed {
		req.ExecutionPrice = price
	}
	e.orders[req.ID] = req
	delete(e.cancels, req.ID)

	l := e.listeners[req.ID]
	delete(e.listeners, req.ID)
	if l == nil {
		return
	}
	if status == Executed {
		l.OnFilled(req)
	} else {
		l.OnCancelled(req)
	}
}
