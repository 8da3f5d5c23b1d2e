package journal

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rustyeddy/marketsim/sim"
)

// Listener journals every terminal order event, then forwards it to Next if
// set. Journal failures are logged, never surfaced to the engine.
type Listener struct {
	Journal Journal
	Next    sim.Listener

	log zerolog.Logger
}

func NewListener(j Journal, next sim.Listener) *Listener {
	return &Listener{
		Journal: j,
		Next:    next,
		log:     log.With().Str("component", "journal").Logger(),
	}
}

func (l *Listener) OnFilled(req sim.OrderRequest) {
	l.record(req)
	if l.Next != nil {
		l.Next.OnFilled(req)
	}
}

func (l *Listener) OnCancelled(req sim.OrderRequest) {
	l.record(req)
	if l.Next != nil {
		l.Next.OnCancelled(req)
	}
}

func (l *Listener) record(req sim.OrderRequest) {
	if err := l.Journal.RecordOrder(RecordFromRequest(req)); err != nil {
		l.log.Error().Err(err).Str("order", req.ID).Msg("journal write failed")
	}
}
