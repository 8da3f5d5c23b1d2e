package history

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rustyeddy/marketsim/market"
)

// Market adapts the gateway into the engine's price source: the current
// price of an instrument is the open of the one-minute candle containing
// the clock's now, and the market counts as available only when that
// candle exists.
type Market struct {
	gateway    *Gateway
	clock      market.Clock
	instrument string
	align      market.Alignment
	log        zerolog.Logger
}

func NewMarket(gateway *Gateway, clock market.Clock, instrument string) *Market {
	return &Market{
		gateway:    gateway,
		clock:      clock,
		instrument: instrument,
		align:      gateway.cfg.Alignment,
		log:        log.With().Str("component", "market").Logger(),
	}
}

func (m *Market) CurrentPrice(instrument string) market.Price {
	c, ok := m.currentCandle(instrument)
	if !ok {
		return 0
	}
	return c.Open
}

func (m *Market) IsAvailable() bool {
	_, ok := m.currentCandle(m.instrument)
	return ok
}

func (m *Market) IsAvailableOn(date time.Time) bool {
	days, err := m.gateway.AvailableDays(m.instrument, date.Year())
	if err != nil {
		m.log.Warn().Err(err).Msg("availability lookup failed")
		return false
	}
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return days[day]
}

func (m *Market) currentCandle(instrument string) (market.Candle, bool) {
	minute := market.OneMinute.Start(m.clock.Now(), m.align)
	c, ok, err := m.gateway.GetData(instrument, minute)
	if err != nil {
		m.log.Warn().Err(err).Time("minute", minute).Msg("price lookup failed")
		return market.Candle{}, false
	}
	return c, ok
}
