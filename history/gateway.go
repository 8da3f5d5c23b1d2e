package history

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rustyeddy/marketsim/market"
)

// Fetcher retrieves one-minute candles for a closed time range from the
// incremental source (the broker API in production).
type Fetcher interface {
	FetchCandles(instrument string, r market.TimeRange) (market.Series, error)
}

// GatewayConfig tunes retrieval. BatchSize is the fetcher's page limit in
// minutes per request; Throttle is the pause between consecutive requests;
// Bootstrap stands in for the latest stored minute when the store is empty.
type GatewayConfig struct {
	Instrument string
	BatchSize  int
	Throttle   time.Duration
	Bootstrap  time.Time
	Alignment  market.Alignment
}

// DefaultBootstrap matches the first minute of generally available vendor
// history.
var DefaultBootstrap = time.Date(2005, time.January, 2, 12, 29, 0, 0, time.UTC)

const (
	DefaultBatchSize = 5000
	DefaultThrottle  = 2 * time.Second
)

// Gateway keeps the local one-minute store gap-free and serves point and
// range lookups through the year-partition cache.
type Gateway struct {
	clock market.Clock
	store *Store
	fetch Fetcher
	cache *partitionCache
	cfg   GatewayConfig
	log   zerolog.Logger
}

func NewGateway(store *Store, fetch Fetcher, loader Loader, clock market.Clock, cfg GatewayConfig) *Gateway {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Throttle <= 0 {
		cfg.Throttle = DefaultThrottle
	}
	if cfg.Bootstrap.IsZero() {
		cfg.Bootstrap = DefaultBootstrap
	}
	if cfg.Alignment == (market.Alignment{}) {
		cfg.Alignment = market.DefaultAlignment
	}

	return &Gateway{
		clock: clock,
		store: store,
		fetch: fetch,
		cache: newPartitionCache(loader),
		cfg:   cfg,
		log:   log.With().Str("component", "history").Logger(),
	}
}

// DetermineMissingRanges partitions the span from the minute after the
// latest stored candle through the most recently completed minute into
// consecutive closed ranges of at most BatchSize minutes, ascending. An
// up-to-date store yields no ranges.
func (g *Gateway) DetermineMissingRanges() ([]market.TimeRange, error) {
	latest, ok, err := g.store.LatestStoredMinute(g.cfg.Instrument)
	if err != nil {
		return nil, err
	}
	if !ok {
		latest = g.cfg.Bootstrap
	}

	completed := market.OneMinute.PreviousCompleted(g.clock.Now(), g.cfg.Alignment)
	if !latest.Before(completed) {
		return nil, nil
	}

	batch := time.Duration(g.cfg.BatchSize-1) * time.Minute

	var ranges []market.TimeRange
	for start := latest.Add(time.Minute); !start.After(completed); {
		end := start.Add(batch)
		if end.After(completed) {
			end = completed
		}
		ranges = append(ranges, market.ClosedRange(start, end))
		start = end.Add(time.Minute)
	}

	return ranges, nil
}

// RetrieveClosedCandles fetches and stores every missing range in ascending
// order, one request at a time. A failed fetch aborts the remainder; ranges
// already stored stay committed, so a later retry resumes from the new
// latest stored minute. Returns the number of candles stored.
func (g *Gateway) RetrieveClosedCandles() (int, error) {
	started := time.Now()

	ranges, err := g.DetermineMissingRanges()
	if err != nil {
		return 0, err
	}

	total := 0
	for i, r := range ranges {
		if i > 0 {
			g.clock.Sleep(g.cfg.Throttle)
		}

		candles, err := g.fetch.FetchCandles(g.cfg.Instrument, r)
		if err != nil {
			return total, fmt.Errorf("retrieve candles %s: %w", r, err)
		}
		if err := g.store.Append(g.cfg.Instrument, candles); err != nil {
			return total, fmt.Errorf("store candles %s: %w", r, err)
		}
		total += len(candles)
	}

	g.log.Info().
		Int("candles", total).
		Int("ranges", len(ranges)).
		Dur("elapsed", time.Since(started)).
		Msg("retrieved closed candles")

	return total, nil
}

// GetData looks up the one-minute candle starting exactly at t. A missing
// timestamp (weekend, holiday, data gap) is reported by ok == false, not an
// error; errors mean the year partition could not be loaded.
func (g *Gateway) GetData(instrument string, t time.Time) (market.Candle, bool, error) {
	part, err := g.cache.get(PartitionKey{Instrument: instrument, Year: t.Year()})
	if err != nil {
		return market.Candle{}, false, err
	}
	c, ok := part.Candles[t]
	return c, ok, nil
}

// GetRange returns candles of the given timeframe whose windows begin
// inside the closed range, aggregated from cached minute partitions.
func (g *Gateway) GetRange(instrument string, tf market.Timeframe, r market.TimeRange) (market.Series, error) {
	start := tf.Start(r.Lower, g.cfg.Alignment)
	end := tf.Start(r.Upper, g.cfg.Alignment)

	minutes := market.Series{}
	for year := start.Year(); year <= end.Year(); year++ {
		part, err := g.cache.get(PartitionKey{Instrument: instrument, Year: year})
		if err != nil {
			return nil, err
		}
		minutes.Merge(part.Candles)
	}

	aggregated := tf.Aggregate(minutes, g.cfg.Alignment)
	return aggregated.Between(market.ClosedRange(start, end)), nil
}

// AvailableDays returns the calendar days of the year with any data for the
// instrument.
func (g *Gateway) AvailableDays(instrument string, year int) (map[time.Time]bool, error) {
	part, err := g.cache.get(PartitionKey{Instrument: instrument, Year: year})
	if err != nil {
		return nil, err
	}
	return part.Days, nil
}
