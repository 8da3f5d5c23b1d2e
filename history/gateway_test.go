package history

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/marketsim/market"
	"github.com/rustyeddy/marketsim/sim"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := OpenStore(filepath.Join(t.TempDir(), "candles.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// stubFetcher returns one synthetic candle per requested minute, or fails
// after a set number of calls.
type stubFetcher struct {
	calls    []market.TimeRange
	failFrom int // 0 disables failures; n fails the nth call
}

var errFetch = errors.New("fetch failed")

func (f *stubFetcher) FetchCandles(instrument string, r market.TimeRange) (market.Series, error) {
	f.calls = append(f.calls, r)
	if f.failFrom > 0 && len(f.calls) >= f.failFrom {
		return nil, errFetch
	}

	series := market.Series{}
	for t := r.Lower; !t.After(r.Upper); t = t.Add(time.Minute) {
		series[t] = market.Candle{Open: 1, High: 2, Low: 1, Close: 2}
	}
	return series, nil
}

// mapLoader serves partitions from memory and counts loads.
type mapLoader struct {
	data  map[PartitionKey]market.Series
	err   error
	loads int
}

func (l *mapLoader) Load(instrument string, year int) (market.Series, error) {
	l.loads++
	if l.err != nil {
		return nil, l.err
	}
	series, ok := l.data[PartitionKey{Instrument: instrument, Year: year}]
	if !ok {
		return nil, errors.New("no archive")
	}
	return series, nil
}

var gwT0 = time.Date(2017, time.March, 14, 12, 5, 30, 0, time.UTC)

func newTestGateway(t *testing.T, fetch *stubFetcher, loader Loader, now time.Time, batch int) (*Gateway, *sim.Clock) {
	t.Helper()

	clock := sim.NewClock(now)
	g := NewGateway(newTestStore(t), fetch, loader, clock, GatewayConfig{
		Instrument: "EUR_USD",
		BatchSize:  batch,
	})
	return g, clock
}

func TestDetermineMissingRangesUpToDate(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t, &stubFetcher{}, &mapLoader{}, gwT0, 100)

	// Latest stored == most recently completed minute.
	latest := market.OneMinute.PreviousCompleted(gwT0, market.DefaultAlignment)
	require.NoError(t, g.store.Append("EUR_USD", market.Series{latest: {Open: 1, High: 1, Low: 1, Close: 1}}))

	ranges, err := g.DetermineMissingRanges()
	require.NoError(t, err)
	assert.Empty(t, ranges)
}

func TestDetermineMissingRangesBatching(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t, &stubFetcher{}, &mapLoader{}, gwT0, 10)

	// 25 minutes behind the most recently completed candle.
	latest := market.OneMinute.PreviousCompleted(gwT0, market.DefaultAlignment).Add(-25 * time.Minute)
	require.NoError(t, g.store.Append("EUR_USD", market.Series{latest: {Open: 1, High: 1, Low: 1, Close: 1}}))

	ranges, err := g.DetermineMissingRanges()
	require.NoError(t, err)
	require.Len(t, ranges, 3)

	completed := market.OneMinute.PreviousCompleted(gwT0, market.DefaultAlignment)

	// Sorted, disjoint, gapless, batch-capped, ending at the completed minute.
	assert.Equal(t, latest.Add(time.Minute), ranges[0].Lower)
	assert.Equal(t, completed, ranges[len(ranges)-1].Upper)
	for i, r := range ranges {
		assert.LessOrEqual(t, r.Minutes(), 10, "range %d too long", i)
		assert.False(t, r.Upper.Before(r.Lower))
		if i > 0 {
			assert.Equal(t, ranges[i-1].Upper.Add(time.Minute), r.Lower, "gap before range %d", i)
		}
	}
}

func TestDetermineMissingRangesEmptyStoreBootstraps(t *testing.T) {
	t.Parallel()

	fetch := &stubFetcher{}
	clock := sim.NewClock(gwT0)
	bootstrap := gwT0.Truncate(time.Minute).Add(-30 * time.Minute)
	g := NewGateway(newTestStore(t), fetch, &mapLoader{}, clock, GatewayConfig{
		Instrument: "EUR_USD",
		BatchSize:  100,
		Bootstrap:  bootstrap,
	})

	ranges, err := g.DetermineMissingRanges()
	require.NoError(t, err)
	require.NotEmpty(t, ranges)
	assert.Equal(t, bootstrap.Add(time.Minute), ranges[0].Lower)
}

func TestRetrieveClosedCandlesStoresEverything(t *testing.T) {
	t.Parallel()

	fetch := &stubFetcher{}
	g, _ := newTestGateway(t, fetch, &mapLoader{}, gwT0, 10)

	latest := market.OneMinute.PreviousCompleted(gwT0, market.DefaultAlignment).Add(-25 * time.Minute)
	require.NoError(t, g.store.Append("EUR_USD", market.Series{latest: {Open: 1, High: 1, Low: 1, Close: 1}}))

	n, err := g.RetrieveClosedCandles()
	require.NoError(t, err)
	assert.Equal(t, 25, n)
	assert.Len(t, fetch.calls, 3)

	// Fetches were issued in ascending time order.
	for i := 1; i < len(fetch.calls); i++ {
		assert.True(t, fetch.calls[i-1].Upper.Before(fetch.calls[i].Lower))
	}

	// The store is now current: nothing further to fetch.
	ranges, err := g.DetermineMissingRanges()
	require.NoError(t, err)
	assert.Empty(t, ranges)
}

func TestRetrieveClosedCandlesAbortsOnFailure(t *testing.T) {
	t.Parallel()

	fetch := &stubFetcher{failFrom: 2}
	g, _ := newTestGateway(t, fetch, &mapLoader{}, gwT0, 10)

	latest := market.OneMinute.PreviousCompleted(gwT0, market.DefaultAlignment).Add(-25 * time.Minute)
	require.NoError(t, g.store.Append("EUR_USD", market.Series{latest: {Open: 1, High: 1, Low: 1, Close: 1}}))

	n, err := g.RetrieveClosedCandles()
	assert.ErrorIs(t, err, errFetch)
	assert.Equal(t, 10, n)
	// Second call failed; the third range was never attempted.
	assert.Len(t, fetch.calls, 2)

	// Partial progress is durable: the first batch stays committed and the
	// next attempt resumes after it.
	ranges, rerr := g.DetermineMissingRanges()
	require.NoError(t, rerr)
	require.Len(t, ranges, 2)
	assert.Equal(t, latest.Add(11*time.Minute), ranges[0].Lower)
}

func TestGetDataPointLookup(t *testing.T) {
	t.Parallel()

	minute := time.Date(2016, time.June, 1, 10, 0, 0, 0, time.UTC)
	loader := &mapLoader{data: map[PartitionKey]market.Series{
		{Instrument: "EUR_USD", Year: 2016}: {
			minute: {Open: 10, High: 12, Low: 9, Close: 11},
		},
	}}
	g, _ := newTestGateway(t, &stubFetcher{}, loader, gwT0, 100)

	c, ok, err := g.GetData("EUR_USD", minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, market.Candle{Open: 10, High: 12, Low: 9, Close: 11}, c)

	// A missing minute is no data, not an error.
	_, ok, err = g.GetData("EUR_USD", minute.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	// One load served both lookups.
	assert.Equal(t, 1, loader.loads)
}

func TestGetDataLoadFailureNotCached(t *testing.T) {
	t.Parallel()

	loader := &mapLoader{err: errors.New("parse error")}
	g, _ := newTestGateway(t, &stubFetcher{}, loader, gwT0, 100)

	_, _, err := g.GetData("EUR_USD", gwT0)
	assert.Error(t, err)

	// The failure was not cached: the next lookup retries the archive.
	loader.err = nil
	loader.data = map[PartitionKey]market.Series{
		{Instrument: "EUR_USD", Year: 2017}: {gwT0: {Open: 1, High: 1, Low: 1, Close: 1}},
	}
	_, ok, err := g.GetData("EUR_USD", gwT0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, loader.loads)
}

func TestGetRangeAggregates(t *testing.T) {
	t.Parallel()

	day := time.Date(2016, time.June, 1, 0, 0, 0, 0, time.UTC)
	series := market.Series{}
	series[day.Add(9*time.Hour)] = market.Candle{Open: 1, High: 5, Low: 1, Close: 3}
	series[day.Add(9*time.Hour+30*time.Minute)] = market.Candle{Open: 3, High: 8, Low: 2, Close: 7}
	series[day.Add(10*time.Hour)] = market.Candle{Open: 7, High: 9, Low: 6, Close: 8}
	loader := &mapLoader{data: map[PartitionKey]market.Series{
		{Instrument: "EUR_USD", Year: 2016}: series,
	}}
	g, _ := newTestGateway(t, &stubFetcher{}, loader, gwT0, 100)

	out, err := g.GetRange("EUR_USD", market.OneHour,
		market.ClosedRange(day.Add(9*time.Hour), day.Add(10*time.Hour)))
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Equal(t, market.Candle{Open: 1, High: 8, Low: 1, Close: 7}, out[day.Add(9*time.Hour)])
	assert.Equal(t, market.Candle{Open: 7, High: 9, Low: 6, Close: 8}, out[day.Add(10*time.Hour)])
}

func TestHistoryMarketAvailability(t *testing.T) {
	t.Parallel()

	minute := time.Date(2017, time.March, 14, 12, 5, 0, 0, time.UTC)
	loader := &mapLoader{data: map[PartitionKey]market.Series{
		{Instrument: "EUR_USD", Year: 2017}: {
			minute: {Open: 42, High: 44, Low: 41, Close: 43},
		},
	}}
	fetch := &stubFetcher{}
	clock := sim.NewClock(minute.Add(30 * time.Second))
	g := NewGateway(newTestStore(t), fetch, loader, clock, GatewayConfig{Instrument: "EUR_USD"})
	m := NewMarket(g, clock, "EUR_USD")

	assert.True(t, m.IsAvailable())
	assert.Equal(t, market.Price(42), m.CurrentPrice("EUR_USD"))
	assert.True(t, m.IsAvailableOn(minute))

	// A minute with no candle reads as market closed.
	clock.Advance(time.Minute)
	assert.False(t, m.IsAvailable())
	assert.Equal(t, market.Price(0), m.CurrentPrice("EUR_USD"))
}
