package market

import (
	"sort"
	"time"
)

// Candle is an immutable OHLC summary of one time window.
type Candle struct {
	Open  Price
	High  Price
	Low   Price
	Close Price
}

// Series maps candle start times to candles. Keys are minute (or coarser)
// boundaries; iteration order comes from Times().
type Series map[time.Time]Candle

// Times returns the series keys in ascending order.
func (s Series) Times() []time.Time {
	times := make([]time.Time, 0, len(s))
	for t := range s {
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	return times
}

// Merge copies all entries of other into s, overwriting duplicates.
func (s Series) Merge(other Series) {
	for t, c := range other {
		s[t] = c
	}
}

// Between returns the entries whose keys fall inside the closed range.
func (s Series) Between(r TimeRange) Series {
	out := Series{}
	for t, c := range s {
		if r.Contains(t) {
			out[t] = c
		}
	}
	return out
}
