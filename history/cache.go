package history

import (
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/marketsim/market"
)

// Loader fetches a whole (instrument, year) of one-minute candles from the
// bulk archive.
type Loader interface {
	Load(instrument string, year int) (market.Series, error)
}

// PartitionKey identifies one immutable year of history for an instrument.
type PartitionKey struct {
	Instrument string
	Year       int
}

func (k PartitionKey) String() string {
	return fmt.Sprintf("%s/%d", k.Instrument, k.Year)
}

// Partition is a loaded year of minute candles plus the set of calendar
// days that have any data. Partitions are immutable once loaded.
type Partition struct {
	Candles market.Series
	Days    map[time.Time]bool // midnight-truncated dates with data
}

// partitionCache is a load-through cache over the bulk loader. Concurrent
// first lookups of the same key collapse into a single load; a failed load
// is not retained, so the next lookup retries.
type partitionCache struct {
	mu      sync.Mutex
	loader  Loader
	entries map[PartitionKey]*partitionEntry
}

type partitionEntry struct {
	ready chan struct{}
	part  *Partition
	err   error
}

func newPartitionCache(loader Loader) *partitionCache {
	return &partitionCache{
		loader:  loader,
		entries: map[PartitionKey]*partitionEntry{},
	}
}

func (c *partitionCache) get(key PartitionKey) (*Partition, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.mu.Unlock()
		<-e.ready
		return e.part, e.err
	}

	e := &partitionEntry{ready: make(chan struct{})}
	c.entries[key] = e
	c.mu.Unlock()

	part, err := c.load(key)
	if err != nil {
		e.err = fmt.Errorf("load partition %s: %w", key, err)
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
	} else {
		e.part = part
	}
	close(e.ready)

	return e.part, e.err
}

func (c *partitionCache) load(key PartitionKey) (*Partition, error) {
	series, err := c.loader.Load(key.Instrument, key.Year)
	if err != nil {
		return nil, err
	}

	days := make(map[time.Time]bool)
	for ts := range series {
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
		days[day] = true
	}

	return &Partition{Candles: series, Days: days}, nil
}
