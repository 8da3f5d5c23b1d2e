package history

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/marketsim/market"
)

// slowLoader blocks every load until released, counting starts.
type slowLoader struct {
	release chan struct{}
	starts  int32
}

func (l *slowLoader) Load(instrument string, year int) (market.Series, error) {
	atomic.AddInt32(&l.starts, 1)
	<-l.release
	return market.Series{
		time.Date(year, time.January, 2, 0, 0, 0, 0, time.UTC): {Open: 1, High: 1, Low: 1, Close: 1},
	}, nil
}

func TestConcurrentLookupsLoadOnce(t *testing.T) {
	t.Parallel()

	loader := &slowLoader{release: make(chan struct{})}
	cache := newPartitionCache(loader)
	key := PartitionKey{Instrument: "EUR_USD", Year: 2016}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*Partition, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.get(key)
		}(i)
	}

	// Give every goroutine a chance to hit the cache before the single
	// in-flight load completes.
	time.Sleep(20 * time.Millisecond)
	close(loader.release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&loader.starts))
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		// Everyone shares the same immutable partition.
		assert.Same(t, results[0], results[i])
	}
}

type countingLoader struct {
	loads int
	fail  bool
}

func (l *countingLoader) Load(instrument string, year int) (market.Series, error) {
	l.loads++
	if l.fail {
		return nil, errors.New("corrupt archive")
	}
	return market.Series{
		time.Date(year, time.February, 1, 0, 0, 0, 0, time.UTC): {Open: 2, High: 3, Low: 1, Close: 2},
	}, nil
}

func TestPartitionRetainedForProcessLifetime(t *testing.T) {
	t.Parallel()

	loader := &countingLoader{}
	cache := newPartitionCache(loader)
	key := PartitionKey{Instrument: "EUR_USD", Year: 2015}

	for i := 0; i < 5; i++ {
		_, err := cache.get(key)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, loader.loads)

	// Different years are separate partitions.
	_, err := cache.get(PartitionKey{Instrument: "EUR_USD", Year: 2014})
	require.NoError(t, err)
	assert.Equal(t, 2, loader.loads)
}

func TestFailedLoadIsRetried(t *testing.T) {
	t.Parallel()

	loader := &countingLoader{fail: true}
	cache := newPartitionCache(loader)
	key := PartitionKey{Instrument: "EUR_USD", Year: 2013}

	_, err := cache.get(key)
	assert.Error(t, err)
	_, err = cache.get(key)
	assert.Error(t, err)
	assert.Equal(t, 2, loader.loads)

	loader.fail = false
	part, err := cache.get(key)
	require.NoError(t, err)
	assert.NotNil(t, part)
	assert.Equal(t, 3, loader.loads)
}

func TestPartitionDaysDerived(t *testing.T) {
	t.Parallel()

	loader := &countingLoader{}
	cache := newPartitionCache(loader)

	part, err := cache.get(PartitionKey{Instrument: "EUR_USD", Year: 2012})
	require.NoError(t, err)

	day := time.Date(2012, time.February, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, part.Days[day])
	assert.False(t, part.Days[day.AddDate(0, 0, 1)])
}
