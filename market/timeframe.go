package market

import (
	"fmt"
	"time"
)

// Timeframe is a candle granularity.
type Timeframe int

const (
	OneMinute Timeframe = iota
	FiveMinute
	FifteenMinute
	ThirtyMinute
	OneHour
	FourHour
	OneDay
	OneWeek
	OneMonth
)

var timeframeNames = map[Timeframe]string{
	OneMinute:     "M1",
	FiveMinute:    "M5",
	FifteenMinute: "M15",
	ThirtyMinute:  "M30",
	OneHour:       "H1",
	FourHour:      "H4",
	OneDay:        "D",
	OneWeek:       "W",
	OneMonth:      "M",
}

func (tf Timeframe) String() string {
	if name, ok := timeframeNames[tf]; ok {
		return name
	}
	return fmt.Sprintf("Timeframe(%d)", int(tf))
}

// ParseTimeframe resolves a granularity name like "H1" or "D".
func ParseTimeframe(name string) (Timeframe, error) {
	for tf, n := range timeframeNames {
		if n == name {
			return tf, nil
		}
	}
	return OneMinute, fmt.Errorf("unknown timeframe %q", name)
}

// Alignment anchors day-and-coarser candles. The trading day begins at
// DayStartHour rather than midnight, and weekly candles begin on WeekStart.
type Alignment struct {
	DayStartHour int
	WeekStart    time.Weekday
}

// DefaultAlignment matches the 17:00 New York trading day rollover.
var DefaultAlignment = Alignment{DayStartHour: 17, WeekStart: time.Monday}

// Start returns the start of the candle containing t.
func (tf Timeframe) Start(t time.Time, a Alignment) time.Time {
	switch tf {
	case OneMinute:
		return truncateMinute(t)
	case FiveMinute:
		return truncateMinutes(t, 5)
	case FifteenMinute:
		return truncateMinutes(t, 15)
	case ThirtyMinute:
		return truncateMinutes(t, 30)
	case OneHour:
		return truncateMinute(t.Add(-time.Duration(t.Minute()) * time.Minute))
	case FourHour:
		// Four-hour candles are offset so one boundary lands on the
		// trading day start, e.g. 17:00 gives 01,05,09,13,17,21.
		back := (t.Hour() - a.DayStartHour%4 + 24) % 4
		return OneHour.Start(t.Add(-time.Duration(back)*time.Hour), a)
	case OneDay:
		day := t
		if t.Hour() < a.DayStartHour {
			day = t.AddDate(0, 0, -1)
		}
		return atHour(day, a.DayStartHour)
	case OneWeek:
		return previousOrSame(OneDay.Start(t, a), a.WeekStart)
	case OneMonth:
		// A trading month begins with the trading day containing the
		// first calendar day, which itself starts on the last calendar
		// day of the prior month.
		into := t
		if t.Hour() >= a.DayStartHour {
			into = t.AddDate(0, 0, 1)
		}
		startOfMonth := time.Date(into.Year(), into.Month(), 1, 0, 0, 0, 0, t.Location())
		return OneDay.Start(startOfMonth, a)
	}
	panic(fmt.Sprintf("market: start of %v not defined", tf))
}

// Next returns the start of the candle following the one containing t.
func (tf Timeframe) Next(t time.Time, a Alignment) time.Time {
	start := tf.Start(t, a)
	switch tf {
	case OneMinute:
		return start.Add(time.Minute)
	case FiveMinute:
		return start.Add(5 * time.Minute)
	case FifteenMinute:
		return start.Add(15 * time.Minute)
	case ThirtyMinute:
		return start.Add(30 * time.Minute)
	case OneHour:
		return start.Add(time.Hour)
	case FourHour:
		return start.Add(4 * time.Hour)
	case OneDay:
		return start.AddDate(0, 0, 1)
	case OneWeek:
		return start.AddDate(0, 0, 7)
	case OneMonth:
		// Stepping a calendar month can land inside the same trading
		// month, so probe until the start actually moves.
		for i := 1; i <= 2; i++ {
			next := tf.Start(start.AddDate(0, i, 0), a)
			if !next.Equal(start) {
				return next
			}
		}
		panic("market: unable to find next trading month start")
	}
	panic(fmt.Sprintf("market: next of %v not defined", tf))
}

// PreviousCompleted returns the start of the most recently completed candle
// at or before t. A candle whose window still contains t is not complete.
func (tf Timeframe) PreviousCompleted(t time.Time, a Alignment) time.Time {
	return tf.Start(tf.Start(t, a).Add(-time.Second), a)
}

// Aggregate converts a finer-grained series into one candle per tf window.
// Each output candle takes the first open, last close, max high and min low
// of the source entries in its half-open [start, next) window. Windows with
// no source data emit nothing. The transform is pure and idempotent.
func (tf Timeframe) Aggregate(src Series, a Alignment) Series {
	out := Series{}
	if len(src) == 0 {
		return out
	}

	times := src.Times()
	first := tf.Start(times[0], a)
	last := tf.Start(times[len(times)-1], a)

	i := 0
	for cur := first; !cur.After(last); cur = tf.Next(cur, a) {
		next := tf.Next(cur, a)

		var agg Candle
		n := 0
		for i < len(times) && times[i].Before(next) {
			c := src[times[i]]
			if n == 0 {
				agg = c
			} else {
				if c.High > agg.High {
					agg.High = c.High
				}
				if c.Low < agg.Low {
					agg.Low = c.Low
				}
				agg.Close = c.Close
			}
			n++
			i++
		}

		if n > 0 {
			out[cur] = agg
		}
	}

	return out
}

func truncateMinute(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
}

func truncateMinutes(t time.Time, n int) time.Time {
	return truncateMinute(t.Add(-time.Duration(t.Minute()%n) * time.Minute))
}

func atHour(t time.Time, hour int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, t.Location())
}

func previousOrSame(t time.Time, day time.Weekday) time.Time {
	diff := (int(t.Weekday()) - int(day) + 7) % 7
	return t.AddDate(0, 0, -diff)
}
