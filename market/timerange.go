package market

import (
	"fmt"
	"time"
)

// TimeRange is a closed interval [Lower, Upper].
type TimeRange struct {
	Lower time.Time
	Upper time.Time
}

func ClosedRange(lower, upper time.Time) TimeRange {
	return TimeRange{Lower: lower, Upper: upper}
}

func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Lower) && !t.After(r.Upper)
}

// Minutes is the number of one-minute candles the closed range spans.
func (r TimeRange) Minutes() int {
	return int(r.Upper.Sub(r.Lower)/time.Minute) + 1
}

func (r TimeRange) String() string {
	const layout = "2006/01/02 15:04"
	return fmt.Sprintf("%s - %s", r.Lower.Format(layout), r.Upper.Format(layout))
}
