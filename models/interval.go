package models

// Interval is a canonical kline interval. Adapters translate it to each
// vendor's notation and reject values the vendor has no mapping for.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval3m  Interval = "3m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval2h  Interval = "2h"
	Interval4h  Interval = "4h"
	Interval6h  Interval = "6h"
	Interval12h Interval = "12h"
	Interval1d  Interval = "1d"
	Interval3d  Interval = "3d"
	Interval1w  Interval = "1w"
	Interval1M  Interval = "1M"
)

// intervalMilliseconds treats a month as 30 days.
var intervalMilliseconds = map[Interval]int64{
	Interval1m:  60_000,
	Interval3m:  180_000,
	Interval5m:  300_000,
	Interval15m: 900_000,
	Interval30m: 1_800_000,
	Interval1h:  3_600_000,
	Interval2h:  7_200_000,
	Interval4h:  14_400_000,
	Interval6h:  21_600_000,
	Interval12h: 43_200_000,
	Interval1d:  86_400_000,
	Interval3d:  259_200_000,
	Interval1w:  604_800_000,
	Interval1M:  2_592_000_000,
}

// Intervals returns every canonical interval from shortest to longest.
func Intervals() []Interval {
	return []Interval{
		Interval1m, Interval3m, Interval5m, Interval15m, Interval30m,
		Interval1h, Interval2h, Interval4h, Interval6h, Interval12h,
		Interval1d, Interval3d, Interval1w, Interval1M,
	}
}

// Valid reports whether i is a canonical interval.
func (i Interval) Valid() bool {
	_, ok := intervalMilliseconds[i]
	return ok
}

// Milliseconds returns the interval span in milliseconds, or 0 for unknown
// intervals.
func (i Interval) Milliseconds() int64 {
	return intervalMilliseconds[i]
}

func (i Interval) String() string { return string(i) }
