package models

import "github.com/quantfetch/perpdata/errors"

// DefaultLimit is applied when a query leaves the entry count unset. When an
// exchange caps an endpoint below this value the adapter silently clamps;
// explicitly requested limits above a cap are rejected instead.
const DefaultLimit = 500

// HistoricalWindow selects a kline range. StartTime and EndTime are Unix
// epoch milliseconds; zero means unset. Both bounds are inclusive as far as
// each vendor honors them.
type HistoricalWindow struct {
	Symbol    Symbol   `json:"symbol"`
	Interval  Interval `json:"interval"`
	StartTime int64    `json:"start_time,omitempty"`
	EndTime   int64    `json:"end_time,omitempty"`
	Limit     int      `json:"limit"`
}

// NewHistoricalWindow builds a validated kline query. A limit of 0 selects
// DefaultLimit.
func NewHistoricalWindow(symbol Symbol, interval Interval, startTime, endTime int64, limit int) (HistoricalWindow, error) {
	if limit == 0 {
		limit = DefaultLimit
	}
	w := HistoricalWindow{Symbol: symbol, Interval: interval, StartTime: startTime, EndTime: endTime, Limit: limit}
	if err := w.Validate(); err != nil {
		return HistoricalWindow{}, err
	}
	return w, nil
}

// Validate rejects malformed windows before any request is issued.
func (w HistoricalWindow) Validate() error {
	if err := w.Symbol.Validate(); err != nil {
		return err
	}
	if !w.Interval.Valid() {
		return errors.NewInvalidArgumentf("unknown interval %q", string(w.Interval))
	}
	if w.Limit <= 0 {
		return errors.NewInvalidArgument("limit must be positive")
	}
	if w.StartTime != 0 && w.EndTime != 0 && w.StartTime >= w.EndTime {
		return errors.NewInvalidArgument("start time must be earlier than end time")
	}
	return nil
}

// FundingRateWindow selects a funding rate settlement range. Semantics match
// HistoricalWindow minus the interval.
type FundingRateWindow struct {
	Symbol    Symbol `json:"symbol"`
	StartTime int64  `json:"start_time,omitempty"`
	EndTime   int64  `json:"end_time,omitempty"`
	Limit     int    `json:"limit"`
}

// NewFundingRateWindow builds a validated funding rate query. A limit of 0
// selects DefaultLimit.
func NewFundingRateWindow(symbol Symbol, startTime, endTime int64, limit int) (FundingRateWindow, error) {
	if limit == 0 {
		limit = DefaultLimit
	}
	w := FundingRateWindow{Symbol: symbol, StartTime: startTime, EndTime: endTime, Limit: limit}
	if err := w.Validate(); err != nil {
		return FundingRateWindow{}, err
	}
	return w, nil
}

// Validate rejects malformed windows before any request is issued.
func (w FundingRateWindow) Validate() error {
	if err := w.Symbol.Validate(); err != nil {
		return err
	}
	if w.Limit <= 0 {
		return errors.NewInvalidArgument("limit must be positive")
	}
	if w.StartTime != 0 && w.EndTime != 0 && w.StartTime >= w.EndTime {
		return errors.NewInvalidArgument("start time must be earlier than end time")
	}
	return nil
}
