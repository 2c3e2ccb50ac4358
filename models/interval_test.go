package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntervalValid(t *testing.T) {
	for _, interval := range Intervals() {
		assert.True(t, interval.Valid(), "interval %s", interval)
	}

	assert.False(t, Interval("45m").Valid())
	assert.False(t, Interval("").Valid())
	assert.False(t, Interval("1mo").Valid())
}

func TestIntervalMilliseconds(t *testing.T) {
	tests := []struct {
		interval Interval
		want     int64
	}{
		{Interval1m, 60_000},
		{Interval1h, 3_600_000},
		{Interval1d, 86_400_000},
		{Interval3d, 259_200_000},
		{Interval1w, 604_800_000},
		{Interval1M, 2_592_000_000},
	}

	for _, tt := range tests {
		t.Run(string(tt.interval), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.interval.Milliseconds())
		})
	}

	assert.Zero(t, Interval("45m").Milliseconds())
}

func TestIntervalsOrdering(t *testing.T) {
	all := Intervals()

	assert.Len(t, all, 14)
	assert.Equal(t, Interval1m, all[0])
	assert.Equal(t, Interval1M, all[len(all)-1])

	for i := 1; i < len(all); i++ {
		assert.Greater(t, all[i].Milliseconds(), all[i-1].Milliseconds())
	}
}
