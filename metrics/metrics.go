// Package metrics accumulates transport-level request counters without any
// server or background activity. Plug a Stats into a transport via
// transport.WithObserver and read it with Snapshot.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/quantfetch/perpdata/transport"
)

// Stats counts requests flowing through a transport. The zero value is
// ready to use and safe for concurrent use.
type Stats struct {
	requests   atomic.Int64
	errors     atomic.Int64
	bytes      atomic.Int64
	durationNs atomic.Int64
}

var _ transport.Observer = (*Stats)(nil)

// ObserveRequest records one completed request. Failed requests and HTTP
// statuses of 400 and above count as errors.
func (s *Stats) ObserveRequest(duration time.Duration, statusCode int, bytes int, err error) {
	s.requests.Add(1)
	if err != nil || statusCode >= 400 {
		s.errors.Add(1)
	}
	s.bytes.Add(int64(bytes))
	s.durationNs.Add(int64(duration))
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Requests       int64
	Errors         int64
	Bytes          int64
	AverageLatency time.Duration
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() Snapshot {
	requests := s.requests.Load()
	snap := Snapshot{
		Requests: requests,
		Errors:   s.errors.Load(),
		Bytes:    s.bytes.Load(),
	}
	if requests > 0 {
		snap.AverageLatency = time.Duration(s.durationNs.Load() / requests)
	}
	return snap
}
