// Package progress reports document retrieval progress. All sinks tolerate
// concurrent Advance calls from parallel workers.
package progress

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var documentsRetrieved = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mapi_documents_retrieved_total",
	Help: "Total documents retrieved by collection",
}, []string{"collection"})

// Sink receives incremental progress updates during a retrieval operation.
type Sink interface {
	// Advance records that n more documents have been retrieved.
	Advance(n int)

	// Close marks the operation as finished.
	Close()
}

// Noop discards all progress updates.
type Noop struct{}

func (Noop) Advance(int) {}
func (Noop) Close()      {}

// LogSink logs progress at regular document intervals.
type LogSink struct {
	logger   zerolog.Logger
	total    int64
	interval int64
	count    atomic.Int64
	lastLog  atomic.Int64
}

// NewLogSink creates a sink logging every interval documents out of total.
// A non-positive interval defaults to 1000.
func NewLogSink(logger zerolog.Logger, total, interval int) *LogSink {
	if interval <= 0 {
		interval = 1000
	}
	return &LogSink{
		logger:   logger,
		total:    int64(total),
		interval: int64(interval),
	}
}

// Advance adds n documents and logs when crossing an interval boundary.
func (s *LogSink) Advance(n int) {
	count := s.count.Add(int64(n))
	last := s.lastLog.Load()
	if count-last < s.interval {
		return
	}
	if !s.lastLog.CompareAndSwap(last, count) {
		return
	}

	event := s.logger.Info().Int64("retrieved", count)
	if s.total > 0 {
		event = event.
			Int64("total", s.total).
			Float64("progress_pct", float64(count)/float64(s.total)*100)
	}
	event.Msg("Retrieval progress")
}

// Close logs the final document count.
func (s *LogSink) Close() {
	s.logger.Info().Int64("retrieved", s.count.Load()).Msg("Retrieval complete")
}

// Count returns the number of documents recorded so far.
func (s *LogSink) Count() int {
	return int(s.count.Load())
}

// MeterSink feeds progress into the mapi_documents_retrieved_total counter.
type MeterSink struct {
	collection string
}

// NewMeterSink creates a Prometheus-backed sink labeled with the collection name.
func NewMeterSink(collection string) *MeterSink {
	return &MeterSink{collection: collection}
}

func (s *MeterSink) Advance(n int) {
	documentsRetrieved.WithLabelValues(s.collection).Add(float64(n))
}

func (s *MeterSink) Close() {}

// Multi fans progress out to several sinks.
type Multi []Sink

func (m Multi) Advance(n int) {
	for _, s := range m {
		s.Advance(n)
	}
}

func (m Multi) Close() {
	for _, s := range m {
		s.Close()
	}
}
