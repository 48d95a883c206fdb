// Package metrics is the append-only sink that receives (startTime, success)
// samples from every verification, per spec.md §1's "metrics aggregator ...
// a sink that receives (startTime, success) samples" and renders the
// GET /api/metrics snapshot of spec.md §6.1.
package metrics

import (
	"sync"
	"time"
)

// Bucket is one hourly/daily time-series entry in the metrics snapshot.
type Bucket struct {
	Timestamp   int64   `json:"timestamp"`
	Validations int     `json:"validations"`
	SuccessRate float64 `json:"successRate"`
	AverageTime float64 `json:"averageTime"`
}

// Snapshot is the wire shape of GET /api/metrics.
type Snapshot struct {
	TotalValidations      int      `json:"totalValidations"`
	SuccessfulValidations int      `json:"successfulValidations"`
	FailedValidations     int      `json:"failedValidations"`
	AverageValidationTime float64  `json:"averageValidationTime"`
	HourlyMetrics         []Bucket `json:"hourlyMetrics"`
	DailyMetrics          []Bucket `json:"dailyMetrics"`
}

const (
	maxHourlyBuckets = 24
	maxDailyBuckets  = 30
)

type sample struct {
	start   time.Time
	success bool
}

// Sink is an append-only, concurrency-safe metrics tracker. Its ordering
// requirement is only internal consistency of its own buckets; samples from
// concurrent verifications may interleave arbitrarily, per spec.md §5.
type Sink struct {
	mu      sync.Mutex
	total   int
	success int
	failed  int
	sumMS   int64

	hourly map[int64]*bucketAccumulator
	daily  map[int64]*bucketAccumulator
}

type bucketAccumulator struct {
	count   int
	success int
	sumMS   int64
}

// New returns an empty, ready-to-use Sink.
func New() *Sink {
	return &Sink{
		hourly: make(map[int64]*bucketAccumulator),
		daily:  make(map[int64]*bucketAccumulator),
	}
}

// Record appends one (startTime, success) sample, per spec.md §4.3 step 6.
func (s *Sink) Record(start time.Time, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	durationMS := time.Since(start).Milliseconds()

	s.total++
	s.sumMS += durationMS
	if success {
		s.success++
	} else {
		s.failed++
	}

	hourKey := start.Truncate(time.Hour).UnixMilli()
	dayKey := start.Truncate(24 * time.Hour).UnixMilli()

	accumulate(s.hourly, hourKey, success, durationMS)
	accumulate(s.daily, dayKey, success, durationMS)
}

func accumulate(buckets map[int64]*bucketAccumulator, key int64, success bool, durationMS int64) {
	acc, ok := buckets[key]
	if !ok {
		acc = &bucketAccumulator{}
		buckets[key] = acc
	}
	acc.count++
	acc.sumMS += durationMS
	if success {
		acc.success++
	}
}

// Snapshot renders the current state for GET /api/metrics. Hourly buckets
// retain the last 24; daily, the last 30 (spec.md §6.1).
func (s *Sink) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	avg := 0.0
	if s.total > 0 {
		avg = float64(s.sumMS) / float64(s.total)
	}

	return Snapshot{
		TotalValidations:      s.total,
		SuccessfulValidations: s.success,
		FailedValidations:     s.failed,
		AverageValidationTime: roundTo(avg, 0),
		HourlyMetrics:         render(s.hourly, maxHourlyBuckets),
		DailyMetrics:          render(s.daily, maxDailyBuckets),
	}
}

func render(buckets map[int64]*bucketAccumulator, limit int) []Bucket {
	out := make([]Bucket, 0, len(buckets))
	for ts, acc := range buckets {
		successRate := 0.0
		avgTime := 0.0
		if acc.count > 0 {
			successRate = float64(acc.success) / float64(acc.count) * 100
			avgTime = float64(acc.sumMS) / float64(acc.count)
		}
		out = append(out, Bucket{
			Timestamp:   ts,
			Validations: acc.count,
			SuccessRate: roundTo(successRate, 2),
			AverageTime: roundTo(avgTime, 0),
		})
	}
	sortBucketsByTimestamp(out)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func sortBucketsByTimestamp(b []Bucket) {
	for i := 1; i < len(b); i++ {
		for j := i; j > 0 && b[j-1].Timestamp > b[j].Timestamp; j-- {
			b[j-1], b[j] = b[j], b[j-1]
		}
	}
}

func roundTo(v float64, decimals int) float64 {
	mult := 1.0
	for i := 0; i < decimals; i++ {
		mult *= 10
	}
	return float64(int64(v*mult+0.5)) / mult
}
