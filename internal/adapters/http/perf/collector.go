// Package perf keeps a rolling window of request timings for the admin dashboard.
package perf

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

// DefaultWindow is how many recent requests are kept.
const DefaultWindow = 5000

// Sample is one timed request.
type Sample struct {
	Route    string // "GET /summary"
	Status   int
	Duration time.Duration
	At       time.Time
}

// Collector is a fixed-size ring of samples. Old samples are overwritten.
type Collector struct {
	mu      sync.Mutex
	samples []Sample
	next    int
	total   int64
}

// NewCollector creates a collector keeping the last size samples.
func NewCollector(size int) *Collector {
	if size <= 0 {
		size = DefaultWindow
	}
	return &Collector{samples: make([]Sample, 0, size)}
}

// Record adds a sample.
func (c *Collector) Record(s Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total++
	if len(c.samples) < cap(c.samples) {
		c.samples = append(c.samples, s)
		return
	}
	c.samples[c.next] = s
	c.next = (c.next + 1) % len(c.samples)
}

// Total is the number of samples ever recorded.
func (c *Collector) Total() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// RouteStat aggregates one route.
type RouteStat struct {
	Route  string
	Count  int
	Errors int // 5xx responses
	P95    time.Duration
	Max    time.Duration
}

// Summary is the window as shown on the dashboard.
type Summary struct {
	Requests int
	P50      time.Duration
	P95      time.Duration
	Slowest  []RouteStat
}

// Summarize aggregates samples recorded at or after since.
// The top routes are ordered by p95, slowest first.
func (c *Collector) Summarize(since time.Time, top int) Summary {
	c.mu.Lock()
	window := lo.Filter(c.samples, func(s Sample, _ int) bool { return !s.At.Before(since) })
	c.mu.Unlock()

	if len(window) == 0 {
		return Summary{}
	}
	byRoute := lo.GroupBy(window, func(s Sample) string { return s.Route })
	stats := lo.MapToSlice(byRoute, func(route string, ss []Sample) RouteStat {
		d := durations(ss)
		return RouteStat{
			Route:  route,
			Count:  len(ss),
			Errors: lo.CountBy(ss, func(s Sample) bool { return s.Status >= 500 }),
			P95:    percentile(d, 95),
			Max:    d[len(d)-1],
		}
	})
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].P95 == stats[j].P95 {
			return stats[i].Route < stats[j].Route
		}
		return stats[i].P95 > stats[j].P95
	})

	all := durations(window)
	return Summary{
		Requests: len(window),
		P50:      percentile(all, 50),
		P95:      percentile(all, 95),
		Slowest:  lo.Subset(stats, 0, uint(max(top, 0))),
	}
}

// durations returns the sorted durations of ss.
func durations(ss []Sample) []time.Duration {
	d := lo.Map(ss, func(s Sample, _ int) time.Duration { return s.Duration })
	sort.Slice(d, func(i, j int) bool { return d[i] < d[j] })
	return d
}

// percentile uses the nearest-rank method on sorted values.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	return sorted[min(max(rank, 1), len(sorted))-1]
}
