// Package rate turns wrapping byte counters into per-second throughput.
package rate

import (
	"math"
	"sync"
	"time"

	"github.com/vshulcz/dslbridge/internal/domain"
)

type counterState struct {
	at       time.Time
	value    uint32
	rate     float64
	haveRate bool
}

// Calculator keeps the last sample of every counter it has seen.
// The zero value is not usable; call New.
type Calculator struct {
	mu        sync.Mutex
	counters  map[string]*counterState
	precision int
}

// New returns a Calculator rounding rates to precision decimal places.
func New(precision int) *Calculator {
	return &Calculator{
		counters:  make(map[string]*counterState),
		precision: precision,
	}
}

// Compute records a sample and returns the rate since the previous one.
// ok is false for the first sample of a counter and whenever the timestamp
// did not move forward; the sample still becomes the new baseline.
func (c *Calculator) Compute(s domain.Sample) (rate float64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, seen := c.counters[s.Name]
	if !seen {
		c.counters[s.Name] = &counterState{at: s.Timestamp, value: s.Value}
		return 0, false
	}

	dt := s.Timestamp.Sub(prev.at).Seconds()
	if dt <= 0 {
		*prev = counterState{at: s.Timestamp, value: s.Value}
		return 0, false
	}

	diff := int64(s.Value) - int64(prev.value)
	if diff < 0 {
		diff += domain.CounterModulus
	}
	rate = round(float64(diff)/dt, c.precision)

	*prev = counterState{at: s.Timestamp, value: s.Value, rate: rate, haveRate: true}
	return rate, true
}

// Last returns the most recent rate computed for name, if any.
func (c *Calculator) Last(name string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.counters[name]
	if !ok || !st.haveRate {
		return 0, false
	}
	return st.rate, true
}

func round(v float64, precision int) float64 {
	p := math.Pow10(precision)
	return math.RoundToEven(v*p) / p
}
