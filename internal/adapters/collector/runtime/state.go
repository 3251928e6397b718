package runtime

import (
	"maps"
	"sync"
	"time"
)

// Stats is a copy of the latest process sample.
type Stats struct {
	At      time.Time          `json:"sampled_at"`
	Gauges  map[string]float64 `json:"gauges"`
	Samples int64              `json:"samples"`
}

type stats struct {
	at      time.Time
	gauges  map[string]float64
	samples int64
	mu      sync.RWMutex
}

func newStats() *stats {
	return &stats{gauges: make(map[string]float64)}
}

// record replaces the gauges of the previous sample in one step.
func (s *stats) record(at time.Time, gauges map[string]float64) {
	s.mu.Lock()
	s.at = at
	s.gauges = gauges
	s.samples++
	s.mu.Unlock()
}

func (s *stats) snapshot() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g := make(map[string]float64, len(s.gauges))
	maps.Copy(g, s.gauges)
	return Stats{At: s.at, Gauges: g, Samples: s.samples}
}
