package domain

import (
	"maps"
	"time"
)

// Metric keys held by the store. KeyState is published on its own topic,
// every other key ends up in the attributes object.
const (
	KeyState  = "state"
	KeyRxRate = "rx_rate"
	KeyTxRate = "tx_rate"
)

// Counter names fed into the rate calculator.
const (
	CounterRx = "rx"
	CounterTx = "tx"
)

// CounterModulus is the wrap point of the device's unsigned 32-bit byte counters.
const CounterModulus = 1 << 32

// Sample is a raw byte counter reading taken when a command was issued.
type Sample struct {
	Timestamp time.Time
	Name      string
	Value     uint32
}

// RateKey maps a counter name to the metric key of its derived rate.
func RateKey(counter string) string {
	return counter + "_rate"
}

// Snapshot is a point-in-time copy of every known metric value.
// Values are strings (link state) or float64 (rounded rates).
type Snapshot map[string]any

// Clone returns an independent copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	maps.Copy(out, s)
	return out
}

// State returns the link state string when present.
func (s Snapshot) State() (string, bool) {
	v, ok := s[KeyState].(string)
	return v, ok
}

// Attributes returns every key except KeyState.
func (s Snapshot) Attributes() map[string]any {
	out := make(map[string]any, len(s))
	for k, v := range s {
		if k == KeyState || v == nil {
			continue
		}
		out[k] = v
	}
	return out
}

// PollResult describes one completed poll cycle.
type PollResult struct {
	Timestamp time.Time
	Snapshot  Snapshot
	Published []string
}

// ConnEvent reports a change of bus connectivity.
type ConnEvent struct {
	Err       error
	Connected bool
}
