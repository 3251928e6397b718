// Package parser extracts metrics from the text the modem prints in its shell.
// Every function is pure: the session feeds it a complete command response.
package parser

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/vshulcz/dslbridge/internal/domain"
)

const (
	rxLabel      = "RX bytes"
	lineStateKey = "nLineState"
)

// Counters finds the interface block for iface and returns its receive and
// transmit byte counters as samples taken at the given time.
func Counters(out []byte, iface string, at time.Time) ([]domain.Sample, error) {
	haveInterface := false
	for _, line := range splitLines(out) {
		if startsWithToken(line, iface) {
			haveInterface = true
			continue
		}
		if !haveInterface {
			continue
		}
		trimmed := bytes.TrimSpace(line)
		if !bytes.HasPrefix(trimmed, []byte(rxLabel)) {
			continue
		}
		parts := bytes.Fields(trimmed)
		if len(parts) < 6 {
			return nil, fmt.Errorf("%s line has %d fields: %w", rxLabel, len(parts), domain.ErrMalformedValue)
		}
		rx, err := counterValue(parts[1])
		if err != nil {
			return nil, fmt.Errorf("rx: %w", err)
		}
		tx, err := counterValue(parts[5])
		if err != nil {
			return nil, fmt.Errorf("tx: %w", err)
		}
		return []domain.Sample{
			{Name: domain.CounterRx, Timestamp: at, Value: rx},
			{Name: domain.CounterTx, Timestamp: at, Value: tx},
		}, nil
	}
	if !haveInterface {
		return nil, fmt.Errorf("interface %q: %w", iface, domain.ErrFieldMissing)
	}
	return nil, fmt.Errorf("%s for %q: %w", rxLabel, iface, domain.ErrFieldMissing)
}

// KeyValues tokenizes the last line of out that contains '=' into key/value pairs.
// Tokens without '=' are ignored.
func KeyValues(out []byte) (map[string]string, error) {
	var last []byte
	for _, line := range splitLines(out) {
		if bytes.IndexByte(line, '=') >= 0 {
			last = line
		}
	}
	if last == nil {
		return nil, fmt.Errorf("no key=value line: %w", domain.ErrFieldMissing)
	}
	kv := make(map[string]string)
	for _, tok := range bytes.Fields(last) {
		k, v, ok := bytes.Cut(tok, []byte("="))
		if !ok || len(k) == 0 {
			continue
		}
		kv[string(k)] = string(v)
	}
	return kv, nil
}

// LineState reads nLineState from the status query response. Codes missing
// from the state table are returned as is; their String() is UNKNOWN.
func LineState(out []byte) (domain.LineState, error) {
	kv, err := KeyValues(out)
	if err != nil {
		return 0, err
	}
	raw, ok := kv[lineStateKey]
	if !ok {
		return 0, fmt.Errorf("%s: %w", lineStateKey, domain.ErrFieldMissing)
	}
	n, err := strconv.ParseUint(raw, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%s=%q: %w", lineStateKey, raw, domain.ErrMalformedValue)
	}
	return domain.LineState(n), nil
}

func counterValue(tok []byte) (uint32, error) {
	_, v, ok := bytes.Cut(tok, []byte(":"))
	if !ok {
		return 0, fmt.Errorf("token %q: %w", tok, domain.ErrMalformedValue)
	}
	n, err := strconv.ParseUint(string(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("token %q: %w", tok, domain.ErrMalformedValue)
	}
	return uint32(n % domain.CounterModulus), nil
}

func startsWithToken(line []byte, token string) bool {
	if len(line) == 0 || line[0] == ' ' || line[0] == '\t' {
		return false
	}
	fields := bytes.Fields(line)
	return len(fields) > 0 && string(fields[0]) == token
}

func splitLines(out []byte) [][]byte {
	lines := bytes.Split(out, []byte("\n"))
	for i, l := range lines {
		lines[i] = bytes.TrimRight(l, "\r")
	}
	return lines
}
