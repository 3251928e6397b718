// Package file keeps the latest metric snapshot in a JSON file.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vshulcz/dslbridge/internal/domain"
	"github.com/vshulcz/dslbridge/internal/ports"
)

type document struct {
	UpdatedAt time.Time       `json:"updated_at"`
	Values    domain.Snapshot `json:"values"`
}

// Persister writes snapshots atomically so a crash never leaves a torn file.
type Persister struct {
	now  func() time.Time
	path string
}

var _ ports.SnapshotSink = (*Persister)(nil)

func New(path string) *Persister {
	return &Persister{path: path, now: time.Now}
}

func (p *Persister) Save(_ context.Context, s domain.Snapshot) error {
	return writeJSONAtomic(p.path, document{UpdatedAt: p.now().UTC(), Values: s})
}

// Restore returns the stored snapshot. A missing file yields an empty snapshot.
func (p *Persister) Restore(_ context.Context) (_ domain.Snapshot, retErr error) {
	f, err := os.Open(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Snapshot{}, nil
		}
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("close: %w", cerr)
		}
	}()

	var doc document
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if doc.Values == nil {
		doc.Values = domain.Snapshot{}
	}
	return doc.Values, nil
}

// Notify saves the snapshot carried by a poll result.
func (p *Persister) Notify(ctx context.Context, res domain.PollResult) error {
	if err := p.Save(ctx, res.Snapshot); err != nil {
		return fmt.Errorf("file sink: %w", err)
	}
	return nil
}

func writeJSONAtomic(path string, v any) (retErr error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create tmp: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := true
	closed := false
	defer func() {
		if !closed {
			if cerr := tmp.Close(); cerr != nil && retErr == nil {
				retErr = fmt.Errorf("close tmp: %w", cerr)
			}
		}
		if cleanup {
			if err := os.Remove(tmpName); err != nil && retErr == nil {
				retErr = fmt.Errorf("remove tmp: %w", err)
			}
		}
	}()
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close tmp: %w", err)
	}
	closed = true
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	cleanup = false
	return nil
}
