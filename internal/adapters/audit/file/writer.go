package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/vshulcz/dslbridge/internal/domain"
	"github.com/vshulcz/dslbridge/internal/misc"
	"github.com/vshulcz/dslbridge/internal/services/events"
)

// Writer appends one JSON line per published change to a local file.
type Writer struct {
	bufs *misc.BufferPool
	path string
	mu   sync.Mutex
}

// New creates a Writer appending to path.
func New(path string) *Writer {
	return &Writer{path: path, bufs: misc.NewBufferPool()}
}

// Notify appends the change carried by res. Polls that published nothing are skipped.
func (w *Writer) Notify(ctx context.Context, res domain.PollResult) (retErr error) {
	if w == nil || w.path == "" {
		return nil
	}
	change, ok := events.ChangeFrom(ctx, res)
	if !ok {
		return nil
	}

	buf := w.bufs.Get()
	defer w.bufs.Put(buf)
	if err := json.NewEncoder(buf).Encode(change); err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("close audit file: %w", cerr)
		}
	}()

	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write audit file: %w", err)
	}
	return nil
}
