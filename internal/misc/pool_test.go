package misc

import (
	"bytes"
	"sync"
	"testing"
)

func TestBufferPool_GetReturnsEmpty(t *testing.T) {
	bp := NewBufferPool()

	buf := bp.Get()
	buf.WriteString("payload")
	bp.Put(buf)

	got := bp.Get()
	if got == nil {
		t.Fatal("Get returned nil")
	}
	if got.Len() != 0 {
		t.Fatalf("pooled buffer not reset: %q", got.String())
	}
}

func TestBufferPool_PutDropsOversized(t *testing.T) {
	bp := NewBufferPool()
	big := bytes.NewBuffer(make([]byte, 0, maxPooledBuffer+1))
	big.WriteString("kept")

	bp.Put(big)
	bp.Put(nil)

	if big.Len() == 0 {
		t.Fatal("oversized buffer should be dropped untouched")
	}
}

func TestBufferPool_Concurrency(t *testing.T) {
	bp := NewBufferPool()

	var wg sync.WaitGroup
	for range 100 {
		wg.Go(func() {
			buf := bp.Get()
			buf.WriteString("x")
			bp.Put(buf)
		})
	}
	wg.Wait()
}
