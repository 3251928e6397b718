package misc

import (
	"bytes"
	"sync"
)

const maxPooledBuffer = 64 << 10

// BufferPool recycles encoding buffers. Buffers that grew past 64KiB are dropped.
type BufferPool struct {
	p sync.Pool
}

func NewBufferPool() *BufferPool {
	bp := &BufferPool{}
	bp.p.New = func() any { return new(bytes.Buffer) }
	return bp
}

// Get returns an empty buffer.
func (bp *BufferPool) Get() *bytes.Buffer {
	if buf, ok := bp.p.Get().(*bytes.Buffer); ok {
		return buf
	}
	return new(bytes.Buffer)
}

// Put resets buf and returns it to the pool.
func (bp *BufferPool) Put(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxPooledBuffer {
		return
	}
	buf.Reset()
	bp.p.Put(buf)
}
