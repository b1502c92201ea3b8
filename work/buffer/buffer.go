package buffer

import (
	"github.com/valyala/bytebufferpool"
)

// CopyPool hands out reusable byte slices for the streaming relay's copy loop.
// Media relays move a steady stream of chunks for hours; pooling through
// valyala/bytebufferpool keeps that from turning into constant allocation
// churn. Buffers are sized once and reused across relay sessions.
type CopyPool struct {
	pool      *bytebufferpool.Pool
	chunkSize int
}

// NewCopyPool creates a pool producing chunk buffers of the given size.
func NewCopyPool(chunkSize int) *CopyPool {
	if chunkSize <= 0 {
		chunkSize = 32 * 1024
	}
	return &CopyPool{
		pool:      &bytebufferpool.Pool{},
		chunkSize: chunkSize,
	}
}

// Get returns a buffer whose backing slice is at least chunkSize long.
func (cp *CopyPool) Get() *bytebufferpool.ByteBuffer {
	buf := cp.pool.Get()
	if cap(buf.B) < cp.chunkSize {
		buf.B = make([]byte, cp.chunkSize)
	}
	buf.B = buf.B[:cp.chunkSize]
	return buf
}

// Put returns a buffer to the pool for reuse.
func (cp *CopyPool) Put(buf *bytebufferpool.ByteBuffer) {
	if buf != nil {
		cp.pool.Put(buf)
	}
}
