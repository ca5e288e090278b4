// Package bufpool recycles the part buffers the upload pipeline reads
// into. Parts are multi-megabyte and every running task holds exactly
// one, so pooling keeps steady-state allocation flat across any number
// of queued tasks instead of paying one large allocation per task.
//
// All operations are safe for concurrent use.
package bufpool

import "sync"

// Pool hands out byte slices of a single fixed size.
type Pool struct {
	size int
	pool sync.Pool
}

// New creates a pool of size-byte buffers.
func New(size int) *Pool {
	p := &Pool{size: size}
	p.pool.New = func() any {
		buf := make([]byte, size)
		return &buf
	}
	return p
}

// Size returns the length of the buffers the pool hands out.
func (p *Pool) Size() int {
	return p.size
}

// Get returns a buffer of the pool's full size. The contents are
// whatever the previous user left; callers overwrite before reading.
func (p *Pool) Get() []byte {
	return *p.pool.Get().(*[]byte)
}

// Put returns a buffer for reuse. Subslices of a pooled buffer keep
// its capacity and are restored to full length; buffers of any other
// capacity are dropped and left to the garbage collector.
func (p *Pool) Put(buf []byte) {
	if cap(buf) != p.size {
		return
	}
	full := buf[:p.size]
	p.pool.Put(&full)
}
