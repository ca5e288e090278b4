package bufpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolGet(t *testing.T) {
	p := New(1024)

	buf := p.Get()
	assert.Len(t, buf, 1024)
	assert.Equal(t, 1024, cap(buf))
	assert.Equal(t, 1024, p.Size())
}

func TestPoolPutRestoresLength(t *testing.T) {
	// A short final part is a subslice of the pooled buffer. Whether the
	// next Get reuses it or allocates fresh, it must see full length.
	p := New(1024)

	buf := p.Get()
	p.Put(buf[:10])

	next := p.Get()
	assert.Len(t, next, 1024)
	assert.Equal(t, 1024, cap(next))
}

func TestPoolDropsForeignBuffers(t *testing.T) {
	p := New(1024)

	p.Put(nil)
	p.Put(make([]byte, 10))
	p.Put(make([]byte, 4096))

	buf := p.Get()
	assert.Equal(t, 1024, cap(buf))
}

func TestPoolConcurrent(t *testing.T) {
	p := New(256)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				buf := p.Get()
				assert.Len(t, buf, 256)
				buf[0] = byte(j)
				p.Put(buf)
			}
		}()
	}
	wg.Wait()
}
