package buffer

import (
	"sync"
	"sync/atomic"
)

// Pool is a typed wrapper around sync.Pool with an optional reset hook and
// allocation statistics.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	stats struct {
		allocated int64
		inUse     int64
	}
}

// NewPool creates a typed pool. reset, if non-nil, runs before an object is
// returned to the pool.
func NewPool[T any](newFn func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return newFn()
	}
	return p
}

// Get retrieves an object, allocating when the pool is empty.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	return p.pool.Get().(T)
}

// Put returns an object to the pool.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats returns the number of objects ever allocated and currently checked out.
func (p *Pool[T]) Stats() (allocated, inUse int64) {
	return atomic.LoadInt64(&p.stats.allocated), atomic.LoadInt64(&p.stats.inUse)
}

// maxPooledLine caps the Line buffers kept for reuse; a one-off huge record
// should not pin its memory for the life of the process.
const maxPooledLine = 4 * 1024 * 1024

var (
	streamPools sync.Map // capacity -> *Pool[*Stream]

	linePool = NewPool(
		func() *Line { return NewLine(1024) },
		func(l *Line) { l.Reset() },
	)
)

func streamPool(capacity int) *Pool[*Stream] {
	if p, ok := streamPools.Load(capacity); ok {
		return p.(*Pool[*Stream])
	}
	p, _ := streamPools.LoadOrStore(capacity, NewPool(
		func() *Stream { return NewStream(capacity) },
		func(s *Stream) { s.Reset() },
	))
	return p.(*Pool[*Stream])
}

// GetStream returns an empty Stream of the given capacity.
func GetStream(capacity int) *Stream {
	return streamPool(capacity).Get()
}

// PutStream returns a Stream to its pool. nil is ignored.
func PutStream(s *Stream) {
	if s == nil {
		return
	}
	streamPool(s.Cap()).Put(s)
}

// GetLine returns an empty Line buffer.
func GetLine() *Line {
	return linePool.Get()
}

// PutLine returns a Line buffer to the pool. nil is ignored.
func PutLine(l *Line) {
	if l == nil {
		return
	}
	if cap(l.buf) > maxPooledLine {
		l.buf = make([]byte, 0, 1024)
	}
	linePool.Put(l)
}
