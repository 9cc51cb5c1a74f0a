// Package bufpool provides reusable copy buffers for streaming video
// data to disk. Transfers run concurrently and each needs a large copy
// buffer; pooling them keeps allocation churn flat no matter how many
// downloads the gate admits.
//
// Two size classes cover the cache's traffic: a small class for probe
// reads and short responses, and a stream class for bulk video bodies.
// Requests beyond the stream class are allocated directly and not
// pooled, so a one-off giant buffer never lives forever.
//
// All operations are safe for concurrent use via sync.Pool.
//
// Usage:
//
//	buf := bufpool.Get(bufpool.StreamSize)
//	defer bufpool.Put(buf)
package bufpool

import (
	"sync"
)

const (
	// SmallSize covers probe reads and short responses (16KB).
	SmallSize = 16 << 10

	// StreamSize covers bulk video body copies (512KB).
	StreamSize = 512 << 10
)

// Pool manages byte slices in two size classes.
type Pool struct {
	small  sync.Pool
	stream sync.Pool
}

// NewPool creates an empty buffer pool.
func NewPool() *Pool {
	return &Pool{
		small: sync.Pool{
			New: func() any {
				b := make([]byte, SmallSize)
				return &b
			},
		},
		stream: sync.Pool{
			New: func() any {
				b := make([]byte, StreamSize)
				return &b
			},
		},
	}
}

// Get returns a buffer of at least size bytes, sliced to size. Buffers
// beyond StreamSize are allocated directly.
func (p *Pool) Get(size int) []byte {
	switch {
	case size <= SmallSize:
		return (*(p.small.Get().(*[]byte)))[:size]
	case size <= StreamSize:
		return (*(p.stream.Get().(*[]byte)))[:size]
	default:
		return make([]byte, size)
	}
}

// Put returns a buffer to the pool. Oversized and undersized slices are
// dropped.
func (p *Pool) Put(buf []byte) {
	b := buf[:cap(buf)]
	switch cap(b) {
	case SmallSize:
		p.small.Put(&b)
	case StreamSize:
		p.stream.Put(&b)
	}
}

// defaultPool serves the package-level helpers.
var defaultPool = NewPool()

// Get returns a buffer from the default pool.
func Get(size int) []byte {
	return defaultPool.Get(size)
}

// Put returns a buffer to the default pool.
func Put(buf []byte) {
	defaultPool.Put(buf)
}
