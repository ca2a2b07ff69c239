// File: bufpool/bufpool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Generic sync.Pool-backed reuse for the fixed-size receive buffers
// every framed transport needs, adapted from the teacher's
// pool.SyncPool[T] generic object pool.

package bufpool

import "sync"

// BytePool hands out byte slices of a fixed size and recycles them.
type BytePool struct {
	pool *sync.Pool
	size int
}

// New creates a BytePool whose Get always returns slices of len==size.
func New(size int) *BytePool {
	return &BytePool{
		size: size,
		pool: &sync.Pool{
			New: func() any { return make([]byte, size) },
		},
	}
}

// Get returns a buffer of the pool's fixed size, zeroed only insofar
// as the caller always writes before reading the region it uses.
func (p *BytePool) Get() []byte {
	return p.pool.Get().([]byte)
}

// Put returns buf to the pool. buf must have come from Get and must
// not be retained by the caller afterward.
func (p *BytePool) Put(buf []byte) {
	if cap(buf) != p.size {
		return // foreign buffer, drop instead of poisoning the pool
	}
	p.pool.Put(buf[:p.size])
}
