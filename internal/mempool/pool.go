// Package mempool provides sized buffer pools for the scratch memory of the
// image hot paths.
package mempool

import (
	"sync"
)

// A simple sized pool for scratch slices, keyed by size class.
type slicePool[T any] struct {
	pools sync.Map // key: size class (int), value: *sync.Pool
}

// sizeClass rounds n up to the next multiple of 1024 to reduce churn.
func sizeClass(n int) int {
	const step = 1024
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

func (sp *slicePool[T]) pool(cls int) *sync.Pool {
	p, _ := sp.pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]T, cls) }})
	return p.(*sync.Pool)
}

func (sp *slicePool[T]) get(n int) []T {
	cls := sizeClass(n)
	buf, ok := sp.pool(cls).Get().([]T)
	if !ok || cap(buf) < cls {
		buf = make([]T, cls)
	}
	return buf[:n]
}

func (sp *slicePool[T]) put(buf []T) {
	if buf == nil {
		return
	}
	// Buffers of a foreign capacity would land in the wrong class.
	if cls := sizeClass(cap(buf)); cls == cap(buf) {
		sp.pool(cls).Put(buf[:cls]) //nolint:staticcheck
	}
}

var (
	uint64Pool slicePool[uint64]
	bytePool   slicePool[byte]
)

// GetUint64 retrieves a zeroed []uint64 of length n.
// The caller must return it via PutUint64 when done.
func GetUint64(n int) []uint64 {
	buf := uint64Pool.get(n)
	clear(buf)
	return buf
}

// PutUint64 returns a buffer to the pool. It is safe to pass a nil slice.
func PutUint64(buf []uint64) { uint64Pool.put(buf) }

// GetBytes retrieves a []byte of length 0 and capacity of at least n, for
// use as the backing store of a bytes.Buffer. Contents are not zeroed.
func GetBytes(n int) []byte {
	return bytePool.get(n)[:0]
}

// PutBytes returns a buffer to the pool. It is safe to pass a nil slice.
func PutBytes(buf []byte) { bytePool.put(buf) }
