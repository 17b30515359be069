// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package iobufpool

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// bufferOrigin tags where a buffer's memory came from. The allocator of
// the original C-era design parked overflow buffers on a sentinel arena;
// the explicit tag replaces the sentinel.
type bufferOrigin uint8

const (
	originArena bufferOrigin = iota // carved from a mapped arena
	originStd                       // overflow path, standard allocation
	originSmall                     // small path, pass-through allocation
)

// nilSlot is the list terminator for the intrusive slot links inside an
// arena.
const nilSlot = -1

// Buffer is a single allocated region handed out by a Pool. Arena-backed
// buffers are pre-carved pages that return to their arena's free list when
// the last reference drops; small- and overflow-path buffers are freed
// outright.
//
// A Buffer starts with one reference held by the caller of Get. Sharing
// across pipeline stages goes through Ref/Unref or a Bundle.
type Buffer struct {
	mu  sync.Mutex
	ref atomic.Int64

	// data is the current payload view. free holds the owning allocation
	// on the small and overflow paths, or the saved pre-swap view while a
	// page-aligned acquisition is outstanding; data is restored from it
	// when the buffer returns to its arena.
	data []byte
	free []byte

	// pageSize is the requested size, not the class capacity.
	pageSize int

	arena  *arena
	origin bufferOrigin

	// slot/next/prev link the buffer into its arena's passive and active
	// lists by index, avoiding interior pointers into the buffer array.
	slot int
	next int
	prev int
}

// Ref takes an additional reference and returns the same handle.
func (b *Buffer) Ref() *Buffer {
	if b == nil {
		return nil
	}
	b.ref.Add(1)
	return b
}

// Unref drops one reference. At zero the buffer returns to its arena's
// free list, or is freed outright for small- and overflow-path buffers.
// Dropping below zero is an unbalanced Ref/Unref pair in the caller and
// panics.
func (b *Buffer) Unref() {
	if b == nil {
		return
	}
	n := b.ref.Add(-1)
	if n < 0 {
		panic("iobufpool: buffer refcount below zero")
	}
	if n == 0 {
		b.put()
	}
}

// put routes a zero-referenced buffer back to where it came from.
func (b *Buffer) put() {
	if b.arena == nil {
		// Pass-through allocation; nothing to return to.
		b.data, b.free = nil, nil
		return
	}
	pool := b.arena.pool
	pool.mu.Lock()
	pool.putLocked(b)
	pool.mu.Unlock()
}

// Size returns the size recorded at hand-out: the requested size, not the
// capacity of the backing class page.
func (b *Buffer) Size() int {
	if b == nil {
		return 0
	}
	return b.pageSize
}

// Bytes returns the payload view of the buffer, sized to the requested
// size where the backing allocation permits. The view stays valid while
// the caller holds a reference.
func (b *Buffer) Bytes() []byte {
	if b == nil {
		return nil
	}
	n := b.pageSize
	if n > cap(b.data) {
		n = cap(b.data)
	}
	return b.data[:n]
}

// IoVec publishes the payload pointer and recorded size for vectored I/O.
// The caller must hold a reference for the lifetime of the I/O operation.
func (b *Buffer) IoVec() IoVec {
	return IoVec{
		Base: unsafe.SliceData(b.data),
		Len:  uint64(b.pageSize),
	}
}

// alignPayload shifts the payload view forward to the next align boundary,
// saving the original view so the buffer can return to its arena offset.
// The buffer mutex serializes the swap against statedump snapshots.
func (b *Buffer) alignPayload(align uintptr) {
	b.mu.Lock()
	if b.free == nil {
		b.free = b.data
	}
	off := alignOffset(uintptr(unsafe.Pointer(unsafe.SliceData(b.data))), align)
	if off > 0 {
		b.data = b.data[off:]
	}
	b.mu.Unlock()
}
