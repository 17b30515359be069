// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package iobufpool

import (
	"sync/atomic"
	"unsafe"

	"code.hybscloud.com/iobufpool/internal"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/spin"
)

// bundleCacheCapacity bounds the number of recycled Bundle objects.
// Rounded up to a power of two.
const bundleCacheCapacity = 256

// bundles is the package-wide bundle recycling cache. Bundles are
// allocated per request on the data path; recycling them through a
// bounded MPMC index pool keeps NewBundle allocation-free in the steady
// state.
var bundles = newBundleCache(bundleCacheCapacity)

const (
	noCacheSlot = -1

	cacheEntryEmpty    = 1 << 62
	cacheEntryTurnMask = cacheEntryEmpty>>32 - 1
)

// bundleCache is a lock-free bounded MPMC pool of Bundle objects,
// addressed by index. Entries carry a turn tag so a slot cannot be
// observed across wrap-around (the FIFO queue construction from
// Nikolaev's scalable lock-free queue). Entry indices are remapped so
// neighboring queue positions land on distinct cache lines.
//
// The cache is nonblocking on both ends: an empty cache makes NewBundle
// fall back to a heap allocation, a full one drops the returned object.
type bundleCache struct {
	_ noCopy

	items    []Bundle
	capacity uint32
	mask     uint32

	entries   []atomic.Uint64
	remapM    uint32
	remapN    uint32
	remapMask uint32

	head, tail atomic.Uint32
}

// newBundleCache creates a cache pre-filled with capacity reusable
// Bundle objects.
func newBundleCache(capacity int) *bundleCache {
	capacity--
	capacity |= capacity >> 1
	capacity |= capacity >> 2
	capacity |= capacity >> 4
	capacity |= capacity >> 8
	capacity |= capacity >> 16
	capacity++

	remapM := min(internal.CacheLineSize/unsafe.Sizeof(atomic.Uint64{}), uintptr(capacity))
	remapN := max(1, uintptr(capacity)/remapM)

	c := &bundleCache{
		items:     make([]Bundle, capacity),
		capacity:  uint32(capacity),
		mask:      uint32(capacity - 1),
		entries:   make([]atomic.Uint64, capacity),
		remapM:    uint32(remapM),
		remapN:    uint32(remapN),
		remapMask: uint32(remapN - 1),
	}
	for i := range c.items {
		c.items[i].cacheSlot = noCacheSlot
		c.entries[i].Store(uint64(i))
	}
	c.tail.Store(c.capacity)
	return c
}

// get acquires the index of a free cached bundle, or iox.ErrWouldBlock
// when every cached bundle is in use.
func (c *bundleCache) get() (int, error) {
	sw := spin.Wait{}
	for {
		h, t := c.head.Load(), c.tail.Load()
		hi := c.remap(h & c.mask)
		e := c.entries[hi].Load()

		if h != c.head.Load() {
			sw.Once()
			continue
		}

		if h == t {
			return noCacheSlot, iox.ErrWouldBlock
		}

		nextTurn := (h/c.capacity + 1) & cacheEntryTurnMask
		if e == c.empty(nextTurn) {
			c.head.CompareAndSwap(h, h+1)
			sw.Once()
			continue
		}
		ok := c.entries[hi].CompareAndSwap(e, c.empty(nextTurn))
		c.head.CompareAndSwap(h, h+1)
		if ok {
			return int(e & uint64(c.mask)), nil
		}
		sw.Once()
	}
}

// put releases a bundle index back to the cache, or returns
// iox.ErrWouldBlock when the cache is full.
func (c *bundleCache) put(slot int) error {
	e := uint64(slot)
	sw := spin.Wait{}
	for {
		h, t := c.head.Load(), c.tail.Load()
		if t != c.tail.Load() {
			sw.Once()
			continue
		}
		if t == h+c.capacity {
			return iox.ErrWouldBlock
		}
		turn, ti := (t/c.capacity)&cacheEntryTurnMask, c.remap(t)
		ok := c.entries[ti].CompareAndSwap(c.empty(turn), e)
		c.tail.CompareAndSwap(t, t+1)
		if ok {
			return nil
		}
		sw.Once()
	}
}

func (c *bundleCache) remap(cursor uint32) int {
	p, q := cursor/c.remapN, cursor&c.remapMask
	return int(q*c.remapM + p%c.remapM)
}

func (c *bundleCache) empty(turn uint32) uint64 {
	return cacheEntryEmpty | uint64(turn&cacheEntryTurnMask)
}
