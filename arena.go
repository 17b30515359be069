// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package iobufpool

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// arena is one anonymous read-write mapping carved into equal-sized pages
// of a single class. Pages sit on an intrusive passive (free) or active
// (handed out) list linked by slot index into bufs.
//
// All fields are protected by the owning pool's mutex.
type arena struct {
	mem       []byte
	arenaSize int
	pageSize  int // class page size, not a request size
	pageCount int
	classIdx  int

	bufs []Buffer

	passiveHead int // LIFO free list: most recently freed page first
	activeHead  int // doubly linked, walkable for statedump
	passiveCnt  int
	activeCnt   int

	allocCnt  uint64 // lifetime hand-outs
	maxActive int    // high watermark of activeCnt

	pool *Pool
}

// newArena maps a region for one class and carves it into pages. The
// caller links the arena into the pool's lists.
func newArena(pool *Pool, classIdx int) (*arena, error) {
	cfg := classTable[classIdx]
	size := cfg.pageSize * cfg.numPages

	mem, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, errors.Wrapf(err, "mapping %d bytes for page size %d", size, cfg.pageSize)
	}

	a := &arena{
		mem:         mem,
		arenaSize:   size,
		pageSize:    cfg.pageSize,
		pageCount:   cfg.numPages,
		classIdx:    classIdx,
		passiveHead: nilSlot,
		activeHead:  nilSlot,
		pool:        pool,
	}
	a.carve()
	return a, nil
}

// carve initializes the page buffers and pushes every page onto the
// passive list.
func (a *arena) carve() {
	a.bufs = make([]Buffer, a.pageCount)
	offset := 0
	for i := range a.bufs {
		b := &a.bufs[i]
		b.data = a.mem[offset : offset+a.pageSize : offset+a.pageSize]
		b.arena = a
		b.origin = originArena
		b.slot = i
		b.next = nilSlot
		b.prev = nilSlot
		a.pushPassive(i)
		offset += a.pageSize
	}
}

// destroy unmaps the region. Called under the pool mutex; every page must
// have returned to the passive list unless the pool itself is being torn
// down over a leak.
func (a *arena) destroy() {
	for i := range a.bufs {
		if r := a.bufs[i].ref.Load(); r != 0 {
			Logger.WithField("refcount", r).
				WithField("page_size", a.pageSize).
				Error("destroying arena with referenced buffer")
		}
	}
	if a.mem != nil {
		if err := unix.Munmap(a.mem); err != nil {
			Logger.WithError(err).Warn("arena unmap failed")
		}
		a.mem = nil
	}
	a.bufs = nil
}

func (a *arena) pushPassive(slot int) {
	b := &a.bufs[slot]
	b.next = a.passiveHead
	b.prev = nilSlot
	a.passiveHead = slot
	a.passiveCnt++
}

func (a *arena) popPassive() int {
	slot := a.passiveHead
	b := &a.bufs[slot]
	a.passiveHead = b.next
	b.next = nilSlot
	a.passiveCnt--
	return slot
}

func (a *arena) pushActive(slot int) {
	b := &a.bufs[slot]
	b.next = a.activeHead
	b.prev = nilSlot
	if a.activeHead != nilSlot {
		a.bufs[a.activeHead].prev = slot
	}
	a.activeHead = slot
	a.activeCnt++
}

func (a *arena) removeActive(slot int) {
	b := &a.bufs[slot]
	if b.prev != nilSlot {
		a.bufs[b.prev].next = b.next
	} else {
		a.activeHead = b.next
	}
	if b.next != nilSlot {
		a.bufs[b.next].prev = b.prev
	}
	b.next = nilSlot
	b.prev = nilSlot
	a.activeCnt--
}
