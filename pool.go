// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package iobufpool

import (
	"sync"
	"unsafe"

	"github.com/pkg/errors"
)

// Pool owns all arenas, partitioned by size class, and dispatches every
// allocation: the lock-free small path, the arena hot path, and the
// overflow path for requests beyond the largest class.
//
// A Pool is a long-lived object but not a singleton; hosts create one per
// process or per subsystem and pass it down the stack.
type Pool struct {
	_ noCopy

	mu sync.Mutex

	// Per-class arena lists. An arena is on exactly one of the three:
	// arenas while it has free pages, filled while fully handed out,
	// purge while fully idle and awaiting reclaim.
	arenas [classCount][]*arena
	filled [classCount][]*arena
	purge  [classCount][]*arena

	// allArenas tracks every live arena for bookkeeping walks.
	allArenas []*arena

	defaultPageSize int
	arenaSize       int // lifetime-mapped bytes
	arenaCnt        int
	requestMisses   int64 // overflow-path allocations
}

// NewPool creates a pool and pre-allocates one arena per fixed class.
// Pre-allocation is best-effort: a class whose mapping fails starts empty
// and is retried on first demand.
func NewPool() *Pool {
	p := &Pool{defaultPageSize: DefaultPageSize}

	// No lock needed; the pool is not published yet.
	for i := range classTable {
		if a := p.addArenaLocked(i); a == nil {
			Logger.WithField("page_size", classTable[i].pageSize).
				Warn("class pre-allocation failed")
		}
	}
	return p
}

// Get returns a buffer able to hold size bytes, with one reference held
// by the caller. A zero size requests the default page size. Requests at
// or below SmallAllocThreshold are pass-through allocations that take no
// pool lock; requests beyond the largest class go to the overflow path.
func (p *Pool) Get(size int) (*Buffer, error) {
	if size < 0 {
		return nil, ErrSizeOverflow
	}
	if size == 0 {
		size = p.defaultPageSize
	}
	if size <= SmallAllocThreshold {
		return getFromSmall(size), nil
	}

	idx := classIndex(size)
	if idx < 0 {
		return p.getFromStdalloc(size)
	}

	p.mu.Lock()
	b := p.getLocked(size, idx)
	if b == nil {
		p.mu.Unlock()
		Logger.WithField("size", size).Warn("buffer not available")
		return nil, ErrNoMemory
	}
	b.Ref()
	p.mu.Unlock()
	return b, nil
}

// GetPageAligned returns a buffer whose payload pointer is aligned to
// align, which must be a power of two. The buffer is requested with
// size+align bytes so the aligned view always holds size bytes; Size
// reflects the enlarged request.
func (p *Pool) GetPageAligned(size int, align int) (*Buffer, error) {
	if !powerOfTwo(align) {
		return nil, ErrBadAlignment
	}
	if size == 0 {
		size = p.defaultPageSize
	}
	b, err := p.Get(size + align)
	if err != nil {
		return nil, err
	}
	b.alignPayload(uintptr(align))
	return b, nil
}

// Prune reclaims every purgeable arena whose class still has another
// arena with free pages. Idempotent.
func (p *Pool) Prune() {
	p.mu.Lock()
	for i := range classTable {
		for len(p.purge[i]) > 0 && len(p.arenas[i]) > 0 {
			p.pruneOneLocked(p.purge[i][0])
		}
	}
	p.mu.Unlock()
}

// Destroy unmaps every arena and tears the pool down. Arenas with
// outstanding references are a caller-side Ref/Unref imbalance: they are
// reported loudly and destroyed best-effort, and Destroy returns
// ErrBufferLeak.
func (p *Pool) Destroy() error {
	leaked := 0

	p.mu.Lock()
	for i := range classTable {
		for _, lists := range [][]*arena{p.arenas[i], p.purge[i], p.filled[i]} {
			for _, a := range lists {
				if a.activeCnt > 0 {
					leaked++
					Logger.WithField("page_size", a.pageSize).
						WithField("active_cnt", a.activeCnt).
						Error("arena still has active buffers at pool destroy")
				}
				p.arenaCnt--
				a.destroy()
			}
		}
		p.arenas[i], p.filled[i], p.purge[i] = nil, nil, nil
	}
	p.allArenas = nil
	p.mu.Unlock()

	if leaked > 0 {
		return errors.Wrapf(ErrBufferLeak, "%d leaked arenas destroyed", leaked)
	}
	return nil
}

// getLocked pops the head of the selected arena's free list and hands it
// out. Pool mutex held.
func (p *Pool) getLocked(size int, idx int) *Buffer {
	a := p.selectArenaLocked(idx)
	if a == nil {
		return nil
	}

	slot := a.popPassive()
	a.pushActive(slot)
	a.allocCnt++
	if a.maxActive < a.activeCnt {
		a.maxActive = a.activeCnt
	}
	if a.passiveCnt == 0 {
		p.arenas[idx] = removeArena(p.arenas[idx], a)
		p.filled[idx] = append(p.filled[idx], a)
	}

	b := &a.bufs[slot]
	b.pageSize = size
	return b
}

// putLocked returns a zero-referenced arena page to its free list. Pool
// mutex held.
func (p *Pool) putLocked(b *Buffer) {
	a := b.arena
	idx := a.classIdx

	if a.passiveCnt == 0 {
		// Arena was on the filled list; make it eligible again, at the
		// tail so head-most arenas stay warm.
		p.filled[idx] = removeArena(p.filled[idx], a)
		p.arenas[idx] = append(p.arenas[idx], a)
	}

	a.removeActive(b.slot)

	if b.free != nil {
		// Undo an outstanding alignment swap so the page returns at its
		// original arena offset.
		b.data = b.free
		b.free = nil
	}

	a.pushPassive(b.slot)

	if a.activeCnt == 0 {
		p.arenas[idx] = removeArena(p.arenas[idx], a)
		p.purge[idx] = append(p.purge[idx], a)
		p.pruneOneLocked(a)
	}
}

// selectArenaLocked walks the class's arena list head-first and returns
// the first arena with a free page, growing the class when all are full.
// Pool mutex held.
func (p *Pool) selectArenaLocked(idx int) *arena {
	for _, a := range p.arenas[idx] {
		if a.passiveCnt > 0 {
			return a
		}
	}
	return p.addArenaLocked(idx)
}

// addArenaLocked makes one more arena available to a class: resurrecting
// the head of the purge list when possible, mapping a fresh region
// otherwise. The arena is prepended so it becomes the preferred hand-out
// target.
func (p *Pool) addArenaLocked(idx int) *arena {
	var a *arena
	if len(p.purge[idx]) > 0 {
		a = p.purge[idx][0]
		p.purge[idx] = p.purge[idx][1:]
	} else {
		var err error
		a, err = newArena(p, idx)
		if err != nil {
			Logger.WithError(err).Warn("arena mapping failed")
			return nil
		}
		p.allArenas = append(p.allArenas, a)
		p.arenaCnt++
		p.arenaSize += a.arenaSize
	}
	p.arenas[idx] = append([]*arena{a}, p.arenas[idx]...)
	return a
}

// pruneOneLocked destroys a purge-listed arena, but only while the class
// keeps at least one arena with free pages. The holdback prevents
// spurious map/unmap cycles when a burst drains and refills the last
// arena of a class. Pool mutex held.
func (p *Pool) pruneOneLocked(a *arena) {
	idx := a.classIdx
	if len(p.arenas[idx]) == 0 {
		return
	}

	p.purge[idx] = removeArena(p.purge[idx], a)
	p.allArenas = removeArena(p.allArenas, a)
	p.arenaCnt--
	a.destroy()
}

// getFromSmall serves tiny requests with a pass-through allocation. No
// pool state is touched, so no lock is taken.
func getFromSmall(size int) *Buffer {
	mem := make([]byte, size)
	b := &Buffer{
		data:     mem,
		free:     mem,
		pageSize: size,
		origin:   originSmall,
		slot:     nilSlot,
		next:     nilSlot,
		prev:     nilSlot,
	}
	b.ref.Store(1)
	return b
}

// getFromStdalloc serves requests beyond the largest class: a standard
// allocation over-sized by AlignSize so the payload can be page-aligned.
func (p *Pool) getFromStdalloc(size int) (*Buffer, error) {
	raw := make([]byte, size+AlignSize)
	off := alignOffset(uintptr(unsafe.Pointer(unsafe.SliceData(raw))), AlignSize)
	b := &Buffer{
		data:     raw[off:],
		free:     raw,
		pageSize: size,
		origin:   originStd,
		slot:     nilSlot,
		next:     nilSlot,
		prev:     nilSlot,
	}
	b.ref.Store(1)

	p.mu.Lock()
	p.requestMisses++
	p.mu.Unlock()

	Logger.WithField("size", size).
		Debug("request beyond largest class served by standard allocation")
	return b, nil
}

// removeArena deletes a from list, preserving order.
func removeArena(list []*arena, a *arena) []*arena {
	for i, t := range list {
		if t == a {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
