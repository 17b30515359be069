// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package iobufpool

import (
	"fmt"
	"io"
	"unsafe"

	"code.hybscloud.com/iox"
)

// DumpStats writes a statedump-style snapshot of the pool: global
// counters, one section per arena on any list, and one subsection per
// active buffer with its refcount and payload pointer.
//
// The snapshot uses try-locks throughout so observability never stalls
// the data path: a contended pool mutex returns iox.ErrWouldBlock with
// nothing emitted, and a contended buffer is skipped.
func (p *Pool) DumpStats(w io.Writer) error {
	if !p.mu.TryLock() {
		return iox.ErrWouldBlock
	}
	defer p.mu.Unlock()

	fmt.Fprintf(w, "[iobuf.global]\n")
	fmt.Fprintf(w, "iobuf_pool=%p\n", p)
	fmt.Fprintf(w, "iobuf_pool.default_page_size=%d\n", p.defaultPageSize)
	fmt.Fprintf(w, "iobuf_pool.arena_size=%d\n", p.arenaSize)
	fmt.Fprintf(w, "iobuf_pool.arena_cnt=%d\n", p.arenaCnt)
	fmt.Fprintf(w, "iobuf_pool.request_misses=%d\n", p.requestMisses)

	i := 1
	for j := range classTable {
		for _, a := range p.arenas[j] {
			dumpArena(w, fmt.Sprintf("arena.%d", i), a)
			i++
		}
		for _, a := range p.purge[j] {
			dumpArena(w, fmt.Sprintf("purge.%d", i), a)
			i++
		}
		for _, a := range p.filled[j] {
			dumpArena(w, fmt.Sprintf("filled.%d", i), a)
			i++
		}
	}
	return nil
}

func dumpArena(w io.Writer, key string, a *arena) {
	fmt.Fprintf(w, "[%s]\n", key)
	fmt.Fprintf(w, "%s.mem_base=%p\n", key, unsafe.SliceData(a.mem))
	fmt.Fprintf(w, "%s.active_cnt=%d\n", key, a.activeCnt)
	fmt.Fprintf(w, "%s.passive_cnt=%d\n", key, a.passiveCnt)
	fmt.Fprintf(w, "%s.alloc_cnt=%d\n", key, a.allocCnt)
	fmt.Fprintf(w, "%s.max_active=%d\n", key, a.maxActive)
	fmt.Fprintf(w, "%s.page_size=%d\n", key, a.pageSize)

	i := 1
	for slot := a.activeHead; slot != nilSlot; slot = a.bufs[slot].next {
		dumpBuffer(w, fmt.Sprintf("%s.active_iobuf.%d", key, i), &a.bufs[slot])
		i++
	}
}

// dumpBuffer snapshots one buffer under its mutex; a contended buffer is
// skipped rather than waited on.
func dumpBuffer(w io.Writer, key string, b *Buffer) {
	if !b.mu.TryLock() {
		return
	}
	ref := b.ref.Load()
	ptr := unsafe.SliceData(b.data)
	b.mu.Unlock()

	fmt.Fprintf(w, "[%s]\n", key)
	fmt.Fprintf(w, "%s.ref=%d\n", key, ref)
	fmt.Fprintf(w, "%s.ptr=%p\n", key, ptr)
}
