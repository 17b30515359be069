// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package iobufpool provides a size-classed, arena-backed I/O buffer pool
// for data-path workloads that move payloads between pipeline stages
// (network receive, protocol decode, replication, storage write) without
// copying.
//
// The pool hands out fixed-capacity buffers drawn from a small set of size
// classes. Each class is backed by one or more arenas: contiguous anonymous
// mappings carved into equal-sized pages. Buffers carry an atomic reference
// count so a single payload can be shared across stages; when the last
// reference drops, the page returns to its arena's free list.
//
// # Size Classes
//
//	Class     Pages   Use Case
//	─────     ─────   ────────
//	128 B     1024    control frames, small headers
//	512 B     512     protocol frames
//	2 KiB     512     typical network packets
//	8 KiB     128     stream buffers
//	32 KiB    64      TLS records, stream chunks
//	128 KiB   32      default request payload
//	256 KiB   8       large transfers
//	1 MiB     2       bulk data chunks
//
// Requests are matched to the smallest class whose page size can hold them.
// Requests at or below SmallAllocThreshold bypass the arenas entirely and
// are served by a pass-through allocation that takes no pool lock. Requests
// larger than the biggest class fall back to a standard allocation with a
// page-aligned payload, counted in the pool's request-miss statistics.
//
// # Arena Lifecycle
//
// Every arena sits on exactly one of three per-class lists:
//
//   - arenas: at least one free page, eligible for hand-out
//   - filled: no free pages, all handed out
//   - purge: no active pages, candidate for unmapping
//
// A drained arena is unmapped only when another arena of the same class
// still has free pages. The holdback avoids map/unmap thrash under bursty
// workloads that repeatedly drain and refill the last arena of a class.
// Prune triggers the reclaim explicitly; a purged arena that has not been
// unmapped yet is resurrected in preference to mapping a new one.
//
// Usage pattern:
//
//	pool := iobufpool.NewPool()
//	defer pool.Destroy()
//
//	buf, err := pool.Get(4096)   // served by the 8 KiB class
//	if err != nil {
//	    // Handle ErrNoMemory
//	}
//	// Use buf.Bytes()...
//	buf.Unref()                  // page returns to its arena
//
// # Bundles
//
// A Bundle is a ref-counted container of buffer handles representing one
// logical request. Adding a buffer to a bundle takes a strong reference,
// extending the buffer's lifetime beyond the immediate frame:
//
//	bundle := iobufpool.NewBundle()
//	bundle.Add(buf)
//	buf.Unref()      // bundle still holds the payload
//	...
//	bundle.Unref()   // last reference, buffers released
//
// Bundle objects themselves are recycled through a lock-free bounded MPMC
// cache on the request fast path.
//
// # Vectored I/O
//
// IoVec mirrors the layout of struct iovec for readv/writev interop. Copy
// packs a scatter/gather source vector into a single pooled buffer:
//
//	buf, bundle, dst, err := iobufpool.Copy(pool, srcVec)
//
// # Observability
//
// DumpStats writes a statedump-style snapshot of every arena's counters and
// active buffers. It uses a try-lock and returns iox.ErrWouldBlock instead
// of stalling the data path when the pool mutex is contended.
//
// # Thread Safety
//
// All pool, buffer, and bundle operations are safe for concurrent use. The
// pool is protected by a single coarse mutex; reference counts are atomic
// and are not serialized by any lock.
//
// # Dependencies
//
// iobufpool depends on:
//   - iox: semantic error types (ErrWouldBlock) for non-blocking control flow
//   - spin: spin-wait primitives for lock-free CAS loops
package iobufpool
