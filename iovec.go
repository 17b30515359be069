// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package iobufpool

import (
	"unsafe"
)

// IoVec represents a scatter/gather I/O descriptor compatible with the
// standard Linux struct iovec. It is used to pass multiple non-contiguous
// user-space buffers to the kernel in a single vectored I/O system call
// (readv, writev, preadv, pwritev, io_uring operations).
//
// Memory layout matches the C struct iovec exactly:
//
//	struct iovec {
//	    void  *iov_base;  // Starting address
//	    size_t iov_len;   // Number of bytes
//	};
//
// The caller must ensure Base points to valid memory for the lifetime of
// any I/O operation using this IoVec.
type IoVec struct {
	Base *byte  // Starting address of the memory block
	Len  uint64 // Number of bytes to transfer
}

// IoVecFromBytes returns an IoVec viewing the given slice without copying.
func IoVecFromBytes(b []byte) IoVec {
	return IoVec{Base: unsafe.SliceData(b), Len: uint64(len(b))}
}

// IoVecFromBuffers converts grouped byte slices to an IoVec slice. The
// returned elements point directly at the slice memory without copying.
func IoVecFromBuffers(buffers Buffers) []IoVec {
	if len(buffers) == 0 {
		return nil
	}
	vec := make([]IoVec, len(buffers))
	for i := range buffers {
		vec[i] = IoVec{Base: unsafe.SliceData(buffers[i]), Len: uint64(len(buffers[i]))}
	}
	return vec
}

// IoVecAddrLen extracts the raw pointer and length from an IoVec slice
// for direct syscall consumption (readv, writev, io_uring submission).
//
// Returns (0, 0) for empty or nil slices.
func IoVecAddrLen(vec []IoVec) (addr uintptr, n int) {
	if len(vec) == 0 {
		return 0, 0
	}
	addr, n = uintptr(unsafe.Pointer(unsafe.SliceData(vec))), len(vec)
	return
}

// IoVecLength returns the total byte count described by the vector.
func IoVecLength(vec []IoVec) int {
	total := 0
	for i := range vec {
		total += int(vec[i].Len)
	}
	return total
}

// bytesOf reopens an IoVec element as a byte slice.
func bytesOf(v IoVec) []byte {
	if v.Base == nil || v.Len == 0 {
		return nil
	}
	return unsafe.Slice(v.Base, v.Len)
}

// Copy packs a scatter/gather source vector contiguously into a single
// pooled buffer sized for the concatenated length. It returns the buffer,
// a fresh bundle already holding one reference on the buffer, and a
// destination descriptor for the packed region. The caller owns one
// reference on each of the buffer and the bundle.
//
// On failure every intermediate acquisition is undone and ErrNoMemory is
// returned.
func Copy(pool *Pool, src []IoVec) (*Buffer, *Bundle, IoVec, error) {
	size := IoVecLength(src)

	buf, err := pool.Get(size)
	if err != nil {
		return nil, nil, IoVec{}, ErrNoMemory
	}

	bundle := NewBundle()
	if err := bundle.Add(buf); err != nil {
		buf.Unref()
		bundle.Unref()
		return nil, nil, IoVec{}, ErrNoMemory
	}

	dst := buf.Bytes()
	off := 0
	for i := range src {
		off += copy(dst[off:], bytesOf(src[i]))
	}

	return buf, bundle, IoVec{Base: unsafe.SliceData(buf.data), Len: uint64(size)}, nil
}
