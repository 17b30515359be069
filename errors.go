// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package iobufpool

import "errors"

var (
	// ErrNoMemory reports that an allocation failed: Get returns it when
	// a class has no free page and no new arena can be mapped, and Copy
	// returns it when it cannot obtain its buffer. Standard allocations
	// and bundle growth do not return it.
	ErrNoMemory = errors.New("iobufpool: out of memory")

	// ErrNilBuffer reports a nil buffer handle passed to an operation
	// that requires one.
	ErrNilBuffer = errors.New("iobufpool: nil buffer")

	// ErrNilBundle reports a nil bundle handle passed to an operation
	// that requires one.
	ErrNilBundle = errors.New("iobufpool: nil bundle")

	// ErrBadAlignment reports an alignment that is zero or not a power
	// of two.
	ErrBadAlignment = errors.New("iobufpool: alignment must be a power of two")

	// ErrSizeOverflow reports a request size outside the representable
	// range.
	ErrSizeOverflow = errors.New("iobufpool: size overflows representable range")

	// ErrBufferLeak reports arenas destroyed while buffers were still
	// referenced. Callers that see this error have an unbalanced
	// Ref/Unref pair somewhere upstream.
	ErrBufferLeak = errors.New("iobufpool: buffers still active at pool destroy")
)
