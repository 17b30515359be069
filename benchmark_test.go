// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package iobufpool_test

import (
	"testing"

	"code.hybscloud.com/iobufpool"
	"code.hybscloud.com/spin"
)

// Allocation benchmarks

func BenchmarkGetUnref_Small(b *testing.B) {
	pool := iobufpool.NewPool()
	defer pool.Destroy()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf, err := pool.Get(64)
			if err != nil {
				b.Fatal(err)
			}
			// Simulate I/O latency
			spin.Yield()
			buf.Unref()
		}
	})
}

func BenchmarkGetUnref_2K(b *testing.B) {
	pool := iobufpool.NewPool()
	defer pool.Destroy()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf, err := pool.Get(2000)
			if err != nil {
				b.Fatal(err)
			}
			// Simulate I/O latency
			spin.Yield()
			buf.Unref()
		}
	})
}

func BenchmarkGetUnref_128K(b *testing.B) {
	pool := iobufpool.NewPool()
	defer pool.Destroy()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf, err := pool.Get(0)
			if err != nil {
				b.Fatal(err)
			}
			// Simulate I/O latency
			spin.Yield()
			buf.Unref()
		}
	})
}

func BenchmarkGetPageAligned(b *testing.B) {
	pool := iobufpool.NewPool()
	defer pool.Destroy()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf, err := pool.GetPageAligned(4096, 4096)
			if err != nil {
				b.Fatal(err)
			}
			buf.Unref()
		}
	})
}

// Bundle benchmarks

func BenchmarkBundleLifecycle(b *testing.B) {
	pool := iobufpool.NewPool()
	defer pool.Destroy()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			bundle := iobufpool.NewBundle()
			buf, err := pool.Get(2000)
			if err != nil {
				b.Fatal(err)
			}
			if err := bundle.Add(buf); err != nil {
				b.Fatal(err)
			}
			buf.Unref()
			bundle.Unref()
		}
	})
}

func BenchmarkCopy(b *testing.B) {
	pool := iobufpool.NewPool()
	defer pool.Destroy()

	chunks := iobufpool.Buffers{
		make([]byte, 1400),
		make([]byte, 1400),
		make([]byte, 1400),
	}
	src := iobufpool.IoVecFromBuffers(chunks)

	b.ResetTimer()
	for range b.N {
		buf, bundle, _, err := iobufpool.Copy(pool, src)
		if err != nil {
			b.Fatal(err)
		}
		buf.Unref()
		bundle.Unref()
	}
}
