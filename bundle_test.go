// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package iobufpool_test

import (
	"sync"
	"testing"

	"code.hybscloud.com/iobufpool"
	"code.hybscloud.com/spin"
)

func TestBundleAddAndSize(t *testing.T) {
	pool := iobufpool.NewPool()
	defer pool.Destroy()

	bundle := iobufpool.NewBundle()

	sizes := []int{500, 2000, 30000}
	total := 0
	for _, size := range sizes {
		buf, err := pool.Get(size)
		if err != nil {
			t.Fatalf("Get(%d) failed: %v", size, err)
		}
		if err := bundle.Add(buf); err != nil {
			t.Fatalf("Add() failed: %v", err)
		}
		buf.Unref() // bundle keeps the payload alive
		total += size
	}

	if got := bundle.Size(); got != total {
		t.Errorf("Size() = %d, want %d", got, total)
	}
	bundle.Unref()
}

func TestBundleGrowth(t *testing.T) {
	pool := iobufpool.NewPool()
	defer pool.Destroy()

	bundle := iobufpool.NewBundle()
	buf, err := pool.Get(500)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	// Push well past the initial slot capacity to force doubling.
	const handles = 100
	for i := range handles {
		if err := bundle.Add(buf); err != nil {
			t.Fatalf("Add() %d failed: %v", i, err)
		}
	}
	if got := bundle.Size(); got != handles*500 {
		t.Errorf("Size() = %d, want %d", got, handles*500)
	}

	buf.Unref()
	bundle.Unref()
}

func TestBundleAddNil(t *testing.T) {
	bundle := iobufpool.NewBundle()
	defer bundle.Unref()

	if err := bundle.Add(nil); err == nil {
		t.Error("Add(nil) should fail")
	}
}

func TestBundleClear(t *testing.T) {
	pool := iobufpool.NewPool()
	defer pool.Destroy()

	bundle := iobufpool.NewBundle()
	buf, err := pool.Get(2000)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if err := bundle.Add(buf); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	// Keep the bundle alive past the clearing stage.
	keeper := bundle.Ref()
	bundle.Clear()

	if got := keeper.Size(); got != 0 {
		t.Errorf("Size() after Clear() = %d, want 0", got)
	}
	keeper.Unref()
	buf.Unref()
}

func TestBundleMerge(t *testing.T) {
	pool := iobufpool.NewPool()
	defer pool.Destroy()

	x, _ := pool.Get(600)
	y, _ := pool.Get(700)
	z, _ := pool.Get(800)

	a := iobufpool.NewBundle()
	b := iobufpool.NewBundle()
	for _, add := range []error{a.Add(x), a.Add(y), b.Add(y), b.Add(z)} {
		if add != nil {
			t.Fatalf("Add() failed: %v", add)
		}
	}

	if err := a.Merge(b); err != nil {
		t.Fatalf("Merge() failed: %v", err)
	}

	// a = [x, y, y, z]: the duplicate y is counted twice.
	want := 600 + 700 + 700 + 800
	if got := a.Size(); got != want {
		t.Errorf("Size() after Merge() = %d, want %d", got, want)
	}

	a.Unref()
	b.Unref()
	x.Unref()
	y.Unref()
	z.Unref()
}

func TestBundleRecycling(t *testing.T) {
	// Hammer the bundle cache: create and release bundles concurrently,
	// far more than the cache holds.
	const goroutines = 16
	const iterations = 2000

	pool := iobufpool.NewPool()
	defer pool.Destroy()

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			for range iterations {
				bundle := iobufpool.NewBundle()
				buf, err := pool.Get(500)
				if err != nil {
					t.Errorf("Get() failed: %v", err)
					return
				}
				if err := bundle.Add(buf); err != nil {
					t.Errorf("Add() failed: %v", err)
					return
				}
				buf.Unref()
				spin.Yield()
				bundle.Unref()
			}
		}()
	}
	wg.Wait()
}
