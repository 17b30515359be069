// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package iobufpool

const (
	// SmallAllocThreshold is the largest request served by the
	// pass-through small path. Requests at or below it take no pool
	// lock and never touch an arena.
	SmallAllocThreshold = 128

	// AlignSize is the payload alignment applied on the overflow path.
	AlignSize = 4096

	// DefaultPageSize is substituted for zero-sized requests.
	DefaultPageSize = 128 * 1024
)

// classConfig is one (page size, initial page count) entry of the fixed
// class table.
type classConfig struct {
	pageSize int
	numPages int
}

// classTable must stay sorted ascending by page size; classIndex relies
// on it.
var classTable = [...]classConfig{
	{128, 1024},
	{512, 512},
	{2 * 1024, 512},
	{8 * 1024, 128},
	{32 * 1024, 64},
	{128 * 1024, 32},
	{256 * 1024, 8},
	{1024 * 1024, 2},
}

// classCount is the number of fixed size classes.
const classCount = len(classTable)

// maxPageSize is the page size of the largest fixed class. Requests above
// it are served by the overflow path.
const maxPageSize = 1024 * 1024

// classIndex returns the index of the smallest class whose page size can
// hold size bytes, or -1 if the request exceeds the largest class.
func classIndex(size int) int {
	for i := range classTable {
		if size <= classTable[i].pageSize {
			return i
		}
	}
	return -1
}

// alignOffset returns how many bytes past p the next align boundary is.
// align must be a power of two.
func alignOffset(p uintptr, align uintptr) uintptr {
	return (align - p&(align-1)) & (align - 1)
}

// powerOfTwo reports whether v is a positive power of two.
func powerOfTwo(v int) bool {
	return v > 0 && v&(v-1) == 0
}
