// MIT License
//
// Copyright (c) 2016-2017 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package dbmux

import (
	"errors"
	"math/bits"
	"sync"
)

var defaultAllocator = newAllocator()

// allocator reuses byte slices through power-of-two sized pools,
// 1B up to 64K.
type allocator struct {
	buffers []sync.Pool
}

func newAllocator() *allocator {
	alloc := new(allocator)
	alloc.buffers = make([]sync.Pool, 17) // 1B -> 64K
	for k := range alloc.buffers {
		i := k
		alloc.buffers[k].New = func() interface{} {
			b := make([]byte, 1<<uint32(i))
			return &b
		}
	}
	return alloc
}

// Get returns a slice of the given size from the nearest pool class.
func (alloc *allocator) Get(size int) *[]byte {
	if size <= 0 || size > 65536 {
		return nil
	}

	b := alloc.buffers[msb(size)]
	if size == 1<<msb(size) {
		p := b.Get().(*[]byte)
		*p = (*p)[:size]
		return p
	}

	p := alloc.buffers[msb(size)+1].Get().(*[]byte)
	*p = (*p)[:size]
	return p
}

// Put returns a slice to its pool, rejecting slices that did not come
// from Get.
func (alloc *allocator) Put(buf *[]byte) error {
	if cap(*buf) == 0 || cap(*buf) > 65536 {
		return errors.New("allocator Put() incorrect buffer size")
	}
	b := msb(cap(*buf))
	if cap(*buf) != 1<<b {
		return errors.New("allocator Put() buffer not from pool")
	}
	*buf = (*buf)[:cap(*buf)]
	alloc.buffers[b].Put(buf)
	return nil
}

// msb returns the position of the most significant bit, used as the
// pool class index.
func msb(size int) uint16 {
	return uint16(bits.Len32(uint32(size)) - 1)
}
