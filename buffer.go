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
	"io"
)

// chunkSize is the size of every backing chunk. It must be a pool
// class of the allocator.
const chunkSize = 16 * 1024

var (
	errBufferReadOnly = errors.New("write to read-only buffer")
	errBufferRange    = errors.New("buffer access out of range")
)

// Buffer is a byte region backed by pooled fixed-size chunks. A Buffer
// is owned by exactly one party at a time; whoever holds it last calls
// Release to return the chunks to the pool.
//
// Buffers are not safe for concurrent use.
type Buffer struct {
	chunks   []*[]byte
	length   int
	readOnly bool
	released bool
}

// newBuffer returns a buffer of the given length.
func newBuffer(length int) *Buffer {
	b := new(Buffer)
	b.SetLen(length)
	return b
}

// Len returns the current length in bytes.
func (b *Buffer) Len() int { return b.length }

// SetLen grows or shrinks the buffer, acquiring or releasing backing
// chunks as needed.
func (b *Buffer) SetLen(n int) {
	if b.readOnly || b.released {
		panic("dbmux: SetLen on read-only or released buffer")
	}
	if n < 0 {
		panic("dbmux: negative buffer length")
	}
	need := (n + chunkSize - 1) / chunkSize
	for len(b.chunks) < need {
		b.chunks = append(b.chunks, defaultAllocator.Get(chunkSize))
	}
	for len(b.chunks) > need {
		last := len(b.chunks) - 1
		defaultAllocator.Put(b.chunks[last])
		b.chunks[last] = nil
		b.chunks = b.chunks[:last]
	}
	b.length = n
}

// WriteAt implements io.WriterAt within the current length.
func (b *Buffer) WriteAt(p []byte, off int64) (int, error) {
	if b.readOnly {
		return 0, errBufferReadOnly
	}
	if off < 0 || int(off)+len(p) > b.length {
		return 0, errBufferRange
	}
	n := 0
	for n < len(p) {
		o := int(off) + n
		chunk := *b.chunks[o/chunkSize]
		n += copy(chunk[o%chunkSize:], p[n:])
	}
	return n, nil
}

// ReadAt implements io.ReaderAt within the current length.
func (b *Buffer) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || int(off)+len(p) > b.length {
		return 0, errBufferRange
	}
	n := 0
	for n < len(p) {
		o := int(off) + n
		chunk := *b.chunks[o/chunkSize]
		n += copy(p[n:], chunk[o%chunkSize:])
	}
	return n, nil
}

// Segment returns the backing bytes from off to the end of its chunk,
// bounded by the buffer length. It lets callers peek at header fields
// without copying.
func (b *Buffer) Segment(off int) []byte {
	if off < 0 || off >= b.length {
		return nil
	}
	start := off % chunkSize
	base := off - start
	limit := b.length - base
	if limit > chunkSize {
		limit = chunkSize
	}
	chunk := *b.chunks[off/chunkSize]
	return chunk[start:limit]
}

// segments returns the backing chunks covering the whole buffer, for
// scatter-gather writes.
func (b *Buffer) segments() [][]byte {
	var vec [][]byte
	for off := 0; off < b.length; {
		seg := b.Segment(off)
		vec = append(vec, seg)
		off += len(seg)
	}
	return vec
}

// MakeReadOnly freezes the buffer contents. Further writes fail.
func (b *Buffer) MakeReadOnly() { b.readOnly = true }

// Release returns the backing chunks to the pool. Release is
// idempotent; using the buffer afterwards is invalid.
func (b *Buffer) Release() {
	if b.released {
		return
	}
	b.released = true
	for i, chunk := range b.chunks {
		defaultAllocator.Put(chunk)
		b.chunks[i] = nil
	}
	b.chunks = nil
	b.length = 0
}

// bufferWriter appends encoder output to the end of a buffer, growing
// it lazily chunk by chunk.
type bufferWriter struct {
	buf *Buffer
}

func newBufferWriter(b *Buffer) *bufferWriter { return &bufferWriter{buf: b} }

func (w *bufferWriter) Write(p []byte) (int, error) {
	off := w.buf.Len()
	w.buf.SetLen(off + len(p))
	return w.buf.WriteAt(p, int64(off))
}

// bufferReader reads a buffer sequentially, for decoders.
type bufferReader struct {
	buf *Buffer
	off int
}

func newBufferReader(b *Buffer) *bufferReader { return &bufferReader{buf: b} }

func (r *bufferReader) Read(p []byte) (int, error) {
	if r.off >= r.buf.Len() {
		return 0, io.EOF
	}
	seg := r.buf.Segment(r.off)
	n := copy(p, seg)
	r.off += n
	return n, nil
}
