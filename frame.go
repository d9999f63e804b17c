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

import "encoding/binary"

// Wire frame layout: the first 4 bytes carry the total frame length in
// little-endian, length included. Bytes 8..12 carry the response-to id
// as a little-endian int32. Everything else is opaque here.
const (
	framePrefixSize       = 4
	frameResponseToOffset = 8
	minFrameSize          = 12
)

type framePrefix [framePrefixSize]byte

// Length returns the total frame length encoded in the prefix.
func (p framePrefix) Length() int {
	return int(int32(binary.LittleEndian.Uint32(p[:])))
}

// frameResponseTo extracts the response-to id from a complete frame.
// Frames are at least minFrameSize long, so the field never straddles
// a chunk boundary.
func frameResponseTo(b *Buffer) int32 {
	seg := b.Segment(frameResponseToOffset)
	return int32(binary.LittleEndian.Uint32(seg))
}
