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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramePrefixLength(t *testing.T) {
	assert.Equal(t, 32, framePrefix{32, 0, 0, 0}.Length())
	assert.Equal(t, 0x01020304, framePrefix{0x04, 0x03, 0x02, 0x01}.Length())
	// a hostile length prefix stays negative instead of wrapping
	assert.Negative(t, framePrefix{0xFF, 0xFF, 0xFF, 0xFF}.Length())
}

func TestFrameResponseTo(t *testing.T) {
	raw := replyFrame(0x0A0B0C0D, 32)
	b := newBuffer(len(raw))
	defer b.Release()
	_, err := b.WriteAt(raw, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(0x0A0B0C0D), frameResponseTo(b))
}
