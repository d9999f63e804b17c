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

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.NoError(t, VerifyConfig(config))
	assert.Positive(t, config.MaxLifetime)
	assert.Positive(t, config.MaxIdleTime)
	assert.GreaterOrEqual(t, config.MaxFrameSize, minFrameSize)
}

func TestVerifyConfig(t *testing.T) {
	require.Error(t, VerifyConfig(nil))

	config := DefaultConfig()
	config.MaxFrameSize = minFrameSize - 1
	require.Error(t, VerifyConfig(config))

	config = DefaultConfig()
	config.ConnectTimeout = -1
	require.Error(t, VerifyConfig(config))

	// negative expiry bounds are valid: they disable the bound
	config = DefaultConfig()
	config.MaxLifetime = -1
	config.MaxIdleTime = -1
	require.NoError(t, VerifyConfig(config))
}
