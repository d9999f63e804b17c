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
	"time"
)

// Config is used to tune a connection.
type Config struct {
	// MaxLifetime is how long a connection may live since it was
	// opened before it reports itself expired. Negative disables the
	// bound.
	MaxLifetime time.Duration

	// MaxIdleTime is how long a connection may sit unused before it
	// reports itself expired. Negative disables the bound.
	MaxIdleTime time.Duration

	// MaxFrameSize is the largest inbound frame accepted before the
	// handshake negotiates its own limit. Larger frames fail the
	// connection.
	MaxFrameSize int

	// ConnectTimeout bounds dialing when the default stream factory
	// is used.
	ConnectTimeout time.Duration
}

// DefaultConfig is used to return a default configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxLifetime:    30 * time.Minute,
		MaxIdleTime:    10 * time.Minute,
		MaxFrameSize:   48 * 1024 * 1024,
		ConnectTimeout: 30 * time.Second,
	}
}

// VerifyConfig is used to verify the options.
func VerifyConfig(config *Config) error {
	if config == nil {
		return errors.New("config is nil")
	}
	if config.MaxFrameSize < minFrameSize {
		return errors.New("max frame size is smaller than a frame header")
	}
	if config.ConnectTimeout < 0 {
		return errors.New("connect timeout must not be negative")
	}
	return nil
}
