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
	"context"
	"crypto/tls"
	"io"
	"net"
	"time"

	"github.com/sagernet/sing/common"
)

// StreamFactory dials the byte stream a connection runs on.
type StreamFactory interface {
	CreateStream(ctx context.Context, addr string) (io.ReadWriteCloser, error)
}

// StreamFactoryFunc adapts a function to a StreamFactory.
type StreamFactoryFunc func(ctx context.Context, addr string) (io.ReadWriteCloser, error)

func (f StreamFactoryFunc) CreateStream(ctx context.Context, addr string) (io.ReadWriteCloser, error) {
	return f(ctx, addr)
}

// TCPStreamFactory dials plain TCP, optionally wrapped in TLS.
type TCPStreamFactory struct {
	// ConnectTimeout bounds the dial. Zero means no timeout beyond
	// the context.
	ConnectTimeout time.Duration

	// KeepAlivePeriod configures TCP keep-alive probes. Zero keeps
	// the net package default.
	KeepAlivePeriod time.Duration

	// TLS, when set, upgrades the stream with a client handshake. A
	// missing ServerName is filled in from the dialed address.
	TLS *tls.Config
}

func (f *TCPStreamFactory) CreateStream(ctx context.Context, addr string) (io.ReadWriteCloser, error) {
	dialer := net.Dialer{
		Timeout:   f.ConnectTimeout,
		KeepAlive: f.KeepAlivePeriod,
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if f.TLS == nil {
		return conn, nil
	}
	config := f.TLS
	if config.ServerName == "" {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}
		config = config.Clone()
		config.ServerName = host
	}
	tlsConn := tls.Client(conn, config)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		common.Close(conn)
		return nil, err
	}
	return tlsConn, nil
}
