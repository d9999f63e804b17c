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
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
)

// CompressorID is the wire identifier of a payload compressor.
type CompressorID uint8

const (
	CompressorIDNoop   CompressorID = 0
	CompressorIDSnappy CompressorID = 1
	CompressorIDZlib   CompressorID = 2
	CompressorIDZstd   CompressorID = 3
)

// Compressor compresses message payloads. Encoders apply it when the
// handshake negotiated compression; the connection itself never does.
type Compressor interface {
	ID() CompressorID
	Name() string

	// Compress appends the compressed form of src to dst.
	Compress(dst, src []byte) ([]byte, error)

	// Decompress appends the decompressed form of src to dst.
	Decompress(dst, src []byte) ([]byte, error)
}

// CompressorByID returns the compressor registered for a wire id.
func CompressorByID(id CompressorID) (Compressor, bool) {
	c, ok := compressors[id]
	return c, ok
}

var compressors = map[CompressorID]Compressor{
	CompressorIDNoop:   noopCompressor{},
	CompressorIDSnappy: snappyCompressor{},
	CompressorIDZlib:   zlibCompressor{},
	CompressorIDZstd:   newZstdCompressor(),
}

type noopCompressor struct{}

func (noopCompressor) ID() CompressorID { return CompressorIDNoop }
func (noopCompressor) Name() string     { return "noop" }

func (noopCompressor) Compress(dst, src []byte) ([]byte, error) {
	return append(dst, src...), nil
}

func (noopCompressor) Decompress(dst, src []byte) ([]byte, error) {
	return append(dst, src...), nil
}

type snappyCompressor struct{}

func (snappyCompressor) ID() CompressorID { return CompressorIDSnappy }
func (snappyCompressor) Name() string     { return "snappy" }

func (snappyCompressor) Compress(dst, src []byte) ([]byte, error) {
	return append(dst, snappy.Encode(nil, src)...), nil
}

func (snappyCompressor) Decompress(dst, src []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, src)
	if err != nil {
		return dst, err
	}
	return append(dst, out...), nil
}

type zlibCompressor struct{}

func (zlibCompressor) ID() CompressorID { return CompressorIDZlib }
func (zlibCompressor) Name() string     { return "zlib" }

func (zlibCompressor) Compress(dst, src []byte) ([]byte, error) {
	var out bytes.Buffer
	w := zlib.NewWriter(&out)
	if _, err := w.Write(src); err != nil {
		return dst, err
	}
	if err := w.Close(); err != nil {
		return dst, err
	}
	return append(dst, out.Bytes()...), nil
}

func (zlibCompressor) Decompress(dst, src []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return dst, err
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return dst, err
	}
	return append(dst, out...), nil
}

type zstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdCompressor() *zstdCompressor {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic(fmt.Sprintf("dbmux: zstd encoder: %v", err))
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		panic(fmt.Sprintf("dbmux: zstd decoder: %v", err))
	}
	return &zstdCompressor{enc: enc, dec: dec}
}

func (c *zstdCompressor) ID() CompressorID { return CompressorIDZstd }
func (c *zstdCompressor) Name() string     { return "zstd" }

func (c *zstdCompressor) Compress(dst, src []byte) ([]byte, error) {
	return c.enc.EncodeAll(src, dst), nil
}

func (c *zstdCompressor) Decompress(dst, src []byte) ([]byte, error) {
	return c.dec.DecodeAll(src, dst)
}
