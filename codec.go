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

import "io"

// Message is one logical request or reply. The connection never looks
// inside a message; encoders do.
type Message interface {
	// RequestID identifies the message; replies carry it back as
	// their response-to id.
	RequestID() int32

	// ShouldBeSent gates the message out of a batch at encode time.
	ShouldBeSent() bool

	// MarkSent records that the message was written into an outbound
	// frame.
	MarkSent()
}

// EncoderSettings is passed through to encoders untouched.
type EncoderSettings struct {
	// MaxDocumentSize bounds a single document inside a message.
	MaxDocumentSize int

	// Compressors the encoder may apply to payloads, in preference
	// order.
	Compressors []Compressor
}

// MessageEncoder reads and writes messages of one wire format.
type MessageEncoder interface {
	ReadMessage(r io.Reader) (Message, error)
	WriteMessage(w io.Writer, m Message) error
}

// EncoderFactory yields the encoder for an outbound message.
type EncoderFactory interface {
	EncoderFor(m Message, settings *EncoderSettings) MessageEncoder
}

// EncoderFactoryFunc adapts a function to an EncoderFactory.
type EncoderFactoryFunc func(m Message, settings *EncoderSettings) MessageEncoder

func (f EncoderFactoryFunc) EncoderFor(m Message, settings *EncoderSettings) MessageEncoder {
	return f(m, settings)
}

// EncoderSelector picks the encoder used to decode a reply.
type EncoderSelector func(settings *EncoderSettings) MessageEncoder
