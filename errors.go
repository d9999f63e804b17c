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
	"errors"
	"fmt"
)

var (
	// ErrConnectionClosed is returned for traffic attempted after the
	// connection has failed.
	ErrConnectionClosed = errors.New("the connection has been closed")

	// ErrConnectionNotOpen is returned for traffic attempted before
	// the connection reached the initializing state.
	ErrConnectionNotOpen = errors.New("the connection is not open")

	// ErrConnectionDisposed is returned for any operation after Close.
	ErrConnectionDisposed = errors.New("use of closed connection")

	// errInternal marks branches that are unreachable when the
	// coordinator invariants hold.
	errInternal = errors.New("dbmux: internal error")

	// errCorrelationConflict is returned when two callers await the
	// same response id at once.
	errCorrelationConflict = errors.New("another caller is already awaiting this reply")
)

// ConnectionError wraps a transport error with the action that was in
// progress and the id of the connection it happened on.
type ConnectionError struct {
	ID     ConnID
	Action string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("an error occurred while %s (connection %s): %v", e.Action, e.ID, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// frameLengthError reports an inbound frame whose length prefix is
// outside the accepted bounds. It poisons the stream: framing is lost.
type frameLengthError struct {
	length int
}

func (e *frameLengthError) Error() string {
	return fmt.Sprintf("invalid frame length %d", e.length)
}

// wrapError attaches connection context to a transport error.
// Cancellation is surfaced as cancellation, never wrapped.
func wrapError(id ConnID, action string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &ConnectionError{ID: id, Action: action, Err: err}
}
