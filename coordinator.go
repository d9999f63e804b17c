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
	"sync"
	"sync/atomic"
)

// The receive coordinator arbitrates the single reader role among any
// number of callers, each waiting for the frame whose response-to id
// matches theirs. There is no reader goroutine: the first caller to
// arrive reads the stream on behalf of everyone and hands the role on
// when it leaves.
//
// Invariants, all under one mutex:
//   - per response id, at most one of {awaiter, pending buffer} exists
//   - if no caller holds the reader role, there are no awaiters
//   - a pending buffer is owned by the coordinator until claimed

type receiveAction int

const (
	actionReturnBuffer receiveAction = iota
	actionAssumeReaderRole
)

type receiveInstruction struct {
	action receiveAction
	buffer *Buffer
}

// awaiter states
const (
	awaiterPending int32 = iota
	awaiterCompleted
	awaiterCancelled
)

// awaiter is a one-shot slot. Exactly one of complete or cancel wins
// the CAS; the loser of a delivery race keeps ownership of whatever it
// was trying to hand over.
type awaiter struct {
	state atomic.Int32
	ch    chan receiveInstruction
}

func newAwaiter() *awaiter {
	return &awaiter{ch: make(chan receiveInstruction, 1)}
}

func (a *awaiter) complete(in receiveInstruction) bool {
	if !a.state.CompareAndSwap(awaiterPending, awaiterCompleted) {
		return false
	}
	a.ch <- in
	return true
}

func (a *awaiter) cancel() bool {
	return a.state.CompareAndSwap(awaiterPending, awaiterCancelled)
}

type receiveCoordinator struct {
	mu               sync.Mutex
	awaiters         map[int32]*awaiter
	pending          map[int32]*Buffer
	receiverAssigned bool
	disposed         bool
}

func newReceiveCoordinator() *receiveCoordinator {
	return &receiveCoordinator{
		awaiters: make(map[int32]*awaiter),
		pending:  make(map[int32]*Buffer),
	}
}

// instructions tells a caller how to obtain the frame for responseTo:
// take a buffer that already arrived, assume the reader role, or wait
// for the current role holder to deliver.
func (rc *receiveCoordinator) instructions(ctx context.Context, responseTo int32) (receiveInstruction, error) {
	rc.mu.Lock()
	if buf, ok := rc.pending[responseTo]; ok {
		delete(rc.pending, responseTo)
		rc.mu.Unlock()
		return receiveInstruction{action: actionReturnBuffer, buffer: buf}, nil
	}
	if !rc.receiverAssigned {
		rc.receiverAssigned = true
		rc.mu.Unlock()
		return receiveInstruction{action: actionAssumeReaderRole}, nil
	}
	if _, ok := rc.awaiters[responseTo]; ok {
		rc.mu.Unlock()
		return receiveInstruction{}, errCorrelationConflict
	}
	aw := newAwaiter()
	rc.awaiters[responseTo] = aw
	rc.mu.Unlock()

	select {
	case in := <-aw.ch:
		return in, nil
	case <-ctx.Done():
		if aw.cancel() {
			return receiveInstruction{}, ctx.Err()
		}
		// A delivery committed before the cancel landed. Take it; the
		// caller hits its next cancellation check immediately after,
		// still owning whatever arrived.
		return <-aw.ch, nil
	}
}

// dispatch hands a received buffer to the awaiter for its id, or parks
// it as pending. Ownership of the buffer moves with it; if the awaiter
// turns out to be cancelled, the buffer is released here.
func (rc *receiveCoordinator) dispatch(responseTo int32, buf *Buffer) {
	rc.mu.Lock()
	aw, ok := rc.awaiters[responseTo]
	if ok {
		delete(rc.awaiters, responseTo)
	} else if rc.disposed {
		rc.mu.Unlock()
		buf.Release()
		return
	} else {
		rc.pending[responseTo] = buf
	}
	rc.mu.Unlock()

	if ok && !aw.complete(receiveInstruction{action: actionReturnBuffer, buffer: buf}) {
		buf.Release()
	}
}

// relinquish passes the reader role to any live awaiter, or clears it
// when nobody is waiting. A role grant must never land on a cancelled
// awaiter and die with it, so dead awaiters are skipped.
func (rc *receiveCoordinator) relinquish() {
	for {
		rc.mu.Lock()
		var (
			id    int32
			aw    *awaiter
			found bool
		)
		for k, v := range rc.awaiters {
			id, aw, found = k, v, true
			break
		}
		if !found {
			rc.receiverAssigned = false
			rc.mu.Unlock()
			return
		}
		delete(rc.awaiters, id)
		rc.mu.Unlock()

		if aw.complete(receiveInstruction{action: actionAssumeReaderRole}) {
			return
		}
	}
}

// dispose releases every unclaimed pending buffer and refuses new
// ones. Awaiters are left alone: they unblock through their own
// context or by inheriting the reader role and observing the stream
// error themselves.
func (rc *receiveCoordinator) dispose() {
	rc.mu.Lock()
	if rc.disposed {
		rc.mu.Unlock()
		return
	}
	rc.disposed = true
	buffers := make([]*Buffer, 0, len(rc.pending))
	for id, buf := range rc.pending {
		buffers = append(buffers, buf)
		delete(rc.pending, id)
	}
	rc.mu.Unlock()

	for _, buf := range buffers {
		buf.Release()
	}
}
