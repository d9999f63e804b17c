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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func takeReaderRole(t *testing.T, rc *receiveCoordinator, responseTo int32) {
	t.Helper()
	in, err := rc.instructions(context.Background(), responseTo)
	require.NoError(t, err)
	require.Equal(t, actionAssumeReaderRole, in.action)
}

func TestCoordinatorFirstCallerAssumesRole(t *testing.T) {
	rc := newReceiveCoordinator()
	takeReaderRole(t, rc, 1)
	awaiters, pending, assigned := rc.snapshot()
	assert.Zero(t, awaiters)
	assert.Zero(t, pending)
	assert.True(t, assigned)
}

func TestCoordinatorPendingBufferClaimed(t *testing.T) {
	rc := newReceiveCoordinator()
	takeReaderRole(t, rc, 1)

	buf := newBuffer(32)
	rc.dispatch(2, buf)
	_, pending, _ := rc.snapshot()
	require.Equal(t, 1, pending)

	in, err := rc.instructions(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, actionReturnBuffer, in.action)
	require.Same(t, buf, in.buffer)

	awaiters, pending, _ := rc.snapshot()
	assert.Zero(t, awaiters)
	assert.Zero(t, pending)
	in.buffer.Release()
}

func TestCoordinatorWaiterDelivery(t *testing.T) {
	rc := newReceiveCoordinator()
	takeReaderRole(t, rc, 1)

	got := make(chan receiveInstruction, 1)
	go func() {
		in, err := rc.instructions(context.Background(), 2)
		require.NoError(t, err)
		got <- in
	}()
	require.Eventually(t, func() bool {
		awaiters, _, _ := rc.snapshot()
		return awaiters == 1
	}, time.Second, time.Millisecond)

	buf := newBuffer(32)
	rc.dispatch(2, buf)

	in := <-got
	require.Equal(t, actionReturnBuffer, in.action)
	require.Same(t, buf, in.buffer)
	awaiters, pending, _ := rc.snapshot()
	assert.Zero(t, awaiters)
	assert.Zero(t, pending)
	in.buffer.Release()
}

func TestCoordinatorDuplicateWaiter(t *testing.T) {
	rc := newReceiveCoordinator()
	takeReaderRole(t, rc, 1)

	go rc.instructions(context.Background(), 2)
	require.Eventually(t, func() bool {
		awaiters, _, _ := rc.snapshot()
		return awaiters == 1
	}, time.Second, time.Millisecond)

	_, err := rc.instructions(context.Background(), 2)
	require.ErrorIs(t, err, errCorrelationConflict)

	rc.relinquish() // unblock the parked waiter
}

func TestCoordinatorCancelledWaiterTolerated(t *testing.T) {
	rc := newReceiveCoordinator()
	takeReaderRole(t, rc, 1)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		_, err := rc.instructions(ctx, 2)
		result <- err
	}()
	require.Eventually(t, func() bool {
		awaiters, _, _ := rc.snapshot()
		return awaiters == 1
	}, time.Second, time.Millisecond)

	cancel()
	require.ErrorIs(t, <-result, context.Canceled)

	// delivering to the dead awaiter releases the buffer instead of
	// leaking or parking it
	buf := newBuffer(32)
	rc.dispatch(2, buf)
	assert.True(t, buf.released)
	awaiters, pending, _ := rc.snapshot()
	assert.Zero(t, awaiters)
	assert.Zero(t, pending)
}

func TestCoordinatorDeliveryBeatsCancellation(t *testing.T) {
	rc := newReceiveCoordinator()
	takeReaderRole(t, rc, 1)

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		in  receiveInstruction
		err error
	}
	got := make(chan result, 1)
	go func() {
		in, err := rc.instructions(ctx, 2)
		got <- result{in, err}
	}()
	require.Eventually(t, func() bool {
		awaiters, _, _ := rc.snapshot()
		return awaiters == 1
	}, time.Second, time.Millisecond)

	buf := newBuffer(32)
	rc.dispatch(2, buf)
	cancel()

	// the delivery committed first, so the waiter owns the buffer no
	// matter which wakeup wins
	r := <-got
	require.NoError(t, r.err)
	require.Equal(t, actionReturnBuffer, r.in.action)
	require.Same(t, buf, r.in.buffer)
	assert.False(t, buf.released)
	buf.Release()
}

func TestCoordinatorRelinquishHandsRoleToWaiter(t *testing.T) {
	rc := newReceiveCoordinator()
	takeReaderRole(t, rc, 1)

	got := make(chan receiveInstruction, 1)
	go func() {
		in, err := rc.instructions(context.Background(), 5)
		require.NoError(t, err)
		got <- in
	}()
	require.Eventually(t, func() bool {
		awaiters, _, _ := rc.snapshot()
		return awaiters == 1
	}, time.Second, time.Millisecond)

	rc.relinquish()
	in := <-got
	require.Equal(t, actionAssumeReaderRole, in.action)

	awaiters, _, assigned := rc.snapshot()
	assert.Zero(t, awaiters)
	assert.True(t, assigned)
}

func TestCoordinatorRelinquishSkipsCancelledWaiter(t *testing.T) {
	rc := newReceiveCoordinator()
	takeReaderRole(t, rc, 1)

	ctx2, cancel2 := context.WithCancel(context.Background())
	dead := make(chan error, 1)
	go func() {
		_, err := rc.instructions(ctx2, 2)
		dead <- err
	}()
	live := make(chan receiveInstruction, 1)
	go func() {
		in, err := rc.instructions(context.Background(), 3)
		require.NoError(t, err)
		live <- in
	}()
	require.Eventually(t, func() bool {
		awaiters, _, _ := rc.snapshot()
		return awaiters == 2
	}, time.Second, time.Millisecond)

	cancel2()
	require.ErrorIs(t, <-dead, context.Canceled)

	rc.relinquish()
	in := <-live
	require.Equal(t, actionAssumeReaderRole, in.action)

	awaiters, _, assigned := rc.snapshot()
	assert.Zero(t, awaiters)
	assert.True(t, assigned)

	rc.relinquish()
	_, _, assigned = rc.snapshot()
	assert.False(t, assigned)
}

func TestCoordinatorRelinquishClearsRole(t *testing.T) {
	rc := newReceiveCoordinator()
	takeReaderRole(t, rc, 1)
	rc.relinquish()
	_, _, assigned := rc.snapshot()
	assert.False(t, assigned)

	// the next caller takes the role again
	takeReaderRole(t, rc, 2)
}

func TestCoordinatorDisposeReleasesPending(t *testing.T) {
	rc := newReceiveCoordinator()
	takeReaderRole(t, rc, 1)

	parked := newBuffer(32)
	rc.dispatch(2, parked)
	rc.dispose()
	assert.True(t, parked.released)

	// a late frame after dispose is released immediately
	late := newBuffer(16)
	rc.dispatch(3, late)
	assert.True(t, late.released)
	_, pending, _ := rc.snapshot()
	assert.Zero(t, pending)
}
