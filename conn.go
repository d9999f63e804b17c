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

// Package dbmux implements a duplex binary-framed connection to a
// database server that multiplexes many concurrent logical requests
// over a single byte stream. Callers wanting a reply share one reader
// cooperatively: the first to arrive reads frames on behalf of
// everyone and hands the role on when it leaves.
package dbmux

import (
	"context"
	"io"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/sagernet/sing/common"
	"github.com/sagernet/sing/common/bufio"
	"golang.org/x/sync/semaphore"
)

// Connection lifecycle states. All transitions go through CAS on one
// atomic integer; entering stateDisposed is the only transition
// allowed from any state.
const (
	stateInitial int32 = iota
	stateConnecting
	stateInitializing
	stateOpen
	stateFailed
	stateDisposed
)

var lastLocalID atomic.Int64

// ConnID identifies a connection: a process-local monotonic value plus
// the value the server assigned during the handshake, 0 until known.
type ConnID struct {
	Local  int64
	Server int64
}

func (id ConnID) String() string {
	if id.Server == 0 {
		return strconv.FormatInt(id.Local, 10)
	}
	return strconv.FormatInt(id.Local, 10) + ":" + strconv.FormatInt(id.Server, 10)
}

// Description is what the initializer learned during the handshake.
type Description struct {
	// ServerConnectionID is the server-assigned connection number.
	ServerConnectionID int64

	// MaxFrameSize is the negotiated inbound frame bound; 0 keeps the
	// configured default.
	MaxFrameSize int

	// Compressors the server agreed to, in server preference order.
	Compressors []Compressor
}

// Initializer performs the handshake on a freshly dialed connection.
// It runs while the connection is initializing and is the only caller
// allowed to use SendMessages and ReceiveMessage in that state.
type Initializer interface {
	InitializeConnection(ctx context.Context, conn *Conn) (*Description, error)
}

// InitializerFunc adapts a function to an Initializer.
type InitializerFunc func(ctx context.Context, conn *Conn) (*Description, error)

func (f InitializerFunc) InitializeConnection(ctx context.Context, conn *Conn) (*Description, error) {
	return f(ctx, conn)
}

// Conn is a connection to one remote endpoint. All methods are safe
// for concurrent use.
type Conn struct {
	localID  int64
	serverID atomic.Int64
	addr     string
	config   *Config
	streams  StreamFactory
	init     Initializer
	encoders EncoderFactory
	events   *ConnEvents

	stream atomic.Value // io.ReadWriteCloser, stored once during open

	sendPermit  *semaphore.Weighted
	coordinator *receiveCoordinator

	bgCtx    context.Context
	bgCancel context.CancelFunc

	state    atomic.Int32
	openDone chan struct{}
	openErr  error // written before openDone closes

	description atomic.Pointer[Description]
	openedAt    atomic.Int64 // unix nanos
	lastUsedAt  atomic.Int64 // unix nanos
}

// NewConn returns an unopened connection to addr. A nil config takes
// the defaults, a nil streams factory dials plain TCP, nil events are
// a no-op. The encoder factory is consulted on every send.
func NewConn(addr string, config *Config, streams StreamFactory, init Initializer, encoders EncoderFactory, events *ConnEvents) (*Conn, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := VerifyConfig(config); err != nil {
		return nil, err
	}
	if streams == nil {
		streams = &TCPStreamFactory{ConnectTimeout: config.ConnectTimeout}
	}
	if events == nil {
		events = &ConnEvents{}
	}
	bgCtx, bgCancel := context.WithCancel(context.Background())
	c := &Conn{
		localID:     lastLocalID.Add(1),
		addr:        addr,
		config:      config,
		streams:     streams,
		init:        init,
		encoders:    encoders,
		events:      events,
		sendPermit:  semaphore.NewWeighted(1),
		coordinator: newReceiveCoordinator(),
		bgCtx:       bgCtx,
		bgCancel:    bgCancel,
		openDone:    make(chan struct{}),
	}
	now := time.Now().UnixNano()
	c.openedAt.Store(now)
	c.lastUsedAt.Store(now)
	return c, nil
}

// ID returns the connection id, including the server-assigned part
// once the handshake adopted it.
func (c *Conn) ID() ConnID {
	return ConnID{Local: c.localID, Server: c.serverID.Load()}
}

// Endpoint returns the remote address the connection dials.
func (c *Conn) Endpoint() string { return c.addr }

// Description returns the handshake result, nil before Open finished.
func (c *Conn) Description() *Description { return c.description.Load() }

// OpenedAt returns when the connection finished opening, UTC.
func (c *Conn) OpenedAt() time.Time { return time.Unix(0, c.openedAt.Load()).UTC() }

// LastUsedAt returns when the connection last moved bytes, UTC.
func (c *Conn) LastUsedAt() time.Time { return time.Unix(0, c.lastUsedAt.Load()).UTC() }

// IsExpired reports whether the connection outlived its lifetime or
// idle bounds, or left the open state.
func (c *Conn) IsExpired() bool {
	if c.state.Load() > stateOpen {
		return true
	}
	now := time.Now()
	if d := c.config.MaxLifetime; d >= 0 && now.Sub(c.OpenedAt()) > d {
		return true
	}
	if d := c.config.MaxIdleTime; d >= 0 && now.Sub(c.LastUsedAt()) > d {
		return true
	}
	return false
}

func (c *Conn) touch() { c.lastUsedAt.Store(time.Now().UnixNano()) }

func (c *Conn) loadStream() io.ReadWriteCloser {
	s, _ := c.stream.Load().(io.ReadWriteCloser)
	return s
}

func (c *Conn) maxFrameSize() int {
	if desc := c.description.Load(); desc != nil && desc.MaxFrameSize > 0 {
		return desc.MaxFrameSize
	}
	return c.config.MaxFrameSize
}

// checkOpen rejects traffic unless the connection is open or being
// initialized.
func (c *Conn) checkOpen() error {
	switch c.state.Load() {
	case stateInitializing, stateOpen:
		return nil
	case stateFailed:
		return ErrConnectionClosed
	case stateDisposed:
		return ErrConnectionDisposed
	default:
		return ErrConnectionNotOpen
	}
}

// Open dials the stream and runs the initializer. Concurrent and
// repeated calls share the single attempt and its outcome.
func (c *Conn) Open(ctx context.Context) error {
	if c.state.CompareAndSwap(stateInitial, stateConnecting) {
		c.open(ctx)
	}
	select {
	case <-c.openDone:
		return c.openErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Conn) open(ctx context.Context) {
	start := time.Now()
	if h := c.events.Opening; h != nil {
		h(OpeningEvent{ID: c.ID(), Addr: c.addr})
	}

	err := c.openHelper(ctx)
	if err == nil {
		c.openedAt.Store(time.Now().UnixNano())
		c.touch()
		if h := c.events.Opened; h != nil {
			h(OpenedEvent{ID: c.ID(), Addr: c.addr, Duration: time.Since(start)})
		}
	} else {
		err = wrapError(c.ID(), "opening a connection to the server", err)
		if h := c.events.OpeningFailed; h != nil {
			h(OpeningFailedEvent{ID: c.ID(), Addr: c.addr, Err: err})
		}
		// a concurrently disposed connection stays disposed
		c.state.CompareAndSwap(stateConnecting, stateFailed)
		c.state.CompareAndSwap(stateInitializing, stateFailed)
	}
	c.openErr = err
	close(c.openDone)
}

func (c *Conn) openHelper(ctx context.Context) error {
	stream, err := c.streams.CreateStream(ctx, c.addr)
	if err != nil {
		return err
	}
	c.stream.Store(stream)
	if !c.state.CompareAndSwap(stateConnecting, stateInitializing) {
		common.Close(stream)
		return ErrConnectionDisposed
	}

	desc := new(Description)
	if c.init != nil {
		desc, err = c.init.InitializeConnection(ctx, c)
		if err != nil {
			return err
		}
		if desc == nil {
			desc = new(Description)
		}
	}
	c.description.Store(desc)
	if desc.ServerConnectionID != 0 {
		c.serverID.Store(desc.ServerConnectionID)
	}
	if !c.state.CompareAndSwap(stateInitializing, stateOpen) {
		return ErrConnectionDisposed
	}
	return nil
}

// SendMessages encodes the batch into one output buffer and writes it
// under the send permit. Cancellation is honored between messages and
// while queueing for the permit; once the write starts it runs to
// completion or fails the connection, because a frame interrupted
// mid-write corrupts the stream.
func (c *Conn) SendMessages(ctx context.Context, messages []Message, settings *EncoderSettings) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	requestIDs := make([]int32, 0, len(messages))
	for _, m := range messages {
		requestIDs = append(requestIDs, m.RequestID())
	}
	if h := c.events.SendingMessages; h != nil {
		h(SendingMessagesEvent{ID: c.ID(), RequestIDs: requestIDs})
	}
	start := time.Now()

	buf := newBuffer(0)
	encodeFailed := func(err error) error {
		buf.Release()
		if h := c.events.SendingMessagesFailed; h != nil {
			h(SendingMessagesFailedEvent{ID: c.ID(), RequestIDs: requestIDs, Err: err})
		}
		return err
	}

	w := newBufferWriter(buf)
	for _, m := range messages {
		if err := ctx.Err(); err != nil {
			return encodeFailed(err)
		}
		if !m.ShouldBeSent() {
			continue
		}
		if err := c.encoders.EncoderFor(m, settings).WriteMessage(w, m); err != nil {
			return encodeFailed(err)
		}
		m.MarkSent()
	}
	size := buf.Len()

	if err := c.sendPermit.Acquire(ctx, 1); err != nil {
		return encodeFailed(err)
	}
	err := c.writeBuffer(buf)
	c.sendPermit.Release(1)
	buf.Release()
	if err != nil {
		err = wrapError(c.ID(), "sending a message to the server", err)
		c.connectionFailed(err)
		if h := c.events.SendingMessagesFailed; h != nil {
			h(SendingMessagesFailedEvent{ID: c.ID(), RequestIDs: requestIDs, Err: err})
		}
		return err
	}
	c.touch()
	if h := c.events.SentMessages; h != nil {
		h(SentMessagesEvent{ID: c.ID(), RequestIDs: requestIDs, Size: size, Duration: time.Since(start)})
	}
	return nil
}

// writeBuffer writes the whole buffer to the stream, scatter-gather
// when the stream supports it. Only connection shutdown can interrupt
// it, by closing the stream.
func (c *Conn) writeBuffer(b *Buffer) error {
	if err := c.bgCtx.Err(); err != nil {
		return err
	}
	if b.Len() == 0 {
		return nil
	}
	stream := c.loadStream()
	if stream == nil {
		return ErrConnectionNotOpen
	}
	vec := b.segments()
	if bw, ok := bufio.CreateVectorisedWriter(stream); ok {
		_, err := bufio.WriteVectorised(bw, vec)
		return err
	}
	for _, seg := range vec {
		if _, err := stream.Write(seg); err != nil {
			return err
		}
	}
	return nil
}

// ReceiveMessage returns the decoded reply whose response-to id equals
// responseTo, cooperating with concurrent callers over the single
// stream. Cancellation is honored while waiting and again before
// decoding.
func (c *Conn) ReceiveMessage(ctx context.Context, responseTo int32, selector EncoderSelector, settings *EncoderSettings) (Message, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if h := c.events.ReceivingMessage; h != nil {
		h(ReceivingMessageEvent{ID: c.ID(), ResponseTo: responseTo})
	}
	start := time.Now()

	receiveFailed := func(err error) (Message, error) {
		if h := c.events.ReceivingMessageFailed; h != nil {
			h(ReceivingMessageFailedEvent{ID: c.ID(), ResponseTo: responseTo, Err: err})
		}
		return nil, err
	}

	buf, err := c.receiveBuffer(ctx, responseTo)
	if err != nil {
		return receiveFailed(err)
	}
	size := buf.Len()

	if err := ctx.Err(); err != nil {
		buf.Release()
		return receiveFailed(err)
	}

	msg, err := selector(settings).ReadMessage(newBufferReader(buf))
	buf.Release()
	if err != nil {
		return receiveFailed(err)
	}
	if h := c.events.ReceivedMessage; h != nil {
		h(ReceivedMessageEvent{ID: c.ID(), ResponseTo: responseTo, Size: size, Duration: time.Since(start)})
	}
	return msg, nil
}

// receiveBuffer obtains the raw frame for responseTo, either delivered
// by the current reader or by taking the reader role itself.
func (c *Conn) receiveBuffer(ctx context.Context, responseTo int32) (*Buffer, error) {
	in, err := c.coordinator.instructions(ctx, responseTo)
	if err != nil {
		return nil, err
	}
	switch in.action {
	case actionReturnBuffer:
		return in.buffer, nil
	case actionAssumeReaderRole:
	default:
		return nil, errInternal
	}

	// Reader role: drain frames, handing foreign ones to their
	// waiters, until ours shows up. The role must transfer on every
	// exit path.
	defer c.coordinator.relinquish()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		buf, err := c.readFrame()
		if err != nil {
			err = wrapError(c.ID(), "receiving a message from the server", err)
			c.connectionFailed(err)
			return nil, err
		}
		if id := frameResponseTo(buf); id != responseTo {
			c.coordinator.dispatch(id, buf)
			continue
		}
		return buf, nil
	}
}

// readFrame reads one length-prefixed frame into a fresh buffer. Raw
// reads run under the connection lifetime, not a caller context:
// abandoning a partial frame would lose stream framing.
func (c *Conn) readFrame() (*Buffer, error) {
	if err := c.bgCtx.Err(); err != nil {
		return nil, err
	}
	stream := c.loadStream()
	if stream == nil {
		return nil, ErrConnectionNotOpen
	}
	var prefix framePrefix
	if _, err := io.ReadFull(stream, prefix[:]); err != nil {
		return nil, err
	}
	length := prefix.Length()
	if length < minFrameSize || length > c.maxFrameSize() {
		return nil, &frameLengthError{length: length}
	}
	buf := newBuffer(length)
	buf.WriteAt(prefix[:], 0)
	for off := framePrefixSize; off < length; {
		seg := buf.Segment(off)
		if _, err := io.ReadFull(stream, seg); err != nil {
			buf.Release()
			return nil, err
		}
		off += len(seg)
	}
	buf.MakeReadOnly()
	c.touch()
	return buf, nil
}

// connectionFailed latches the failed state; only the first transport
// error flips the state and emits the event.
func (c *Conn) connectionFailed(err error) {
	if c.state.CompareAndSwap(stateOpen, stateFailed) ||
		c.state.CompareAndSwap(stateInitializing, stateFailed) {
		if h := c.events.Failed; h != nil {
			h(FailedEvent{ID: c.ID(), Err: err})
		}
	}
}

// Close disposes the connection. It is idempotent and succeeds from
// any state: it cancels the background context, releases unclaimed
// pending buffers and closes the stream, which unblocks in-flight raw
// reads and writes. Stream close errors are swallowed.
func (c *Conn) Close() error {
	for {
		old := c.state.Load()
		if old == stateDisposed {
			return nil
		}
		if c.state.CompareAndSwap(old, stateDisposed) {
			break
		}
	}
	if h := c.events.Closing; h != nil {
		h(ClosingEvent{ID: c.ID()})
	}
	start := time.Now()
	c.bgCancel()
	c.coordinator.dispose()
	if stream := c.loadStream(); stream != nil {
		common.Close(stream)
	}
	if h := c.events.Closed; h != nil {
		h(ClosedEvent{ID: c.ID(), Duration: time.Since(start)})
	}
	return nil
}
