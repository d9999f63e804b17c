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

import "time"

// Event payloads are plain values carrying the connection id plus the
// fields specific to the event kind.

type OpeningEvent struct {
	ID   ConnID
	Addr string
}

type OpenedEvent struct {
	ID       ConnID
	Addr     string
	Duration time.Duration
}

type OpeningFailedEvent struct {
	ID   ConnID
	Addr string
	Err  error
}

type ClosingEvent struct {
	ID ConnID
}

type ClosedEvent struct {
	ID       ConnID
	Duration time.Duration
}

type FailedEvent struct {
	ID  ConnID
	Err error
}

type SendingMessagesEvent struct {
	ID         ConnID
	RequestIDs []int32
}

type SentMessagesEvent struct {
	ID         ConnID
	RequestIDs []int32
	Size       int
	Duration   time.Duration
}

type SendingMessagesFailedEvent struct {
	ID         ConnID
	RequestIDs []int32
	Err        error
}

type ReceivingMessageEvent struct {
	ID         ConnID
	ResponseTo int32
}

type ReceivedMessageEvent struct {
	ID         ConnID
	ResponseTo int32
	Size       int
	Duration   time.Duration
}

type ReceivingMessageFailedEvent struct {
	ID         ConnID
	ResponseTo int32
	Err        error
}

// ConnEvents carries optional sinks, one per event kind. A nil field
// is a silent no-op. The shape follows net/http/httptrace.ClientTrace:
// function values, no interfaces to implement.
type ConnEvents struct {
	Opening                func(OpeningEvent)
	Opened                 func(OpenedEvent)
	OpeningFailed          func(OpeningFailedEvent)
	Closing                func(ClosingEvent)
	Closed                 func(ClosedEvent)
	Failed                 func(FailedEvent)
	SendingMessages        func(SendingMessagesEvent)
	SentMessages           func(SentMessagesEvent)
	SendingMessagesFailed  func(SendingMessagesFailedEvent)
	ReceivingMessage       func(ReceivingMessageEvent)
	ReceivedMessage        func(ReceivedMessageEvent)
	ReceivingMessageFailed func(ReceivingMessageFailedEvent)
}
