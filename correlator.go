// Copyright 2026 The go-sphero Authors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sphero

import (
	"context"
	"fmt"
	"time"

	"github.com/orbforge/go-sphero/internal/syncutil"
)

// requestState is the lifecycle of one in-flight command. Every state
// after statePending is terminal.
type requestState int

const (
	statePending requestState = iota
	stateResolved
	stateTimedOut
	stateCancelled
)

// pendingRequest is the bookkeeping record for one command awaiting its
// response. The completion slot (frame/err) is written exactly once, under
// the correlator mutex, before done is closed; after done the waiting
// caller reads it lock-free.
type pendingRequest struct {
	submitted time.Time
	timer     *time.Timer
	done      chan struct{}
	frame     *Frame
	err       error
	state     requestState
	seq       byte
}

// wait blocks the calling goroutine until the request reaches a terminal
// state or ctx is cancelled. Cancelling ctx abandons the request; a
// response arriving later is discarded by the correlator.
func (p *pendingRequest) wait(ctx context.Context, c *correlator) (*Frame, error) {
	select {
	case <-p.done:
		return p.frame, p.err
	case <-ctx.Done():
		c.cancelRequest(p)
		// The completion may have won the race with our cancel; prefer it.
		select {
		case <-p.done:
			if p.state == stateResolved {
				return p.frame, p.err
			}
		default:
		}
		return nil, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}
}

// correlator owns the set of in-flight commands and matches incoming
// response frames to them by sequence number. It is one of the two pieces
// of shared state between the inbound loop and callers (the other being
// the listener table), so everything here runs under a single mutex.
type correlator struct {
	mu      syncutil.Mutex
	pending map[byte]*pendingRequest
}

func newCorrelator() *correlator {
	return &correlator{
		pending: make(map[byte]*pendingRequest),
	}
}

// register creates a pendingRequest for seq and arms its timeout. Entries
// in a terminal state are tombstones left behind so that late responses
// can be recognized and discarded; a new registration replaces them. A
// live entry for the same sequence means the allocator and the in-flight
// cap have been violated, which is a logic error, not a runtime condition.
func (c *correlator) register(seq byte, timeout time.Duration) (*pendingRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.pending[seq]; ok && prev.state == statePending {
		return nil, fmt.Errorf("%w: seq %02X", ErrSequenceInUse, seq)
	}

	p := &pendingRequest{
		seq:       seq,
		submitted: time.Now(),
		done:      make(chan struct{}),
		state:     statePending,
	}
	if timeout > 0 {
		p.timer = time.AfterFunc(timeout, func() {
			c.expire(seq)
		})
	}
	c.pending[seq] = p
	return p, nil
}

// complete delivers a response frame to the request registered under its
// sequence number. The return value reports whether the frame was
// consumed: false means no request (live or tombstoned) knows this
// sequence and the frame should be offered to the notification router
// instead. A frame for an already timed-out or cancelled request is
// consumed but discarded, since the caller has moved on.
func (c *correlator) complete(seq byte, f *Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[seq]
	if !ok {
		return false
	}
	if p.state != statePending {
		debugf("discarding late response for seq %02X (state %d)", seq, p.state)
		return true
	}

	p.stopTimer()
	p.state = stateResolved
	p.frame = f
	close(p.done)
	return true
}

// expire transitions a pending request to TimedOut. Fired by the timer
// armed at registration. Idempotent: if complete already won the race for
// this sequence, expire is a no-op.
func (c *correlator) expire(seq byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[seq]
	if !ok || p.state != statePending {
		return
	}

	p.state = stateTimedOut
	p.err = fmt.Errorf("%w: seq %02X after %v", ErrTimeout, seq, time.Since(p.submitted).Round(time.Millisecond))
	close(p.done)
}

// cancelRequest abandons one pending request, waking its caller with
// ErrCancelled. The request is matched by identity, not sequence number:
// a stale handle whose sequence has since been resolved and reallocated
// to a newer command must not cancel that newer command. No-op for
// requests already in a terminal state.
func (c *correlator) cancelRequest(p *pendingRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.pending[p.seq]; !ok || cur != p || p.state != statePending {
		return
	}

	p.stopTimer()
	p.state = stateCancelled
	p.err = ErrCancelled
	close(p.done)
}

// cancelAll abandons every pending request, waking each caller with err.
// Called on disconnect so no caller is left waiting on a dead link. The
// tombstones are dropped too: after a reconnect the sequence space starts
// fresh.
func (c *correlator) cancelAll(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		err = ErrCancelled
	}
	for _, p := range c.pending {
		if p.state != statePending {
			continue
		}
		p.stopTimer()
		p.state = stateCancelled
		p.err = err
		close(p.done)
	}
	c.pending = make(map[byte]*pendingRequest)
}

// inFlight returns the number of live (non-tombstone) requests.
func (c *correlator) inFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, p := range c.pending {
		if p.state == statePending {
			n++
		}
	}
	return n
}

func (p *pendingRequest) stopTimer() {
	if p.timer != nil {
		p.timer.Stop()
	}
}
