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

// Package sphero is a client driver for robots speaking the Sphero v1
// binary protocol (SPRK, SPRK+, Sphero 2.0) over a byte-oriented
// transport. It frames commands, matches responses to requests by
// sequence number, and routes robot-initiated async messages to
// registered listeners.
package sphero

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

const (
	defaultTimeout        = 1 * time.Second
	defaultMaxInFlight    = 16
	defaultListenerBuffer = 8

	// maxInFlightLimit is a hard ceiling: the 8-bit sequence space cannot
	// correlate more concurrent commands than this, and must stay well
	// below 256 so wrapped sequence numbers never collide with live ones.
	maxInFlightLimit = 128

	readChunkSize = 512
)

// DeviceConfig contains configuration options for the Device
type DeviceConfig struct {
	// Timeout is the per-command response deadline, armed when the
	// command is registered with the correlator.
	Timeout time.Duration
	// MaxInFlight caps concurrently pending commands.
	MaxInFlight int
	// FailFast makes Send return ErrBusy when the in-flight cap is
	// reached instead of blocking until a slot frees up.
	FailFast bool
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		Timeout:     defaultTimeout,
		MaxInFlight: defaultMaxInFlight,
	}
}

// Option configures a Device at construction time.
type Option func(*Device) error

// WithTimeout sets the per-command response deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Device) error {
		if timeout <= 0 {
			return fmt.Errorf("invalid timeout %v", timeout)
		}
		d.config.Timeout = timeout
		return nil
	}
}

// WithMaxInFlight caps the number of concurrently pending commands. The
// cap must stay well below the 256-value sequence space.
func WithMaxInFlight(n int) Option {
	return func(d *Device) error {
		if n < 1 || n > maxInFlightLimit {
			return fmt.Errorf("max in-flight must be 1..%d, got %d", maxInFlightLimit, n)
		}
		d.config.MaxInFlight = n
		return nil
	}
}

// WithFailFast makes Send fail with ErrBusy at the in-flight cap instead
// of blocking.
func WithFailFast() Option {
	return func(d *Device) error {
		d.config.FailFast = true
		return nil
	}
}

// Device is one connection to one robot: it owns the sequence counter,
// the pending-request table, the listener table, and the inbound read
// loop. There is no process-wide state; open several Devices to drive
// several robots at once.
//
// Send may be called from any number of goroutines. The inbound loop runs
// independently; the correlator and listener table are the only state
// shared between them.
type Device struct {
	transport Transport
	config    *DeviceConfig
	seq       *sequencer
	corr      *correlator
	router    *router
	slots     chan struct{}
	stop      chan struct{}
	loopDone  chan struct{}
	connected atomic.Bool
}

// New creates a Device on top of an open transport. Call Connect to start
// the inbound loop before issuing commands.
func New(transport Transport, opts ...Option) (*Device, error) {
	d := &Device{
		transport: transport,
		config:    DefaultDeviceConfig(),
		seq:       &sequencer{},
		corr:      newCorrelator(),
		router:    newRouter(),
	}

	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	d.slots = make(chan struct{}, d.config.MaxInFlight)
	return d, nil
}

// Connect resets the sequence counter and starts the inbound loop.
func (d *Device) Connect() error {
	if !d.transport.IsConnected() {
		return ErrNotConnected
	}
	if !d.connected.CompareAndSwap(false, true) {
		return ErrAlreadyConnected
	}

	d.seq.reset()
	d.stop = make(chan struct{})
	d.loopDone = make(chan struct{})
	go d.readLoop()

	debugf("connected via %s transport", d.transport.Type())
	return nil
}

// Close stops the inbound loop, wakes every pending caller with
// ErrCancelled, closes all listeners, and closes the transport.
func (d *Device) Close() error {
	if !d.connected.CompareAndSwap(true, false) {
		return nil
	}

	close(d.stop)
	err := d.transport.Close()
	<-d.loopDone

	d.corr.cancelAll(ErrCancelled)
	d.router.closeAll()

	if err != nil {
		return fmt.Errorf("closing transport: %w", err)
	}
	return nil
}

// Send transmits one command and blocks until its response arrives, the
// per-command timeout fires, ctx is cancelled, or the connection closes.
// The returned frame always carries the command's sequence number; its
// MRSP code is not interpreted here (see DeviceError and the typed
// command methods for that).
//
// No retries happen at this level: each command is transmitted exactly
// once and resending is the caller's decision.
func (d *Device) Send(ctx context.Context, did, cid byte, payload []byte) (*Frame, error) {
	if !d.connected.Load() {
		return nil, ErrNotConnected
	}

	data, seq, err := d.encodeNext(did, cid, payload)
	if err != nil {
		return nil, err
	}

	if err := d.acquireSlot(ctx); err != nil {
		return nil, err
	}
	defer func() { <-d.slots }()

	p, err := d.corr.register(seq, d.config.Timeout)
	if err != nil {
		return nil, err
	}

	debugFrame("->", data)
	if err := d.transport.Send(ctx, data); err != nil {
		d.corr.cancelRequest(p)
		return nil, &TransportError{
			Op:        "Send",
			Err:       err,
			Type:      GetErrorType(err),
			Retryable: IsRetryable(err),
		}
	}

	return p.wait(ctx, d.corr)
}

// encodeNext allocates a sequence number and encodes the frame. Encoding
// happens before a correlator slot is taken so a too-large payload is
// rejected without side effects.
func (d *Device) encodeNext(did, cid byte, payload []byte) ([]byte, byte, error) {
	seq := d.seq.next()
	data, err := EncodeCommand(did, cid, seq, payload)
	if err != nil {
		return nil, 0, err
	}
	return data, seq, nil
}

func (d *Device) acquireSlot(ctx context.Context) error {
	if d.config.FailFast {
		select {
		case d.slots <- struct{}{}:
			return nil
		default:
			return ErrBusy
		}
	}

	select {
	case d.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	case <-d.stop:
		return ErrCancelled
	}
}

// Listen registers an async notification listener. A zero-value Filter
// receives everything the router sees; restrict with Filter.IDCodes.
// buffer <= 0 selects a small default.
func (d *Device) Listen(filter Filter, buffer int) *Listener {
	return d.router.listen(filter, buffer)
}

// readLoop is the inbound half of the engine: it pulls raw chunks off the
// transport, reassembles frames across arbitrary chunk boundaries, and
// classifies each completed frame exactly once. It never blocks on a
// caller or a listener.
func (d *Device) readLoop() {
	defer close(d.loopDone)

	buf := make([]byte, readChunkSize)
	rx := make([]byte, 0, 2*readChunkSize)

	for {
		select {
		case <-d.stop:
			return
		default:
		}

		n, err := d.transport.Read(buf)
		if err != nil {
			select {
			case <-d.stop:
				return
			default:
			}
			debugf("read loop terminating: %v", err)
			d.corr.cancelAll(&TransportError{
				Op:   "Read",
				Err:  err,
				Type: ErrorTypePermanent,
			})
			return
		}
		if n == 0 {
			continue
		}

		rx = append(rx, buf[:n]...)
		rx = d.drain(rx)
	}
}

// drain decodes as many complete frames as rx holds, returning the
// remaining tail. Corrupted input is resynchronized by discarding one
// byte at a time, so a single flipped byte costs one frame at most, not
// the whole buffer.
func (d *Device) drain(rx []byte) []byte {
	for len(rx) > 0 {
		f, n, err := DecodeFrame(rx)
		switch {
		case err == nil:
			debugFrame("<-", rx[:n])
			rx = rx[n:]
			d.route(f)
		case errors.Is(err, ErrNeedMoreData):
			return rx
		default:
			debugf("resync: dropping byte %02X (%v)", rx[0], err)
			rx = rx[1:]
		}
	}
	return rx
}

// route classifies one frame: a response either resolves the pending
// command holding its sequence number or, if nothing is waiting, falls
// through to the notification router (the robot reuses part of the
// sequence space for unsolicited traffic, so an unmatched response is not
// necessarily garbage). A frame never takes both paths.
func (d *Device) route(f *Frame) {
	if !f.IsAsync() && d.corr.complete(f.Seq, f) {
		return
	}
	debugf("<- %s", f)
	d.router.dispatch(f)
}

// InFlight returns the number of commands currently awaiting a response.
func (d *Device) InFlight() int {
	return d.corr.inFlight()
}

// Transport returns the underlying transport.
func (d *Device) Transport() Transport {
	return d.transport
}
