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
	"sync"
	"time"
)

// Transport is the byte-level link to the robot. Implementations exist
// for Bluetooth RFCOMM bound as a serial port (transport/serial), raw
// RFCOMM sockets on Linux (transport/rfcomm), and in-memory test doubles.
//
// The driver assumes nothing beyond byte-stream semantics: reads may
// return arbitrary chunks cut at any boundary, and bytes may arrive
// corrupted. Framing and integrity are handled above.
type Transport interface {
	// Send writes one encoded frame to the link. It must be safe for
	// concurrent use; the driver may transmit from multiple goroutines.
	Send(ctx context.Context, data []byte) error

	// Read fills p with whatever bytes are available, blocking up to the
	// configured read timeout. A timeout returns (0, nil) so the inbound
	// loop can poll for shutdown between reads.
	Read(p []byte) (int, error)

	// SetReadTimeout bounds how long a single Read may block.
	SetReadTimeout(timeout time.Duration) error

	// Close closes the transport connection
	Close() error

	// IsConnected returns true if the transport is connected
	IsConnected() bool

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportSerial is a Bluetooth RFCOMM channel bound as a serial
	// port (/dev/rfcommN, COMn).
	TransportSerial TransportType = "serial"
	// TransportRFCOMM is a direct RFCOMM socket (Linux only).
	TransportRFCOMM TransportType = "rfcomm"
	// TransportMock is an in-memory transport for testing.
	TransportMock TransportType = "mock"
	// TransportSimulator is the wire-level virtual robot.
	TransportSimulator TransportType = "simulator"
)

// MockTransport is an in-memory Transport for unit tests. Outbound frames
// are captured for inspection; inbound bytes are injected by the test and
// handed to Read in the injected chunk sizes, which makes partial-frame
// delivery trivial to exercise.
type MockTransport struct {
	inbound   chan []byte
	leftover  []byte
	sent      [][]byte
	sendErr   error
	onSend    func(data []byte)
	timeout   time.Duration
	mu        sync.Mutex
	connected bool
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		inbound:   make(chan []byte, 64),
		timeout:   50 * time.Millisecond,
		connected: true,
	}
}

// Send implements Transport
func (m *MockTransport) Send(ctx context.Context, data []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return ErrTransportClosed
	}
	if m.sendErr != nil {
		err := m.sendErr
		m.mu.Unlock()
		return err
	}
	m.sent = append(m.sent, append([]byte(nil), data...))
	onSend := m.onSend
	m.mu.Unlock()

	if onSend != nil {
		onSend(data)
	}
	return nil
}

// Read implements Transport. Returns one injected chunk per call, or
// (0, nil) after the read timeout with nothing pending.
func (m *MockTransport) Read(p []byte) (int, error) {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return 0, ErrTransportClosed
	}
	if len(m.leftover) > 0 {
		n := copy(p, m.leftover)
		m.leftover = m.leftover[n:]
		m.mu.Unlock()
		return n, nil
	}
	timeout := m.timeout
	m.mu.Unlock()

	select {
	case chunk, ok := <-m.inbound:
		if !ok {
			return 0, ErrTransportClosed
		}
		n := copy(p, chunk)
		if n < len(chunk) {
			m.mu.Lock()
			m.leftover = append(m.leftover, chunk[n:]...)
			m.mu.Unlock()
		}
		return n, nil
	case <-time.After(timeout):
		return 0, nil
	}
}

// SetReadTimeout implements Transport
func (m *MockTransport) SetReadTimeout(timeout time.Duration) error {
	m.mu.Lock()
	m.timeout = timeout
	m.mu.Unlock()
	return nil
}

// Close implements Transport
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected {
		m.connected = false
		close(m.inbound)
	}
	return nil
}

// IsConnected implements Transport
func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Type implements Transport
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// Test helper methods

// Inject queues bytes for delivery to the next Read call. Each call is
// one read chunk; split a frame across calls to exercise reassembly.
func (m *MockTransport) Inject(data ...[]byte) {
	for _, chunk := range data {
		m.inbound <- append([]byte(nil), chunk...)
	}
}

// SetSendError makes subsequent Send calls fail with err.
func (m *MockTransport) SetSendError(err error) {
	m.mu.Lock()
	m.sendErr = err
	m.mu.Unlock()
}

// OnSend installs a hook invoked after every successful Send, outside the
// transport lock. Used by tests to auto-respond to outgoing frames.
func (m *MockTransport) OnSend(fn func(data []byte)) {
	m.mu.Lock()
	m.onSend = fn
	m.mu.Unlock()
}

// Sent returns copies of every frame written so far.
func (m *MockTransport) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sent))
	copy(out, m.sent)
	return out
}
