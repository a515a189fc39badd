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

// Package serial implements the sphero.Transport interface over a serial
// port. Original Sphero robots speak Bluetooth Classic SPP, which the OS
// exposes as a TTY once bound (rfcomm bind on Linux, a COM port on
// Windows), so a plain serial port is the most portable way onto the
// robot.
package serial

import (
	"context"
	"fmt"
	"sync"
	"time"

	sphero "github.com/orbforge/go-sphero"
	goserial "go.bug.st/serial"
)

const (
	baudRate           = 115200
	defaultReadTimeout = 50 * time.Millisecond
)

// Transport implements the sphero.Transport interface for serial ports.
type Transport struct {
	port      goserial.Port
	portName  string
	writeMu   sync.Mutex
	stateMu   sync.Mutex
	connected bool
}

// New opens portName (e.g. /dev/rfcomm0, COM5) at the robot's fixed
// 115200 8N1 and returns a connected transport.
func New(portName string) (*Transport, error) {
	port, err := goserial.Open(portName, &goserial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   goserial.NoParity,
		StopBits: goserial.OneStopBit,
	})
	if err != nil {
		return nil, &sphero.TransportError{
			Op:        "Open",
			Port:      portName,
			Err:       err,
			Type:      sphero.ErrorTypePermanent,
			Retryable: false,
		}
	}

	if err := port.SetReadTimeout(defaultReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", portName, err)
	}

	// Drop whatever the robot pushed while nobody was listening
	_ = port.ResetInputBuffer()

	return &Transport{
		port:      port,
		portName:  portName,
		connected: true,
	}, nil
}

// newFromPort wires a transport onto an already-open port. For tests.
func newFromPort(port goserial.Port, portName string) *Transport {
	return &Transport{
		port:      port,
		portName:  portName,
		connected: true,
	}
}

// Send implements sphero.Transport. Writes are serialized so two
// concurrent commands cannot interleave their frame bytes on the wire.
func (t *Transport) Send(ctx context.Context, data []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if !t.IsConnected() {
		return sphero.ErrTransportClosed
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	for off := 0; off < len(data); {
		n, err := t.port.Write(data[off:])
		if err != nil {
			return &sphero.TransportError{
				Op:        "Write",
				Port:      t.portName,
				Err:       err,
				Type:      sphero.GetErrorType(err),
				Retryable: true,
			}
		}
		off += n
	}
	return nil
}

// Read implements sphero.Transport. go.bug.st/serial returns (0, nil)
// when the read timeout elapses with nothing pending, which is exactly
// the polling contract the inbound loop expects.
func (t *Transport) Read(p []byte) (int, error) {
	if !t.IsConnected() {
		return 0, sphero.ErrTransportClosed
	}

	n, err := t.port.Read(p)
	if err != nil {
		return n, &sphero.TransportError{
			Op:        "Read",
			Port:      t.portName,
			Err:       err,
			Type:      sphero.GetErrorType(err),
			Retryable: false,
		}
	}
	return n, nil
}

// SetReadTimeout implements sphero.Transport.
func (t *Transport) SetReadTimeout(timeout time.Duration) error {
	if err := t.port.SetReadTimeout(timeout); err != nil {
		return fmt.Errorf("failed to set read timeout on %s: %w", t.portName, err)
	}
	return nil
}

// Close implements sphero.Transport.
func (t *Transport) Close() error {
	t.stateMu.Lock()
	if !t.connected {
		t.stateMu.Unlock()
		return nil
	}
	t.connected = false
	t.stateMu.Unlock()

	if err := t.port.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", t.portName, err)
	}
	return nil
}

// IsConnected implements sphero.Transport.
func (t *Transport) IsConnected() bool {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	return t.connected
}

// Type implements sphero.Transport.
func (*Transport) Type() sphero.TransportType {
	return sphero.TransportSerial
}

// PortName returns the underlying port path.
func (t *Transport) PortName() string {
	return t.portName
}
