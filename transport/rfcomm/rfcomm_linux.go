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

//go:build linux

// Package rfcomm implements the sphero.Transport interface over a raw
// Bluetooth RFCOMM socket on Linux, skipping the rfcomm-bind step that
// the serial transport needs. Pairing is still the caller's problem
// (bluetoothctl or similar); this package only opens the data channel.
package rfcomm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	sphero "github.com/orbforge/go-sphero"
	"golang.org/x/sys/unix"
)

// defaultChannel is the SPP channel Sphero robots listen on.
const defaultChannel = 1

// Transport implements the sphero.Transport interface for RFCOMM sockets.
type Transport struct {
	addr      string
	fd        int
	timeout   time.Duration
	writeMu   sync.Mutex
	stateMu   sync.Mutex
	connected bool
}

// New connects to the robot at the given Bluetooth address
// ("AA:BB:CC:DD:EE:FF") on the default SPP channel.
func New(addr string) (*Transport, error) {
	return NewWithChannel(addr, defaultChannel)
}

// NewWithChannel connects on a specific RFCOMM channel.
func NewWithChannel(addr string, channel uint8) (*Transport, error) {
	bdaddr, err := parseAddress(addr)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM, unix.BTPROTO_RFCOMM)
	if err != nil {
		return nil, &sphero.TransportError{
			Op:        "Socket",
			Port:      addr,
			Err:       err,
			Type:      sphero.ErrorTypePermanent,
			Retryable: false,
		}
	}

	sa := &unix.SockaddrRFCOMM{Addr: bdaddr, Channel: channel}
	if err := unix.Connect(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, &sphero.TransportError{
			Op:        "Connect",
			Port:      addr,
			Err:       err,
			Type:      sphero.ErrorTypeTransient,
			Retryable: true,
		}
	}

	t := &Transport{
		addr:      addr,
		fd:        fd,
		timeout:   50 * time.Millisecond,
		connected: true,
	}
	if err := t.applyReadTimeout(t.timeout); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return t, nil
}

// parseAddress converts "AA:BB:CC:DD:EE:FF" into the byte-reversed form
// the kernel's sockaddr_rc expects.
func parseAddress(addr string) ([6]byte, error) {
	var bdaddr [6]byte
	parts := strings.Split(addr, ":")
	if len(parts) != 6 {
		return bdaddr, fmt.Errorf("invalid bluetooth address %q", addr)
	}
	for i, part := range parts {
		var b byte
		if _, err := fmt.Sscanf(part, "%02x", &b); err != nil {
			return bdaddr, fmt.Errorf("invalid bluetooth address %q: %w", addr, err)
		}
		// sockaddr_rc stores the address little-endian
		bdaddr[5-i] = b
	}
	return bdaddr, nil
}

// Send implements sphero.Transport.
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
		n, err := unix.Write(t.fd, data[off:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return &sphero.TransportError{
				Op:        "Write",
				Port:      t.addr,
				Err:       err,
				Type:      sphero.GetErrorType(err),
				Retryable: true,
			}
		}
		off += n
	}
	return nil
}

// Read implements sphero.Transport. SO_RCVTIMEO turns an idle link into
// (0, nil) so the inbound loop can poll for shutdown.
func (t *Transport) Read(p []byte) (int, error) {
	if !t.IsConnected() {
		return 0, sphero.ErrTransportClosed
	}

	n, err := unix.Read(t.fd, p)
	if err == nil {
		if n < 0 {
			n = 0
		}
		return n, nil
	}
	if isIdleReadErrno(err) {
		return 0, nil
	}
	return 0, &sphero.TransportError{
		Op:        "Read",
		Port:      t.addr,
		Err:       err,
		Type:      sphero.ErrorTypePermanent,
		Retryable: false,
	}
}

// isIdleReadErrno reports whether a read errno means "nothing arrived
// before SO_RCVTIMEO elapsed" rather than a dead link. EAGAIN and
// EWOULDBLOCK are the same value on Linux, so a single check covers both.
func isIdleReadErrno(err error) bool {
	return err == unix.EAGAIN || err == unix.EINTR
}

// SetReadTimeout implements sphero.Transport.
func (t *Transport) SetReadTimeout(timeout time.Duration) error {
	t.stateMu.Lock()
	t.timeout = timeout
	t.stateMu.Unlock()
	return t.applyReadTimeout(timeout)
}

func (t *Transport) applyReadTimeout(timeout time.Duration) error {
	tv := unix.NsecToTimeval(timeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(t.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		return fmt.Errorf("failed to set read timeout on %s: %w", t.addr, err)
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

	if err := unix.Close(t.fd); err != nil {
		return fmt.Errorf("failed to close rfcomm socket %s: %w", t.addr, err)
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
	return sphero.TransportRFCOMM
}

// Address returns the robot's Bluetooth address.
func (t *Transport) Address() string {
	return t.addr
}
