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

// Package simulator provides VirtualSphero, a wire-level robot simulator
// implementing the sphero.Transport interface. It decodes real command
// frames and answers with real response frames, so the full driver stack
// (framing, correlation, async routing) can be exercised end to end
// without hardware. Fault injection covers corrupted bytes, swallowed
// responses, and arbitrary read chunking.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	sphero "github.com/orbforge/go-sphero"
)

// Handler produces the simulated robot's reply to one decoded command.
type Handler func(cmd *sphero.CommandFrame) (mrsp byte, data []byte)

// VirtualSphero is an in-memory robot on the far end of a Transport.
type VirtualSphero struct {
	out      chan []byte
	handlers map[[2]byte]Handler

	mu          sync.Mutex
	rx          []byte
	leftover    []byte
	timeout     time.Duration
	delay       time.Duration
	chunkSize   int
	corruptNext bool
	dropNext    bool
	connected   bool

	commandLog []*sphero.CommandFrame
}

// New creates a VirtualSphero with canned replies for the core
// informational commands; everything else succeeds with an empty
// response payload.
func New() *VirtualSphero {
	v := &VirtualSphero{
		out:       make(chan []byte, 256),
		handlers:  make(map[[2]byte]Handler),
		timeout:   50 * time.Millisecond,
		connected: true,
	}

	// GetVersioning
	v.Handle(0x00, 0x02, func(*sphero.CommandFrame) (byte, []byte) {
		return 0x00, []byte{0x02, 0x03, 0x01, 0x01, 0x21, 0x04, 0x01, 0x01}
	})
	// GetPowerState
	v.Handle(0x00, 0x20, func(*sphero.CommandFrame) (byte, []byte) {
		return 0x00, []byte{0x01, 0x02, 0x03, 0x20, 0x00, 0x08, 0x00, 0x3C}
	})
	// GetBluetoothInfo: 16-byte name + 12-byte address
	v.Handle(0x00, 0x11, func(*sphero.CommandFrame) (byte, []byte) {
		data := make([]byte, 28)
		copy(data, "SPRK-sim")
		copy(data[16:], "68C90B00FFEE")
		return 0x00, data
	})
	// GetRGBLED
	v.Handle(0x02, 0x22, func(*sphero.CommandFrame) (byte, []byte) {
		return 0x00, []byte{0x00, 0x00, 0x00}
	})

	return v
}

// Handle installs a reply handler for one (device ID, command ID) pair.
func (v *VirtualSphero) Handle(did, cid byte, h Handler) {
	v.mu.Lock()
	v.handlers[[2]byte{did, cid}] = h
	v.mu.Unlock()
}

// Send implements sphero.Transport. Incoming bytes are reassembled into
// command frames; each complete command is answered immediately.
func (v *VirtualSphero) Send(ctx context.Context, data []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	v.mu.Lock()
	if !v.connected {
		v.mu.Unlock()
		return sphero.ErrTransportClosed
	}
	v.rx = append(v.rx, data...)

	var replies [][]byte
	for len(v.rx) > 0 {
		cmd, n, err := sphero.DecodeCommand(v.rx)
		switch {
		case err == nil:
			v.rx = v.rx[n:]
			v.commandLog = append(v.commandLog, cmd)
			if reply := v.replyLocked(cmd); reply != nil {
				replies = append(replies, reply)
			}
			continue
		case errors.Is(err, sphero.ErrNeedMoreData):
			// Partial command: wait for more bytes.
		default:
			// Garbled command: resync like the real robot's parser.
			v.rx = v.rx[1:]
			continue
		}
		break
	}
	delay := v.delay
	v.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for _, reply := range replies {
		v.enqueue(reply)
	}
	return nil
}

// replyLocked builds the response bytes for one command, applying any
// armed fault injection. Caller holds v.mu.
func (v *VirtualSphero) replyLocked(cmd *sphero.CommandFrame) []byte {
	if v.dropNext {
		v.dropNext = false
		return nil
	}

	mrsp, data := byte(0x00), []byte(nil)
	if h, ok := v.handlers[[2]byte{cmd.DID, cmd.CID}]; ok {
		mrsp, data = h(cmd)
	}

	reply, err := sphero.EncodeResponse(mrsp, cmd.Seq, data)
	if err != nil {
		panic(fmt.Sprintf("simulator: encoding reply: %v", err))
	}

	if v.corruptNext {
		v.corruptNext = false
		// Flip a bit in the checksum byte; the frame length stays intact
		// so the receiver can resynchronize past it
		reply[len(reply)-1] ^= 0x40
	}
	return reply
}

// enqueue splits outgoing bytes per the configured chunk size and queues
// them for Read.
func (v *VirtualSphero) enqueue(data []byte) {
	v.mu.Lock()
	if !v.connected {
		v.mu.Unlock()
		return
	}
	chunk := v.chunkSize
	v.mu.Unlock()

	if chunk <= 0 || chunk >= len(data) {
		v.out <- data
		return
	}
	for off := 0; off < len(data); off += chunk {
		end := off + chunk
		if end > len(data) {
			end = len(data)
		}
		v.out <- append([]byte(nil), data[off:end]...)
	}
}

// EmitAsync queues a robot-initiated async frame, as if a sensor packet
// or power notification arrived.
func (v *VirtualSphero) EmitAsync(idCode byte, data []byte) error {
	frame, err := sphero.EncodeAsync(idCode, data)
	if err != nil {
		return err
	}
	v.enqueue(frame)
	return nil
}

// EmitRaw queues arbitrary bytes, valid or not. For corruption and
// resynchronization tests.
func (v *VirtualSphero) EmitRaw(data []byte) {
	v.enqueue(append([]byte(nil), data...))
}

// Read implements sphero.Transport.
func (v *VirtualSphero) Read(p []byte) (int, error) {
	v.mu.Lock()
	if !v.connected {
		v.mu.Unlock()
		return 0, sphero.ErrTransportClosed
	}
	if len(v.leftover) > 0 {
		n := copy(p, v.leftover)
		v.leftover = v.leftover[n:]
		v.mu.Unlock()
		return n, nil
	}
	timeout := v.timeout
	v.mu.Unlock()

	select {
	case chunk, ok := <-v.out:
		if !ok {
			return 0, sphero.ErrTransportClosed
		}
		n := copy(p, chunk)
		if n < len(chunk) {
			v.mu.Lock()
			v.leftover = append(v.leftover, chunk[n:]...)
			v.mu.Unlock()
		}
		return n, nil
	case <-time.After(timeout):
		return 0, nil
	}
}

// SetReadTimeout implements sphero.Transport.
func (v *VirtualSphero) SetReadTimeout(timeout time.Duration) error {
	v.mu.Lock()
	v.timeout = timeout
	v.mu.Unlock()
	return nil
}

// Close implements sphero.Transport.
func (v *VirtualSphero) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.connected {
		v.connected = false
		close(v.out)
	}
	return nil
}

// IsConnected implements sphero.Transport.
func (v *VirtualSphero) IsConnected() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.connected
}

// Type implements sphero.Transport.
func (*VirtualSphero) Type() sphero.TransportType {
	return sphero.TransportSimulator
}

// Fault injection and inspection

// SetChunkSize makes the simulator deliver outgoing bytes in chunks of n,
// exercising frame reassembly across read boundaries. 0 disables.
func (v *VirtualSphero) SetChunkSize(n int) {
	v.mu.Lock()
	v.chunkSize = n
	v.mu.Unlock()
}

// CorruptNextResponse flips a byte in the next response frame.
func (v *VirtualSphero) CorruptNextResponse() {
	v.mu.Lock()
	v.corruptNext = true
	v.mu.Unlock()
}

// DropNextResponse swallows the next response, simulating a robot that
// never answers.
func (v *VirtualSphero) DropNextResponse() {
	v.mu.Lock()
	v.dropNext = true
	v.mu.Unlock()
}

// SetDelay adds a fixed latency before responses are queued.
func (v *VirtualSphero) SetDelay(d time.Duration) {
	v.mu.Lock()
	v.delay = d
	v.mu.Unlock()
}

// Commands returns every command frame decoded so far.
func (v *VirtualSphero) Commands() []*sphero.CommandFrame {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]*sphero.CommandFrame, len(v.commandLog))
	copy(out, v.commandLog)
	return out
}

// CommandCount returns how many commands with the given IDs were seen.
func (v *VirtualSphero) CommandCount(did, cid byte) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, cmd := range v.commandLog {
		if cmd.DID == did && cmd.CID == cid {
			n++
		}
	}
	return n
}
