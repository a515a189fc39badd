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

package simulator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sphero "github.com/orbforge/go-sphero"
)

// readFrame pumps Read until one complete frame decodes, resynchronizing
// past corrupted bytes the way the driver's inbound loop does. seed holds
// bytes a test has already pulled off the transport.
func readFrame(t *testing.T, v *VirtualSphero, seed []byte) *sphero.Frame {
	t.Helper()
	rx := append([]byte(nil), seed...)
	buf := make([]byte, 64)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for len(rx) > 0 {
			f, _, err := sphero.DecodeFrame(rx)
			if err == nil {
				return f
			}
			if errors.Is(err, sphero.ErrNeedMoreData) {
				break
			}
			rx = rx[1:]
		}

		n, err := v.Read(buf)
		require.NoError(t, err)
		rx = append(rx, buf[:n]...)
	}
	t.Fatal("no frame received")
	return nil
}

func sendCommand(t *testing.T, v *VirtualSphero, did, cid, seq byte, payload []byte) {
	t.Helper()
	cmd, err := sphero.EncodeCommand(did, cid, seq, payload)
	require.NoError(t, err)
	require.NoError(t, v.Send(context.Background(), cmd))
}

func TestSimulatorAnswersPing(t *testing.T) {
	t.Parallel()
	v := New()
	t.Cleanup(func() { _ = v.Close() })

	sendCommand(t, v, 0x00, 0x01, 0x42, nil)

	f := readFrame(t, v, nil)
	assert.Equal(t, sphero.KindResponse, f.Kind)
	assert.True(t, f.Ok())
	assert.Equal(t, byte(0x42), f.Seq)
	assert.Empty(t, f.Data)
}

func TestSimulatorCannedVersioning(t *testing.T) {
	t.Parallel()
	v := New()
	t.Cleanup(func() { _ = v.Close() })

	sendCommand(t, v, 0x00, 0x02, 0x01, nil)

	f := readFrame(t, v, nil)
	require.True(t, f.Ok())
	assert.Len(t, f.Data, 8)
}

func TestSimulatorCustomHandler(t *testing.T) {
	t.Parallel()
	v := New()
	t.Cleanup(func() { _ = v.Close() })

	v.Handle(0x02, 0x22, func(*sphero.CommandFrame) (byte, []byte) {
		return 0x00, []byte{0xAA, 0xBB, 0xCC}
	})

	sendCommand(t, v, 0x02, 0x22, 0x05, nil)

	f := readFrame(t, v, nil)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, f.Data)
}

func TestSimulatorReassemblesSplitCommand(t *testing.T) {
	t.Parallel()
	v := New()
	t.Cleanup(func() { _ = v.Close() })

	cmd, err := sphero.EncodeCommand(0x00, 0x01, 0x10, nil)
	require.NoError(t, err)

	for _, b := range cmd {
		require.NoError(t, v.Send(context.Background(), []byte{b}))
	}

	f := readFrame(t, v, nil)
	assert.Equal(t, byte(0x10), f.Seq)
	assert.Equal(t, 1, v.CommandCount(0x00, 0x01))
}

func TestSimulatorResyncsAfterGarbage(t *testing.T) {
	t.Parallel()
	v := New()
	t.Cleanup(func() { _ = v.Close() })

	cmd, err := sphero.EncodeCommand(0x00, 0x01, 0x20, nil)
	require.NoError(t, err)

	garbled := append([]byte{0xDE, 0xAD, 0xBE, 0xEF}, cmd...)
	require.NoError(t, v.Send(context.Background(), garbled))

	f := readFrame(t, v, nil)
	assert.Equal(t, byte(0x20), f.Seq)
}

func TestSimulatorDropNextResponse(t *testing.T) {
	t.Parallel()
	v := New()
	t.Cleanup(func() { _ = v.Close() })
	require.NoError(t, v.SetReadTimeout(20*time.Millisecond))

	v.DropNextResponse()
	sendCommand(t, v, 0x00, 0x01, 0x01, nil)

	n, err := v.Read(make([]byte, 64))
	require.NoError(t, err)
	assert.Zero(t, n, "dropped response still surfaced")

	// Only the one armed drop: the next command is answered
	sendCommand(t, v, 0x00, 0x01, 0x02, nil)
	f := readFrame(t, v, nil)
	assert.Equal(t, byte(0x02), f.Seq)
}

func TestSimulatorCorruptNextResponse(t *testing.T) {
	t.Parallel()
	v := New()
	t.Cleanup(func() { _ = v.Close() })

	v.CorruptNextResponse()
	sendCommand(t, v, 0x00, 0x01, 0x01, nil)

	buf := make([]byte, 64)
	var rx []byte
	deadline := time.Now().Add(time.Second)
	for len(rx) < 6 && time.Now().Before(deadline) {
		n, err := v.Read(buf)
		require.NoError(t, err)
		rx = append(rx, buf[:n]...)
	}
	_, _, err := sphero.DecodeFrame(rx)
	assert.ErrorIs(t, err, sphero.ErrChecksumMismatch)
}

func TestSimulatorChunkedDelivery(t *testing.T) {
	t.Parallel()
	v := New()
	t.Cleanup(func() { _ = v.Close() })
	v.SetChunkSize(2)

	sendCommand(t, v, 0x00, 0x01, 0x30, nil)

	// First chunk is exactly 2 bytes; hand it to readFrame so the rest of
	// the frame reassembles behind it
	buf := make([]byte, 64)
	n, err := v.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	f := readFrame(t, v, buf[:n])
	assert.Equal(t, byte(0x30), f.Seq)
}

func TestSimulatorEmitAsync(t *testing.T) {
	t.Parallel()
	v := New()
	t.Cleanup(func() { _ = v.Close() })

	require.NoError(t, v.EmitAsync(sphero.AsyncPowerNotification, []byte{0x03}))

	f := readFrame(t, v, nil)
	assert.True(t, f.IsAsync())
	assert.Equal(t, byte(sphero.AsyncPowerNotification), f.IDCode)
	assert.Equal(t, []byte{0x03}, f.Data)
}

func TestSimulatorCommandLog(t *testing.T) {
	t.Parallel()
	v := New()
	t.Cleanup(func() { _ = v.Close() })

	sendCommand(t, v, 0x02, 0x20, 0x01, []byte{0xFF, 0x00, 0x00, 0x00})
	sendCommand(t, v, 0x02, 0x20, 0x02, []byte{0x00, 0xFF, 0x00, 0x00})

	cmds := v.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, []byte{0xFF, 0x00, 0x00, 0x00}, cmds[0].Payload)
	assert.Equal(t, 2, v.CommandCount(0x02, 0x20))
	assert.Equal(t, 0, v.CommandCount(0x00, 0x01))
}

func TestSimulatorClose(t *testing.T) {
	t.Parallel()
	v := New()

	require.NoError(t, v.Close())
	assert.False(t, v.IsConnected())

	err := v.Send(context.Background(), []byte{0x01})
	assert.ErrorIs(t, err, sphero.ErrTransportClosed)

	_, err = v.Read(make([]byte, 8))
	assert.ErrorIs(t, err, sphero.ErrTransportClosed)

	// Double close is safe
	require.NoError(t, v.Close())
}
