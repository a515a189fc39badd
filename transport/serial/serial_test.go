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

package serial

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goserial "go.bug.st/serial"

	sphero "github.com/orbforge/go-sphero"
)

var errPortClosed = errors.New("port is closed")

// fakePort implements goserial.Port in memory.
type fakePort struct {
	written     []byte
	pending     []byte
	writeErr    error
	shortWrites bool
	readTimeout time.Duration
	closed      bool
}

func (*fakePort) SetMode(_ *goserial.Mode) error { return nil }

func (f *fakePort) Read(p []byte) (int, error) {
	if f.closed {
		return 0, errPortClosed
	}
	if len(f.pending) == 0 {
		// Timeout with nothing pending behaves like the real driver
		return 0, nil
	}
	n := copy(p, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}

func (f *fakePort) Write(p []byte) (int, error) {
	if f.closed {
		return 0, errPortClosed
	}
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	if f.shortWrites && len(p) > 1 {
		f.written = append(f.written, p[0])
		return 1, nil
	}
	f.written = append(f.written, p...)
	return len(p), nil
}

func (*fakePort) Drain() error                { return nil }
func (*fakePort) ResetInputBuffer() error     { return nil }
func (*fakePort) ResetOutputBuffer() error    { return nil }
func (*fakePort) SetDTR(_ bool) error         { return nil }
func (*fakePort) SetRTS(_ bool) error         { return nil }
func (*fakePort) Break(_ time.Duration) error { return nil }

func (*fakePort) GetModemStatusBits() (*goserial.ModemStatusBits, error) {
	return &goserial.ModemStatusBits{}, nil
}

func (f *fakePort) SetReadTimeout(t time.Duration) error {
	f.readTimeout = t
	return nil
}

func (f *fakePort) Close() error {
	f.closed = true
	return nil
}

var _ goserial.Port = (*fakePort)(nil)

func TestSendWritesAllBytes(t *testing.T) {
	t.Parallel()
	fp := &fakePort{}
	tr := newFromPort(fp, "/dev/rfcomm0")

	data := []byte{0xFF, 0xFF, 0x00, 0x01, 0x52, 0x01, 0xAB}
	require.NoError(t, tr.Send(context.Background(), data))
	assert.Equal(t, data, fp.written)
}

func TestSendRetriesShortWrites(t *testing.T) {
	t.Parallel()
	fp := &fakePort{shortWrites: true}
	tr := newFromPort(fp, "/dev/rfcomm0")

	data := []byte{0x01, 0x02, 0x03, 0x04}
	require.NoError(t, tr.Send(context.Background(), data))
	assert.Equal(t, data, fp.written)
}

func TestSendWriteError(t *testing.T) {
	t.Parallel()
	fp := &fakePort{writeErr: errors.New("input/output error")}
	tr := newFromPort(fp, "/dev/rfcomm0")

	err := tr.Send(context.Background(), []byte{0x01})
	var te *sphero.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "Write", te.Op)
	assert.Equal(t, "/dev/rfcomm0", te.Port)
	assert.True(t, te.Retryable)
}

func TestSendContextCancelled(t *testing.T) {
	t.Parallel()
	fp := &fakePort{}
	tr := newFromPort(fp, "/dev/rfcomm0")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tr.Send(ctx, []byte{0x01})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fp.written)
}

func TestReadPassesThrough(t *testing.T) {
	t.Parallel()
	fp := &fakePort{pending: []byte{0xFF, 0xFF, 0x00}}
	tr := newFromPort(fp, "/dev/rfcomm0")

	buf := make([]byte, 8)
	n, err := tr.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 0x00}, buf[:n])

	// Idle timeout surfaces as (0, nil)
	n, err = tr.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSetReadTimeout(t *testing.T) {
	t.Parallel()
	fp := &fakePort{}
	tr := newFromPort(fp, "/dev/rfcomm0")

	require.NoError(t, tr.SetReadTimeout(75*time.Millisecond))
	assert.Equal(t, 75*time.Millisecond, fp.readTimeout)
}

func TestCloseIdempotent(t *testing.T) {
	t.Parallel()
	fp := &fakePort{}
	tr := newFromPort(fp, "/dev/rfcomm0")

	require.True(t, tr.IsConnected())
	require.NoError(t, tr.Close())
	assert.False(t, tr.IsConnected())
	assert.True(t, fp.closed)

	require.NoError(t, tr.Close())

	err := tr.Send(context.Background(), []byte{0x01})
	assert.ErrorIs(t, err, sphero.ErrTransportClosed)

	_, err = tr.Read(make([]byte, 4))
	assert.ErrorIs(t, err, sphero.ErrTransportClosed)
}

func TestTransportMetadata(t *testing.T) {
	t.Parallel()
	tr := newFromPort(&fakePort{}, "/dev/rfcomm3")

	assert.Equal(t, sphero.TransportSerial, tr.Type())
	assert.Equal(t, "/dev/rfcomm3", tr.PortName())
}
