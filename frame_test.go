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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		payload []byte
		did     byte
		cid     byte
		seq     byte
		want    []byte
	}{
		{
			// Documented example frame from API 1.20 page 8
			name: "ping",
			did:  0x00, cid: 0x01, seq: 0x52,
			want: []byte{0xFF, 0xFF, 0x00, 0x01, 0x52, 0x01, 0xAB},
		},
		{
			name: "set rgb led red",
			did:  0x02, cid: 0x20, seq: 0x01,
			payload: []byte{0xFF, 0x00, 0x00, 0x00},
			want:    []byte{0xFF, 0xFF, 0x02, 0x20, 0x01, 0x05, 0xFF, 0x00, 0x00, 0x00, 0xD8},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := EncodeCommand(tt.did, tt.cid, tt.seq, tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeCommandPayloadTooLarge(t *testing.T) {
	t.Parallel()
	_, err := EncodeCommand(0x02, 0x20, 0x00, make([]byte, 255))
	require.ErrorIs(t, err, ErrPayloadTooLarge)

	// 254 bytes is the exact limit
	_, err = EncodeCommand(0x02, 0x20, 0x00, make([]byte, 254))
	require.NoError(t, err)
}

func TestCommandRoundTrip(t *testing.T) {
	t.Parallel()
	payloads := [][]byte{nil, {0x01}, {0xFF, 0x00, 0x00, 0x01}, make([]byte, 254)}

	for _, payload := range payloads {
		encoded, err := EncodeCommand(0x02, 0x30, 0x7F, payload)
		require.NoError(t, err)

		cmd, consumed, err := DecodeCommand(encoded)
		require.NoError(t, err)
		assert.Equal(t, len(encoded), consumed)
		assert.Equal(t, byte(0x02), cmd.DID)
		assert.Equal(t, byte(0x30), cmd.CID)
		assert.Equal(t, byte(0x7F), cmd.Seq)
		assert.Equal(t, append([]byte{}, payload...), cmd.Payload)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	t.Parallel()
	encoded, err := EncodeResponse(0x00, 0x42, []byte{0xDE, 0xAD})
	require.NoError(t, err)

	f, consumed, err := DecodeFrame(encoded)
	require.NoError(t, err)
	assert.Equal(t, len(encoded), consumed)
	assert.Equal(t, KindResponse, f.Kind)
	assert.True(t, f.Ok())
	assert.Equal(t, byte(0x42), f.Seq)
	assert.Equal(t, []byte{0xDE, 0xAD}, f.Data)
}

func TestAsyncRoundTrip(t *testing.T) {
	t.Parallel()
	data := make([]byte, 300) // forces a two-byte DLEN above 255
	for i := range data {
		data[i] = byte(i)
	}

	encoded, err := EncodeAsync(AsyncSensorData, data)
	require.NoError(t, err)

	f, consumed, err := DecodeFrame(encoded)
	require.NoError(t, err)
	assert.Equal(t, len(encoded), consumed)
	assert.True(t, f.IsAsync())
	assert.Equal(t, byte(AsyncSensorData), f.IDCode)
	assert.Equal(t, data, f.Data)
}

// Flipping any single byte of a valid frame must never decode into a
// silently wrong frame: every flip yields a header, checksum, or
// need-more-data error, or (for DLEN flips growing the frame) an
// incomplete parse.
func TestChecksumDetectsSingleByteCorruption(t *testing.T) {
	t.Parallel()
	encoded, err := EncodeResponse(0x00, 0x10, []byte{0x01, 0x02, 0x03})
	require.NoError(t, err)

	for i := range encoded {
		corrupted := append([]byte(nil), encoded...)
		corrupted[i] ^= 0x04

		f, _, err := DecodeFrame(corrupted)
		if err == nil {
			t.Fatalf("byte %d: corruption decoded silently to %v", i, f)
		}
	}
}

// A zero-length payload decodes to an empty slice, never nil: the wire
// has no nil/empty distinction and callers should not see one either.
func TestDecodeEmptyPayloadNonNil(t *testing.T) {
	t.Parallel()

	resp, err := EncodeResponse(0x00, 0x01, nil)
	require.NoError(t, err)
	f, _, err := DecodeFrame(resp)
	require.NoError(t, err)
	assert.NotNil(t, f.Data)
	assert.Empty(t, f.Data)

	async, err := EncodeAsync(AsyncPreSleepWarning, nil)
	require.NoError(t, err)
	f, _, err = DecodeFrame(async)
	require.NoError(t, err)
	assert.NotNil(t, f.Data)
	assert.Empty(t, f.Data)

	cmdBytes, err := EncodeCommand(0x00, 0x01, 0x52, nil)
	require.NoError(t, err)
	cmd, _, err := DecodeCommand(cmdBytes)
	require.NoError(t, err)
	assert.NotNil(t, cmd.Payload)
	assert.Empty(t, cmd.Payload)
}

func TestDecodePartialDelivery(t *testing.T) {
	t.Parallel()
	encoded, err := EncodeResponse(0x00, 0x05, []byte{0xAA, 0xBB})
	require.NoError(t, err)

	// Every proper prefix must report NeedMoreData and consume nothing
	for n := 1; n < len(encoded); n++ {
		f, consumed, err := DecodeFrame(encoded[:n])
		assert.Nil(t, f, "prefix %d", n)
		assert.Zero(t, consumed, "prefix %d", n)
		assert.ErrorIs(t, err, ErrNeedMoreData, "prefix %d", n)
	}

	f, consumed, err := DecodeFrame(encoded)
	require.NoError(t, err)
	assert.Equal(t, len(encoded), consumed)
	assert.Equal(t, byte(0x05), f.Seq)
}

func TestDecodeInvalidHeader(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		buf  []byte
	}{
		{name: "bad sop1", buf: []byte{0x00, 0xFF, 0x00}},
		{name: "bad sop2", buf: []byte{0xFF, 0x42, 0x00}},
		{name: "zero dlen", buf: []byte{0xFF, 0xFF, 0x00, 0x00, 0x00}},
		{name: "single bad byte", buf: []byte{0x13}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, consumed, err := DecodeFrame(tt.buf)
			assert.Zero(t, consumed)
			assert.ErrorIs(t, err, ErrInvalidHeader)
		})
	}
}

func TestDecodeResynchronization(t *testing.T) {
	t.Parallel()
	valid, err := EncodeResponse(0x00, 0x09, []byte{0x77})
	require.NoError(t, err)

	// A frame with a broken checksum followed by a valid one: discarding
	// a byte at a time must eventually surface the valid frame intact.
	corrupted := append([]byte(nil), valid...)
	corrupted[len(corrupted)-1] ^= 0xFF
	stream := append(corrupted, valid...)

	var decoded []*Frame
	for len(stream) > 0 {
		f, n, err := DecodeFrame(stream)
		switch {
		case err == nil:
			decoded = append(decoded, f)
			stream = stream[n:]
		case errors.Is(err, ErrNeedMoreData):
			stream = nil
		default:
			stream = stream[1:]
		}
	}

	require.Len(t, decoded, 1)
	assert.Equal(t, byte(0x09), decoded[0].Seq)
	assert.Equal(t, []byte{0x77}, decoded[0].Data)
}

func TestFrameString(t *testing.T) {
	t.Parallel()
	resp := &Frame{Kind: KindResponse, MRSP: 0x00, Seq: 0x01}
	assert.Contains(t, resp.String(), "response")

	async := &Frame{Kind: KindAsync, IDCode: 0x07}
	assert.Contains(t, async.String(), "async")
}
