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
	"fmt"

	"github.com/orbforge/go-sphero/internal/frame"
)

// FrameKind identifies which of the robot-to-host frame layouts a decoded
// Frame carries.
type FrameKind byte

const (
	// KindResponse is an acknowledgement to a command, matched to its
	// originating request by sequence number.
	KindResponse FrameKind = iota
	// KindAsync is a robot-initiated message (sensor streaming, power
	// notifications, collisions) not tied to any outstanding command.
	KindAsync
)

// Frame is one complete, checksum-validated message received from the
// robot. A Frame is only ever constructed from bytes whose checksum has
// been verified; corrupted input surfaces as a decode error instead.
//
// Response frames populate MRSP and Seq. Async frames populate IDCode.
type Frame struct {
	Data   []byte
	Kind   FrameKind
	MRSP   byte
	Seq    byte
	IDCode byte
}

// IsAsync reports whether the frame is a robot-initiated async message.
func (f *Frame) IsAsync() bool {
	return f.Kind == KindAsync
}

// Ok reports whether a response frame carries the success code. Always
// false for async frames, which have no MRSP field.
func (f *Frame) Ok() bool {
	return f.Kind == KindResponse && f.MRSP == 0x00
}

func (f *Frame) String() string {
	if f.IsAsync() {
		return fmt.Sprintf("async id=%02X len=%d", f.IDCode, len(f.Data))
	}
	return fmt.Sprintf("response mrsp=%02X seq=%02X len=%d", f.MRSP, f.Seq, len(f.Data))
}

// CommandFrame is a decoded host-to-robot command. The driver itself never
// decodes commands; this is for the wire simulator and transport tests.
type CommandFrame struct {
	Payload []byte
	DID     byte
	CID     byte
	Seq     byte
}

// EncodeCommand builds the wire bytes for one command frame:
//
//	[SOP1][SOP2][DID][CID][SEQ][DLEN][payload...][CHK]
//
// DLEN counts the payload plus the checksum byte, so the payload is capped
// at 254 bytes. Returns ErrPayloadTooLarge beyond that.
func EncodeCommand(did, cid, seq byte, payload []byte) ([]byte, error) {
	if len(payload) > frame.MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), frame.MaxPayload)
	}

	buf := make([]byte, 0, frame.CommandHeaderLen+len(payload)+1)
	buf = append(buf, frame.SOP1, frame.SOP2Response, did, cid, seq, byte(len(payload)+1))
	buf = append(buf, payload...)
	buf = append(buf, frame.Checksum(buf[2:]))
	return buf, nil
}

// EncodeResponse builds the wire bytes for one response frame. Used by the
// simulator and by tests that need to play the robot's side of the link.
func EncodeResponse(mrsp, seq byte, data []byte) ([]byte, error) {
	if len(data) > frame.MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(data), frame.MaxPayload)
	}

	buf := make([]byte, 0, frame.ResponseHeaderLen+len(data)+1)
	buf = append(buf, frame.SOP1, frame.SOP2Response, mrsp, seq, byte(len(data)+1))
	buf = append(buf, data...)
	buf = append(buf, frame.Checksum(buf[2:]))
	return buf, nil
}

// EncodeAsync builds the wire bytes for one async frame. The async layout
// carries a 16-bit big-endian DLEN instead of sequence correlation.
func EncodeAsync(idCode byte, data []byte) ([]byte, error) {
	if len(data) > frame.MaxAsyncPayload {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(data), frame.MaxAsyncPayload)
	}

	dlen := len(data) + 1
	buf := make([]byte, 0, frame.AsyncHeaderLen+len(data)+1)
	buf = append(buf, frame.SOP1, frame.SOP2Async, idCode, byte(dlen>>8), byte(dlen))
	buf = append(buf, data...)
	buf = append(buf, frame.Checksum(buf[2:]))
	return buf, nil
}

// DecodeFrame consumes one robot-to-host frame from the front of buf.
// It returns the decoded frame and the number of bytes consumed.
//
// Streaming contract: if buf holds fewer bytes than the frame declares,
// DecodeFrame returns ErrNeedMoreData and consumes nothing, so the caller
// can append further transport reads and retry. ErrInvalidHeader and
// ErrChecksumMismatch likewise consume nothing; the caller resynchronizes
// by discarding a single byte, which recovers from one corrupted byte
// without losing subsequent valid frames.
func DecodeFrame(buf []byte) (*Frame, int, error) {
	if len(buf) < 2 {
		if len(buf) == 1 && buf[0] != frame.SOP1 {
			return nil, 0, ErrInvalidHeader
		}
		return nil, 0, ErrNeedMoreData
	}
	if buf[0] != frame.SOP1 {
		return nil, 0, ErrInvalidHeader
	}

	switch buf[1] {
	case frame.SOP2Response:
		return decodeResponse(buf)
	case frame.SOP2Async:
		return decodeAsync(buf)
	default:
		return nil, 0, ErrInvalidHeader
	}
}

func decodeResponse(buf []byte) (*Frame, int, error) {
	if len(buf) < frame.ResponseHeaderLen {
		return nil, 0, ErrNeedMoreData
	}

	dlen := int(buf[4])
	if dlen < 1 {
		return nil, 0, ErrInvalidHeader
	}
	total := frame.ResponseHeaderLen + dlen
	if len(buf) < total {
		return nil, 0, ErrNeedMoreData
	}

	if frame.Checksum(buf[2:total-1]) != buf[total-1] {
		return nil, 0, ErrChecksumMismatch
	}

	f := &Frame{
		Kind: KindResponse,
		MRSP: buf[2],
		Seq:  buf[3],
		Data: cloneBytes(buf[frame.ResponseHeaderLen : total-1]),
	}
	return f, total, nil
}

func decodeAsync(buf []byte) (*Frame, int, error) {
	if len(buf) < frame.AsyncHeaderLen {
		return nil, 0, ErrNeedMoreData
	}

	dlen := int(buf[3])<<8 | int(buf[4])
	if dlen < 1 || dlen > frame.MaxAsyncPayload+1 {
		return nil, 0, ErrInvalidHeader
	}
	total := frame.AsyncHeaderLen + dlen
	if len(buf) < total {
		return nil, 0, ErrNeedMoreData
	}

	if frame.Checksum(buf[2:total-1]) != buf[total-1] {
		return nil, 0, ErrChecksumMismatch
	}

	f := &Frame{
		Kind:   KindAsync,
		IDCode: buf[2],
		Data:   cloneBytes(buf[frame.AsyncHeaderLen : total-1]),
	}
	return f, total, nil
}

// DecodeCommand consumes one host-to-robot command frame from the front of
// buf, with the same streaming contract as DecodeFrame. The simulator uses
// this to play the robot's side of the link.
func DecodeCommand(buf []byte) (*CommandFrame, int, error) {
	if len(buf) < 2 {
		if len(buf) == 1 && buf[0] != frame.SOP1 {
			return nil, 0, ErrInvalidHeader
		}
		return nil, 0, ErrNeedMoreData
	}
	if buf[0] != frame.SOP1 || buf[1] != frame.SOP2Response {
		return nil, 0, ErrInvalidHeader
	}
	if len(buf) < frame.CommandHeaderLen {
		return nil, 0, ErrNeedMoreData
	}

	dlen := int(buf[5])
	if dlen < 1 {
		return nil, 0, ErrInvalidHeader
	}
	total := frame.CommandHeaderLen + dlen
	if len(buf) < total {
		return nil, 0, ErrNeedMoreData
	}

	if frame.Checksum(buf[2:total-1]) != buf[total-1] {
		return nil, 0, ErrChecksumMismatch
	}

	cf := &CommandFrame{
		DID:     buf[2],
		CID:     buf[3],
		Seq:     buf[4],
		Payload: cloneBytes(buf[frame.CommandHeaderLen : total-1]),
	}
	return cf, total, nil
}

// cloneBytes copies a decoded payload out of the receive buffer. Always
// non-nil: a zero-length payload is an empty slice, so callers never see
// a nil/empty distinction the wire does not carry.
func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
