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
	"fmt"
	"io"
	"syscall"
)

// Error categories for error handling and retry logic
var (
	// Codec errors. ErrNeedMoreData is not a failure: it is the normal
	// streaming state while a frame is still arriving, and consumes no
	// input. The other two indicate wire corruption, recovered locally by
	// one-byte resynchronization of the receive buffer.
	ErrNeedMoreData     = errors.New("incomplete frame, need more data")
	ErrInvalidHeader    = errors.New("invalid frame header")
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// Caller errors - rejected before anything touches the wire
	ErrPayloadTooLarge = errors.New("payload too large")

	// Dispatch errors
	ErrTimeout   = errors.New("command timeout")
	ErrCancelled = errors.New("command cancelled")
	ErrBusy      = errors.New("too many commands in flight")

	// ErrSequenceInUse indicates a sequence number was allocated while a
	// live request still owned it. The in-flight cap makes this
	// unreachable in correct code; it is surfaced distinctly because it
	// is a logic error, not a runtime condition.
	ErrSequenceInUse = errors.New("sequence number already in use")

	// Transport errors - potentially retryable
	ErrTransportWrite    = errors.New("transport write failed")
	ErrTransportRead     = errors.New("transport read failed")
	ErrTransportClosed   = errors.New("transport is closed")
	ErrTransportNotReady = errors.New("transport not ready")

	// Connection errors
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
)

// ErrorType represents the category of error for retry logic
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error (special handling)
	ErrorTypeTimeout
)

// TransportError wraps transport-level errors with additional context
type TransportError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Port      string    // Port or device identifier
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DeviceError is a non-zero MRSP code returned by the robot in a response
// frame. The command reached the robot and was rejected, so retrying the
// same bytes rarely helps.
type DeviceError struct {
	Command string
	Code    byte
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s: robot returned 0x%02X (%s)", e.Command, e.Code, mrspMeaning(e.Code))
}

// mrspMeaning returns a human-readable meaning for MRSP response codes.
// Codes are from the Sphero API 1.20 document, page 44.
func mrspMeaning(code byte) string {
	meanings := map[byte]string{
		0x00: "success",
		0x01: "general error",
		0x02: "received bad checksum",
		0x03: "received command fragment",
		0x04: "unknown command ID",
		0x05: "command currently unsupported",
		0x06: "bad message format",
		0x07: "invalid parameter values",
		0x08: "failed to execute command",
		0x09: "unknown device ID",
		0x31: "voltage too low for reflash",
		0x32: "illegal page number",
		0x33: "page did not reprogram correctly",
		0x34: "main application corrupt",
		0x35: "message state machine timed out",
	}
	if m, ok := meanings[code]; ok {
		return m
	}
	return "unknown error"
}

// IsBadChecksum returns true if the robot rejected the command because the
// frame it received failed its checksum. The one case where a resend of
// identical bytes is worthwhile.
func (e *DeviceError) IsBadChecksum() bool {
	return e.Code == 0x02 || e.Code == 0x03
}

// IsRetryable returns true if the error is potentially retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	var de *DeviceError
	if errors.As(err, &de) {
		return de.IsBadChecksum()
	}

	switch {
	case errors.Is(err, ErrTimeout),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportNotReady),
		errors.Is(err, ErrBusy):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error indicates the connection is gone and
// the caller must reconnect. Distinct from IsRetryable, which covers a
// single failed operation on a still-live connection.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type == ErrorTypePermanent
	}

	if isDeviceGoneError(err) {
		return true
	}

	switch {
	case errors.Is(err, ErrTransportClosed),
		errors.Is(err, ErrNotConnected),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// isDeviceGoneError checks for OS-level errors indicating the link device
// vanished, as happens when the Bluetooth adapter drops the RFCOMM binding
// mid-operation.
func isDeviceGoneError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		//nolint:exhaustive // Only checking specific device-gone errors
		switch errno {
		case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
			return true
		}
	}
	return false
}

// GetErrorType returns the ErrorType for an error, used by retry helpers
// to decide between backing off and giving up.
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypePermanent
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type
	}

	switch {
	case errors.Is(err, ErrTimeout):
		return ErrorTypeTimeout
	case IsRetryable(err):
		return ErrorTypeTransient
	default:
		return ErrorTypePermanent
	}
}
