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

package frame

// Start-of-packet bytes (Sphero API 1.20, page 7)
const (
	SOP1 = 0xFF // First start byte, same in both directions

	// SOP2 distinguishes acknowledged traffic from async messages
	SOP2Response = 0xFF // Command (host to robot) or response (robot to host)
	SOP2Async    = 0xFE // Asynchronous message (robot to host)
)

// Frame size limits
const (
	// MaxPayload is the largest command/response payload. DLEN is a single
	// byte and counts the payload plus the trailing checksum.
	MaxPayload = 254

	// MaxAsyncPayload bounds async frames. The 16-bit DLEN field would
	// allow 64KB but nothing the robot emits comes close; anything larger
	// is treated as a framing error rather than buffered indefinitely.
	MaxAsyncPayload = 2048

	// Header lengths up to and including the DLEN field(s)
	CommandHeaderLen  = 6 // SOP1 SOP2 DID CID SEQ DLEN
	ResponseHeaderLen = 5 // SOP1 SOP2 MRSP SEQ DLEN
	AsyncHeaderLen    = 5 // SOP1 SOP2 IDCODE DLEN(hi) DLEN(lo)
)
