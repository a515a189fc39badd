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

import "sync/atomic"

// sequencer issues the per-connection sequence numbers stamped into
// command frames. Values wrap 0..255..0. Uniqueness among in-flight
// commands is not enforced here; the dispatcher's in-flight cap (well
// below 256) keeps reuse of a still-pending sequence out of reach, and
// the correlator treats a collision as an invariant violation.
type sequencer struct {
	n atomic.Uint32
}

// next returns the next sequence number, wrapping at 256.
func (s *sequencer) next() byte {
	return byte(s.n.Add(1) - 1)
}

// reset rewinds the counter. Called on connect so a reconnected session
// starts from a known state, matching what the robot expects.
func (s *sequencer) reset() {
	s.n.Store(0)
}
