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

// Package frame holds the low-level wire constants and checksum math for
// the Sphero v1 packet format. Frame assembly and parsing live in the root
// package; this package is shared with the transports and the simulator.
package frame

// Sum computes the modulo-256 sum of all bytes in the given segments.
func Sum(segments ...[]byte) byte {
	var sum byte
	for _, seg := range segments {
		for _, b := range seg {
			sum += b
		}
	}
	return sum
}

// Checksum computes the frame checksum: the one's complement of the
// modulo-256 sum of every byte between SOP2 and the checksum field,
// exclusive on both ends (Sphero API 1.20, page 7).
func Checksum(segments ...[]byte) byte {
	return ^Sum(segments...)
}
