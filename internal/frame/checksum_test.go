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

import "testing"

func TestSum(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		segments [][]byte
		want     byte
	}{
		{
			name:     "empty",
			segments: nil,
			want:     0,
		},
		{
			name:     "single byte",
			segments: [][]byte{{0x42}},
			want:     0x42,
		},
		{
			name:     "wraps modulo 256",
			segments: [][]byte{{0xFF, 0x01}},
			want:     0x00,
		},
		{
			name:     "multiple segments",
			segments: [][]byte{{0x02, 0x20, 0x01}, {0xFF, 0x00, 0x00}},
			want:     0x22,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Sum(tt.segments...); got != tt.want {
				t.Errorf("Sum() = 0x%02X, want 0x%02X", got, tt.want)
			}
		})
	}
}

func TestChecksum(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		segments [][]byte
		want     byte
	}{
		{
			// Ping: DID=00 CID=01 SEQ=52 DLEN=01, documented example
			// checksum from API 1.20 page 8
			name:     "ping frame",
			segments: [][]byte{{0x00, 0x01, 0x52, 0x01}},
			want:     0xAB,
		},
		{
			// SetRGBLED red: DID=02 CID=20 SEQ=00 DLEN=05 FF 00 00 01
			name:     "set rgb led",
			segments: [][]byte{{0x02, 0x20, 0x00, 0x05}, {0xFF, 0x00, 0x00, 0x01}},
			want:     ^byte(0x27),
		},
		{
			name:     "empty is 0xFF",
			segments: nil,
			want:     0xFF,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Checksum(tt.segments...); got != tt.want {
				t.Errorf("Checksum() = 0x%02X, want 0x%02X", got, tt.want)
			}
		})
	}
}
