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
	"context"
	"encoding/binary"
	"fmt"
)

// Sensor stream mask bits for StreamConfig.Mask (API 1.20, page 25).
// Each selected source contributes one big-endian int16 per sample frame,
// in descending mask-bit order.
const (
	StreamAccelXRaw uint32 = 0x80000000
	StreamAccelYRaw uint32 = 0x40000000
	StreamAccelZRaw uint32 = 0x20000000
	StreamGyroXRaw  uint32 = 0x10000000
	StreamGyroYRaw  uint32 = 0x08000000
	StreamGyroZRaw  uint32 = 0x04000000
	StreamAccelX    uint32 = 0x00008000
	StreamAccelY    uint32 = 0x00004000
	StreamAccelZ    uint32 = 0x00002000
	StreamIMUPitch  uint32 = 0x00040000
	StreamIMURoll   uint32 = 0x00020000
	StreamIMUYaw    uint32 = 0x00010000
)

// StreamConfig configures async sensor streaming via SetDataStreaming.
type StreamConfig struct {
	// Divisor of the 400Hz control loop: 2 streams at 200Hz, 10 at 40Hz.
	Divisor uint16
	// FramesPerPacket is how many sample frames the robot batches into
	// each async packet.
	FramesPerPacket uint16
	// Mask selects the sensor sources to stream.
	Mask uint32
	// PacketCount limits the stream; 0 streams until reconfigured.
	PacketCount byte
	// Mask2 selects additional sources (quaternions, locator) on newer
	// firmware. Appended to the command only when nonzero.
	Mask2 uint32
}

// SetDataStreaming configures async sensor streaming. Samples arrive as
// async frames with IDCode AsyncSensorData; decode them with
// ParseSensorData using the same config. Passing a zero Mask (and Mask2)
// disables streaming.
func (d *Device) SetDataStreaming(ctx context.Context, cfg StreamConfig) error {
	payload := make([]byte, 0, 13)
	payload = binary.BigEndian.AppendUint16(payload, cfg.Divisor)
	payload = binary.BigEndian.AppendUint16(payload, cfg.FramesPerPacket)
	payload = binary.BigEndian.AppendUint32(payload, cfg.Mask)
	payload = append(payload, cfg.PacketCount)
	if cfg.Mask2 != 0 {
		payload = binary.BigEndian.AppendUint32(payload, cfg.Mask2)
	}
	_, err := d.command(ctx, "SetDataStreaming", DeviceSphero, cmdSetDataStreaming, payload)
	return err
}

// ParseSensorData splits a sensor stream async payload into sample
// frames, each holding one int16 per bit set in cfg.Mask (and Mask2),
// ordered from the highest mask bit down.
func ParseSensorData(cfg StreamConfig, data []byte) ([][]int16, error) {
	perFrame := popcount(cfg.Mask) + popcount(cfg.Mask2)
	if perFrame == 0 {
		return nil, fmt.Errorf("sensor data: empty stream mask")
	}
	frameBytes := perFrame * 2
	if len(data)%frameBytes != 0 {
		return nil, fmt.Errorf("sensor data: %d bytes is not a multiple of the %d-byte frame", len(data), frameBytes)
	}

	frames := make([][]int16, 0, len(data)/frameBytes)
	for off := 0; off < len(data); off += frameBytes {
		values := make([]int16, perFrame)
		for i := range values {
			values[i] = int16(binary.BigEndian.Uint16(data[off+2*i:]))
		}
		frames = append(frames, values)
	}
	return frames, nil
}

func popcount(mask uint32) int {
	n := 0
	for ; mask != 0; mask &= mask - 1 {
		n++
	}
	return n
}

// CollisionMethod selects the collision detection algorithm.
type CollisionMethod byte

// Collision detection methods (Sphero collision detection app note)
const (
	CollisionOff     CollisionMethod = 0x00
	CollisionDefault CollisionMethod = 0x01
)

// CollisionConfig configures onboard collision detection.
type CollisionConfig struct {
	Method CollisionMethod
	// XThreshold/YThreshold set the base impact threshold per axis;
	// XSpeed/YSpeed scale the threshold up with current speed.
	XThreshold, XSpeed byte
	YThreshold, YSpeed byte
	// DeadTime suppresses repeated reports, in 10ms units.
	DeadTime byte
}

// ConfigureCollisionDetection enables collision reporting. Impacts arrive
// as async frames with IDCode AsyncCollisionDetected; decode them with
// ParseCollisionData.
func (d *Device) ConfigureCollisionDetection(ctx context.Context, cfg CollisionConfig) error {
	payload := []byte{
		byte(cfg.Method),
		cfg.XThreshold, cfg.XSpeed,
		cfg.YThreshold, cfg.YSpeed,
		cfg.DeadTime,
	}
	_, err := d.command(ctx, "ConfigureCollisionDetection", DeviceSphero, cmdConfigureCollision, payload)
	return err
}

// CollisionData is one decoded collision report (collision app note).
type CollisionData struct {
	// Impact acceleration at the moment of detection
	X, Y, Z int16
	// Axis bit 0 set = X axis crossed threshold, bit 1 = Y axis
	Axis byte
	// Impact power per axis
	XMagnitude, YMagnitude int16
	// Speed of the robot when the impact was detected
	Speed byte
	// Milliseconds since power-up
	Timestamp uint32
}

// ParseCollisionData decodes an AsyncCollisionDetected payload.
func ParseCollisionData(data []byte) (*CollisionData, error) {
	if len(data) < 16 {
		return nil, fmt.Errorf("collision data: short payload (%d bytes, want 16)", len(data))
	}
	return &CollisionData{
		X:          int16(binary.BigEndian.Uint16(data[0:2])),
		Y:          int16(binary.BigEndian.Uint16(data[2:4])),
		Z:          int16(binary.BigEndian.Uint16(data[4:6])),
		Axis:       data[6],
		XMagnitude: int16(binary.BigEndian.Uint16(data[7:9])),
		YMagnitude: int16(binary.BigEndian.Uint16(data[9:11])),
		Speed:      data[11],
		Timestamp:  binary.BigEndian.Uint32(data[12:16]),
	}, nil
}

// ParsePowerNotification decodes an AsyncPowerNotification payload, which
// carries just the power level byte.
func ParsePowerNotification(data []byte) (PowerLevel, error) {
	if len(data) < 1 {
		return 0, fmt.Errorf("power notification: empty payload")
	}
	return PowerLevel(data[0]), nil
}
