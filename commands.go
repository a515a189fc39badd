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
	"strings"
	"time"
)

// Virtual device IDs (Sphero API 1.20, page 10). The robot multiplexes
// several logical devices behind one link.
const (
	DeviceCore       = 0x00
	DeviceBootloader = 0x01
	DeviceSphero     = 0x02
)

// Core command IDs (DID 0x00)
const (
	cmdPing                 = 0x01
	cmdGetVersioning        = 0x02
	cmdSetDeviceName        = 0x10
	cmdGetBluetoothInfo     = 0x11
	cmdGetPowerState        = 0x20
	cmdSetPowerNotification = 0x21
	cmdSleep                = 0x22
	cmdSetInactivityTimeout = 0x25
)

// Sphero command IDs (DID 0x02)
const (
	cmdSetHeading         = 0x01
	cmdSetStabilization   = 0x02
	cmdSetRotationRate    = 0x03
	cmdSetDataStreaming   = 0x11
	cmdConfigureCollision = 0x12
	cmdSetRGBLED          = 0x20
	cmdSetBackLED         = 0x21
	cmdGetRGBLED          = 0x22
	cmdRoll               = 0x30
	cmdSetRawMotors       = 0x33
	cmdSetMotionTimeout   = 0x34
)

// command sends one command and checks the MRSP code, returning the
// response payload on success. All typed command methods funnel through
// here so MRSP handling lives in one place.
func (d *Device) command(ctx context.Context, name string, did, cid byte, payload []byte) ([]byte, error) {
	f, err := d.Send(ctx, did, cid, payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if !f.Ok() {
		return nil, &DeviceError{Command: name, Code: f.MRSP}
	}
	return f.Data, nil
}

// Ping verifies the link end to end; the robot answers with an empty
// success response.
func (d *Device) Ping(ctx context.Context) error {
	_, err := d.command(ctx, "Ping", DeviceCore, cmdPing, nil)
	return err
}

// VersionInfo is the robot's versioning record (API 1.20, page 12).
type VersionInfo struct {
	RecordVersion     byte
	ModelNumber       byte
	HardwareVersion   byte
	MainAppVersion    byte
	MainAppRevision   byte
	BootloaderVersion byte
	OrbBasicVersion   byte
	MacroVersion      byte
}

func (v *VersionInfo) String() string {
	return fmt.Sprintf("model %d hw %d app %d.%d", v.ModelNumber, v.HardwareVersion, v.MainAppVersion, v.MainAppRevision)
}

// GetVersioning fetches the robot's version record.
func (d *Device) GetVersioning(ctx context.Context) (*VersionInfo, error) {
	data, err := d.command(ctx, "GetVersioning", DeviceCore, cmdGetVersioning, nil)
	if err != nil {
		return nil, err
	}
	if len(data) < 8 {
		return nil, fmt.Errorf("GetVersioning: short response (%d bytes)", len(data))
	}
	return &VersionInfo{
		RecordVersion:     data[0],
		ModelNumber:       data[1],
		HardwareVersion:   data[2],
		MainAppVersion:    data[3],
		MainAppRevision:   data[4],
		BootloaderVersion: data[5],
		OrbBasicVersion:   data[6],
		MacroVersion:      data[7],
	}, nil
}

// SetDeviceName sets the robot's advertised name (persisted, 48 bytes max).
func (d *Device) SetDeviceName(ctx context.Context, name string) error {
	if len(name) > 48 {
		return fmt.Errorf("SetDeviceName: %w: %d bytes (max 48)", ErrPayloadTooLarge, len(name))
	}
	_, err := d.command(ctx, "SetDeviceName", DeviceCore, cmdSetDeviceName, []byte(name))
	return err
}

// BluetoothInfo is the robot's name and BTA (API 1.20, page 13).
type BluetoothInfo struct {
	Name    string
	Address string
}

// GetBluetoothInfo fetches the robot's Bluetooth name and address.
func (d *Device) GetBluetoothInfo(ctx context.Context) (*BluetoothInfo, error) {
	data, err := d.command(ctx, "GetBluetoothInfo", DeviceCore, cmdGetBluetoothInfo, nil)
	if err != nil {
		return nil, err
	}
	if len(data) < 28 {
		return nil, fmt.Errorf("GetBluetoothInfo: short response (%d bytes)", len(data))
	}
	return &BluetoothInfo{
		Name:    strings.TrimRight(string(data[:16]), "\x00"),
		Address: string(data[16:28]),
	}, nil
}

// PowerLevel is the robot's battery state.
type PowerLevel byte

// Power states (API 1.20, page 15)
const (
	PowerCharging PowerLevel = 0x01
	PowerOK       PowerLevel = 0x02
	PowerLow      PowerLevel = 0x03
	PowerCritical PowerLevel = 0x04
)

func (p PowerLevel) String() string {
	switch p {
	case PowerCharging:
		return "charging"
	case PowerOK:
		return "ok"
	case PowerLow:
		return "low"
	case PowerCritical:
		return "critical"
	default:
		return fmt.Sprintf("unknown(0x%02X)", byte(p))
	}
}

// PowerState is the robot's power record.
type PowerState struct {
	RecordVersion  byte
	State          PowerLevel
	BatteryVoltage uint16 // 100ths of a volt
	ChargeCount    uint16 // lifetime charge cycles
	SecondsAwake   uint16 // seconds since last recharge
}

// GetPowerState fetches the robot's power record.
func (d *Device) GetPowerState(ctx context.Context) (*PowerState, error) {
	data, err := d.command(ctx, "GetPowerState", DeviceCore, cmdGetPowerState, nil)
	if err != nil {
		return nil, err
	}
	return parsePowerState("GetPowerState", data)
}

func parsePowerState(op string, data []byte) (*PowerState, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%s: short response (%d bytes)", op, len(data))
	}
	return &PowerState{
		RecordVersion:  data[0],
		State:          PowerLevel(data[1]),
		BatteryVoltage: binary.BigEndian.Uint16(data[2:4]),
		ChargeCount:    binary.BigEndian.Uint16(data[4:6]),
		SecondsAwake:   binary.BigEndian.Uint16(data[6:8]),
	}, nil
}

// SetPowerNotification enables or disables async power notifications
// (IDCode AsyncPowerNotification, roughly every 10 seconds).
func (d *Device) SetPowerNotification(ctx context.Context, enable bool) error {
	_, err := d.command(ctx, "SetPowerNotification", DeviceCore, cmdSetPowerNotification, []byte{boolByte(enable)})
	return err
}

// Sleep puts the robot into deep sleep. wakeup schedules an automatic
// wake after that many seconds; zero sleeps until touched or charged.
func (d *Device) Sleep(ctx context.Context, wakeup time.Duration) error {
	secs := uint16(wakeup / time.Second)
	payload := []byte{byte(secs >> 8), byte(secs), 0x00}
	_, err := d.command(ctx, "Sleep", DeviceCore, cmdSleep, payload)
	return err
}

// SetInactivityTimeout sets the idle interval after which the robot
// sleeps on its own. Minimum 60 seconds per the protocol.
func (d *Device) SetInactivityTimeout(ctx context.Context, timeout time.Duration) error {
	secs := uint16(timeout / time.Second)
	if secs < 60 {
		return fmt.Errorf("SetInactivityTimeout: minimum is 60s, got %v", timeout)
	}
	_, err := d.command(ctx, "SetInactivityTimeout", DeviceCore, cmdSetInactivityTimeout, []byte{byte(secs >> 8), byte(secs)})
	return err
}

// SetHeading rotates the robot's zero-heading reference to the given
// angle (degrees, 0..359).
func (d *Device) SetHeading(ctx context.Context, heading uint16) error {
	heading %= 360
	_, err := d.command(ctx, "SetHeading", DeviceSphero, cmdSetHeading, []byte{byte(heading >> 8), byte(heading)})
	return err
}

// SetStabilization turns the IMU control system on or off.
func (d *Device) SetStabilization(ctx context.Context, enable bool) error {
	_, err := d.command(ctx, "SetStabilization", DeviceSphero, cmdSetStabilization, []byte{boolByte(enable)})
	return err
}

// SetRotationRate sets the turn rate used when changing heading. 255 is
// the fastest the control system allows.
func (d *Device) SetRotationRate(ctx context.Context, rate byte) error {
	_, err := d.command(ctx, "SetRotationRate", DeviceSphero, cmdSetRotationRate, []byte{rate})
	return err
}

// SetRGBLED sets the main LED color. With persist the color survives
// power cycles as the robot's user color.
func (d *Device) SetRGBLED(ctx context.Context, r, g, b byte, persist bool) error {
	_, err := d.command(ctx, "SetRGBLED", DeviceSphero, cmdSetRGBLED, []byte{r, g, b, boolByte(persist)})
	return err
}

// GetRGBLED reads back the user LED color.
func (d *Device) GetRGBLED(ctx context.Context) (r, g, b byte, err error) {
	data, err := d.command(ctx, "GetRGBLED", DeviceSphero, cmdGetRGBLED, nil)
	if err != nil {
		return 0, 0, 0, err
	}
	if len(data) < 3 {
		return 0, 0, 0, fmt.Errorf("GetRGBLED: short response (%d bytes)", len(data))
	}
	return data[0], data[1], data[2], nil
}

// SetBackLED sets the brightness of the blue aiming LED on the back of
// the robot. This LED is not persistent.
func (d *Device) SetBackLED(ctx context.Context, brightness byte) error {
	_, err := d.command(ctx, "SetBackLED", DeviceSphero, cmdSetBackLED, []byte{brightness})
	return err
}

// Roll commands the robot to move at speed toward heading (degrees,
// 0..359). state false stops the robot; speed 0 with state true performs
// an in-place rotation to heading.
func (d *Device) Roll(ctx context.Context, speed byte, heading uint16, state bool) error {
	heading %= 360
	payload := []byte{speed, byte(heading >> 8), byte(heading), boolByte(state)}
	_, err := d.command(ctx, "Roll", DeviceSphero, cmdRoll, payload)
	return err
}

// Stop commands the robot to stop rolling, keeping its current heading.
func (d *Device) Stop(ctx context.Context) error {
	return d.Roll(ctx, 0, 0, false)
}

// MotorMode selects how one drive motor is driven in raw mode.
type MotorMode byte

// Raw motor modes (API 1.20, page 28)
const (
	MotorOff     MotorMode = 0x00
	MotorForward MotorMode = 0x01
	MotorReverse MotorMode = 0x02
	MotorBrake   MotorMode = 0x03
	MotorIgnore  MotorMode = 0x04
)

// SetRawMotorValues drives the motors directly, bypassing the control
// system. Usually paired with SetStabilization(false).
func (d *Device) SetRawMotorValues(ctx context.Context, leftMode MotorMode, leftPower byte, rightMode MotorMode, rightPower byte) error {
	payload := []byte{byte(leftMode), leftPower, byte(rightMode), rightPower}
	_, err := d.command(ctx, "SetRawMotorValues", DeviceSphero, cmdSetRawMotors, payload)
	return err
}

// SetMotionTimeout sets how long the last motion command stays in effect
// before the robot stops itself.
func (d *Device) SetMotionTimeout(ctx context.Context, timeout time.Duration) error {
	ms := uint16(timeout / time.Millisecond)
	_, err := d.command(ctx, "SetMotionTimeout", DeviceSphero, cmdSetMotionTimeout, []byte{byte(ms >> 8), byte(ms)})
	return err
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
