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

// spheroctl is a small command-line exerciser for the go-sphero driver:
//
//	spheroctl -device /dev/rfcomm0 ping
//	spheroctl -device /dev/rfcomm0 led ff 00 00
//	spheroctl -device /dev/rfcomm0 roll 80 90
//	spheroctl -bt 68:86:E7:00:11:22 status
//	spheroctl -sim listen
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	sphero "github.com/orbforge/go-sphero"
	"github.com/orbforge/go-sphero/internal/simulator"
	"github.com/orbforge/go-sphero/transport/serial"
)

var (
	flagDevice  string
	flagBT      string
	flagSim     bool
	flagDebug   bool
	flagTimeout time.Duration
	flagLog     bool
)

func init() {
	flag.StringVar(&flagDevice, "device", "", "Serial device path (e.g. /dev/rfcomm0, COM5)")
	flag.StringVar(&flagBT, "bt", "", "Bluetooth address (AA:BB:CC:DD:EE:FF) for a direct RFCOMM connection (linux)")
	flag.BoolVar(&flagSim, "sim", false, "Use the built-in virtual robot instead of hardware")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
	flag.DurationVar(&flagTimeout, "timeout", 500*time.Millisecond, "Per-command response timeout")
	flag.BoolVar(&flagLog, "log", false, "Write a timestamped session log file")
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if flagDebug {
		sphero.SetDebugEnabled(true)
	}
	if flagLog {
		path, err := sphero.InitSessionLog()
		if err != nil {
			return err
		}
		defer func() { _ = sphero.CloseSessionLog() }()
		fmt.Printf("Session log: %s\n", path)
	}

	transport, err := openTransport()
	if err != nil {
		return err
	}

	device, err := sphero.New(transport, sphero.WithTimeout(flagTimeout))
	if err != nil {
		return err
	}
	if err := device.Connect(); err != nil {
		return err
	}
	defer func() { _ = device.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// The robot may still be waking from sleep; retry the opening ping.
	if err := sphero.Retry(ctx, sphero.DefaultRetryConfig(), func() error {
		return device.Ping(ctx)
	}); err != nil {
		return fmt.Errorf("robot did not answer ping: %w", err)
	}

	args := flag.Args()
	if len(args) == 0 {
		return status(ctx, device)
	}

	switch args[0] {
	case "ping":
		fmt.Println("OK")
		return nil
	case "status":
		return status(ctx, device)
	case "led":
		return led(ctx, device, args[1:])
	case "roll":
		return roll(ctx, device, args[1:])
	case "stop":
		return device.Stop(ctx)
	case "sleep":
		return device.Sleep(ctx, 0)
	case "listen":
		return listen(ctx, device)
	default:
		return fmt.Errorf("unknown command %q (want ping, status, led, roll, stop, sleep, listen)", args[0])
	}
}

func openTransport() (sphero.Transport, error) {
	switch {
	case flagSim:
		return simulator.New(), nil
	case flagBT != "":
		return openBluetooth(flagBT)
	case flagDevice != "":
		return serial.New(flagDevice)
	default:
		return nil, fmt.Errorf("need -device, -bt or -sim")
	}
}

func status(ctx context.Context, device *sphero.Device) error {
	version, err := device.GetVersioning(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Version: %s\n", version)

	bt, err := device.GetBluetoothInfo(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Name: %s (%s)\n", bt.Name, bt.Address)

	power, err := device.GetPowerState(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Power: %s, %.2fV, %d charges\n",
		power.State, float64(power.BatteryVoltage)/100, power.ChargeCount)
	return nil
}

func led(ctx context.Context, device *sphero.Device, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: led RR GG BB (hex)")
	}
	rgb, err := hex.DecodeString(args[0] + args[1] + args[2])
	if err != nil {
		return fmt.Errorf("invalid color: %w", err)
	}
	return device.SetRGBLED(ctx, rgb[0], rgb[1], rgb[2], false)
}

func roll(ctx context.Context, device *sphero.Device, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: roll SPEED HEADING")
	}
	speed, err := strconv.ParseUint(args[0], 0, 8)
	if err != nil {
		return fmt.Errorf("invalid speed: %w", err)
	}
	heading, err := strconv.ParseUint(args[1], 10, 16)
	if err != nil {
		return fmt.Errorf("invalid heading: %w", err)
	}
	return device.Roll(ctx, byte(speed), uint16(heading), true)
}

func listen(ctx context.Context, device *sphero.Device) error {
	if err := device.SetPowerNotification(ctx, true); err != nil {
		return err
	}
	if err := device.ConfigureCollisionDetection(ctx, sphero.CollisionConfig{
		Method:     sphero.CollisionDefault,
		XThreshold: 0x40, XSpeed: 0x40,
		YThreshold: 0x40, YSpeed: 0x40,
		DeadTime: 10,
	}); err != nil {
		return err
	}

	listener := device.Listen(sphero.Filter{}, 32)
	defer listener.Close()

	fmt.Println("Listening for async notifications, Ctrl-C to stop...")
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-listener.Frames():
			if !ok {
				return nil
			}
			printAsync(frame)
		}
	}
}

func printAsync(frame *sphero.Frame) {
	switch frame.IDCode {
	case sphero.AsyncPowerNotification:
		if level, err := sphero.ParsePowerNotification(frame.Data); err == nil {
			fmt.Printf("power: %s\n", level)
			return
		}
	case sphero.AsyncCollisionDetected:
		if c, err := sphero.ParseCollisionData(frame.Data); err == nil {
			fmt.Printf("collision: axis=%02X speed=%d mag=(%d,%d)\n", c.Axis, c.Speed, c.XMagnitude, c.YMagnitude)
			return
		}
	}
	fmt.Printf("%s: %s\n", frame, hex.EncodeToString(frame.Data))
}
