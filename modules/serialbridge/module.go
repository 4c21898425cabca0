// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package serialbridge drives a liquid handler controller attached to a
// serial port.
//
// Every command is written as a single JSON object followed by a newline.
// The controller answers each line with "ok" or "error <message>":
//
//	> {"op":"load_labware","load_name":"black_96_wellplate_200ul_pcr","slot":3}
//	< ok
//	> {"op":"transfer","mount":"left","volume_ul":50,"source":"3:A1","dest":"3:A2","air_gap_ul":0,"mix_after":{"repetitions":5,"volume_ul":75},"new_tip":"never"}
//	< ok
//
// Transfer lines always carry every volume, zero included. A reply must
// arrive within the read timeout of the port options; the wait also ends
// when the command's context is cancelled.
package serialbridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/dilugrid/internal/ctxlog"
	"github.com/specialistvlad/dilugrid/internal/platform"
)

// DriverName is the name the bridge registers under.
const DriverName = "serialbridge"

// Module implements the platform.Module interface for this package.
type Module struct {
	// Opener replaces OpenSerial, mostly in tests.
	Opener Opener
}

// Register registers the driver with the registry.
func (m *Module) Register(r *platform.Registry) {
	r.Register(DriverName, m.Open)
}

// Open connects to the controller named by opts.SerialPath.
func (m *Module) Open(ctx context.Context, opts platform.Options) (platform.Session, error) {
	if opts.SerialPath == "" {
		return nil, errors.New("serialbridge: no serial port configured")
	}
	open := m.Opener
	if open == nil {
		open = OpenSerial
	}

	portOpts, err := PortOptions{
		BaudRate:    opts.BaudRate,
		DataBits:    opts.DataBits,
		StopBits:    opts.StopBits,
		Parity:      opts.Parity,
		ReadTimeout: opts.ReadTimeout,
	}.Normalize()
	if err != nil {
		return nil, fmt.Errorf("serialbridge: %w", err)
	}
	port, err := open(opts.SerialPath, portOpts)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Info("🔌 Connected to controller.",
		"port", opts.SerialPath,
		"baud", portOpts.BaudRate,
		"framing", fmt.Sprintf("%d%s%d", portOpts.DataBits, portOpts.Parity, portOpts.StopBits),
		"reply_timeout", portOpts.ReadTimeout)
	return NewBridge(port, opts.Catalog, portOpts.ReadTimeout), nil
}
