// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package serialbridge

import (
	"fmt"
	"io"

	"go.bug.st/serial"
)

// Port is the part of a serial port the bridge uses.
type Port interface {
	io.ReadWriter
	io.Closer
}

// Opener opens the port at path.
type Opener func(path string, opts PortOptions) (Port, error)

// OpenSerial opens a real serial port.
func OpenSerial(path string, opts PortOptions) (Port, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}
	if err := port.SetReadTimeout(opts.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", path, err)
	}
	return port, nil
}
