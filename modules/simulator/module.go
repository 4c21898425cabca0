// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package simulator provides an in-memory liquid handler. It is the default
// driver: it checks a protocol against tip, volume, and geometry limits and
// keeps a command log, without any hardware attached.
package simulator

import (
	"context"

	"github.com/specialistvlad/dilugrid/internal/platform"
)

// DriverName is the name the simulator registers under.
const DriverName = "simulator"

// Module implements the platform.Module interface for this package.
type Module struct{}

// Register registers the driver with the registry.
func (m *Module) Register(r *platform.Registry) {
	r.Register(DriverName, Open)
}

// Open starts a session on a fresh, empty deck.
func Open(ctx context.Context, opts platform.Options) (platform.Session, error) {
	return NewDeck(opts.Catalog), nil
}
