// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package platform

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/specialistvlad/dilugrid/internal/labware"
)

// Module is the interface that all driver modules implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Options carries everything a driver may need to open a session. Drivers
// ignore the fields that do not concern them.
type Options struct {
	Catalog *labware.Catalog

	SerialPath  string
	BaudRate    int
	DataBits    int
	StopBits    int
	Parity      string
	ReadTimeout time.Duration
}

// Factory opens a session on a driver.
type Factory func(ctx context.Context, opts Options) (Session, error)

// Registry holds the drivers compiled into the binary.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a driver factory under name.
func (r *Registry) Register(name string, f Factory) {
	if _, exists := r.factories[name]; exists {
		panic(fmt.Sprintf("platform driver with name '%s' already registered", name))
	}
	slog.Debug("Registering platform driver.", "name", name)
	r.factories[name] = f
}

// Names returns the registered driver names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open starts a session on the named driver.
func (r *Registry) Open(ctx context.Context, name string, opts Options) (Session, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown platform driver %q (registered: %v)", name, r.Names())
	}
	if opts.Catalog == nil {
		opts.Catalog = labware.NewCatalog()
	}
	return f(ctx, opts)
}
