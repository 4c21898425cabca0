// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/specialistvlad/dilugrid/internal/ctxlog"
	"github.com/specialistvlad/dilugrid/internal/labware"
	"github.com/specialistvlad/dilugrid/internal/platform"
	"github.com/specialistvlad/dilugrid/internal/settings"
)

// ErrSettings wraps every failure to load the settings or labware documents.
var ErrSettings = errors.New("settings error")

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	registry *platform.Registry
	catalog  *labware.Catalog
	config   *Config
}

// NewApp is the constructor for the main application. It returns an App with
// its own isolated logger, driver registry, and labware catalog. When no
// modules are given the core drivers are registered.
func NewApp(outW io.Writer, cfg *Config, modules ...platform.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	reg := platform.NewRegistry()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All platform drivers registered.", "drivers", reg.Names())

	catalog := labware.NewCatalog()
	if cfg.LabwarePath != "" {
		defs, err := settings.LoadLabwareDir(ctx, cfg.LabwarePath)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to load labware: %w", ErrSettings, err)
		}
		for _, def := range defs {
			if err := catalog.Register(def); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrSettings, err)
			}
		}
	}
	logger.Debug("Labware catalog ready.", "load_names", len(catalog.LoadNames()))

	return &App{
		outW:     outW,
		logger:   logger,
		registry: reg,
		catalog:  catalog,
		config:   cfg,
	}, nil
}

// Registry returns the application's driver registry. This is primarily for testing.
func (a *App) Registry() *platform.Registry {
	return a.registry
}

// Catalog returns the application's labware catalog.
func (a *App) Catalog() *labware.Catalog {
	return a.catalog
}
