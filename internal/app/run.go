// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/dilugrid/internal/ctxlog"
	"github.com/specialistvlad/dilugrid/internal/journal"
	"github.com/specialistvlad/dilugrid/internal/platform"
	"github.com/specialistvlad/dilugrid/internal/protocol"
	"github.com/specialistvlad/dilugrid/internal/settings"
)

// Run loads the settings and executes the serial dilution on the configured
// platform.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	s, err := settings.Load(ctx, a.config.ProtocolPath)
	if err != nil {
		return fmt.Errorf("%w: failed to load settings: %w", ErrSettings, err)
	}
	if err := s.RegisterLabware(a.catalog); err != nil {
		return fmt.Errorf("%w: %w", ErrSettings, err)
	}
	a.logger.Info("📋 Protocol loaded.",
		"name", s.Metadata.ProtocolName,
		"pipette", s.PipetteType,
		"dilutions", s.NumOfDilutions,
		"blank", s.BlankOn)

	// Nothing is opened or journaled for a protocol that cannot run.
	if _, err := protocol.Prepare(s); err != nil {
		return fmt.Errorf("invalid protocol: %w", err)
	}

	session, err := a.registry.Open(ctx, a.config.Platform, platform.Options{
		Catalog:     a.catalog,
		SerialPath:  a.config.SerialPort,
		BaudRate:    a.config.BaudRate,
		DataBits:    a.config.DataBits,
		StopBits:    a.config.StopBits,
		Parity:      a.config.Parity,
		ReadTimeout: a.config.ReadTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to open %s platform: %w", a.config.Platform, err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			a.logger.Error("Failed to close platform session.", "error", err)
		}
	}()

	var pc platform.Context = session
	finish := func(error) {}
	if a.config.JournalPath != "" {
		store, err := journal.Open(a.config.JournalPath)
		if err != nil {
			return err
		}
		defer store.Close()

		runID, err := store.BeginRun(ctx, s.Metadata.ProtocolName, a.config.Platform)
		if err != nil {
			return err
		}
		ctx = ctxlog.With(ctx, "run_id", runID)
		pc = journal.Wrap(session, store, runID)
		finish = func(runErr error) {
			if err := store.FinishRun(context.WithoutCancel(ctx), runID, runErr); err != nil {
				a.logger.Error("Failed to finish journal run.", "run_id", runID, "error", err)
			}
		}
		a.logger.Info("📓 Journaling run.", "run_id", runID, "journal", a.config.JournalPath)
	}

	a.logger.Info("🚀 Starting serial dilution...", "platform", a.config.Platform)
	runErr := protocol.Run(ctx, pc, s)
	finish(runErr)
	if runErr != nil {
		return fmt.Errorf("serial dilution failed: %w", runErr)
	}
	a.logger.Info("🏁 Serial dilution finished.")
	return nil
}
