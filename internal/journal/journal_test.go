// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package journal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/dilugrid/internal/ctxlog"
	"github.com/specialistvlad/dilugrid/internal/labware"
	"github.com/specialistvlad/dilugrid/internal/platform"
	"github.com/specialistvlad/dilugrid/internal/protocol"
	"github.com/specialistvlad/dilugrid/internal/settings"
)

func openStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func testContext() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestStore_RunLifecycle(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)

	id, err := s.BeginRun(ctx, "Customizable Serial Dilution", "simulator")
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err, "run IDs are UUIDs")

	run, err := s.Run(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, run.Status)
	assert.True(t, run.FinishedAt.IsZero())

	require.NoError(t, s.FinishRun(ctx, id, errors.New("tip rack empty")))
	run, err = s.Run(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, "tip rack empty", run.Error)
	assert.False(t, run.FinishedAt.Before(run.StartedAt))

	_, err = s.Run(ctx, "missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))
	assert.True(t, errors.Is(s.FinishRun(ctx, "missing", nil), ErrRunNotFound))
}

func TestStore_ReopenKeepsRuns(t *testing.T) {
	ctx := context.Background()
	s, path := openStore(t)
	id, err := s.BeginRun(ctx, "p", "simulator")
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, id, nil))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	run, err := s2.Run(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, run.Status)

	version, err := s2.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version, "reopening applies nothing new")
}

func TestStore_DuplicateSeqRejected(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)
	id, err := s.BeginRun(ctx, "p", "simulator")
	require.NoError(t, err)

	require.NoError(t, s.RecordCommand(ctx, id, 1, "pick_up_tip", "p300", nil))
	assert.Error(t, s.RecordCommand(ctx, id, 1, "drop_tip", "p300", nil))
}

// failingPipette fails every transfer.
type failingPipette struct{}

func (failingPipette) Name() string { return "p300_single_gen2" }
func (failingPipette) Channels() int { return 1 }
func (failingPipette) PickUpTip(context.Context) error { return nil }
func (failingPipette) DropTip(context.Context) error { return nil }
func (failingPipette) Transfer(context.Context, platform.TransferRequest) error {
	return errors.New("clot detected")
}

type stubContext struct{ catalog *labware.Catalog }

func (c stubContext) LoadLabware(_ context.Context, loadName string, slot int) (*labware.Labware, error) {
	def, err := c.catalog.Lookup(loadName)
	if err != nil {
		return nil, err
	}
	return labware.New(def, slot), nil
}

func (c stubContext) LoadInstrument(context.Context, string, platform.Mount, []*labware.Labware) (platform.Pipette, error) {
	return failingPipette{}, nil
}

func TestWrap_RecordsCommandsAndErrors(t *testing.T) {
	ctx := testContext()
	s, _ := openStore(t)
	id, err := s.BeginRun(ctx, "p", "stub")
	require.NoError(t, err)

	pc := Wrap(stubContext{catalog: labware.NewCatalog()}, s, id)
	_, err = pc.LoadLabware(ctx, "mystery", 3)
	require.Error(t, err)
	plate, err := pc.LoadLabware(ctx, "black_96_wellplate_200ul_pcr", 3)
	require.NoError(t, err)
	p, err := pc.LoadInstrument(ctx, "p300_single_gen2", platform.MountLeft, nil)
	require.NoError(t, err)
	require.NoError(t, p.PickUpTip(ctx))
	err = p.Transfer(ctx, platform.TransferRequest{Source: plate.Wells()[0], Dest: plate.Wells()[1], NewTip: platform.TipNever})
	assert.EqualError(t, err, "clot detected")

	cmds, err := s.Commands(ctx, id)
	require.NoError(t, err)
	require.Len(t, cmds, 5)
	for i, c := range cmds {
		assert.Equal(t, i+1, c.Seq)
	}
	assert.Equal(t, "load_labware", cmds[0].Op)
	assert.Contains(t, cmds[0].Error, "unknown labware")
	assert.Equal(t, "black_96_wellplate_200ul_pcr in slot 3", cmds[1].Detail)
	assert.Equal(t, "p300_single_gen2 on left", cmds[2].Detail)
	assert.Equal(t, "pick_up_tip", cmds[3].Op)
	assert.Equal(t, "transfer", cmds[4].Op)
	assert.True(t, strings.HasPrefix(cmds[4].Detail, "0µl from 3:A1 to 3:B1"), cmds[4].Detail)
	assert.Equal(t, "clot detected", cmds[4].Error)
}

func TestWrap_FullProtocol(t *testing.T) {
	ctx := testContext()
	s, _ := openStore(t)
	id, err := s.BeginRun(ctx, "Customizable Serial Dilution", "stub")
	require.NoError(t, err)

	cfg, err := settings.Default()
	require.NoError(t, err)
	cfg.BlankOn = false

	err = protocol.Run(ctx, Wrap(stubContext{catalog: labware.NewCatalog()}, s, id), cfg)
	require.Error(t, err)
	require.NoError(t, s.FinishRun(ctx, id, err))

	cmds, err := s.Commands(ctx, id)
	require.NoError(t, err)
	// 3 labware loads, the instrument, a tip, then the first transfer fails.
	require.Len(t, cmds, 6)
	assert.Equal(t, "clot detected", cmds[5].Error)

	run, err := s.Run(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Contains(t, run.Error, "prefill phase")
}

func TestStore_Runs(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)

	first, err := s.BeginRun(ctx, "first", "simulator")
	require.NoError(t, err)
	second, err := s.BeginRun(ctx, "second", "serialbridge")
	require.NoError(t, err)

	runs, err = s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, first, runs[0].ID)
	assert.Equal(t, second, runs[1].ID)
	assert.Equal(t, "serialbridge", runs[1].Platform)
}
