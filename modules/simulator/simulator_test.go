// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package simulator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/dilugrid/internal/ctxlog"
	"github.com/specialistvlad/dilugrid/internal/labware"
	"github.com/specialistvlad/dilugrid/internal/platform"
	"github.com/specialistvlad/dilugrid/internal/protocol"
	"github.com/specialistvlad/dilugrid/internal/settings"
	"github.com/specialistvlad/dilugrid/internal/volume"
)

func testContext() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type rig struct {
	deck    *Deck
	trough  *labware.Labware
	plate   *labware.Labware
	pipette *Pipette
}

func newRig(t *testing.T, pipette string) *rig {
	t.Helper()
	ctx := testContext()
	d := NewDeck(nil)
	trough, err := d.LoadLabware(ctx, "citadel_12_wellplate_22000ul", 2)
	require.NoError(t, err)
	plate, err := d.LoadLabware(ctx, "black_96_wellplate_200ul_pcr", 3)
	require.NoError(t, err)
	rack, err := d.LoadLabware(ctx, "opentrons_96_tiprack_300ul", 1)
	require.NoError(t, err)
	p, err := d.LoadInstrument(ctx, pipette, platform.MountLeft, []*labware.Labware{rack})
	require.NoError(t, err)
	return &rig{deck: d, trough: trough, plate: plate, pipette: p.(*Pipette)}
}

func well(t *testing.T, lw *labware.Labware, name string) labware.Well {
	t.Helper()
	w, err := lw.WellByName(name)
	require.NoError(t, err)
	return w
}

func TestModule_Registers(t *testing.T) {
	r := platform.NewRegistry()
	(&Module{}).Register(r)
	assert.Equal(t, []string{DriverName}, r.Names())

	s, err := r.Open(testContext(), DriverName, platform.Options{})
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}

func TestDeck_LoadLabware(t *testing.T) {
	ctx := testContext()
	d := NewDeck(nil)

	trough, err := d.LoadLabware(ctx, "nest_12_reservoir_15ml", 2)
	require.NoError(t, err)
	assert.Equal(t, 15*volume.Milliliter, d.Volume(trough.Wells()[0]), "reservoirs start full")

	_, err = d.LoadLabware(ctx, "corning_96_wellplate_360ul_flat", 2)
	assert.ErrorContains(t, err, "already occupied")

	_, err = d.LoadLabware(ctx, "corning_96_wellplate_360ul_flat", 13)
	assert.ErrorContains(t, err, "does not exist")

	_, err = d.LoadLabware(ctx, "nope", 4)
	assert.True(t, errors.Is(err, labware.ErrUnknownLabware))
}

func TestDeck_LoadInstrument(t *testing.T) {
	ctx := testContext()
	d := NewDeck(nil)
	plate, err := d.LoadLabware(ctx, "corning_96_wellplate_360ul_flat", 3)
	require.NoError(t, err)
	small, err := d.LoadLabware(ctx, "opentrons_96_tiprack_20ul", 1)
	require.NoError(t, err)
	big, err := d.LoadLabware(ctx, "opentrons_96_tiprack_300ul", 4)
	require.NoError(t, err)

	_, err = d.LoadInstrument(ctx, "p300_single_gen2", platform.MountLeft, []*labware.Labware{plate})
	assert.ErrorContains(t, err, "not a tip rack")

	_, err = d.LoadInstrument(ctx, "p300_single_gen2", platform.MountLeft, []*labware.Labware{small})
	assert.ErrorContains(t, err, "tips hold")

	_, err = d.LoadInstrument(ctx, "p9000_single", platform.MountLeft, nil)
	assert.True(t, errors.Is(err, platform.ErrUnknownPipette))

	_, err = d.LoadInstrument(ctx, "p300_single_gen2", platform.MountLeft, []*labware.Labware{big})
	require.NoError(t, err)
	_, err = d.LoadInstrument(ctx, "p20_single_gen2", platform.MountLeft, []*labware.Labware{small})
	assert.ErrorContains(t, err, "already has a pipette")
}

func TestPipette_TipLifecycle(t *testing.T) {
	ctx := testContext()
	r := newRig(t, "p300_multi_gen2")

	assert.Error(t, r.pipette.DropTip(ctx), "nothing to drop")
	require.NoError(t, r.pipette.PickUpTip(ctx))
	assert.Error(t, r.pipette.PickUpTip(ctx), "already holding a tip")
	require.NoError(t, r.pipette.DropTip(ctx))
	assert.Equal(t, 8, r.pipette.TipsUsed())

	for i := 1; i < 12; i++ {
		require.NoError(t, r.pipette.PickUpTip(ctx))
		require.NoError(t, r.pipette.DropTip(ctx))
	}
	err := r.pipette.PickUpTip(ctx)
	assert.True(t, errors.Is(err, ErrOutOfTips), "got %v", err)
}

func TestTipRack_MultiChannelStartsFreshColumn(t *testing.T) {
	def, err := labware.NewCatalog().Lookup("opentrons_96_tiprack_300ul")
	require.NoError(t, err)
	rack := &tipRack{labware: labware.New(def, 1)}

	require.True(t, rack.take(1))
	require.True(t, rack.take(8))
	assert.Equal(t, 16, rack.used, "the partial first column is skipped")
}

func TestPipette_TransferMovesLiquid(t *testing.T) {
	ctx := testContext()
	r := newRig(t, "p300_single_gen2")
	src := well(t, r.trough, "A1")
	dst := well(t, r.plate, "C4")

	require.NoError(t, r.pipette.Transfer(ctx, platform.TransferRequest{
		Volume: 120 * volume.Microliter,
		Source: src,
		Dest:   dst,
		AirGap: 10 * volume.Microliter,
		NewTip: platform.TipOnce,
	}))
	assert.Equal(t, 120*volume.Microliter, r.deck.Volume(dst))
	assert.Equal(t, 22*volume.Milliliter-120*volume.Microliter, r.deck.Volume(src))
	assert.False(t, r.pipette.HasTip(), "once returns the tip")
}

func TestPipette_TransferTipPolicies(t *testing.T) {
	ctx := testContext()
	r := newRig(t, "p300_single_gen2")
	req := platform.TransferRequest{
		Volume: 50 * volume.Microliter,
		Source: well(t, r.trough, "A1"),
		Dest:   well(t, r.plate, "A1"),
		NewTip: platform.TipNever,
	}

	err := r.pipette.Transfer(ctx, req)
	assert.ErrorContains(t, err, "needs an attached tip")

	require.NoError(t, r.pipette.PickUpTip(ctx))
	req.NewTip = platform.TipAlways
	assert.ErrorContains(t, r.pipette.Transfer(ctx, req), "while one is attached")

	req.NewTip = platform.TipNever
	require.NoError(t, r.pipette.Transfer(ctx, req))
	assert.True(t, r.pipette.HasTip())
}

func TestPipette_TransferSplitsLargeVolumes(t *testing.T) {
	ctx := testContext()
	r := newRig(t, "p300_single_gen2")
	dst := well(t, r.plate, "A1")

	// 300µl capacity minus a 100µl air gap leaves 200µl per aspiration.
	require.NoError(t, r.pipette.Transfer(ctx, platform.TransferRequest{
		Volume: 190 * volume.Microliter,
		Source: well(t, r.trough, "A1"),
		Dest:   dst,
		AirGap: 100 * volume.Microliter,
		NewTip: platform.TipAlways,
	}))
	assert.Equal(t, 1, r.pipette.TipsUsed())

	require.NoError(t, r.pipette.Transfer(ctx, platform.TransferRequest{
		Volume: 40 * volume.Microliter,
		Source: dst,
		Dest:   well(t, r.plate, "A2"),
		AirGap: 280 * volume.Microliter,
		NewTip: platform.TipAlways,
	}))
	assert.Equal(t, 3, r.pipette.TipsUsed(), "two aspirations of 20µl, a fresh tip each")
	assert.Equal(t, 150*volume.Microliter, r.deck.Volume(dst))
}

func TestPipette_TransferLimits(t *testing.T) {
	ctx := testContext()
	r := newRig(t, "p300_single_gen2")
	src := well(t, r.trough, "A1")
	dst := well(t, r.plate, "A1")

	testCases := []struct {
		name    string
		req     platform.TransferRequest
		wantErr string
	}{
		{
			name:    "negative volume",
			req:     platform.TransferRequest{Volume: -50 * volume.Microliter, Source: src, Dest: dst, NewTip: platform.TipOnce},
			wantErr: "negative volume",
		},
		{
			name:    "below minimum",
			req:     platform.TransferRequest{Volume: 5 * volume.Microliter, Source: src, Dest: dst, NewTip: platform.TipOnce},
			wantErr: "below the minimum",
		},
		{
			name:    "air gap fills the tip",
			req:     platform.TransferRequest{Volume: 50 * volume.Microliter, AirGap: 300 * volume.Microliter, Source: src, Dest: dst, NewTip: platform.TipOnce},
			wantErr: "no room for liquid",
		},
		{
			name:    "overflow",
			req:     platform.TransferRequest{Volume: 250 * volume.Microliter, Source: src, Dest: dst, NewTip: platform.TipOnce},
			wantErr: "overflow",
		},
		{
			name: "mix too large",
			req: platform.TransferRequest{Volume: 50 * volume.Microliter, Source: src, Dest: dst, NewTip: platform.TipOnce,
				MixAfter: &platform.Mix{Repetitions: 5, Volume: 400 * volume.Microliter}},
			wantErr: "mix volume",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := r.pipette.Transfer(ctx, tc.req)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestPipette_MultiChannelReach(t *testing.T) {
	ctx := testContext()
	r := newRig(t, "p300_multi_gen2")

	err := r.pipette.Transfer(ctx, platform.TransferRequest{
		Volume: 50 * volume.Microliter,
		Source: well(t, r.trough, "A1"),
		Dest:   well(t, r.plate, "B1"),
		NewTip: platform.TipOnce,
	})
	assert.ErrorContains(t, err, "cannot reach")
}

func TestDeck_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(testContext())
	cancel()
	_, err := NewDeck(nil).LoadLabware(ctx, "nest_12_reservoir_15ml", 2)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRun_DefaultProtocolEndState(t *testing.T) {
	ctx := testContext()
	s, err := settings.Default()
	require.NoError(t, err)

	d := NewDeck(nil)
	require.NoError(t, protocol.Run(ctx, d, s))

	trough, plate := d.slots[protocol.TroughSlot], d.slots[protocol.PlateSlot]
	assert.Equal(t, 14*volume.Milliliter, d.Volume(trough.Wells()[0]), "8 channels x 10 wells x 100µl drawn")

	expected := map[int]volume.Volume{
		0:  -50 * volume.Microliter,
		9:  150 * volume.Microliter,
		10: 0,
		11: 100 * volume.Microliter,
	}
	for c := 1; c <= 8; c++ {
		expected[c] = 100 * volume.Microliter
	}
	for c, column := range plate.Columns() {
		for _, w := range column {
			assert.Equal(t, expected[c], d.Volume(w), "well %s", w.Name())
		}
	}

	tipOps := 0
	for _, cmd := range d.Log() {
		if cmd.Op == "pick_up_tip" {
			tipOps++
		}
	}
	assert.Equal(t, 3, tipOps)
}
