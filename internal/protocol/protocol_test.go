// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/dilugrid/internal/ctxlog"
	"github.com/specialistvlad/dilugrid/internal/labware"
	"github.com/specialistvlad/dilugrid/internal/platform"
	"github.com/specialistvlad/dilugrid/internal/settings"
	"github.com/specialistvlad/dilugrid/internal/volume"
)

// recorder is a platform double that records every call in order.
type recorder struct {
	catalog  *labware.Catalog
	channels int
	calls    []string
	requests []platform.TransferRequest
	failAt   int // fail the n-th transfer (1-based); 0 disables
}

func newRecorder(channels int) *recorder {
	return &recorder{catalog: labware.NewCatalog(), channels: channels}
}

func (r *recorder) LoadLabware(_ context.Context, loadName string, slot int) (*labware.Labware, error) {
	r.calls = append(r.calls, fmt.Sprintf("load_labware %s %d", loadName, slot))
	def, err := r.catalog.Lookup(loadName)
	if err != nil {
		return nil, err
	}
	return labware.New(def, slot), nil
}

func (r *recorder) LoadInstrument(_ context.Context, name string, mount platform.Mount, tipRacks []*labware.Labware) (platform.Pipette, error) {
	r.calls = append(r.calls, fmt.Sprintf("load_instrument %s %s racks=%d", name, mount, len(tipRacks)))
	return r, nil
}

func (r *recorder) Name() string  { return "recorder" }
func (r *recorder) Channels() int { return r.channels }

func (r *recorder) PickUpTip(context.Context) error {
	r.calls = append(r.calls, "pick_up_tip")
	return nil
}

func (r *recorder) DropTip(context.Context) error {
	r.calls = append(r.calls, "drop_tip")
	return nil
}

func (r *recorder) Transfer(_ context.Context, req platform.TransferRequest) error {
	r.calls = append(r.calls, "transfer")
	r.requests = append(r.requests, req)
	if r.failAt > 0 && len(r.requests) == r.failAt {
		return errHardware
	}
	return nil
}

var errHardware = errors.New("pipette crashed into the deck")

func testContext() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func defaultSettings(t *testing.T) *settings.Settings {
	t.Helper()
	s, err := settings.Default()
	require.NoError(t, err)
	return s
}

// count returns the number of calls equal to name.
func (r *recorder) count(name string) int {
	n := 0
	for _, c := range r.calls {
		if c == name {
			n++
		}
	}
	return n
}

func TestValidate_Range(t *testing.T) {
	for n := 1; n <= 11; n++ {
		assert.NoError(t, Validate(n, false), "n=%d blank off", n)
	}
	for n := 1; n <= 10; n++ {
		assert.NoError(t, Validate(n, true), "n=%d blank on", n)
	}
	for _, n := range []int{-1, 0, 12, 96} {
		for _, blank := range []bool{true, false} {
			err := Validate(n, blank)
			require.Error(t, err, "n=%d", n)
			assert.True(t, errors.Is(err, ErrConfig))
			assert.Contains(t, err.Error(), "between 1 and 11")
		}
	}
}

func TestValidate_NoRoomForBlank(t *testing.T) {
	err := Validate(11, true)
	require.Error(t, err)
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Reason, "no room for blank")
}

func TestPrepare_Volumes(t *testing.T) {
	params, err := Prepare(defaultSettings(t))
	require.NoError(t, err)

	assert.Equal(t, 50*volume.Microliter, params.Transfer)
	assert.Equal(t, 100*volume.Microliter, params.Diluent)
	assert.Equal(t, 10*volume.Microliter, params.AirGap)
	assert.Equal(t, platform.Mix{Repetitions: 5, Volume: 75 * volume.Microliter}, params.Mix)
	assert.Equal(t, platform.TipNever, params.Strategy)
	assert.Equal(t, platform.MountLeft, params.Mount)
}

func TestPrepare_RejectsBadSettings(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(s *settings.Settings)
	}{
		{name: "strategy", mutate: func(s *settings.Settings) { s.TipUseStrategy = "twice" }},
		{name: "mount", mutate: func(s *settings.Settings) { s.MountSide = "center" }},
		{name: "factor", mutate: func(s *settings.Settings) { s.DilutionFactor = 0 }},
		{name: "factor below one", mutate: func(s *settings.Settings) { s.DilutionFactor = 0.5 }},
		{name: "infinite total", mutate: func(s *settings.Settings) { s.TotalMixingVolume = math.Inf(1) }},
		{name: "huge air gap", mutate: func(s *settings.Settings) { s.AirGapVolume = 1e19 }},
		{name: "total", mutate: func(s *settings.Settings) { s.TotalMixingVolume = 0 }},
		{name: "air gap", mutate: func(s *settings.Settings) { s.AirGapVolume = -5 }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := defaultSettings(t)
			tc.mutate(s)
			_, err := Prepare(s)
			assert.True(t, errors.Is(err, ErrConfig), "got %v", err)
		})
	}
}

func TestRun_ElevenWithBlankFailsBeforeLoading(t *testing.T) {
	s := defaultSettings(t)
	s.NumOfDilutions = 11
	s.BlankOn = true
	rec := newRecorder(8)

	err := Run(testContext(), rec, s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))
	assert.Empty(t, rec.calls, "no platform call may happen after a validation failure")
}

func TestRun_DefaultProtocolCallSequence(t *testing.T) {
	rec := newRecorder(8)
	require.NoError(t, Run(testContext(), rec, defaultSettings(t)))

	assert.Equal(t, []string{
		"load_labware citadel_12_wellplate_22000ul 2",
		"load_labware black_96_wellplate_200ul_pcr 3",
		"load_labware tipone_yellow_3dprinted_96_tiprack_300ul 1",
		"load_instrument p300_multi_gen2 left racks=1",
	}, rec.calls[:4])

	// prefill: 9 destinations, dilution: 9 steps, blank: 1 well.
	require.Len(t, rec.requests, 9+9+1)
	assert.Equal(t, 3, rec.count("pick_up_tip"))
	assert.Equal(t, 3, rec.count("drop_tip"))

	expectedCalls := []string{"pick_up_tip"}
	for i := 0; i < 9; i++ {
		expectedCalls = append(expectedCalls, "transfer")
	}
	expectedCalls = append(expectedCalls, "drop_tip", "pick_up_tip")
	for i := 0; i < 9; i++ {
		expectedCalls = append(expectedCalls, "transfer")
	}
	expectedCalls = append(expectedCalls, "drop_tip", "pick_up_tip", "transfer", "drop_tip")
	assert.Equal(t, expectedCalls, rec.calls[4:])

	diluentWell := labware.Well{LoadName: "citadel_12_wellplate_22000ul", Slot: TroughSlot, Row: 0, Column: 0}
	for i, req := range rec.requests[:9] {
		assert.Equal(t, diluentWell, req.Source)
		assert.Equal(t, fmt.Sprintf("A%d", i+2), req.Dest.Name())
		assert.Equal(t, 100*volume.Microliter, req.Volume)
		assert.Equal(t, 10*volume.Microliter, req.AirGap)
		assert.Equal(t, platform.TipNever, req.NewTip)
		assert.Nil(t, req.MixAfter)
	}
	for i, req := range rec.requests[9:18] {
		assert.Equal(t, fmt.Sprintf("A%d", i+1), req.Source.Name())
		assert.Equal(t, fmt.Sprintf("A%d", i+2), req.Dest.Name())
		assert.Equal(t, 50*volume.Microliter, req.Volume)
		require.NotNil(t, req.MixAfter)
		assert.Equal(t, 5, req.MixAfter.Repetitions)
		assert.Equal(t, 75*volume.Microliter, req.MixAfter.Volume)
		assert.Equal(t, platform.TipNever, req.NewTip)
	}
	blank := rec.requests[18]
	assert.Equal(t, "A12", blank.Dest.Name())
	assert.Equal(t, diluentWell, blank.Source)
	assert.Equal(t, 100*volume.Microliter, blank.Volume)
}

func TestRun_PerTransferTipsLeaveDilutionToPlatform(t *testing.T) {
	s := defaultSettings(t)
	s.TipUseStrategy = "always"
	s.BlankOn = false
	rec := newRecorder(8)

	require.NoError(t, Run(testContext(), rec, s))

	// Only the prefill phase holds a scoped tip.
	assert.Equal(t, 1, rec.count("pick_up_tip"))
	assert.Equal(t, 1, rec.count("drop_tip"))
	for _, req := range rec.requests[9:] {
		assert.Equal(t, platform.TipAlways, req.NewTip)
	}
	assert.Len(t, rec.requests, 18)
}

func TestRun_SingleChannelVisitsEveryWell(t *testing.T) {
	s := defaultSettings(t)
	s.PipetteType = "p300_single_gen2"
	s.NumOfDilutions = 3
	rec := newRecorder(1)

	require.NoError(t, Run(testContext(), rec, s))

	// 2 destination columns x 8 wells, 2 dilution steps x 8 wells, blank column of 8.
	require.Len(t, rec.requests, 16+16+8)
	assert.Equal(t, "A2", rec.requests[0].Dest.Name())
	assert.Equal(t, "H3", rec.requests[15].Dest.Name())

	step := rec.requests[16+9]
	assert.Equal(t, "B2", step.Source.Name())
	assert.Equal(t, "B3", step.Dest.Name())

	assert.Equal(t, "A4", rec.requests[32].Dest.Name())
	assert.Equal(t, "H4", rec.requests[39].Dest.Name())
}

func TestRun_SingleDilution(t *testing.T) {
	s := defaultSettings(t)
	s.NumOfDilutions = 1
	rec := newRecorder(8)

	require.NoError(t, Run(testContext(), rec, s))
	require.Len(t, rec.requests, 1, "only the blank is filled")
	assert.Equal(t, "A3", rec.requests[0].Dest.Name())
}

func TestRun_PlatformErrorsPropagate(t *testing.T) {
	rec := newRecorder(8)
	rec.failAt = 12

	err := Run(testContext(), rec, defaultSettings(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errHardware))
	assert.Contains(t, err.Error(), "dilution phase")
	assert.Equal(t, "transfer", rec.calls[len(rec.calls)-1], "no cleanup after a failure")
}

func TestRun_UnknownLabware(t *testing.T) {
	s := defaultSettings(t)
	s.PlateType = "mystery_plate"
	rec := newRecorder(8)

	err := Run(testContext(), rec, s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, labware.ErrUnknownLabware))
	assert.Contains(t, err.Error(), "failed to load plate")
}
