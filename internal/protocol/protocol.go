// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package protocol

import (
	"context"
	"fmt"

	"github.com/specialistvlad/dilugrid/internal/ctxlog"
	"github.com/specialistvlad/dilugrid/internal/labware"
	"github.com/specialistvlad/dilugrid/internal/plan"
	"github.com/specialistvlad/dilugrid/internal/platform"
	"github.com/specialistvlad/dilugrid/internal/settings"
	"github.com/specialistvlad/dilugrid/internal/volume"
)

// Deck slots.
const (
	TipRackSlot = 1
	TroughSlot  = 2
	PlateSlot   = 3
)

// MixRepetitions is the number of mix cycles after each dilution transfer.
const MixRepetitions = 5

// Parameters are the quantities derived from the settings before a run.
type Parameters struct {
	Strategy platform.TipPolicy
	Mount    platform.Mount
	Transfer volume.Volume
	Diluent  volume.Volume
	AirGap   volume.Volume
	Mix      platform.Mix
}

// Prepare validates s and derives the run parameters. It never touches the
// platform.
func Prepare(s *settings.Settings) (*Parameters, error) {
	if err := Validate(s.NumOfDilutions, s.BlankOn); err != nil {
		return nil, err
	}

	strategy, err := platform.ParseTipPolicy(s.TipUseStrategy)
	if err != nil {
		return nil, &ConfigError{Reason: err.Error()}
	}
	mount, err := platform.ParseMount(s.MountSide)
	if err != nil {
		return nil, &ConfigError{Reason: err.Error()}
	}
	airGap, err := volume.ParseMicroliters(s.AirGapVolume)
	if err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("air gap: %v", err)}
	}
	if airGap < 0 {
		return nil, &ConfigError{Reason: fmt.Sprintf("air gap must not be negative, got %v", s.AirGapVolume)}
	}

	total, err := volume.ParseMicroliters(s.TotalMixingVolume)
	if err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("total mixing volume: %v", err)}
	}
	transfer, diluent, err := plan.Volumes(total, s.DilutionFactor)
	if err != nil {
		return nil, &ConfigError{Reason: err.Error()}
	}
	mixVolume, err := total.Divide(2)
	if err != nil {
		return nil, &ConfigError{Reason: err.Error()}
	}

	return &Parameters{
		Strategy: strategy,
		Mount:    mount,
		Transfer: transfer,
		Diluent:  diluent,
		AirGap:   airGap,
		Mix:      platform.Mix{Repetitions: MixRepetitions, Volume: mixVolume},
	}, nil
}

// Run executes the serial dilution described by s on pc.
func Run(ctx context.Context, pc platform.Context, s *settings.Settings) error {
	logger := ctxlog.FromContext(ctx)

	params, err := Prepare(s)
	if err != nil {
		return err
	}
	logger.Info("Protocol parameters computed.",
		"transfer_volume", params.Transfer.String(),
		"diluent_volume", params.Diluent.String(),
		"air_gap", params.AirGap.String(),
		"tip_strategy", params.Strategy)

	trough, err := pc.LoadLabware(ctx, s.TroughType, TroughSlot)
	if err != nil {
		return fmt.Errorf("failed to load trough: %w", err)
	}
	plate, err := pc.LoadLabware(ctx, s.PlateType, PlateSlot)
	if err != nil {
		return fmt.Errorf("failed to load plate: %w", err)
	}
	tipRack, err := pc.LoadLabware(ctx, s.TipRack, TipRackSlot)
	if err != nil {
		return fmt.Errorf("failed to load tip rack: %w", err)
	}

	pipette, err := pc.LoadInstrument(ctx, s.PipetteType, params.Mount, []*labware.Labware{tipRack})
	if err != nil {
		return fmt.Errorf("failed to load pipette: %w", err)
	}

	troughWells := trough.Wells()
	if len(troughWells) == 0 {
		return fmt.Errorf("trough %s has no wells", trough.LoadName())
	}

	p, err := plan.Build(plate, s.NumOfDilutions, pipette.Channels() > 1, s.BlankOn)
	if err != nil {
		return err
	}
	logger.Debug("Well sets planned.",
		"steps", p.Steps(),
		"diluent_destinations", len(p.DiluentDestinations()),
		"blank_wells", len(p.Blank))

	ex := &executor{
		pipette: pipette,
		params:  params,
		diluent: troughWells[0],
		plan:    p,
	}
	return ex.run(ctx)
}

// executor issues the transfers of one run.
type executor struct {
	pipette platform.Pipette
	params  *Parameters
	diluent labware.Well
	plan    *plan.Plan
}

func (e *executor) run(ctx context.Context) error {
	phases := []struct {
		name string
		fn   func(context.Context) error
		skip bool
	}{
		{name: "prefill", fn: e.prefill},
		{name: "dilution", fn: e.dilute},
		{name: "blank", fn: e.blank, skip: e.plan.Blank == nil},
	}

	for _, ph := range phases {
		if ph.skip {
			continue
		}
		phaseCtx := ctxlog.With(ctx, "phase", ph.name)
		ctxlog.FromContext(phaseCtx).Info("Phase started.")
		if err := ph.fn(phaseCtx); err != nil {
			return fmt.Errorf("%s phase: %w", ph.name, err)
		}
		ctxlog.FromContext(phaseCtx).Info("Phase finished.")
	}
	return nil
}

// prefill distributes diluent to every destination well with one tip.
func (e *executor) prefill(ctx context.Context) error {
	return e.withTip(ctx, func() error {
		for _, dest := range e.plan.DiluentDestinations() {
			if err := e.pipette.Transfer(ctx, platform.TransferRequest{
				Volume: e.params.Diluent,
				Source: e.diluent,
				Dest:   dest,
				AirGap: e.params.AirGap,
				NewTip: platform.TipNever,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// dilute carries the transfer volume down the series, mixing after each step.
func (e *executor) dilute(ctx context.Context) error {
	steps := func() error {
		mix := e.params.Mix
		for i, sources := range e.plan.Sources {
			dests := e.plan.Destinations[i]
			for j := 0; j < len(sources) && j < len(dests); j++ {
				if err := e.pipette.Transfer(ctx, platform.TransferRequest{
					Volume:   e.params.Transfer,
					Source:   sources[j],
					Dest:     dests[j],
					AirGap:   e.params.AirGap,
					MixAfter: &mix,
					NewTip:   e.params.Strategy,
				}); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if e.params.Strategy == platform.TipNever {
		return e.withTip(ctx, steps)
	}
	return steps()
}

// blank fills the blank wells with diluent using one tip.
func (e *executor) blank(ctx context.Context) error {
	return e.withTip(ctx, func() error {
		for _, w := range e.plan.Blank {
			if err := e.pipette.Transfer(ctx, platform.TransferRequest{
				Volume: e.params.Diluent,
				Source: e.diluent,
				Dest:   w,
				AirGap: e.params.AirGap,
				NewTip: platform.TipNever,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// withTip runs fn between a pick-up and a drop. A failing fn leaves the tip
// attached for the platform to deal with.
func (e *executor) withTip(ctx context.Context, fn func() error) error {
	if err := e.pipette.PickUpTip(ctx); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	return e.pipette.DropTip(ctx)
}
