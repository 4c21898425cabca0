// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package simulator

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/dilugrid/internal/labware"
	"github.com/specialistvlad/dilugrid/internal/platform"
	"github.com/specialistvlad/dilugrid/internal/volume"
)

// ErrOutOfTips is returned when every tip rack of a pipette is empty.
var ErrOutOfTips = errors.New("out of tips")

// tipRack hands out tips in column-major order.
type tipRack struct {
	labware *labware.Labware
	used    int
}

// take reserves n tips. Multi-channel pick-ups start on a fresh column.
func (r *tipRack) take(n int) bool {
	rows := r.labware.Definition.Rows
	total := rows * r.labware.Definition.Columns
	start := r.used
	if n > 1 && start%rows != 0 {
		start += rows - start%rows
	}
	if start+n > total {
		return false
	}
	r.used = start + n
	return true
}

// Pipette is a simulated instrument.
type Pipette struct {
	deck     *Deck
	model    platform.PipetteModel
	mount    platform.Mount
	racks    []*tipRack
	hasTip   bool
	tipsUsed int
}

// Name implements platform.Pipette.
func (p *Pipette) Name() string { return p.model.Name }

// Channels implements platform.Pipette.
func (p *Pipette) Channels() int { return p.model.Channels }

// HasTip reports whether a tip is attached.
func (p *Pipette) HasTip() bool {
	p.deck.mu.Lock()
	defer p.deck.mu.Unlock()
	return p.hasTip
}

// TipsUsed returns the number of tips consumed so far.
func (p *Pipette) TipsUsed() int {
	p.deck.mu.Lock()
	defer p.deck.mu.Unlock()
	return p.tipsUsed
}

// PickUpTip implements platform.Pipette.
func (p *Pipette) PickUpTip(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.deck.mu.Lock()
	defer p.deck.mu.Unlock()
	return p.pickUp()
}

// DropTip implements platform.Pipette.
func (p *Pipette) DropTip(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.deck.mu.Lock()
	defer p.deck.mu.Unlock()
	return p.drop()
}

func (p *Pipette) pickUp() error {
	if p.hasTip {
		return fmt.Errorf("%s: cannot pick up a tip while one is attached", p.model.Name)
	}
	for _, r := range p.racks {
		if r.take(p.model.Channels) {
			p.hasTip = true
			p.tipsUsed += p.model.Channels
			p.deck.record("pick_up_tip", fmt.Sprintf("%s from slot %d", p.model.Name, r.labware.Slot))
			return nil
		}
	}
	return fmt.Errorf("%s: %w", p.model.Name, ErrOutOfTips)
}

func (p *Pipette) drop() error {
	if !p.hasTip {
		return fmt.Errorf("%s: cannot drop a tip, none attached", p.model.Name)
	}
	p.hasTip = false
	p.deck.record("drop_tip", p.model.Name)
	return nil
}

// Transfer implements platform.Pipette. Volumes above what one aspiration
// can hold next to the air gap are split into equal parts.
func (p *Pipette) Transfer(ctx context.Context, req platform.TransferRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.deck.mu.Lock()
	defer p.deck.mu.Unlock()

	if req.Volume < 0 {
		return fmt.Errorf("%s: cannot transfer a negative volume %s", p.model.Name, req.Volume)
	}
	if req.Volume == 0 {
		p.deck.record("transfer", req.String())
		return nil
	}
	if req.Volume < p.model.MinVolume {
		return fmt.Errorf("%s: %s is below the minimum volume %s", p.model.Name, req.Volume, p.model.MinVolume)
	}
	capacity := p.model.MaxVolume - req.AirGap
	if capacity <= 0 {
		return fmt.Errorf("%s: air gap %s leaves no room for liquid", p.model.Name, req.AirGap)
	}
	if req.MixAfter != nil && req.MixAfter.Volume > p.model.MaxVolume {
		return fmt.Errorf("%s: mix volume %s exceeds the maximum %s", p.model.Name, req.MixAfter.Volume, p.model.MaxVolume)
	}

	sources, err := p.deck.channelWells(req.Source, p.model.Channels)
	if err != nil {
		return err
	}
	dests, err := p.deck.channelWells(req.Dest, p.model.Channels)
	if err != nil {
		return err
	}

	switch req.NewTip {
	case platform.TipNever:
		if !p.hasTip {
			return fmt.Errorf("%s: transfer with new_tip=never needs an attached tip", p.model.Name)
		}
	case platform.TipOnce, platform.TipAlways:
		if err := p.pickUp(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%s: unknown tip policy %q", p.model.Name, req.NewTip)
	}

	chunks := int((req.Volume + capacity - 1) / capacity)
	for i, part := range req.Volume.Split(chunks) {
		if i > 0 && req.NewTip == platform.TipAlways {
			if err := p.drop(); err != nil {
				return err
			}
			if err := p.pickUp(); err != nil {
				return err
			}
		}
		if err := p.move(sources, dests, part); err != nil {
			return err
		}
	}

	if req.NewTip != platform.TipNever {
		if err := p.drop(); err != nil {
			return err
		}
	}
	p.deck.record("transfer", req.String())
	return nil
}

// move aspirates part through every channel and dispenses it.
func (p *Pipette) move(sources, dests []labware.Well, part volume.Volume) error {
	for ch := range sources {
		if err := p.deck.aspirate(sources[ch], part); err != nil {
			return fmt.Errorf("%s channel %d: %w", p.model.Name, ch+1, err)
		}
	}
	for ch := range dests {
		if err := p.deck.dispense(dests[ch], part); err != nil {
			return fmt.Errorf("%s channel %d: %w", p.model.Name, ch+1, err)
		}
	}
	return nil
}
