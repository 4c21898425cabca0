// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/specialistvlad/dilugrid/internal/labware"
	"github.com/specialistvlad/dilugrid/internal/platform"
)

// Wrap returns a platform.Context that forwards every call to pc and records
// it, with its outcome, as a command of runID.
//
// A command that reached the platform but could not be journaled fails with
// the journal error, so a run never continues past a gap in its record.
func Wrap(pc platform.Context, store *Store, runID string) platform.Context {
	return &journaledContext{inner: pc, rec: &recorder{store: store, runID: runID}}
}

type recorder struct {
	store *Store
	runID string

	mu  sync.Mutex
	seq int
}

func (r *recorder) record(ctx context.Context, op, detail string, callErr error) error {
	r.mu.Lock()
	r.seq++
	seq := r.seq
	r.mu.Unlock()

	// The command already happened; record it even if ctx was cancelled.
	if err := r.store.RecordCommand(context.WithoutCancel(ctx), r.runID, seq, op, detail, callErr); err != nil {
		return errors.Join(callErr, err)
	}
	return callErr
}

type journaledContext struct {
	inner platform.Context
	rec   *recorder
}

func (c *journaledContext) LoadLabware(ctx context.Context, loadName string, slot int) (*labware.Labware, error) {
	lw, err := c.inner.LoadLabware(ctx, loadName, slot)
	if err := c.rec.record(ctx, "load_labware", fmt.Sprintf("%s in slot %d", loadName, slot), err); err != nil {
		return nil, err
	}
	return lw, nil
}

func (c *journaledContext) LoadInstrument(ctx context.Context, name string, mount platform.Mount, tipRacks []*labware.Labware) (platform.Pipette, error) {
	p, err := c.inner.LoadInstrument(ctx, name, mount, tipRacks)
	if err := c.rec.record(ctx, "load_instrument", fmt.Sprintf("%s on %s", name, mount), err); err != nil {
		return nil, err
	}
	return &journaledPipette{Pipette: p, rec: c.rec}, nil
}

type journaledPipette struct {
	platform.Pipette
	rec *recorder
}

func (p *journaledPipette) PickUpTip(ctx context.Context) error {
	return p.rec.record(ctx, "pick_up_tip", p.Name(), p.Pipette.PickUpTip(ctx))
}

func (p *journaledPipette) DropTip(ctx context.Context) error {
	return p.rec.record(ctx, "drop_tip", p.Name(), p.Pipette.DropTip(ctx))
}

func (p *journaledPipette) Transfer(ctx context.Context, req platform.TransferRequest) error {
	return p.rec.record(ctx, "transfer", req.String(), p.Pipette.Transfer(ctx, req))
}
