// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package platform

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/specialistvlad/dilugrid/internal/labware"
	"github.com/specialistvlad/dilugrid/internal/volume"
)

// Context is the capability a protocol runs against. It hands out labware
// and instruments; everything physical happens behind it.
type Context interface {
	// LoadLabware places the labware type loadName in a deck slot.
	LoadLabware(ctx context.Context, loadName string, slot int) (*labware.Labware, error)

	// LoadInstrument attaches the pipette model name on mount, drawing tips
	// from tipRacks.
	LoadInstrument(ctx context.Context, name string, mount Mount, tipRacks []*labware.Labware) (Pipette, error)
}

// Session is a Context that holds a connection to a driver and must be closed.
type Session interface {
	Context
	io.Closer
}

// Pipette is a loaded instrument.
type Pipette interface {
	Name() string
	Channels() int
	PickUpTip(ctx context.Context) error
	DropTip(ctx context.Context) error
	Transfer(ctx context.Context, req TransferRequest) error
}

// Mount is the side of the gantry an instrument is attached to.
type Mount string

const (
	MountLeft  Mount = "left"
	MountRight Mount = "right"
)

// ParseMount validates a mount keyword.
func ParseMount(s string) (Mount, error) {
	switch m := Mount(strings.ToLower(strings.TrimSpace(s))); m {
	case MountLeft, MountRight:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mount %q: expected left or right", s)
	}
}

// TipPolicy controls tip changes inside a single transfer.
type TipPolicy string

const (
	// TipAlways picks a fresh tip for every aspirate/dispense cycle.
	TipAlways TipPolicy = "always"
	// TipOnce picks one tip for the whole transfer call.
	TipOnce TipPolicy = "once"
	// TipNever uses the tip already attached and leaves it attached.
	TipNever TipPolicy = "never"
)

// ParseTipPolicy validates a tip policy keyword.
func ParseTipPolicy(s string) (TipPolicy, error) {
	switch p := TipPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case TipAlways, TipOnce, TipNever:
		return p, nil
	default:
		return "", fmt.Errorf("unknown tip policy %q: expected always, once, or never", s)
	}
}

// Mix describes a mix performed in the destination after dispensing.
type Mix struct {
	Repetitions int
	Volume      volume.Volume
}

// TransferRequest is one transfer of liquid between two wells. For a
// multi-channel pipette the wells are the head wells of the columns involved.
type TransferRequest struct {
	Volume   volume.Volume
	Source   labware.Well
	Dest     labware.Well
	AirGap   volume.Volume
	MixAfter *Mix
	NewTip   TipPolicy
}

// String renders the request for logs and journals.
func (r TransferRequest) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s from %s to %s, air_gap=%s, new_tip=%s", r.Volume, r.Source, r.Dest, r.AirGap, r.NewTip)
	if r.MixAfter != nil {
		fmt.Fprintf(&b, ", mix_after=(%d, %s)", r.MixAfter.Repetitions, r.MixAfter.Volume)
	}
	return b.String()
}
