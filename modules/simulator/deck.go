// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package simulator

import (
	"context"
	"fmt"
	"sync"

	"github.com/specialistvlad/dilugrid/internal/ctxlog"
	"github.com/specialistvlad/dilugrid/internal/labware"
	"github.com/specialistvlad/dilugrid/internal/platform"
	"github.com/specialistvlad/dilugrid/internal/volume"
)

// Command is one entry of the simulator's command log.
type Command struct {
	Op     string
	Detail string
}

// Deck is an in-memory liquid handler. It tracks what sits in every slot,
// the liquid in every well, and the tips of every loaded pipette.
//
// Reservoir wells start full. Plate wells start at zero and hold the net
// change caused by the run, because their initial contents are loaded by the
// operator and unknown here; a plate well only errors on overflow.
type Deck struct {
	mu       sync.Mutex
	catalog  *labware.Catalog
	slots    map[int]*labware.Labware
	volumes  map[labware.Well]volume.Volume
	pipettes map[platform.Mount]*Pipette
	log      []Command
}

// NewDeck creates an empty deck resolving load names through catalog.
func NewDeck(catalog *labware.Catalog) *Deck {
	if catalog == nil {
		catalog = labware.NewCatalog()
	}
	return &Deck{
		catalog:  catalog,
		slots:    make(map[int]*labware.Labware),
		volumes:  make(map[labware.Well]volume.Volume),
		pipettes: make(map[platform.Mount]*Pipette),
	}
}

// Deck slots of the simulated robot are numbered 1 through 12.
const slotCount = 12

// LoadLabware implements platform.Context.
func (d *Deck) LoadLabware(ctx context.Context, loadName string, slot int) (*labware.Labware, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if slot < 1 || slot > slotCount {
		return nil, fmt.Errorf("slot %d does not exist (1-%d)", slot, slotCount)
	}
	if existing, ok := d.slots[slot]; ok {
		return nil, fmt.Errorf("slot %d is already occupied by %s", slot, existing.LoadName())
	}
	def, err := d.catalog.Lookup(loadName)
	if err != nil {
		return nil, err
	}

	lw := labware.New(def, slot)
	d.slots[slot] = lw
	if def.Kind == labware.KindReservoir {
		for _, w := range lw.Wells() {
			d.volumes[w] = def.WellVolume
		}
	}
	d.record("load_labware", fmt.Sprintf("%s in slot %d", loadName, slot))
	ctxlog.FromContext(ctx).Debug("Labware loaded.", "load_name", loadName, "slot", slot)
	return lw, nil
}

// LoadInstrument implements platform.Context.
func (d *Deck) LoadInstrument(ctx context.Context, name string, mount platform.Mount, tipRacks []*labware.Labware) (platform.Pipette, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	model, err := platform.LookupPipette(name)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.pipettes[mount]; ok {
		return nil, fmt.Errorf("%s mount already has a pipette", mount)
	}
	racks := make([]*tipRack, 0, len(tipRacks))
	for _, lw := range tipRacks {
		if lw.Definition.Kind != labware.KindTipRack {
			return nil, fmt.Errorf("%s in slot %d is not a tip rack", lw.LoadName(), lw.Slot)
		}
		if lw.Definition.WellVolume < model.MaxVolume {
			return nil, fmt.Errorf("%s tips hold %s, %s needs %s",
				lw.LoadName(), lw.Definition.WellVolume, name, model.MaxVolume)
		}
		racks = append(racks, &tipRack{labware: lw})
	}

	p := &Pipette{deck: d, model: model, mount: mount, racks: racks}
	d.pipettes[mount] = p
	d.record("load_instrument", fmt.Sprintf("%s on %s", name, mount))
	ctxlog.FromContext(ctx).Debug("Instrument loaded.", "name", name, "mount", mount, "tip_racks", len(racks))
	return p, nil
}

// Close implements platform.Session.
func (d *Deck) Close() error { return nil }

// Volume returns the liquid currently attributed to w.
func (d *Deck) Volume(w labware.Well) volume.Volume {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.volumes[w]
}

// Log returns a copy of the commands executed so far.
func (d *Deck) Log() []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Command(nil), d.log...)
}

func (d *Deck) record(op, detail string) {
	d.log = append(d.log, Command{Op: op, Detail: detail})
}

// aspirate removes v from w. The caller holds d.mu.
func (d *Deck) aspirate(w labware.Well, v volume.Volume) error {
	lw, ok := d.slots[w.Slot]
	if !ok || lw.LoadName() != w.LoadName {
		return fmt.Errorf("well %s is not on the deck", w)
	}
	if lw.Definition.Kind == labware.KindReservoir && d.volumes[w] < v {
		return fmt.Errorf("cannot aspirate %s from %s: only %s left", v, w, d.volumes[w])
	}
	d.volumes[w] -= v
	return nil
}

// dispense adds v to w. The caller holds d.mu.
func (d *Deck) dispense(w labware.Well, v volume.Volume) error {
	lw, ok := d.slots[w.Slot]
	if !ok || lw.LoadName() != w.LoadName {
		return fmt.Errorf("well %s is not on the deck", w)
	}
	if d.volumes[w]+v > lw.Definition.WellVolume {
		return fmt.Errorf("dispensing %s into %s would overflow it (%s of %s)",
			v, w, d.volumes[w]+v, lw.Definition.WellVolume)
	}
	d.volumes[w] += v
	return nil
}

// channelWells returns the wells touched by each channel when the first
// channel is over head. Single-row labware such as troughs serves every
// channel from the same well.
func (d *Deck) channelWells(head labware.Well, channels int) ([]labware.Well, error) {
	lw, ok := d.slots[head.Slot]
	if !ok || lw.LoadName() != head.LoadName {
		return nil, fmt.Errorf("well %s is not on the deck", head)
	}
	wells := make([]labware.Well, channels)
	if lw.Definition.Rows == 1 {
		for i := range wells {
			wells[i] = head
		}
		return wells, nil
	}
	for i := range wells {
		w, err := lw.Well(head.Row+i, head.Column)
		if err != nil {
			return nil, fmt.Errorf("%d-channel pipette cannot reach %s: %w", channels, head, err)
		}
		wells[i] = w
	}
	return wells, nil
}
