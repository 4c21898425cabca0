// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package labware models deck labware as fixed-size grids of wells.
//
// A Labware is a Definition placed in a deck slot. Wells are addressed by
// zero-based row and column; the familiar names ("A1", "H12") are derived
// from those indices. Orderings follow the usual liquid-handler conventions:
// Rows() and Columns() return the grid sliced either way, and Wells() walks it
// column by column (A1, B1, ..., H1, A2, ...).
package labware

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/specialistvlad/dilugrid/internal/volume"
)

// Kind classifies what a piece of labware is used for.
type Kind string

const (
	KindPlate     Kind = "plate"
	KindReservoir Kind = "reservoir"
	KindTipRack   Kind = "tiprack"
)

// ParseKind validates a kind keyword.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindPlate, KindReservoir, KindTipRack:
		return k, nil
	default:
		return "", fmt.Errorf("unknown labware kind %q: expected plate, reservoir, or tiprack", s)
	}
}

// maxRows is bounded by the single-letter row naming scheme.
const maxRows = 26

// Definition describes the geometry of a labware type.
type Definition struct {
	LoadName   string
	Kind       Kind
	Rows       int
	Columns    int
	WellVolume volume.Volume // liquid capacity per well, or tip capacity for racks
}

// Validate checks that the definition describes a usable grid.
func (d *Definition) Validate() error {
	if d.LoadName == "" {
		return fmt.Errorf("labware definition has no load name")
	}
	if d.Rows < 1 || d.Rows > maxRows {
		return fmt.Errorf("labware %q: rows must be between 1 and %d, got %d", d.LoadName, maxRows, d.Rows)
	}
	if d.Columns < 1 {
		return fmt.Errorf("labware %q: columns must be positive, got %d", d.LoadName, d.Columns)
	}
	if d.WellVolume <= 0 {
		return fmt.Errorf("labware %q: well volume must be positive", d.LoadName)
	}
	if _, err := ParseKind(string(d.Kind)); err != nil {
		return fmt.Errorf("labware %q: %w", d.LoadName, err)
	}
	return nil
}

// Labware is a definition loaded into a deck slot.
type Labware struct {
	Definition *Definition
	Slot       int
}

// New places def into slot.
func New(def *Definition, slot int) *Labware {
	return &Labware{Definition: def, Slot: slot}
}

// LoadName returns the load name of the underlying definition.
func (l *Labware) LoadName() string { return l.Definition.LoadName }

// InBounds reports whether (row, column) addresses a well of l.
func (l *Labware) InBounds(row, column int) bool {
	return row >= 0 && row < l.Definition.Rows && column >= 0 && column < l.Definition.Columns
}

// Well returns the well at (row, column).
func (l *Labware) Well(row, column int) (Well, error) {
	if !l.InBounds(row, column) {
		return Well{}, fmt.Errorf("well (%d,%d) is outside %s (%dx%d)",
			row, column, l.LoadName(), l.Definition.Rows, l.Definition.Columns)
	}
	return l.well(row, column), nil
}

func (l *Labware) well(row, column int) Well {
	return Well{LoadName: l.LoadName(), Slot: l.Slot, Row: row, Column: column}
}

// WellByName resolves a name such as "B7".
func (l *Labware) WellByName(name string) (Well, error) {
	row, column, err := ParseWellName(name)
	if err != nil {
		return Well{}, err
	}
	return l.Well(row, column)
}

// Rows returns the grid as a slice of rows, each ordered by column.
func (l *Labware) Rows() []WellSet {
	rows := make([]WellSet, l.Definition.Rows)
	for r := range rows {
		rows[r] = make(WellSet, l.Definition.Columns)
		for c := range rows[r] {
			rows[r][c] = l.well(r, c)
		}
	}
	return rows
}

// Columns returns the grid as a slice of columns, each ordered by row.
func (l *Labware) Columns() []WellSet {
	cols := make([]WellSet, l.Definition.Columns)
	for c := range cols {
		cols[c] = make(WellSet, l.Definition.Rows)
		for r := range cols[c] {
			cols[c][r] = l.well(r, c)
		}
	}
	return cols
}

// Wells returns every well in column-major order.
func (l *Labware) Wells() WellSet {
	wells := make(WellSet, 0, l.Definition.Rows*l.Definition.Columns)
	for _, col := range l.Columns() {
		wells = append(wells, col...)
	}
	return wells
}

// Well is a reference to one well of a loaded labware.
type Well struct {
	LoadName string
	Slot     int
	Row      int
	Column   int
}

// Name returns the conventional well name, e.g. "A1".
func (w Well) Name() string {
	return string(rune('A'+w.Row)) + strconv.Itoa(w.Column+1)
}

// String returns a name that is unique on the deck, e.g. "3:A1".
func (w Well) String() string {
	return strconv.Itoa(w.Slot) + ":" + w.Name()
}

// ParseWellName converts a name such as "H12" to zero-based indices.
func ParseWellName(name string) (row, column int, err error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if len(name) < 2 || name[0] < 'A' || name[0] > 'Z' {
		return 0, 0, fmt.Errorf("invalid well name %q", name)
	}
	n, err := strconv.Atoi(name[1:])
	if err != nil || n < 1 {
		return 0, 0, fmt.Errorf("invalid well name %q", name)
	}
	return int(name[0] - 'A'), n - 1, nil
}

// WellSet is an ordered group of wells handled as one unit.
type WellSet []Well

// Names returns the well names of the set, in order.
func (s WellSet) Names() []string {
	names := make([]string, len(s))
	for i, w := range s {
		names[i] = w.Name()
	}
	return names
}
