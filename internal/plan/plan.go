// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package plan derives the well sets of a serial dilution from the plate
// geometry and the number of dilutions.
//
// The unit of transfer depends on the pipette. A multi-channel pipette
// addresses a whole column through its head well in row A, so every set holds
// exactly that one well. A single-channel pipette visits each well of a column
// in turn, so every set is the full column.
//
// With n dilutions, step i moves liquid from column i-1 to column i for
// i in [1, n). All ranges are half-open and zero-based; an index that falls
// off the plate is an error, never a silent truncation.
package plan

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/dilugrid/internal/labware"
	"github.com/specialistvlad/dilugrid/internal/volume"
)

// ErrOutOfBounds is returned when the requested series does not fit the plate.
var ErrOutOfBounds = errors.New("dilution series does not fit the plate")

// Plan holds the well sets of one serial dilution.
type Plan struct {
	// Sources[i] is diluted into Destinations[i].
	Sources      []labware.WellSet
	Destinations []labware.WellSet
	// Blank is nil when no blank control is planned.
	Blank labware.WellSet
}

// Build computes the plan for n dilutions on plate.
func Build(plate *labware.Labware, n int, multiChannel, blankOn bool) (*Plan, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: need at least one dilution, got %d", ErrOutOfBounds, n)
	}

	var units []labware.WellSet
	if multiChannel {
		head := plate.Rows()[0]
		units = make([]labware.WellSet, len(head))
		for i, w := range head {
			units[i] = labware.WellSet{w}
		}
	} else {
		units = plate.Columns()
	}

	if n > len(units) {
		return nil, fmt.Errorf("%w: %d dilutions need %d columns, %s has %d",
			ErrOutOfBounds, n, n, plate.LoadName(), len(units))
	}

	p := &Plan{
		Sources:      append([]labware.WellSet(nil), units[:n-1]...),
		Destinations: append([]labware.WellSet(nil), units[1:n]...),
	}

	if blankOn {
		idx := blankIndex(n, multiChannel)
		if idx >= len(units) {
			return nil, fmt.Errorf("%w: blank column %d is past the last column of %s (%d)",
				ErrOutOfBounds, idx+1, plate.LoadName(), len(units))
		}
		p.Blank = units[idx]
	}

	return p, nil
}

// blankIndex returns the column of the blank control. The multi-channel
// layout leaves one empty column between the series and the blank.
func blankIndex(n int, multiChannel bool) int {
	if multiChannel {
		return n + 1
	}
	return n
}

// DiluentDestinations flattens the destination sets in order. These are the
// wells pre-filled with diluent before the series starts.
func (p *Plan) DiluentDestinations() labware.WellSet {
	var wells labware.WellSet
	for _, set := range p.Destinations {
		wells = append(wells, set...)
	}
	return wells
}

// Steps returns the number of dilution steps, one per source/destination pair.
func (p *Plan) Steps() int { return len(p.Destinations) }

// Volumes splits the total mixing volume of a well into the part carried over
// from the previous well and the diluent added beforehand. The two always sum
// to total, and neither is negative.
func Volumes(total volume.Volume, factor float64) (transfer, diluent volume.Volume, err error) {
	if total <= 0 {
		return 0, 0, fmt.Errorf("total mixing volume must be positive, got %s", total)
	}
	if !(factor >= 1) {
		return 0, 0, fmt.Errorf("dilution factor must be at least 1, got %v", factor)
	}
	transfer, err = total.Divide(factor)
	if err != nil {
		return 0, 0, fmt.Errorf("dilution factor: %w", err)
	}
	return transfer, total - transfer, nil
}
