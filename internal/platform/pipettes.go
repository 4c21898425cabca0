// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package platform

import (
	"errors"
	"fmt"
	"sort"

	"github.com/specialistvlad/dilugrid/internal/volume"
)

// ErrUnknownPipette is returned when a pipette model is not in the catalog.
var ErrUnknownPipette = errors.New("unknown pipette model")

// PipetteModel holds the working range of a pipette type.
type PipetteModel struct {
	Name      string
	Channels  int
	MinVolume volume.Volume
	MaxVolume volume.Volume
}

// MultiChannel reports whether the model moves a whole column at once.
func (m PipetteModel) MultiChannel() bool { return m.Channels > 1 }

var pipetteModels = map[string]PipetteModel{
	"p20_single_gen2":   {Name: "p20_single_gen2", Channels: 1, MinVolume: 1 * volume.Microliter, MaxVolume: 20 * volume.Microliter},
	"p20_multi_gen2":    {Name: "p20_multi_gen2", Channels: 8, MinVolume: 1 * volume.Microliter, MaxVolume: 20 * volume.Microliter},
	"p300_single_gen2":  {Name: "p300_single_gen2", Channels: 1, MinVolume: 20 * volume.Microliter, MaxVolume: 300 * volume.Microliter},
	"p300_multi_gen2":   {Name: "p300_multi_gen2", Channels: 8, MinVolume: 20 * volume.Microliter, MaxVolume: 300 * volume.Microliter},
	"p1000_single_gen2": {Name: "p1000_single_gen2", Channels: 1, MinVolume: 100 * volume.Microliter, MaxVolume: 1000 * volume.Microliter},
}

// LookupPipette returns the model registered under name.
func LookupPipette(name string) (PipetteModel, error) {
	m, ok := pipetteModels[name]
	if !ok {
		return PipetteModel{}, fmt.Errorf("%w: %q", ErrUnknownPipette, name)
	}
	return m, nil
}

// PipetteNames returns the known model names, sorted.
func PipetteNames() []string {
	names := make([]string, 0, len(pipetteModels))
	for name := range pipetteModels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
