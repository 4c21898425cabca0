// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package settings loads the protocol settings document into a typed
// Settings value.
//
// The document is HCL. A default document is compiled into the binary and
// used when no file is given; any other document replaces it wholesale. The
// YAML form with the same keys is also accepted so existing settings files
// can be reused unchanged.
//
//	pipette_type        = "p300_multi_gen2"
//	mount_side          = "left"
//	tip_rack            = "tipone_yellow_3dprinted_96_tiprack_300ul"
//	trough_type         = "citadel_12_wellplate_22000ul"
//	plate_type          = "black_96_wellplate_200ul_pcr"
//	dilution_factor     = 3
//	num_of_dilutions    = 10
//	total_mixing_volume = 150
//	blank_on            = true
//	tip_use_strategy    = "never"
//	air_gap_volume      = 10
//
//	metadata {
//	  protocol_name = "Customizable Serial Dilution"
//	}
//
//	labware "black_96_wellplate_200ul_pcr" {
//	  kind        = "plate"
//	  rows        = 8
//	  columns     = 12
//	  well_volume = 200
//	}
//
// Settings are immutable once loaded. Validate checks the fields the rest of
// the program relies on for arithmetic and keyword lookups; the dilution
// count limits belong to the protocol itself.
package settings

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/specialistvlad/dilugrid/internal/labware"
	"github.com/specialistvlad/dilugrid/internal/platform"
	"github.com/specialistvlad/dilugrid/internal/volume"
)

// ErrInvalid is wrapped by every error returned from Validate.
var ErrInvalid = errors.New("invalid settings")

// Metadata describes the protocol for operators and run journals.
type Metadata struct {
	ProtocolName string `json:"protocol_name"`
	Author       string `json:"author,omitempty"`
	Source       string `json:"source,omitempty"`
	APILevel     string `json:"api_level,omitempty"`
}

// Settings is the full configuration of one serial dilution.
type Settings struct {
	Metadata Metadata `json:"metadata"`

	PipetteType       string  `json:"pipette_type"`
	MountSide         string  `json:"mount_side"`
	TipRack           string  `json:"tip_rack"`
	TroughType        string  `json:"trough_type"`
	PlateType         string  `json:"plate_type"`
	DilutionFactor    float64 `json:"dilution_factor"`
	NumOfDilutions    int     `json:"num_of_dilutions"`
	TotalMixingVolume float64 `json:"total_mixing_volume"`
	BlankOn           bool    `json:"blank_on"`
	TipUseStrategy    string  `json:"tip_use_strategy"`
	AirGapVolume      float64 `json:"air_gap_volume"`

	// Labware holds custom definitions declared alongside the settings.
	Labware []labware.Definition `json:"labware,omitempty"`
}

// Validate reports every problem found, not just the first.
func (s *Settings) Validate() error {
	var errs []string

	required := []struct{ key, val string }{
		{"pipette_type", s.PipetteType},
		{"tip_rack", s.TipRack},
		{"trough_type", s.TroughType},
		{"plate_type", s.PlateType},
	}
	for _, r := range required {
		if strings.TrimSpace(r.val) == "" {
			errs = append(errs, fmt.Sprintf("%s must not be empty", r.key))
		}
	}

	if _, err := platform.ParseMount(s.MountSide); err != nil {
		errs = append(errs, fmt.Sprintf("mount_side: %v", err))
	}
	if _, err := platform.ParseTipPolicy(s.TipUseStrategy); err != nil {
		errs = append(errs, fmt.Sprintf("tip_use_strategy: %v", err))
	}
	// A factor below 1 would need a negative diluent volume.
	if !(s.DilutionFactor >= 1) || math.IsInf(s.DilutionFactor, 1) {
		errs = append(errs, fmt.Sprintf("dilution_factor must be a finite number of at least 1, got %v", s.DilutionFactor))
	}
	if _, err := volume.ParseMicroliters(s.TotalMixingVolume); err != nil {
		errs = append(errs, fmt.Sprintf("total_mixing_volume: %v", err))
	} else if !(s.TotalMixingVolume > 0) {
		errs = append(errs, fmt.Sprintf("total_mixing_volume must be positive, got %v", s.TotalMixingVolume))
	}
	if _, err := volume.ParseMicroliters(s.AirGapVolume); err != nil {
		errs = append(errs, fmt.Sprintf("air_gap_volume: %v", err))
	} else if s.AirGapVolume < 0 {
		errs = append(errs, fmt.Sprintf("air_gap_volume must not be negative, got %v", s.AirGapVolume))
	}
	for i := range s.Labware {
		if err := s.Labware[i].Validate(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n- %s", ErrInvalid, strings.Join(errs, "\n- "))
	}
	return nil
}

// RegisterLabware adds the custom definitions to catalog.
func (s *Settings) RegisterLabware(catalog *labware.Catalog) error {
	for _, def := range s.Labware {
		if err := catalog.Register(def); err != nil {
			return err
		}
	}
	return nil
}
