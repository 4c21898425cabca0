// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// yamlDocument mirrors the flat YAML settings layout. Pointers tell a
// missing key apart from a zero value.
type yamlDocument struct {
	PipetteType       *string  `yaml:"pipette_type"`
	MountSide         *string  `yaml:"mount_side"`
	TipRack           *string  `yaml:"tip_rack"`
	TroughType        *string  `yaml:"trough_type"`
	PlateType         *string  `yaml:"plate_type"`
	DilutionFactor    *float64 `yaml:"dilution_factor"`
	NumOfDilutions    *int     `yaml:"num_of_dilutions"`
	TotalMixingVolume *float64 `yaml:"total_mixing_volume"`
	BlankOn           *bool    `yaml:"blank_on"`
	TipUseStrategy    *string  `yaml:"tip_use_strategy"`
	AirGapVolume      *float64 `yaml:"air_gap_volume"`

	Metadata *struct {
		ProtocolName string `yaml:"protocol_name"`
		Author       string `yaml:"author"`
		Source       string `yaml:"source"`
		APILevel     string `yaml:"api_level"`
	} `yaml:"metadata"`
}

// ParseYAML decodes a YAML settings document. Unknown keys are rejected. The
// result is not validated.
func ParseYAML(src []byte) (*Settings, error) {
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)

	var doc yamlDocument
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to decode settings: document is empty")
		}
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}

	var missing []string
	s := &Settings{}
	str := func(key string, p *string, dst *string) {
		if p == nil {
			missing = append(missing, key)
			return
		}
		*dst = *p
	}
	num := func(key string, p *float64, dst *float64) {
		if p == nil {
			missing = append(missing, key)
			return
		}
		*dst = *p
	}

	str("pipette_type", doc.PipetteType, &s.PipetteType)
	str("mount_side", doc.MountSide, &s.MountSide)
	str("tip_rack", doc.TipRack, &s.TipRack)
	str("trough_type", doc.TroughType, &s.TroughType)
	str("plate_type", doc.PlateType, &s.PlateType)
	num("dilution_factor", doc.DilutionFactor, &s.DilutionFactor)
	if doc.NumOfDilutions == nil {
		missing = append(missing, "num_of_dilutions")
	} else {
		s.NumOfDilutions = *doc.NumOfDilutions
	}
	num("total_mixing_volume", doc.TotalMixingVolume, &s.TotalMixingVolume)
	if doc.BlankOn == nil {
		missing = append(missing, "blank_on")
	} else {
		s.BlankOn = *doc.BlankOn
	}
	str("tip_use_strategy", doc.TipUseStrategy, &s.TipUseStrategy)
	num("air_gap_volume", doc.AirGapVolume, &s.AirGapVolume)

	if len(missing) > 0 {
		return nil, fmt.Errorf("failed to decode settings: missing keys: %s", strings.Join(missing, ", "))
	}

	if doc.Metadata != nil {
		s.Metadata = Metadata(*doc.Metadata)
	}
	return s, nil
}
