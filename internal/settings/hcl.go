// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package settings

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/dilugrid/internal/hclutil"
	"github.com/specialistvlad/dilugrid/internal/labware"
	"github.com/specialistvlad/dilugrid/internal/volume"
)

// attributeBinding ties one top-level attribute to its Settings field.
type attributeBinding struct {
	Name   string
	Type   cty.Type
	Target func(s *Settings) any
}

var attributeBindings = []attributeBinding{
	{Name: "pipette_type", Type: cty.String, Target: func(s *Settings) any { return &s.PipetteType }},
	{Name: "mount_side", Type: cty.String, Target: func(s *Settings) any { return &s.MountSide }},
	{Name: "tip_rack", Type: cty.String, Target: func(s *Settings) any { return &s.TipRack }},
	{Name: "trough_type", Type: cty.String, Target: func(s *Settings) any { return &s.TroughType }},
	{Name: "plate_type", Type: cty.String, Target: func(s *Settings) any { return &s.PlateType }},
	{Name: "dilution_factor", Type: cty.Number, Target: func(s *Settings) any { return &s.DilutionFactor }},
	{Name: "num_of_dilutions", Type: cty.Number, Target: func(s *Settings) any { return &s.NumOfDilutions }},
	{Name: "total_mixing_volume", Type: cty.Number, Target: func(s *Settings) any { return &s.TotalMixingVolume }},
	{Name: "blank_on", Type: cty.Bool, Target: func(s *Settings) any { return &s.BlankOn }},
	{Name: "tip_use_strategy", Type: cty.String, Target: func(s *Settings) any { return &s.TipUseStrategy }},
	{Name: "air_gap_volume", Type: cty.Number, Target: func(s *Settings) any { return &s.AirGapVolume }},
}

var (
	labwareBlockSchema = hcl.BlockHeaderSchema{Type: "labware", LabelNames: []string{"load_name"}}

	settingsSchema = func() *hcl.BodySchema {
		schema := &hcl.BodySchema{
			Blocks: []hcl.BlockHeaderSchema{{Type: "metadata"}, labwareBlockSchema},
		}
		for _, b := range attributeBindings {
			schema.Attributes = append(schema.Attributes, hcl.AttributeSchema{Name: b.Name, Required: true})
		}
		return schema
	}()

	labwareFileSchema = &hcl.BodySchema{Blocks: []hcl.BlockHeaderSchema{labwareBlockSchema}}
)

// hclMetadata is the decoding target of the `metadata` block.
type hclMetadata struct {
	ProtocolName string `hcl:"protocol_name,optional"`
	Author       string `hcl:"author,optional"`
	Source       string `hcl:"source,optional"`
	APILevel     string `hcl:"api_level,optional"`
}

// hclLabware is the decoding target of a `labware` block.
type hclLabware struct {
	Kind       string  `hcl:"kind,optional"`
	Rows       int     `hcl:"rows"`
	Columns    int     `hcl:"columns"`
	WellVolume float64 `hcl:"well_volume"`
}

// Parse decodes an HCL settings document. The result is not validated.
func Parse(src []byte, filename string) (*Settings, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse settings %s: %w", filename, diags)
	}

	content, diags := file.Body.Content(settingsSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode settings %s: %w", filename, diags)
	}

	s := &Settings{}
	var allDiags hcl.Diagnostics
	for _, b := range attributeBindings {
		allDiags = append(allDiags, hclutil.DecodeAttribute(content.Attributes[b.Name], b.Type, b.Target(s))...)
	}

	metaBlock, metaDiags := hclutil.FindUniqueBlock(content.Blocks, "metadata")
	allDiags = append(allDiags, metaDiags...)
	if metaBlock != nil {
		var meta hclMetadata
		allDiags = append(allDiags, gohcl.DecodeBody(metaBlock.Body, nil, &meta)...)
		s.Metadata = Metadata(meta)
	}

	defs, defDiags := decodeLabwareBlocks(content.Blocks)
	allDiags = append(allDiags, defDiags...)
	s.Labware = defs

	if allDiags.HasErrors() {
		return nil, fmt.Errorf("failed to decode settings %s: %w", filename, allDiags)
	}
	return s, nil
}

// ParseLabware decodes a document holding only `labware` blocks.
func ParseLabware(src []byte, filename string) ([]labware.Definition, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse labware %s: %w", filename, diags)
	}
	content, diags := file.Body.Content(labwareFileSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode labware %s: %w", filename, diags)
	}
	defs, diags := decodeLabwareBlocks(content.Blocks)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode labware %s: %w", filename, diags)
	}
	return defs, nil
}

func decodeLabwareBlocks(blocks hcl.Blocks) ([]labware.Definition, hcl.Diagnostics) {
	var defs []labware.Definition
	var diags hcl.Diagnostics
	seen := make(map[string]bool)

	for _, block := range blocks {
		if block.Type != "labware" {
			continue
		}
		name := block.Labels[0]
		if seen[name] {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate labware definition",
				Detail:   fmt.Sprintf("Labware %q is defined more than once.", name),
				Subject:  &block.DefRange,
			})
			continue
		}
		seen[name] = true

		var raw hclLabware
		if blockDiags := gohcl.DecodeBody(block.Body, nil, &raw); blockDiags.HasErrors() {
			diags = append(diags, blockDiags...)
			continue
		}

		kind := labware.KindPlate
		if raw.Kind != "" {
			k, err := labware.ParseKind(raw.Kind)
			if err != nil {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Invalid labware kind",
					Detail:   err.Error(),
					Subject:  &block.DefRange,
				})
				continue
			}
			kind = k
		}

		defs = append(defs, labware.Definition{
			LoadName:   name,
			Kind:       kind,
			Rows:       raw.Rows,
			Columns:    raw.Columns,
			WellVolume: volume.FromMicroliters(raw.WellVolume),
		})
	}

	return defs, diags
}
