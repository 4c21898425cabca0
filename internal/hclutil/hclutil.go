// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package hclutil holds small helpers shared by the HCL decoders.
package hclutil

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// FindUniqueBlock searches a slice of blocks for all blocks of a given name.
// It returns a diagnostic error if more than one block of that name is found.
// If no block is found, it returns nil.
func FindUniqueBlock(blocks hcl.Blocks, name string) (*hcl.Block, hcl.Diagnostics) {
	var found *hcl.Block
	var diags hcl.Diagnostics

	for _, block := range blocks {
		if block.Type != name {
			continue
		}
		if found != nil {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate \"" + name + "\" block",
				Detail:   "Only one \"" + name + "\" block is allowed.",
				Subject:  &block.DefRange,
			})
			continue
		}
		found = block
	}

	return found, diags
}

// DecodeAttribute evaluates attr without variables, converts the result to ty
// and stores it in target, which must be a pointer to a Go value compatible
// with ty.
func DecodeAttribute(attr *hcl.Attribute, ty cty.Type, target any) hcl.Diagnostics {
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return diags
	}

	subject := attr.Expr.Range().Ptr()
	if val.IsNull() {
		return append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Missing value",
			Detail:   fmt.Sprintf("The attribute %q must not be null.", attr.Name),
			Subject:  subject,
		})
	}

	val, err := convert.Convert(val, ty)
	if err != nil {
		return append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Incorrect attribute value type",
			Detail:   fmt.Sprintf("Inappropriate value for attribute %q: %s.", attr.Name, err),
			Subject:  subject,
		})
	}

	if err := gocty.FromCtyValue(val, target); err != nil {
		return append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid attribute value",
			Detail:   fmt.Sprintf("Unsuitable value for attribute %q: %s.", attr.Name, err),
			Subject:  subject,
		})
	}

	return diags
}
