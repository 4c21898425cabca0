// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package volume provides a fixed-point liquid volume type.
//
// Volumes are stored as whole nanolitres. Settings are written in
// microlitres and converted once, rounding to the nearest nanolitre; every
// later computation is integer arithmetic, so splitting a volume into two
// parts and adding them back always yields the original exactly.
package volume

import (
	"fmt"
	"math"
	"strconv"
)

// Volume is a liquid volume in nanolitres.
type Volume int64

const (
	Nanoliter  Volume = 1
	Microliter Volume = 1000
	Milliliter Volume = 1000 * Microliter
)

// FromMicroliters converts a microlitre quantity to a Volume.
func FromMicroliters(ul float64) Volume {
	return Volume(math.Round(ul * float64(Microliter)))
}

// MaxMicroliters bounds the quantities accepted by ParseMicroliters.
const MaxMicroliters = 1e12

// ParseMicroliters converts an untrusted microlitre quantity. It rejects NaN,
// infinities and magnitudes above MaxMicroliters, which FromMicroliters would
// silently wrap.
func ParseMicroliters(ul float64) (Volume, error) {
	if math.IsNaN(ul) || math.IsInf(ul, 0) || math.Abs(ul) > MaxMicroliters {
		return 0, fmt.Errorf("volume: %v µl is out of range (at most %g µl)", ul, MaxMicroliters)
	}
	return FromMicroliters(ul), nil
}

// Microliters returns v expressed in microlitres.
func (v Volume) Microliters() float64 {
	return float64(v) / float64(Microliter)
}

// Divide returns v divided by factor, rounded to the nearest nanolitre.
func (v Volume) Divide(factor float64) (Volume, error) {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return 0, fmt.Errorf("volume: invalid divisor %v", factor)
	}
	return Volume(math.Round(float64(v) / factor)), nil
}

// Split divides v into n parts that differ by at most one nanolitre and sum
// to v. It returns nil when n is not positive.
func (v Volume) Split(n int) []Volume {
	if n <= 0 {
		return nil
	}
	parts := make([]Volume, n)
	base, rem := v/Volume(n), v%Volume(n)
	for i := range parts {
		parts[i] = base
		if Volume(i) < rem {
			parts[i]++
		}
	}
	return parts
}

// String formats the volume in microlitres, e.g. "50µl" or "33.333µl".
func (v Volume) String() string {
	return strconv.FormatFloat(v.Microliters(), 'f', -1, 64) + "µl"
}
