// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package protocol runs a customizable serial dilution against a platform.
//
// Deck layout: tip rack in slot 1, diluent trough in slot 2 (diluent in the
// first well), plate in slot 3 with samples or standards in column 1.
//
// A run has three ordered phases:
//
//  1. Diluent pre-fill. One tip distributes the diluent volume into every
//     destination well of the series.
//  2. Serial dilution. The transfer volume moves from each column to the next
//     and is mixed five times at half the total mixing volume. With the
//     "never" tip strategy one tip serves the whole phase; otherwise the
//     platform changes tips per transfer.
//  3. Blank. When enabled, one tip fills the blank wells with diluent.
//
// Validation errors are returned before any labware is loaded. Failures from
// the platform are returned as they occur; there are no retries and the tip
// state is left to the platform.
package protocol
