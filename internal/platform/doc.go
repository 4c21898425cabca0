// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package platform defines the boundary between a protocol and the liquid
// handler that executes it.
//
// A protocol never talks to hardware directly. It receives a Context, asks it
// for labware and a Pipette, and issues pick-up, drop, and transfer commands.
// Concrete drivers live under modules/ and register a Factory with a Registry,
// the same way every pluggable piece of the application is wired in. This
// keeps the protocol logic testable against a recording double and lets the
// same protocol run on the simulator or on a controller behind a serial line.
package platform
