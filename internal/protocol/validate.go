// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package protocol

import (
	"errors"
	"fmt"
)

// MaxDilutions is the longest series a 12-column plate can hold, leaving the
// first column for the undiluted sample.
const MaxDilutions = 11

// ErrConfig is matched by every ConfigError.
var ErrConfig = errors.New("protocol configuration error")

// ConfigError reports a setting combination the protocol cannot run. It is
// always raised before the platform is touched.
type ConfigError struct {
	Reason string
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return "protocol configuration error: " + e.Reason
}

// Is lets errors.Is(err, ErrConfig) match any ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// Validate checks the dilution count against the plate width and makes sure
// a blank still fits.
func Validate(numOfDilutions int, blankOn bool) error {
	if numOfDilutions < 1 || numOfDilutions > MaxDilutions {
		return &ConfigError{Reason: fmt.Sprintf("enter a number of dilutions between 1 and %d, got %d", MaxDilutions, numOfDilutions)}
	}
	if numOfDilutions == MaxDilutions && blankOn {
		return &ConfigError{Reason: fmt.Sprintf("no room for blank with %d dilutions", MaxDilutions)}
	}
	return nil
}
