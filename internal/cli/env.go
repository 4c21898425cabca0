// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package cli

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// envPrefix namespaces the environment variables that provide flag defaults,
// e.g. DILUGRID_SERIAL_PORT for -serial-port.
const envPrefix = "DILUGRID_"

// envName returns the variable consulted for a flag.
func envName(flagName string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

// envString returns the environment default for flagName, or fallback.
func envString(flagName, fallback string) string {
	if v, ok := os.LookupEnv(envName(flagName)); ok && v != "" {
		return v
	}
	return fallback
}

// envInt is envString for integer flags. Unparseable values are ignored so
// that the flag's own default and validation apply.
func envInt(flagName string, fallback int) int {
	v := envString(flagName, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// envDuration is envString for duration flags, e.g. DILUGRID_READ_TIMEOUT=45s.
func envDuration(flagName string, fallback time.Duration) time.Duration {
	v := envString(flagName, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
