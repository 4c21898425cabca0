// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/dilugrid/modules/serialbridge"
	"github.com/specialistvlad/dilugrid/modules/simulator"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ProtocolPath string // settings document; empty selects the embedded default
	LabwarePath  string // directory of labware .hcl files

	Platform    string
	SerialPort  string
	BaudRate    int
	DataBits    int
	StopBits    int
	Parity      string
	ReadTimeout time.Duration // longest wait for a controller reply

	JournalPath string // sqlite file; empty disables the journal

	LogFormat string
	LogLevel  string
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.Platform == "" {
		cfg.Platform = simulator.DriverName
	}
	if cfg.Platform == serialbridge.DriverName && cfg.SerialPort == "" {
		return nil, errors.New("the serialbridge platform requires a serial port")
	}
	if cfg.BaudRate < 0 {
		return nil, fmt.Errorf("baud rate must not be negative, got %d", cfg.BaudRate)
	}
	if cfg.ReadTimeout < 0 {
		return nil, fmt.Errorf("read timeout must not be negative, got %s", cfg.ReadTimeout)
	}
	if _, err := (serialbridge.PortOptions{
		BaudRate:    cfg.BaudRate,
		DataBits:    cfg.DataBits,
		StopBits:    cfg.StopBits,
		Parity:      cfg.Parity,
		ReadTimeout: cfg.ReadTimeout,
	}).Normalize(); err != nil {
		return nil, fmt.Errorf("serial port: %w", err)
	}
	return &cfg, nil
}
