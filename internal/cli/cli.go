// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/dilugrid/internal/app"
	"github.com/specialistvlad/dilugrid/internal/protocol"
	"github.com/specialistvlad/dilugrid/internal/settings"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Exit codes.
const (
	CodeRunFailed = 1
	CodeUsage     = 2
)

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("dilugrid", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
dilugrid - runs a customizable serial dilution on a liquid handling robot.

Usage:
  dilugrid [options] [PROTOCOL_PATH]

Arguments:
  PROTOCOL_PATH
    Path to a settings document (.hcl, .yaml or .yml). When omitted the
    built-in default settings are used.

Environment:
  Every option except -protocol/-p takes its default from DILUGRID_<NAME>,
  e.g. DILUGRID_SERIAL_PORT or DILUGRID_LOG_LEVEL.

Options:
`)
		flagSet.PrintDefaults()
	}

	protocolFlag := flagSet.String("protocol", "", "Path to the settings document.")
	pFlag := flagSet.String("p", "", "Path to the settings document (shorthand).")
	platformFlag := flagSet.String("platform", envString("platform", "simulator"), "Platform driver. Options: 'simulator' or 'serialbridge'.")
	serialPortFlag := flagSet.String("serial-port", envString("serial-port", ""), "Serial device of the controller, e.g. /dev/ttyACM0.")
	baudFlag := flagSet.Int("baud", envInt("baud", 0), "Baud rate of the serial port. 0 selects 115200.")
	dataBitsFlag := flagSet.Int("data-bits", envInt("data-bits", 0), "Data bits of the serial port (5-8). 0 selects 8.")
	stopBitsFlag := flagSet.Int("stop-bits", envInt("stop-bits", 0), "Stop bits of the serial port (1 or 2). 0 selects 1.")
	parityFlag := flagSet.String("parity", envString("parity", ""), "Parity of the serial port. Options: 'N', 'E' or 'O'. Empty selects 'N'.")
	readTimeoutFlag := flagSet.Duration("read-timeout", envDuration("read-timeout", 0), "Longest wait for a controller reply, e.g. 30s. 0 selects 30s.")
	labwarePathFlag := flagSet.String("labware-path", envString("labware-path", ""), "Directory of .hcl labware definitions to add to the catalog.")
	journalFlag := flagSet.String("journal", envString("journal", ""), "Path to a SQLite run journal. Empty disables journaling.")
	logFormatFlag := flagSet.String("log-format", envString("log-format", "json"), "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", envString("log-level", "info"), "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: CodeUsage, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *protocolFlag != "" {
		path = *protocolFlag
	} else if *pFlag != "" {
		path = *pFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	if flagSet.NArg() > 1 {
		return nil, false, &ExitError{Code: CodeUsage, Message: "expected at most one PROTOCOL_PATH argument"}
	}
	slog.Debug("Protocol path determined.", "path", path)

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: CodeUsage, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: CodeUsage, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	platformName := strings.ToLower(*platformFlag)
	switch platformName {
	case "simulator", "serialbridge":
	default:
		return nil, false, &ExitError{Code: CodeUsage, Message: "invalid platform: must be 'simulator' or 'serialbridge'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		ProtocolPath: path,
		LabwarePath:  *labwarePathFlag,
		Platform:     platformName,
		SerialPort:   *serialPortFlag,
		BaudRate:     *baudFlag,
		DataBits:     *dataBitsFlag,
		StopBits:     *stopBitsFlag,
		Parity:       *parityFlag,
		ReadTimeout:  *readTimeoutFlag,
		JournalPath:  *journalFlag,
		LogFormat:    logFormat,
		LogLevel:     logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: CodeUsage, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}

// Classify maps an application error to an ExitError. Settings and protocol
// configuration problems are usage errors; everything else is a failed run.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	code := CodeRunFailed
	if errors.Is(err, app.ErrSettings) || errors.Is(err, settings.ErrInvalid) || errors.Is(err, protocol.ErrConfig) {
		code = CodeUsage
	}
	return &ExitError{Code: code, Message: err.Error()}
}
