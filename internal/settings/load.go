// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package settings

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/dilugrid/internal/ctxlog"
	"github.com/specialistvlad/dilugrid/internal/fsutil"
	"github.com/specialistvlad/dilugrid/internal/labware"
)

//go:embed default.hcl
var defaultDocument []byte

// Default returns the validated settings compiled into the binary.
func Default() (*Settings, error) {
	s, err := Parse(defaultDocument, "default.hcl")
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads and validates a settings document. The format follows the file
// extension: .hcl, or .yaml/.yml. An empty path selects the default document.
func Load(ctx context.Context, path string) (*Settings, error) {
	logger := ctxlog.FromContext(ctx)
	if path == "" {
		logger.Debug("No settings path given, using the embedded default.")
		return Default()
	}

	logger.Debug("Loading settings.", "path", path)
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	var s *Settings
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".hcl":
		s, err = Parse(src, path)
	case ".yaml", ".yml":
		s, err = ParseYAML(src)
	default:
		return nil, fmt.Errorf("unsupported settings format %q: expected .hcl, .yaml, or .yml", ext)
	}
	if err != nil {
		return nil, err
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	logger.Debug("Settings loaded.", "path", path, "custom_labware", len(s.Labware))
	return s, nil
}

// LoadLabwareDir reads every .hcl file under path as a set of labware
// definitions.
func LoadLabwareDir(ctx context.Context, path string) ([]labware.Definition, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading labware definitions.", "path", path)

	files, err := fsutil.FindFilesByExtension(path, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("failed to find labware files in %s: %w", path, err)
	}
	if len(files) == 0 {
		logger.Warn("No .hcl labware files found in path.", "path", path)
		return nil, nil
	}

	var defs []labware.Definition
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read labware file: %w", err)
		}
		fileDefs, err := ParseLabware(src, file)
		if err != nil {
			return nil, err
		}
		defs = append(defs, fileDefs...)
	}

	logger.Info("Labware definitions loaded.", "count", len(defs))
	return defs, nil
}
