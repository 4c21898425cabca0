// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package app

import (
	"github.com/specialistvlad/dilugrid/internal/platform"
	"github.com/specialistvlad/dilugrid/modules/serialbridge"
	"github.com/specialistvlad/dilugrid/modules/simulator"
)

// coreModules is the definitive list of platform drivers compiled into the
// dilugrid binary.
var coreModules = []platform.Module{
	&simulator.Module{},
	&serialbridge.Module{},
}
