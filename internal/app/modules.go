// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package app

import (
	"github.com/specialistvlad/rtgraph/internal/registry"
	"github.com/specialistvlad/rtgraph/modules/delay"
	"github.com/specialistvlad/rtgraph/modules/gain"
	"github.com/specialistvlad/rtgraph/modules/mix"
	"github.com/specialistvlad/rtgraph/modules/output"
	"github.com/specialistvlad/rtgraph/modules/sine"
	"github.com/specialistvlad/rtgraph/modules/transport"
)

// coreModules is the definitive list of all processor modules compiled into
// the rtgraph binary.
var coreModules = []registry.Module{
	&sine.Module{},
	&gain.Module{},
	&delay.Module{},
	&mix.Module{},
	&output.Module{},
	&transport.Module{},
}
