package app

import (
	"github.com/ak/cellpipe/internal/registry"
	"github.com/ak/cellpipe/modules/label"
	"github.com/ak/cellpipe/modules/measure"
	"github.com/ak/cellpipe/modules/neighbours"
	"github.com/ak/cellpipe/modules/relate"
	"github.com/ak/cellpipe/modules/smooth"
	"github.com/ak/cellpipe/modules/threshold"
)

// coreModules is the definitive list of all modules that are compiled into
// the cellpipe binary.
var coreModules = []registry.Module{
	&smooth.Module{},
	&threshold.Module{},
	&label.Module{},
	&measure.Module{},
	&relate.Module{},
	&neighbours.Module{},
}
