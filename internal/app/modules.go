package app

import (
	"github.com/specialistvlad/paramgrid/internal/calc"
	"github.com/specialistvlad/paramgrid/modules/geometry"
)

// coreModules is the definitive list of rule modules compiled into the
// paramgrid binary.
var coreModules = []calc.Module{
	&geometry.Module{},
}
