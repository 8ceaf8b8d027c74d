package modules

import (
	"context"
)

// Module is the interface that describes a spawn pass placing one kind of
// vegetation on a terrain.
type Module interface {
	// Returns the module name.
	Name() string

	// Initializes the module for a pass over a terrain.
	Init(*Pass)

	// Places the module items. Results are appended to the pass output.
	//
	// Returned errors abort the run. A canceled context stops the pass.
	Spawn(context.Context) error
}
