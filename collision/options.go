package collision

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/vegetation-spawner/physics"
)

const (
	ErrTypeInvalidConfig = "collision_invalid_config"
	ErrTypeNoCache       = "collision_no_cache"
	ErrTypeOutOfGrid     = "collision_out_of_grid"
	ErrTypeBuildCanceled = "collision_build_canceled"
)

const (
	// RayStartOffset is how far above a sample point occupancy rays start.
	RayStartOffset = 100

	// RayMaxDistance is how far occupancy rays travel.
	RayMaxDistance = 150
)

// Options configures how a cache partitions and samples terrains.
type Options struct {
	// Edge length of a top level cell, in world units.
	CellSize float64 `json:"cell_size" yaml:"cell_size"`

	// Number of subcells along each axis of a top level cell.
	CellDivisions int `json:"cell_divisions" yaml:"cell_divisions"`

	// Samples the 4 corners of each subcell instead of its center.
	HighPrecision bool `json:"high_precision" yaml:"high_precision"`

	// Layers whose colliders count as obstacles. The terrain ground collider
	// must be selected too or every subcell ends up blocked.
	LayerMask physics.LayerMask `json:"layer_mask" yaml:"layer_mask"`

	// Caller owned colliders only enabled for the duration of a build.
	TempColliders []physics.Collider `json:"-" yaml:"-"`

	// Called after each top level cell is sampled.
	Progress func(done, total int) `json:"-" yaml:"-"`
}

func DefaultOptions() Options {
	return Options{
		CellSize:      64,
		CellDivisions: 4,
		HighPrecision: true,
		LayerMask:     physics.AllLayers,
	}
}

func (o Options) Validate() error {
	if o.CellSize <= 0 {
		return errors.New("cell size must be greater than 0").
			WithType(ErrTypeInvalidConfig).
			WithTag("cell_size", o.CellSize)
	}
	if o.CellDivisions < 1 {
		return errors.New("cell divisions must be at least 1").
			WithType(ErrTypeInvalidConfig).
			WithTag("cell_divisions", o.CellDivisions)
	}
	return nil
}
