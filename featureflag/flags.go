package featureflag

type Flag string

const (
	// Runs the placement filter without collision checks.
	FlagDisableCollisionCache Flag = "DISABLE_COLLISION_CACHE"

	// Draws the collision cache subcells in debug plots.
	FlagVisualizeCells Flag = "VISUALIZE_CELLS"

	// Draws the terrain area below the water level in debug plots.
	FlagVisualizeWaterlevel Flag = "VISUALIZE_WATERLEVEL"
)

func (f Flag) String() string {
	return string(f)
}
