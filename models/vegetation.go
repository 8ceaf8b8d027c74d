package models

// DetailLayer is the grass density map produced for one item over a
// terrain. Density is indexed [z][x] with Resolution texels per side.
type DetailLayer struct {
	Item       string  `json:"item"`
	Resolution int     `json:"resolution"`
	Density    [][]int `json:"density"`
}

// Total returns the number of instances painted on the layer.
func (l DetailLayer) Total() int {
	total := 0
	for _, row := range l.Density {
		for _, d := range row {
			total += d
		}
	}
	return total
}

// TreeInstance is a tree placed on a terrain. Position is normalized to the
// terrain: X and Z over the footprint, Y over the terrain height.
type TreeInstance struct {
	Item     string  `json:"item"`
	Position Vector3 `json:"position"`
	Scale    float64 `json:"scale"`

	// Rotation around the up axis, in radians.
	Rotation float64 `json:"rotation"`
}
