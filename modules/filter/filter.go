package filter

import (
	"math/rand"

	"github.com/aukilabs/vegetation-spawner/models"
)

// Reason names the check that rejected a candidate.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonProbability Reason = "probability"
	ReasonCollision   Reason = "collision"
	ReasonUnderwater  Reason = "underwater"
	ReasonHeight      Reason = "height"
	ReasonSlope       Reason = "slope"
	ReasonCurvature   Reason = "curvature"
	ReasonLayer       Reason = "layer"
)

// Range is an inclusive interval.
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

func (r *Range) Contains(v float64) bool {
	return r == nil || (v >= r.Min && v <= r.Max)
}

// LayerMask makes a terrain layer contribute to the spawn chance where its
// weight exceeds Threshold.
type LayerMask struct {
	Layer     int     `json:"layer"     yaml:"layer"`
	Threshold float64 `json:"threshold" yaml:"threshold"`
}

// Rules describes where an item may spawn. Nil ranges are not checked.
type Rules struct {
	// Chance in percent of a candidate to be considered at all.
	Probability      float64     `json:"probability" yaml:"probability"`
	CollisionCheck   bool        `json:"collision_check" yaml:"collision_check"`
	RejectUnderwater bool        `json:"reject_underwater" yaml:"reject_underwater"`
	Height           *Range      `json:"height,omitempty" yaml:"height"`
	Slope            *Range      `json:"slope,omitempty" yaml:"slope"`
	Curvature        *Range      `json:"curvature,omitempty" yaml:"curvature"`
	LayerMasks       []LayerMask `json:"layer_masks,omitempty" yaml:"layer_masks"`
}

// Occupancy tells whether a terrain position is covered by a collider.
type Occupancy interface {
	IsBlocked(id models.TerrainID, worldPos models.Vector3, nx, nz float64) bool
}

// Filter decides which candidate positions of a terrain receive an instance.
// Checks run cheapest first and stop at the first failure.
type Filter struct {
	Terrain *models.Terrain

	// Collision is consulted for rules asking for it. A nil Collision
	// accepts every position.
	Collision Occupancy

	Rand *rand.Rand
}

// Check tests the candidate at the normalized terrain coordinates. It returns
// the surface position of the candidate and the reason it was rejected, if
// it was.
func (f *Filter) Check(rules Rules, nx, nz float64) (models.Vector3, Reason) {
	t := f.Terrain
	pos := t.WorldPosition(nx, nz)

	if f.Rand.Float64()*100 >= rules.Probability {
		return pos, ReasonProbability
	}

	if rules.CollisionCheck && f.Collision != nil && f.Collision.IsBlocked(t.ID, pos, nx, nz) {
		return pos, ReasonCollision
	}

	if rules.RejectUnderwater && t.IsUnderwater(pos.Y) {
		return pos, ReasonUnderwater
	}

	if !rules.Height.Contains(pos.Y) {
		return pos, ReasonHeight
	}

	if rules.Slope != nil && !rules.Slope.Contains(t.Steepness(nx, nz)) {
		return pos, ReasonSlope
	}

	if rules.Curvature != nil && !rules.Curvature.Contains(t.Curvature(nx, nz)) {
		return pos, ReasonCurvature
	}

	if len(rules.LayerMasks) > 0 && f.Rand.Float64()*100 >= SpawnChance(t, rules.LayerMasks, nx, nz) {
		return pos, ReasonLayer
	}

	return pos, ReasonNone
}

// SpawnChance sums the contribution of every layer mask, each adding up to
// 100. The result is not capped.
func SpawnChance(t *models.Terrain, masks []LayerMask, nx, nz float64) float64 {
	chance := 0.0
	for _, m := range masks {
		chance += models.Clamp01(t.SplatWeight(m.Layer, nx, nz)-m.Threshold) * 100
	}
	return chance
}
