package trees

import (
	"context"
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/vegetation-spawner/models"
	"github.com/aukilabs/vegetation-spawner/modules"
	"github.com/aukilabs/vegetation-spawner/modules/filter"
)

const (
	ErrTypeInvalidItem   = "trees_invalid_item"
	ErrTypeSpawnCanceled = "trees_spawn_canceled"
)

// Item is a tree kind scattered over the terrain.
type Item struct {
	Name string `json:"name" yaml:"name"`

	// Minimum distance between two candidates, in world units.
	Distance float64 `json:"distance" yaml:"distance"`

	// Instances get a uniform scale picked in [MinScale, MaxScale]. Both
	// left to 0 means a scale of 1.
	MinScale float64 `json:"min_scale" yaml:"min_scale"`
	MaxScale float64 `json:"max_scale" yaml:"max_scale"`

	filter.Rules `yaml:",inline"`
}

func (i Item) Validate() error {
	if i.Distance <= 0 {
		return errors.New("tree distance must be greater than 0").
			WithType(ErrTypeInvalidItem).
			WithTag("item", i.Name).
			WithTag("distance", i.Distance)
	}
	if i.MinScale < 0 || i.MaxScale < i.MinScale {
		return errors.New("tree scale range is invalid").
			WithType(ErrTypeInvalidItem).
			WithTag("item", i.Name).
			WithTag("min_scale", i.MinScale).
			WithTag("max_scale", i.MaxScale)
	}
	return nil
}

// Module scatters trees on Poisson disc candidates.
type Module struct {
	Items []Item

	pass *modules.Pass
}

func (m *Module) Name() string {
	return "trees"
}

func (m *Module) Init(p *modules.Pass) {
	m.pass = p
}

func (m *Module) Spawn(ctx context.Context) error {
	for _, item := range m.Items {
		if err := item.Validate(); err != nil {
			return err
		}

		trees, err := m.spawnItem(ctx, item)
		if err != nil {
			return err
		}
		m.pass.AddTrees(m.Name(), item.Name, trees...)

		logs.WithTag("terrain_id", m.pass.Terrain.ID).
			WithTag("item", item.Name).
			WithTag("instances", len(trees)).
			Debug("trees spawned")
	}
	return nil
}

func (m *Module) spawnItem(ctx context.Context, item Item) ([]models.TreeInstance, error) {
	t := m.pass.Terrain
	rnd := m.pass.Rand

	var trees []models.TreeInstance
	for i, c := range poissonDisc(rnd, t.Size.X, t.Size.Z, item.Distance) {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errors.New("trees spawn canceled").
					WithType(ErrTypeSpawnCanceled).
					WithTag("item", item.Name).
					Wrap(err)
			}
		}

		nx := c.X / t.Size.X
		nz := c.Z / t.Size.Z
		pos, ok := m.pass.Check(m.Name(), item.Name, item.Rules, nx, nz)
		if !ok {
			continue
		}

		ny := 0.0
		if t.Size.Y > 0 {
			ny = (pos.Y - t.Position.Y) / t.Size.Y
		}

		trees = append(trees, models.TreeInstance{
			Item:     item.Name,
			Position: models.Vector3{X: nx, Y: ny, Z: nz},
			Scale:    scale(item, rnd.Float64()),
			Rotation: rnd.Float64() * 2 * math.Pi,
		})
	}
	return trees, nil
}

func scale(item Item, r float64) float64 {
	if item.MinScale == 0 && item.MaxScale == 0 {
		return 1
	}
	return item.MinScale + r*(item.MaxScale-item.MinScale)
}
