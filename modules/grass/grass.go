package grass

import (
	"context"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/vegetation-spawner/models"
	"github.com/aukilabs/vegetation-spawner/modules"
	"github.com/aukilabs/vegetation-spawner/modules/filter"
)

const (
	ErrTypeSpawnCanceled = "grass_spawn_canceled"
)

// Item is a grass kind painted on the terrain detail map.
type Item struct {
	Name string `json:"name" yaml:"name"`

	// Instances painted on each accepted texel.
	Density int `json:"density" yaml:"density"`

	filter.Rules `yaml:",inline"`
}

// Module paints detail density maps, one texel at a time.
type Module struct {
	Items []Item

	pass *modules.Pass
}

func (m *Module) Name() string {
	return "grass"
}

func (m *Module) Init(p *modules.Pass) {
	m.pass = p
}

func (m *Module) Spawn(ctx context.Context) error {
	t := m.pass.Terrain
	resolution := t.DetailResolution
	if resolution <= 0 {
		logs.WithTag("terrain_id", t.ID).
			WithTag("terrain_name", t.Name).
			Warn("terrain has no detail resolution, grass skipped")
		return nil
	}

	for _, item := range m.Items {
		layer, err := m.spawnItem(ctx, item, resolution)
		if err != nil {
			return err
		}
		m.pass.AddDetails(m.Name(), layer)

		logs.WithTag("terrain_id", t.ID).
			WithTag("item", item.Name).
			WithTag("instances", layer.Total()).
			Debug("grass spawned")
	}
	return nil
}

func (m *Module) spawnItem(ctx context.Context, item Item, resolution int) (models.DetailLayer, error) {
	layer := models.DetailLayer{
		Item:       item.Name,
		Resolution: resolution,
		Density:    make([][]int, resolution),
	}

	for z := 0; z < resolution; z++ {
		if err := ctx.Err(); err != nil {
			return models.DetailLayer{}, errors.New("grass spawn canceled").
				WithType(ErrTypeSpawnCanceled).
				WithTag("item", item.Name).
				Wrap(err)
		}

		layer.Density[z] = make([]int, resolution)
		for x := 0; x < resolution; x++ {
			nx, nz := TexelCenter(x, z, resolution)
			if _, ok := m.pass.Check(m.Name(), item.Name, item.Rules, nx, nz); ok {
				layer.Density[z][x] = item.Density
			}
		}
	}
	return layer, nil
}

// TexelCenter returns the normalized terrain coordinates of a detail texel
// center.
func TexelCenter(x, z, resolution int) (nx, nz float64) {
	return (float64(x) + 0.5) / float64(resolution), (float64(z) + 0.5) / float64(resolution)
}
