package debug

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/vegetation-spawner/collision"
	"github.com/aukilabs/vegetation-spawner/models"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const (
	ErrTypePlot = "debug_plot"
)

// waterResolution is the number of water level samples along each terrain
// axis.
const waterResolution = 64

var (
	freeColor    = color.RGBA{R: 46, G: 160, B: 67, A: 90}
	blockedColor = color.RGBA{R: 214, G: 39, B: 40, A: 200}
	waterColor   = color.RGBA{R: 31, G: 119, B: 180, A: 160}
	treeColor    = color.RGBA{R: 20, G: 70, B: 30, A: 255}
)

// CellSource enumerates the subcells of a terrain collision grid.
type CellSource interface {
	Subcells(id models.TerrainID, visit func(collision.SubcellInfo)) bool
}

// Renderer draws top down views of terrains with what blocks vegetation on
// them.
type Renderer struct {
	// Draws free subcells in green and blocked ones in red.
	VisualizeCells bool

	// Draws the terrain area lying under the water level in blue.
	VisualizeWaterlevel bool

	// Directory plots are saved to.
	OutputDir string
}

func (r Renderer) Enabled() bool {
	return r.VisualizeCells || r.VisualizeWaterlevel
}

// Plot builds the view of a terrain. Trees are drawn as dots.
func (r Renderer) Plot(t *models.Terrain, cells CellSource, trees []models.TreeInstance) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Terrain %d %s", t.ID, t.Name)
	p.X.Label.Text = "x"
	p.Y.Label.Text = "z"
	p.X.Min = t.Position.X
	p.X.Max = t.Position.X + t.Size.X
	p.Y.Min = t.Position.Z
	p.Y.Max = t.Position.Z + t.Size.Z

	if r.VisualizeCells {
		free, blocked, ok := subcellRings(t.ID, cells)
		if !ok {
			logs.WithTag("terrain_id", t.ID).
				Warn("terrain has no collision cache, cells not drawn")
		}

		for _, layer := range []struct {
			rings []plotter.XYs
			color color.Color
		}{
			{rings: free, color: freeColor},
			{rings: blocked, color: blockedColor},
		} {
			if len(layer.rings) == 0 {
				continue
			}
			if err := addPolygon(p, layer.rings, layer.color); err != nil {
				return nil, err
			}
		}
	}

	if r.VisualizeWaterlevel {
		if points := underwaterPoints(t, waterResolution); len(points) > 0 {
			if err := addScatter(p, points, waterColor, draw.SquareGlyph{}, vg.Points(2)); err != nil {
				return nil, err
			}
		}
	}

	if len(trees) > 0 {
		points := make(plotter.XYs, len(trees))
		for i, tree := range trees {
			points[i] = plotter.XY{
				X: t.Position.X + tree.Position.X*t.Size.X,
				Y: t.Position.Z + tree.Position.Z*t.Size.Z,
			}
		}
		if err := addScatter(p, points, treeColor, draw.CircleGlyph{}, vg.Points(1.5)); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Render plots a terrain and saves it as a PNG file in the output directory.
// It returns the file path.
func (r Renderer) Render(t *models.Terrain, cells CellSource, trees []models.TreeInstance) (string, error) {
	p, err := r.Plot(t, cells, trees)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(r.OutputDir, 0755); err != nil {
		return "", errors.New("creating plot directory failed").
			WithType(ErrTypePlot).
			WithTag("dir", r.OutputDir).
			Wrap(err)
	}

	path := filepath.Join(r.OutputDir, fmt.Sprintf("terrain_%03d.png", t.ID))
	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return "", errors.New("saving plot failed").
			WithType(ErrTypePlot).
			WithTag("path", path).
			Wrap(err)
	}

	logs.WithTag("terrain_id", t.ID).
		WithTag("path", path).
		Info("debug plot saved")
	return path, nil
}

// subcellRings returns the footprint outline of every free and blocked
// subcell of a terrain.
func subcellRings(id models.TerrainID, cells CellSource) (free, blocked []plotter.XYs, ok bool) {
	ok = cells != nil && cells.Subcells(id, func(s collision.SubcellInfo) {
		min := s.Bounds.Min()
		max := s.Bounds.Max()
		ring := plotter.XYs{
			{X: min.X, Y: min.Z},
			{X: max.X, Y: min.Z},
			{X: max.X, Y: max.Z},
			{X: min.X, Y: max.Z},
		}

		if s.Occupancy == collision.Blocked {
			blocked = append(blocked, ring)
		} else {
			free = append(free, ring)
		}
	})
	return free, blocked, ok
}

// underwaterPoints samples the terrain on a resolution by resolution lattice
// and returns the world XZ of the samples below the water level.
func underwaterPoints(t *models.Terrain, resolution int) plotter.XYs {
	var points plotter.XYs
	for z := 0; z < resolution; z++ {
		for x := 0; x < resolution; x++ {
			nx := (float64(x) + 0.5) / float64(resolution)
			nz := (float64(z) + 0.5) / float64(resolution)
			p := t.WorldPosition(nx, nz)
			if t.IsUnderwater(p.Y) {
				points = append(points, plotter.XY{X: p.X, Y: p.Z})
			}
		}
	}
	return points
}

func addPolygon(p *plot.Plot, rings []plotter.XYs, c color.Color) error {
	xyers := make([]plotter.XYer, len(rings))
	for i := range rings {
		xyers[i] = rings[i]
	}

	polygon, err := plotter.NewPolygon(xyers...)
	if err != nil {
		return errors.New("creating polygon failed").
			WithType(ErrTypePlot).
			Wrap(err)
	}
	polygon.Color = c
	polygon.LineStyle.Width = 0
	p.Add(polygon)
	return nil
}

func addScatter(p *plot.Plot, points plotter.XYs, c color.Color, shape draw.GlyphDrawer, radius vg.Length) error {
	scatter, err := plotter.NewScatter(points)
	if err != nil {
		return errors.New("creating scatter failed").
			WithType(ErrTypePlot).
			Wrap(err)
	}
	scatter.GlyphStyle.Color = c
	scatter.GlyphStyle.Shape = shape
	scatter.GlyphStyle.Radius = radius
	p.Add(scatter)
	return nil
}
