package scene

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/vegetation-spawner/collision"
	"github.com/aukilabs/vegetation-spawner/models"
	"github.com/aukilabs/vegetation-spawner/modules/grass"
	"github.com/aukilabs/vegetation-spawner/modules/trees"
	"github.com/aukilabs/vegetation-spawner/physics"
	"github.com/segmentio/encoding/json"
	"gopkg.in/yaml.v3"
)

const (
	ErrTypeInvalidScene = "scene_invalid"
	ErrTypeReadScene    = "scene_read"
)

// Format is the encoding of a scene file.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// FormatOf guesses a scene format from a file extension.
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return JSON, true
	case ".yaml", ".yml":
		return YAML, true
	default:
		return "", false
	}
}

// Box is an axis aligned obstacle.
type Box struct {
	Name  string         `json:"name" yaml:"name"`
	Min   models.Vector3 `json:"min" yaml:"min"`
	Max   models.Vector3 `json:"max" yaml:"max"`
	Layer int            `json:"layer" yaml:"layer"`

	// Temporary boxes only exist while the collision cache is built.
	Temporary bool `json:"temporary" yaml:"temporary"`
}

// Scene describes the terrains to populate, their obstacles and the
// vegetation to place on them.
type Scene struct {
	Terrains  []*models.Terrain `json:"terrains" yaml:"terrains"`
	Boxes     []Box             `json:"boxes" yaml:"boxes"`
	Collision collision.Options `json:"collision" yaml:"collision"`
	Grass     []grass.Item      `json:"grass" yaml:"grass"`
	Trees     []trees.Item      `json:"trees" yaml:"trees"`
}

// Load reads a scene file. The format is picked from the file extension.
func Load(path string) (*Scene, error) {
	format, ok := FormatOf(path)
	if !ok {
		return nil, errors.New("unknown scene file extension").
			WithType(ErrTypeReadScene).
			WithTag("path", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("reading scene file failed").
			WithType(ErrTypeReadScene).
			WithTag("path", path).
			Wrap(err)
	}

	s, err := Decode(data, format)
	if err != nil {
		return nil, errors.New("loading scene failed").
			WithType(errors.Type(err)).
			WithTag("path", path).
			Wrap(err)
	}
	return s, nil
}

// Decode parses and validates a scene. Collision options missing from the
// scene keep their default value.
func Decode(data []byte, format Format) (*Scene, error) {
	s := Scene{
		Collision: collision.DefaultOptions(),
	}

	var err error
	switch format {
	case JSON:
		err = json.Unmarshal(data, &s)
	case YAML:
		err = yaml.Unmarshal(data, &s)
	default:
		return nil, errors.New("unsupported scene format").
			WithType(ErrTypeReadScene).
			WithTag("format", format)
	}
	if err != nil {
		return nil, errors.New("decoding scene failed").
			WithType(ErrTypeInvalidScene).
			WithTag("format", format).
			Wrap(err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Scene) Validate() error {
	if len(s.Terrains) == 0 {
		return errors.New("scene has no terrain").WithType(ErrTypeInvalidScene)
	}

	for i, t := range s.Terrains {
		if err := validateTerrain(t); err != nil {
			return errors.New("invalid terrain").
				WithType(ErrTypeInvalidScene).
				WithTag("terrain_index", i).
				Wrap(err)
		}
	}

	for i, b := range s.Boxes {
		if b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z {
			return errors.New("box min is greater than its max").
				WithType(ErrTypeInvalidScene).
				WithTag("box_index", i).
				WithTag("box_name", b.Name)
		}
		if b.Layer < 0 || b.Layer > physics.MaxLayer {
			return errors.New("box layer is out of range").
				WithType(ErrTypeInvalidScene).
				WithTag("box_index", i).
				WithTag("layer", b.Layer)
		}
	}

	if err := s.Collision.Validate(); err != nil {
		return errors.New("invalid collision options").
			WithType(ErrTypeInvalidScene).
			Wrap(err)
	}

	for i, item := range s.Grass {
		if item.Name == "" || item.Density < 0 {
			return errors.New("invalid grass item").
				WithType(ErrTypeInvalidScene).
				WithTag("grass_index", i).
				WithTag("density", item.Density)
		}
	}

	for i, item := range s.Trees {
		if item.Name == "" {
			return errors.New("tree item has no name").
				WithType(ErrTypeInvalidScene).
				WithTag("tree_index", i)
		}
		if err := item.Validate(); err != nil {
			return errors.New("invalid tree item").
				WithType(ErrTypeInvalidScene).
				WithTag("tree_index", i).
				Wrap(err)
		}
	}
	return nil
}

func validateTerrain(t *models.Terrain) error {
	if t == nil {
		return errors.New("terrain is empty")
	}
	if t.Size.X <= 0 || t.Size.Z <= 0 || t.Size.Y < 0 {
		return errors.New("terrain size must be positive").
			WithTag("size", t.Size)
	}
	if !rectangular(t.Heights) {
		return errors.New("terrain heights are not rectangular")
	}
	for _, l := range t.Layers {
		if !rectangular(l.Weights) {
			return errors.New("terrain layer weights are not rectangular").
				WithTag("layer", l.Name)
		}
	}
	if t.DetailResolution < 0 {
		return errors.New("terrain detail resolution is negative")
	}
	return nil
}

func rectangular(rows [][]float64) bool {
	for _, row := range rows {
		if len(row) != len(rows[0]) {
			return false
		}
	}
	return true
}

// Setup registers the scene terrains and adds their colliders to the world.
// It returns the collision options to build the cache with, temporary boxes
// included.
func (s *Scene) Setup(terrains *models.TerrainStore, world *physics.World) collision.Options {
	options := s.Collision

	for _, t := range s.Terrains {
		terrains.Register(t)
		world.Add(&physics.TerrainCollider{Terrain: t})
	}

	for _, b := range s.Boxes {
		box := &physics.BoxCollider{
			Name:     b.Name,
			Bounds:   models.NewBoundsFromMinMax(b.Min, b.Max),
			Layer:    b.Layer,
			Disabled: b.Temporary,
		}
		world.Add(box)

		if b.Temporary {
			options.TempColliders = append(options.TempColliders, box)
		}
	}
	return options
}
