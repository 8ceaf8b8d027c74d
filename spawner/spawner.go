package spawner

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/vegetation-spawner/collision"
	"github.com/aukilabs/vegetation-spawner/featureflag"
	"github.com/aukilabs/vegetation-spawner/models"
	"github.com/aukilabs/vegetation-spawner/modules"
	"github.com/aukilabs/vegetation-spawner/modules/filter"
	"github.com/google/uuid"
)

const (
	ErrTypeSpawnFailed = "spawner_spawn_failed"
)

// TerrainResult is the vegetation placed on a terrain.
type TerrainResult struct {
	ID        models.TerrainID          `json:"id"`
	Name      string                    `json:"name"`
	DebugInfo *collision.DebugInfo      `json:"debug_info,omitempty"`
	Details   []models.DetailLayer      `json:"details,omitempty"`
	Trees     []models.TreeInstance     `json:"trees,omitempty"`
	Stats     map[string]*modules.Stats `json:"stats,omitempty"`
}

// Result is the outcome of a run.
type Result struct {
	RunID        string          `json:"run_id"`
	Seed         int64           `json:"seed"`
	FeatureFlags []string        `json:"feature_flags,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	Duration     time.Duration   `json:"duration"`
	Terrains     []TerrainResult `json:"terrains"`
}

// Spawner places vegetation on every registered terrain.
type Spawner struct {
	Terrains *models.TerrainStore
	Cache    *collision.Cache

	// Returns the modules running on a terrain. Modules are created for
	// each terrain.
	Modules func() []modules.Module

	FeatureFlags featureflag.FeatureFlag

	// Seed of the random placement. Each terrain derives its own source
	// from it.
	Seed int64
}

// Run rebuilds the collision cache, then runs the modules over every
// terrain.
func (s *Spawner) Run(ctx context.Context) (Result, error) {
	res := Result{
		RunID:        uuid.NewString(),
		Seed:         s.Seed,
		FeatureFlags: s.FeatureFlags.List(),
		StartedAt:    time.Now(),
	}

	useCache := !s.FeatureFlags.IsSet(featureflag.FlagDisableCollisionCache)
	if useCache {
		if err := s.Cache.Rebuild(ctx); err != nil {
			return Result{}, errors.New("building collision cache failed").
				WithType(errors.Type(err)).
				WithTag("run_id", res.RunID).
				Wrap(err)
		}
	} else {
		logs.WithTag("run_id", res.RunID).
			Info("collision cache disabled")
	}

	for _, t := range s.Terrains.All() {
		tr, err := s.spawnTerrain(ctx, t, useCache)
		if err != nil {
			return Result{}, errors.New("spawning vegetation failed").
				WithType(ErrTypeSpawnFailed).
				WithTag("run_id", res.RunID).
				WithTag("terrain_id", t.ID).
				Wrap(err)
		}
		res.Terrains = append(res.Terrains, tr)
	}

	res.Duration = time.Since(res.StartedAt)
	logs.WithTag("run_id", res.RunID).
		WithTag("terrains", len(res.Terrains)).
		WithTag("seed", s.Seed).
		WithTag("duration", res.Duration.String()).
		Info("vegetation spawned")
	return res, nil
}

func (s *Spawner) spawnTerrain(ctx context.Context, t *models.Terrain, useCache bool) (TerrainResult, error) {
	var occupancy filter.Occupancy
	if useCache {
		occupancy = s.Cache
	}

	pass := modules.NewPass(t, occupancy, s.Seed+int64(t.ID))
	for _, m := range s.Modules() {
		m.Init(pass)
		if err := m.Spawn(ctx); err != nil {
			return TerrainResult{}, errors.New("module failed").
				WithType(errors.Type(err)).
				WithTag("module", m.Name()).
				Wrap(err)
		}
	}

	out := pass.Output()
	tr := TerrainResult{
		ID:      t.ID,
		Name:    t.Name,
		Details: out.Details,
		Trees:   out.Trees,
		Stats:   out.Stats,
	}
	if info, ok := s.Cache.DebugInfo(t.ID); ok && useCache {
		tr.DebugInfo = &info
	}
	return tr, nil
}
