package smoketest

import (
	"context"
	"net/http"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/vegetation-spawner/collision"
	"github.com/aukilabs/vegetation-spawner/models"
	"github.com/aukilabs/vegetation-spawner/physics"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

const (
	ErrTypeCheckFailed = "smoketest_check_failed"
)

// Check is the outcome of one smoke test check.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Error  string `json:"error,omitempty"`
}

// Results is the outcome of a smoke test run.
type Results struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Passed    bool          `json:"passed"`
	Checks    []Check       `json:"checks"`
}

type Options struct {
	SendResult func(context.Context, Results) error
}

type testCtxKey string

var testCtxKeyValue testCtxKey = "test-context"

type testContext struct {
	context.Context
	Cancel func()
}

// HandleSmokeTest starts a smoke test run in the background. Results are
// handed to opts.SendResult once the run completes.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		go func() {
			defer func() {
				// if context is of testContext
				// cancel context on exit to signal function exited
				// this is used for testing
				if tctx := ctx.Value(testCtxKeyValue); tctx != nil {
					testCtx := tctx.(testContext)
					if testCtx.Cancel != nil {
						testCtx.Cancel()
					}
				}
			}()

			res := Run(ctx)
			if err := opts.SendResult(ctx, res); err != nil {
				logs.WithTag("run_id", res.RunID).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}()

		w.WriteHeader(http.StatusAccepted)
	}
}

type check struct {
	name string
	run  func(context.Context) error
}

var checks = []check{
	{name: "flat terrain is free", run: checkFlatTerrain},
	{name: "box blocks covered subcells", run: checkBoxBlocks},
	{name: "straddling subcell stays free", run: checkStraddlingFree},
	{name: "rebuild is idempotent", run: checkIdempotentRebuild},
	{name: "cell boundary resolves to one cell", run: checkCellBoundary},
	{name: "unregistered terrain fails open", run: checkUnregisteredTerrain},
}

// Run builds canned scenes and verifies the collision cache answers on them.
func Run(ctx context.Context) Results {
	res := Results{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Passed:    true,
	}

	for _, c := range checks {
		result := Check{Name: c.name, Passed: true}
		if err := c.run(ctx); err != nil {
			result.Passed = false
			result.Error = err.Error()
			res.Passed = false

			logs.WithTag("run_id", res.RunID).
				WithTag("check", c.name).
				Warn(err)
		}
		res.Checks = append(res.Checks, result)
	}

	res.Duration = time.Since(res.StartedAt)
	logs.WithTag("run_id", res.RunID).
		WithTag("passed", res.Passed).
		WithTag("duration", res.Duration.String()).
		Info("smoke test completed")
	return res
}

type scene struct {
	terrains models.TerrainStore
	world    physics.World
	terrain  *models.Terrain
	cache    *collision.Cache
}

func newScene(ctx context.Context, size float64, boxes ...models.Bounds) (*scene, error) {
	s := &scene{
		terrain: &models.Terrain{
			Name: "smoke-test",
			Size: models.Vector3{X: size, Y: 50, Z: size},
		},
	}
	s.terrains.Register(s.terrain)
	s.world.Add(&physics.TerrainCollider{Terrain: s.terrain})
	for _, b := range boxes {
		s.world.Add(&physics.BoxCollider{Name: "box", Bounds: b, Layer: 1})
	}

	s.cache = collision.NewCache(&s.terrains, &s.world, collision.DefaultOptions())
	if err := s.cache.Rebuild(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *scene) isBlocked(x, z float64) bool {
	p := models.Vector3{X: x, Z: z}
	nx, nz := s.terrain.Normalize(p)
	return s.cache.IsBlocked(s.terrain.ID, p, nx, nz)
}

func checkFlatTerrain(ctx context.Context) error {
	s, err := newScene(ctx, 256)
	if err != nil {
		return err
	}

	if blocked := s.cache.Blocked(s.terrain.ID); len(blocked) != 0 {
		return errors.New("flat terrain has blocked subcells").
			WithType(ErrTypeCheckFailed).
			WithTag("blocked", len(blocked))
	}
	for x := 0.0; x <= 256; x += 8 {
		for z := 0.0; z <= 256; z += 8 {
			if s.isBlocked(x, z) {
				return errors.New("flat terrain position is blocked").
					WithType(ErrTypeCheckFailed).
					WithTag("x", x).
					WithTag("z", z)
			}
		}
	}
	return nil
}

func boxScene(ctx context.Context) (*scene, error) {
	return newScene(ctx, 256, models.NewBoundsFromMinMax(
		models.Vector3{X: 92, Y: 0, Z: 92},
		models.Vector3{X: 116, Y: 10, Z: 116},
	))
}

func checkBoxBlocks(ctx context.Context) error {
	s, err := boxScene(ctx)
	if err != nil {
		return err
	}

	want := []collision.SubcellIndex{{CellX: 1, CellZ: 1, SubX: 2, SubZ: 2}}
	if diff := cmp.Diff(want, s.cache.Blocked(s.terrain.ID)); diff != "" {
		return errors.New("unexpected blocked subcells").
			WithType(ErrTypeCheckFailed).
			WithTag("diff", diff)
	}
	if !s.isBlocked(104, 104) {
		return errors.New("position covered by the box is free").
			WithType(ErrTypeCheckFailed)
	}
	return nil
}

func checkStraddlingFree(ctx context.Context) error {
	s, err := boxScene(ctx)
	if err != nil {
		return err
	}

	if s.isBlocked(88, 104) || s.isBlocked(104, 120) {
		return errors.New("subcell partially covered by the box is blocked").
			WithType(ErrTypeCheckFailed)
	}
	return nil
}

func checkIdempotentRebuild(ctx context.Context) error {
	s, err := boxScene(ctx)
	if err != nil {
		return err
	}

	first := s.cache.Blocked(s.terrain.ID)
	if err := s.cache.Rebuild(ctx); err != nil {
		return err
	}
	if diff := cmp.Diff(first, s.cache.Blocked(s.terrain.ID)); diff != "" {
		return errors.New("rebuild changed the occupancy").
			WithType(ErrTypeCheckFailed).
			WithTag("diff", diff)
	}
	return nil
}

func checkCellBoundary(ctx context.Context) error {
	s, err := newScene(ctx, 512)
	if err != nil {
		return err
	}

	info, ok := s.cache.DebugInfo(s.terrain.ID)
	if !ok || info.ColCount != 8 || info.RowCount != 8 {
		return errors.New("512 terrain is not split in 8x8 cells").
			WithType(ErrTypeCheckFailed)
	}

	p := models.Vector3{X: 64, Z: 32}
	nx, nz := s.terrain.Normalize(p)
	if _, err := s.cache.Lookup(s.terrain.ID, p, nx, nz); err != nil {
		return errors.New("cell boundary lookup failed").
			WithType(ErrTypeCheckFailed).
			Wrap(err)
	}
	return nil
}

func checkUnregisteredTerrain(ctx context.Context) error {
	s, err := newScene(ctx, 256)
	if err != nil {
		return err
	}

	p := models.Vector3{X: 10, Z: 10}
	if s.cache.IsBlocked(s.terrain.ID+1, p, 0.1, 0.1) {
		return errors.New("unregistered terrain is blocked").
			WithType(ErrTypeCheckFailed)
	}
	if _, err := s.cache.Lookup(s.terrain.ID+1, p, 0.1, 0.1); !errors.IsType(err, collision.ErrTypeNoCache) {
		return errors.New("unregistered terrain lookup does not report a missing cache").
			WithType(ErrTypeCheckFailed)
	}
	return nil
}
