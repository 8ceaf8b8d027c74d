package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"sync"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/vegetation-spawner/collision"
	"github.com/aukilabs/vegetation-spawner/debug"
	"github.com/aukilabs/vegetation-spawner/featureflag"
	spawnerhttp "github.com/aukilabs/vegetation-spawner/http"
	"github.com/aukilabs/vegetation-spawner/models"
	"github.com/aukilabs/vegetation-spawner/modules"
	"github.com/aukilabs/vegetation-spawner/modules/grass"
	"github.com/aukilabs/vegetation-spawner/modules/trees"
	"github.com/aukilabs/vegetation-spawner/physics"
	"github.com/aukilabs/vegetation-spawner/scene"
	"github.com/aukilabs/vegetation-spawner/smoketest"
	"github.com/aukilabs/vegetation-spawner/spawner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
)

var (
	// The spawner version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "spawner_info",
		Help:        "Vegetation spawner information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Scene        string       `cli:""        env:"SPAWNER_SCENE"         help:"Scene file to populate (.json, .yaml or .yml)."`
	Output       string       `cli:""        env:"SPAWNER_OUTPUT"        help:"File the result is written to. Writes to stdout when empty."`
	PlotDir      string       `cli:""        env:"SPAWNER_PLOT_DIR"      help:"Directory debug plots are saved to."`
	Seed         int          `cli:""        env:"SPAWNER_SEED"          help:"Seed of the random placement."`
	AdminAddr    string       `cli:""        env:"SPAWNER_ADMIN_ADDR"    help:"Admin listening address. The admin server keeps running after the spawn when set."`
	LogLevel     string       `cli:""        env:"SPAWNER_LOG_LEVEL"     help:"Log level (debug|info|warning|error)."`
	LogIndent    bool         `cli:""        env:"SPAWNER_LOG_INDENT"    help:"Indent logs."`
	FeatureFlags []string     `cli:",hidden" env:"SPAWNER_FEATURE_FLAGS" help:"Comma separated feature flags"`
	Events       eventsConfig `cli:",hidden" env:"-"                     help:"Event pusher configuration."`
	Version      bool         `cli:""        env:"-"                     help:"Show version."`
	Help         bool         `cli:""        env:"-"                     help:"Show help."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"SPAWNER_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"SPAWNER_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"SPAWNER_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"SPAWNER_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		LogLevel: logs.InfoLevel.String(),
		Seed:     1,
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Places grass and trees on the terrains of a scene, away from its colliders.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "vegetation-spawner",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	s, err := scene.Load(conf.Scene)
	if err != nil {
		logs.Fatal(err)
	}

	var terrains models.TerrainStore
	var world physics.World
	options := s.Setup(&terrains, &world)
	options.Progress = logProgress

	cache := collision.NewCache(&terrains, &world, options)
	featureFlags := featureflag.New(conf.FeatureFlags)

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("scene", conf.Scene).
		WithTag("terrains", terrains.Count()).
		WithTag("colliders", world.ColliderCount()).
		WithTag("feature_flags", featureFlags.List()).
		Info("starting vegetation spawner")

	var wg sync.WaitGroup
	if conf.AdminAddr != "" {
		admin := newAdminServer(ctx, cache)

		wg.Add(1)
		go func() {
			defer wg.Done()
			spawnerhttp.ListenAndServe(ctx, &http.Server{
				Addr:    conf.AdminAddr,
				Handler: metrics.HTTPHandler(admin, spawnerhttp.MetricsPathFormatter),
			})
		}()
	}

	sp := spawner.Spawner{
		Terrains: &terrains,
		Cache:    cache,
		Modules: func() []modules.Module {
			return []modules.Module{
				&grass.Module{Items: s.Grass},
				&trees.Module{Items: s.Trees},
			}
		},
		FeatureFlags: featureFlags,
		Seed:         int64(conf.Seed),
	}

	res, err := sp.Run(ctx)
	if err != nil {
		logs.Fatal(err)
	}

	if err := writeResult(conf.Output, res); err != nil {
		logs.Fatal(err)
	}

	renderer := debug.Renderer{
		VisualizeCells:      featureFlags.IsSet(featureflag.FlagVisualizeCells),
		VisualizeWaterlevel: featureFlags.IsSet(featureflag.FlagVisualizeWaterlevel),
		OutputDir:           conf.PlotDir,
	}
	if conf.PlotDir != "" && renderer.Enabled() {
		renderPlots(renderer, &terrains, cache, res)
	}

	wg.Wait()
}

func validateConfig(conf config) error {
	if conf.Scene == "" {
		return errors.New("scene file is required")
	}

	if _, ok := scene.FormatOf(conf.Scene); !ok {
		return errors.New("scene file must be a json or yaml file").
			WithTag("scene", conf.Scene)
	}

	return nil
}

func logProgress(done, total int) {
	if done != total && done%64 != 0 {
		return
	}

	logs.WithTag("done", done).
		WithTag("total", total).
		Debug("collision cache build progress")
}

func newAdminServer(ctx context.Context, cache *collision.Cache) http.Handler {
	readinessCheck := func() bool {
		return cache.State() == collision.Built
	}

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", spawnerhttp.HandleHealthCheck)
	admin.HandleFunc("/ready", spawnerhttp.HandleReadyCheck(readinessCheck))
	admin.Handle("/version", spawnerhttp.HandleWithCORS(spawnerhttp.HandleVersion(version)))
	admin.Handle("/debug/cells", spawnerhttp.HandleWithCORS(spawnerhttp.HandleCollisionCells(cache)))
	admin.HandleFunc("/smoke-test", smoketest.HandleSmokeTest(ctx, smoketest.Options{
		SendResult: func(ctx context.Context, res smoketest.Results) error {
			logs.WithTag("run_id", res.RunID).
				WithTag("passed", res.Passed).
				WithTag("checks", res.Checks).
				Info("smoke test result")
			return nil
		},
	}))
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	return &admin
}

func writeResult(path string, res spawner.Result) error {
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return errors.New("encoding result failed").Wrap(err)
	}
	b = append(b, '\n')

	if path == "" {
		_, err = os.Stdout.Write(b)
		return err
	}

	if err := os.WriteFile(path, b, 0644); err != nil {
		return errors.New("writing result failed").
			WithTag("path", path).
			Wrap(err)
	}

	logs.WithTag("run_id", res.RunID).
		WithTag("path", path).
		Info("result written")
	return nil
}

func renderPlots(r debug.Renderer, terrains *models.TerrainStore, cache *collision.Cache, res spawner.Result) {
	trees := make(map[models.TerrainID][]models.TreeInstance, len(res.Terrains))
	for _, t := range res.Terrains {
		trees[t.ID] = t.Trees
	}

	for _, t := range terrains.All() {
		if _, err := r.Render(t, cache, trees[t.ID]); err != nil {
			logs.WithTag("terrain_id", t.ID).Warn(err)
		}
	}
}
