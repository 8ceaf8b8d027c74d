package collision

import (
	"fmt"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/vegetation-spawner/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	errTypeLabel   = "error_type"
	resultLabel    = "result"
	stateLabel     = "state"
	terrainIDLabel = "terrain_id"
)

var (
	cacheBuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collision_cache_builds",
		Help: "The number of terrain grids built.",
	})

	cacheBuildErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collision_cache_build_errors",
		Help: "The errors that occured while building a terrain grid.",
	}, []string{
		errTypeLabel,
	})

	cacheBuildLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "collision_cache_build_latency",
		Help: "The time to build a terrain grid.",
	})

	cacheSubcells = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "collision_cache_subcells",
		Help: "The number of subcells by state.",
	}, []string{
		terrainIDLabel,
		stateLabel,
	})

	cacheQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collision_cache_queries",
		Help: "The number of occupancy queries by result.",
	}, []string{
		resultLabel,
	})
)

func instrumentBuild(start time.Time) {
	cacheBuilds.Inc()
	cacheBuildLatency.Observe(time.Since(start).Seconds())
}

func instrumentBuildError(err error) {
	cacheBuildErrors.With(prometheus.Labels{
		errTypeLabel: errors.Type(err),
	}).Inc()
}

func instrumentSubcells(id models.TerrainID, free, blocked int) {
	terrainID := fmt.Sprint(id)

	cacheSubcells.With(prometheus.Labels{
		terrainIDLabel: terrainID,
		stateLabel:     Free.String(),
	}).Set(float64(free))

	cacheSubcells.With(prometheus.Labels{
		terrainIDLabel: terrainID,
		stateLabel:     Blocked.String(),
	}).Set(float64(blocked))
}

func instrumentQuery(result string) {
	cacheQueries.With(prometheus.Labels{
		resultLabel: result,
	}).Inc()
}
