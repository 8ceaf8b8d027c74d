package physics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultLabel = "result"
)

var (
	raycasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "physics_raycasts",
		Help: "The number of raycasts tested against the physics world.",
	}, []string{
		resultLabel,
	})
)

func instrumentRaycast(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}

	raycasts.With(prometheus.Labels{
		resultLabel: result,
	}).Inc()
}
