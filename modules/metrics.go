package modules

import (
	"github.com/aukilabs/vegetation-spawner/modules/filter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	moduleLabel = "module"
	itemLabel   = "item"
	filterLabel = "filter"
)

var (
	spawnerInstances = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spawner_instances",
		Help: "The number of placed vegetation instances.",
	}, []string{moduleLabel, itemLabel})

	spawnerRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spawner_rejections",
		Help: "The number of candidates rejected by a placement filter.",
	}, []string{moduleLabel, filterLabel})
)

func instrumentInstances(module, item string, count int) {
	spawnerInstances.
		With(prometheus.Labels{moduleLabel: module, itemLabel: item}).
		Add(float64(count))
}

func instrumentRejection(module string, reason filter.Reason) {
	spawnerRejections.
		With(prometheus.Labels{moduleLabel: module, filterLabel: string(reason)}).
		Inc()
}
