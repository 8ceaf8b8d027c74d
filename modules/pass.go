package modules

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/aukilabs/vegetation-spawner/models"
	"github.com/aukilabs/vegetation-spawner/modules/filter"
)

// Stats summarizes what happened to the candidates of an item.
type Stats struct {
	Candidates int                   `json:"candidates"`
	Accepted   int                   `json:"accepted"`
	Instances  int                   `json:"instances"`
	Rejections map[filter.Reason]int `json:"rejections,omitempty"`
}

// Output is what the modules of a pass produced.
type Output struct {
	Details []models.DetailLayer  `json:"details,omitempty"`
	Trees   []models.TreeInstance `json:"trees,omitempty"`
	Stats   map[string]*Stats     `json:"stats,omitempty"`
}

// Pass is the state shared by the modules placing vegetation on a terrain.
type Pass struct {
	Terrain *models.Terrain
	Rand    *rand.Rand

	mutex  sync.Mutex
	filter filter.Filter
	output Output
}

// NewPass creates a pass over a terrain. A nil collision skips collision
// checks. Passes created with the same seed place the same vegetation.
func NewPass(t *models.Terrain, collision filter.Occupancy, seed int64) *Pass {
	rnd := rand.New(rand.NewSource(seed))
	return &Pass{
		Terrain: t,
		Rand:    rnd,
		filter: filter.Filter{
			Terrain:   t,
			Collision: collision,
			Rand:      rnd,
		},
		output: Output{
			Stats: make(map[string]*Stats),
		},
	}
}

// Check runs the placement filter for an item candidate and records the
// outcome. It returns the surface position and whether the candidate was
// accepted.
func (p *Pass) Check(module, item string, rules filter.Rules, nx, nz float64) (models.Vector3, bool) {
	pos, reason := p.filter.Check(rules, nx, nz)

	p.mutex.Lock()
	defer p.mutex.Unlock()

	stats := p.stats(item)
	stats.Candidates++
	if reason != filter.ReasonNone {
		stats.Rejections[reason]++
		instrumentRejection(module, reason)
		return pos, false
	}
	stats.Accepted++
	return pos, true
}

// AddDetails appends a grass layer to the output.
func (p *Pass) AddDetails(module string, l models.DetailLayer) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	total := l.Total()
	p.stats(l.Item).Instances += total
	p.output.Details = append(p.output.Details, l)
	instrumentInstances(module, l.Item, total)
}

// AddTrees appends tree instances to the output.
func (p *Pass) AddTrees(module, item string, trees ...models.TreeInstance) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.stats(item).Instances += len(trees)
	p.output.Trees = append(p.output.Trees, trees...)
	instrumentInstances(module, item, len(trees))
}

func (p *Pass) stats(item string) *Stats {
	s, ok := p.output.Stats[item]
	if !ok {
		s = &Stats{Rejections: make(map[filter.Reason]int)}
		p.output.Stats[item] = s
	}
	return s
}

// Output returns what the pass produced so far.
func (p *Pass) Output() Output {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.output
}

// Items returns the names of the items the pass saw, sorted.
func (p *Pass) Items() []string {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	items := make([]string, 0, len(p.output.Stats))
	for item := range p.output.Stats {
		items = append(items, item)
	}
	sort.Strings(items)
	return items
}
