package physics

import (
	"sync"

	"github.com/aukilabs/vegetation-spawner/models"
)

// Hit describes where a ray met a collider.
type Hit struct {
	Collider Collider
	Point    models.Vector3
	Distance float64
}

// World is the set of colliders raycasts are tested against.
type World struct {
	mutex     sync.RWMutex
	colliders []Collider
}

func (w *World) Add(colliders ...Collider) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.colliders = append(w.colliders, colliders...)
}

func (w *World) ColliderCount() int {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	return len(w.colliders)
}

// Raycast returns the nearest hit along the ray within maxDistance, ignoring
// disabled colliders and colliders whose layer is not in mask.
func (w *World) Raycast(origin, direction models.Vector3, maxDistance float64, mask LayerMask) (Hit, bool) {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	r := models.Ray{Origin: origin, Direction: models.Normalized(direction)}

	var nearest Hit
	found := false
	for _, c := range w.colliders {
		if !c.IsEnabled() || !mask.Contains(c.PhysicsLayer()) {
			continue
		}

		hit, d := c.Intersect(r, maxDistance)
		if !hit || (found && d >= nearest.Distance) {
			continue
		}

		nearest = Hit{
			Collider: c,
			Point:    r.At(d),
			Distance: d,
		}
		found = true
	}

	instrumentRaycast(found)
	return nearest, found
}

// EnableTemporary enables the given caller owned colliders and returns a
// function restoring their previous state. The returned function is safe to
// call more than once.
func (w *World) EnableTemporary(colliders []Collider) (release func()) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	previous := make([]bool, len(colliders))
	for i, c := range colliders {
		previous[i] = c.IsEnabled()
		c.SetEnabled(true)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mutex.Lock()
			defer w.mutex.Unlock()

			for i, c := range colliders {
				c.SetEnabled(previous[i])
			}
		})
	}
}
