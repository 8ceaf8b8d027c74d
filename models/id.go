package models

import "sync"

// TerrainID is the stable handle a terrain receives when it is registered.
// Zero is never assigned.
type TerrainID uint32

// TerrainIDGenerator hands out sequential terrain ids. Ids are never handed
// out twice, so a removed terrain's id can not alias a later terrain in
// caches or colliders keyed by it.
type TerrainIDGenerator struct {
	mutex   sync.Mutex
	current TerrainID
}

// New returns the next terrain id.
func (g *TerrainIDGenerator) New() TerrainID {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.current++
	return g.current
}
