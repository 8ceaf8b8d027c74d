package models

import (
	"sort"
	"sync"
)

// TerrainStore keeps the registered terrains and hands out their ids.
type TerrainStore struct {
	ids      TerrainIDGenerator
	mutex    sync.RWMutex
	terrains map[TerrainID]*Terrain
}

// Register assigns an id to t and stores it.
func (s *TerrainStore) Register(t *Terrain) TerrainID {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.terrains == nil {
		s.terrains = make(map[TerrainID]*Terrain)
	}

	t.ID = s.ids.New()
	s.terrains[t.ID] = t
	return t.ID
}

// Remove unregisters a terrain. Its id is not handed out again.
func (s *TerrainStore) Remove(id TerrainID) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.terrains, id)
}

func (s *TerrainStore) Get(id TerrainID) (*Terrain, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	t, ok := s.terrains[id]
	return t, ok
}

// All returns the registered terrains ordered by id.
func (s *TerrainStore) All() []*Terrain {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	terrains := make([]*Terrain, 0, len(s.terrains))
	for _, t := range s.terrains {
		terrains = append(terrains, t)
	}
	sort.Slice(terrains, func(i, j int) bool {
		return terrains[i].ID < terrains[j].ID
	})
	return terrains
}

func (s *TerrainStore) Count() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.terrains)
}
