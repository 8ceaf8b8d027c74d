package models

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTerrainIDGeneratorNew(t *testing.T) {
	t.Run("returns a new id", func(t *testing.T) {
		var idGen TerrainIDGenerator

		for i := 1; i <= 5; i++ {
			id := idGen.New()
			require.Equal(t, TerrainID(i), id)
		}
	})

	t.Run("never returns the same id twice", func(t *testing.T) {
		var idGen TerrainIDGenerator
		var mutex sync.Mutex
		var wg sync.WaitGroup
		ids := make(map[TerrainID]struct{})

		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()

				for j := 0; j < 100; j++ {
					id := idGen.New()

					mutex.Lock()
					ids[id] = struct{}{}
					mutex.Unlock()
				}
			}()
		}
		wg.Wait()

		require.Len(t, ids, 800)
		require.NotContains(t, ids, TerrainID(0))
	})
}
