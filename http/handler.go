package http

import (
	"net/http"
	"strconv"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/vegetation-spawner/collision"
	"github.com/aukilabs/vegetation-spawner/models"
	"github.com/segmentio/encoding/json"
)

// CellsSource is the read only view of a collision cache served by
// HandleCollisionCells.
type CellsSource interface {
	State() collision.State
	TerrainIDs() []models.TerrainID
	DebugInfo(id models.TerrainID) (collision.DebugInfo, bool)
	Blocked(id models.TerrainID) []collision.SubcellIndex
}

type cellsResponse struct {
	State    string         `json:"state"`
	Terrains []terrainCells `json:"terrains"`
}

type terrainCells struct {
	collision.DebugInfo
	Blocked []collision.SubcellIndex `json:"blocked,omitempty"`
}

// HandleCollisionCells serves the collision cache summary of every terrain,
// or of the one selected by the terrain_id query parameter. Blocked subcell
// indexes are listed when the blocked query parameter is true.
func HandleCollisionCells(cache CellsSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		query := r.URL.Query()
		withBlocked, _ := strconv.ParseBool(query.Get("blocked"))

		ids := cache.TerrainIDs()
		if v := query.Get("terrain_id"); v != "" {
			id, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				writeError(w, http.StatusBadRequest, errors.New("invalid terrain id").
					WithTag("terrain_id", v).
					Wrap(err))
				return
			}
			ids = []models.TerrainID{models.TerrainID(id)}
		}

		res := cellsResponse{
			State:    cache.State().String(),
			Terrains: make([]terrainCells, 0, len(ids)),
		}
		for _, id := range ids {
			info, ok := cache.DebugInfo(id)
			if !ok {
				writeError(w, http.StatusNotFound, errors.New("no collision cache for terrain").
					WithType(collision.ErrTypeNoCache).
					WithTag("terrain_id", id))
				return
			}

			cells := terrainCells{DebugInfo: info}
			if withBlocked {
				cells.Blocked = cache.Blocked(id)
			}
			res.Terrains = append(res.Terrains, cells)
		}

		writeJSON(w, http.StatusOK, res)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logs.Error(errors.New("encoding response failed").Wrap(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logs.WithTag("status", status).Debug(err)
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
	})
}
