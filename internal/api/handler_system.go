package api

import (
	"net/http"

	"github.com/stamon-dev/stamon/internal/state"
)

// HandleHealthz reports liveness.
func HandleHealthz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// HandleStats returns the dashboard summary over all services.
func HandleStats(services *state.ServiceRepo) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		stats, err := services.Stats()
		if err != nil {
			writeRepoError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, stats)
	})
}
