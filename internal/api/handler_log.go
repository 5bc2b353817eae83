package api

import (
	"net/http"

	"github.com/stamon-dev/stamon/internal/model"
	"github.com/stamon-dev/stamon/internal/state"
)

// HandleListLogs returns recent log entries across all services.
func HandleListLogs(logs *state.LogRepo) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, ok := parseLimitOrWriteInvalid(w, r)
		if !ok {
			return
		}
		entries, err := logs.ListAll(limit)
		if err != nil {
			writeRepoError(w, err)
			return
		}
		if entries == nil {
			entries = []model.LogEntry{}
		}
		WriteJSON(w, http.StatusOK, entries)
	})
}

// HandleListServiceLogs returns recent log entries for one service.
func HandleListServiceLogs(services *state.ServiceRepo, logs *state.LogRepo) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireIDPathParam(w, r)
		if !ok {
			return
		}
		limit, ok := parseLimitOrWriteInvalid(w, r)
		if !ok {
			return
		}
		if _, err := services.Get(id); err != nil {
			writeRepoError(w, err)
			return
		}
		entries, err := logs.List(id, limit)
		if err != nil {
			writeRepoError(w, err)
			return
		}
		if entries == nil {
			entries = []model.LogEntry{}
		}
		WriteJSON(w, http.StatusOK, entries)
	})
}

// HandleListIncidents returns the aggregated incident view.
func HandleListIncidents(logs *state.LogRepo) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, ok := parseLimitOrWriteInvalid(w, r)
		if !ok {
			return
		}
		incidents, err := logs.Incidents(limit)
		if err != nil {
			writeRepoError(w, err)
			return
		}
		if incidents == nil {
			incidents = []model.Incident{}
		}
		WriteJSON(w, http.StatusOK, incidents)
	})
}
