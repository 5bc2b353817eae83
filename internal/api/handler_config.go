package api

import (
	"net/http"

	"github.com/stamon-dev/stamon/internal/model"
	"github.com/stamon-dev/stamon/internal/state"
)

type configSetRequest struct {
	Value    string `json:"value"`
	Category string `json:"category,omitempty"`
}

// HandleGetConfig returns one setting by name.
func HandleGetConfig(cfg *state.ConfigRepo) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entry, err := cfg.Get(r.PathValue("name"))
		if err != nil {
			writeRepoError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, entry)
	})
}

// HandleListConfigCategory returns all settings in a category.
func HandleListConfigCategory(cfg *state.ConfigRepo) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entries, err := cfg.ListByCategory(r.URL.Query().Get("category"))
		if err != nil {
			writeRepoError(w, err)
			return
		}
		if entries == nil {
			entries = []model.ConfigEntry{}
		}
		WriteJSON(w, http.StatusOK, entries)
	})
}

// HandleSetConfig upserts a setting by name.
func HandleSetConfig(cfg *state.ConfigRepo) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if name == "" {
			writeInvalidArgument(w, "name is required")
			return
		}
		var req configSetRequest
		if err := DecodeBody(r, &req); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		if err := cfg.Set(name, req.Value, req.Category); err != nil {
			writeRepoError(w, err)
			return
		}
		entry, err := cfg.Get(name)
		if err != nil {
			writeRepoError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, entry)
	})
}
