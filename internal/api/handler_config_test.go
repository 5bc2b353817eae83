package api

import (
	"net/http"
	"testing"

	"github.com/stamon-dev/stamon/internal/model"
)

func TestConfigSetAndGet(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/api/v1/config/theme", env.adminToken, map[string]any{
		"value": "dark", "category": "ui",
	})
	requireStatus(t, rec, http.StatusOK)

	rec = env.do(t, http.MethodGet, "/api/v1/config/theme", env.viewerToken, nil)
	requireStatus(t, rec, http.StatusOK)
	var entry model.ConfigEntry
	decodeInto(t, rec, &entry)
	if entry.Value != "dark" || entry.Category != "ui" {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestConfigSetRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/api/v1/config/theme", env.viewerToken, map[string]any{
		"value": "dark",
	})
	requireStatus(t, rec, http.StatusForbidden)
}

func TestConfigGetMissing(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/config/missing", env.viewerToken, nil)
	requireStatus(t, rec, http.StatusNotFound)
}
