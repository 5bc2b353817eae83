package api

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/stamon-dev/stamon/internal/model"
	"github.com/stamon-dev/stamon/internal/state"
)

type testEnv struct {
	server   *Server
	auth     *Authenticator
	services *state.ServiceRepo
	logs     *state.LogRepo
	users    *state.UserRepo
	config   *state.ConfigRepo

	adminToken  string
	viewerToken string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := state.Bootstrap(t.TempDir())
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		auth:     NewAuthenticator([]byte("0123456789abcdef0123456789abcdef")),
		services: state.NewServiceRepo(db),
		logs:     state.NewLogRepo(db, time.Minute),
		users:    state.NewUserRepo(db),
		config:   state.NewConfigRepo(db),
	}
	env.server = NewServer(ServerConfig{
		Port:            0,
		APIMaxBodyBytes: 1 << 20,
		Auth:            env.auth,
		Services:        env.services,
		Logs:            env.logs,
		Users:           env.users,
		Config:          env.config,
	})

	env.adminToken = env.seedUser(t, "admin", model.RoleAdmin)
	env.viewerToken = env.seedUser(t, "viewer", model.RoleViewer)
	return env
}

// newEmptyEnv builds a server with no accounts, for first-run tests.
func newEmptyEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := state.Bootstrap(t.TempDir())
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		auth:     NewAuthenticator([]byte("0123456789abcdef0123456789abcdef")),
		services: state.NewServiceRepo(db),
		logs:     state.NewLogRepo(db, time.Minute),
		users:    state.NewUserRepo(db),
		config:   state.NewConfigRepo(db),
	}
	env.server = NewServer(ServerConfig{
		Port:            0,
		APIMaxBodyBytes: 1 << 20,
		Auth:            env.auth,
		Services:        env.services,
		Logs:            env.logs,
		Users:           env.users,
		Config:          env.config,
	})
	return env
}

func (env *testEnv) seedUser(t *testing.T, username string, role model.UserRole) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse battery"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := model.User{Username: username, Password: string(hash), Role: role, Active: true}
	id, err := env.users.Insert(user)
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	user.ID = id
	token, err := env.auth.Issue(user)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (env *testEnv) seedService(t *testing.T, name string) model.Service {
	t.Helper()
	id, err := env.services.Insert(model.Service{
		UserID: 1, Active: true, Name: name, Interval: 5,
		URL: "https://example.com", Timeout: 5, ServiceType: model.ServiceTypeHTTP,
	})
	if err != nil {
		t.Fatalf("seed service: %v", err)
	}
	svc, err := env.services.Get(id)
	if err != nil {
		t.Fatalf("get seeded service: %v", err)
	}
	return svc
}

// do runs a request against the server mux with an optional token and JSON body.
func (env *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %s: %v", rec.Body.String(), err)
	}
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}
