package state

import (
	"errors"
	"testing"

	"github.com/stamon-dev/stamon/internal/model"
)

func seedUser(t *testing.T, users *UserRepo) uint32 {
	t.Helper()
	id, err := users.Insert(model.User{Username: "op", Password: "hash", Role: model.RoleAdmin})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}

func testService(userID uint32, name string) model.Service {
	return model.Service{
		UserID:      userID,
		Active:      true,
		Name:        name,
		Interval:    5,
		URL:         "https://example.com",
		Timeout:     5,
		ServiceType: model.ServiceTypeHTTP,
		Retry:       3,
	}
}

func TestServiceInsertGet(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepo(db)
	repo := NewServiceRepo(db)
	uid := seedUser(t, users)

	code := 204
	svc := testService(uid, "api")
	svc.ExpectedCode = &code

	id, err := repo.Insert(svc)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := repo.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "api" || got.Interval != 5 || got.ServiceType != model.ServiceTypeHTTP {
		t.Fatalf("unexpected service: %+v", got)
	}
	if got.LastStatus != model.StatusPending {
		t.Fatalf("new service must start Pending, got %v", got.LastStatus)
	}
	if got.ExpectedCode == nil || *got.ExpectedCode != 204 {
		t.Fatalf("expected_code not round-tripped: %+v", got.ExpectedCode)
	}
	if got.ExpectedPayload != nil {
		t.Fatalf("expected_payload should be nil, got %q", *got.ExpectedPayload)
	}
}

func TestServiceInsertRejectsZeroInterval(t *testing.T) {
	db := newTestDB(t)
	repo := NewServiceRepo(db)
	uid := seedUser(t, NewUserRepo(db))

	svc := testService(uid, "bad")
	svc.Interval = 0
	if _, err := repo.Insert(svc); err == nil {
		t.Fatal("expected error for interval 0")
	}
}

func TestServiceGetNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewServiceRepo(db)

	if _, err := repo.Get(42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestServiceListActive(t *testing.T) {
	db := newTestDB(t)
	repo := NewServiceRepo(db)
	uid := seedUser(t, NewUserRepo(db))

	a := testService(uid, "a")
	b := testService(uid, "b")
	b.Active = false
	if _, err := repo.Insert(a); err != nil {
		t.Fatalf("insert a: %v", err)
	}
	if _, err := repo.Insert(b); err != nil {
		t.Fatalf("insert b: %v", err)
	}

	active, err := repo.ListActive()
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].Name != "a" {
		t.Fatalf("expected only service a, got %+v", active)
	}
	all, err := repo.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 services, got %d", len(all))
	}
}

func TestServiceUpdateDoesNotTouchLastStatus(t *testing.T) {
	db := newTestDB(t)
	repo := NewServiceRepo(db)
	uid := seedUser(t, NewUserRepo(db))

	id, err := repo.Insert(testService(uid, "api"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.UpdateLastStatus(id, model.StatusDown); err != nil {
		t.Fatalf("update last_status: %v", err)
	}

	svc, _ := repo.Get(id)
	svc.Name = "renamed"
	svc.Interval = 30
	if err := repo.Update(svc); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "renamed" || got.Interval != 30 {
		t.Fatalf("update not applied: %+v", got)
	}
	if got.LastStatus != model.StatusDown {
		t.Fatalf("update must not change last_status, got %v", got.LastStatus)
	}
}

func TestServiceUpdateNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewServiceRepo(db)
	uid := seedUser(t, NewUserRepo(db))

	svc := testService(uid, "ghost")
	svc.ID = 99
	if err := repo.Update(svc); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestServiceStats(t *testing.T) {
	db := newTestDB(t)
	repo := NewServiceRepo(db)
	uid := seedUser(t, NewUserRepo(db))

	up := testService(uid, "up")
	down := testService(uid, "down")
	inactive := testService(uid, "off")
	inactive.Active = false

	upID, _ := repo.Insert(up)
	downID, _ := repo.Insert(down)
	if _, err := repo.Insert(inactive); err != nil {
		t.Fatalf("insert: %v", err)
	}
	repo.UpdateLastStatus(upID, model.StatusUp)
	repo.UpdateLastStatus(downID, model.StatusDown)

	st, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Count != 3 || st.Active != 2 || st.Up != 1 || st.Down != 1 || st.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}
