package state

import (
	"errors"
	"testing"

	"github.com/stamon-dev/stamon/internal/model"
)

func TestUserInsertGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepo(db)

	id, err := repo.Insert(model.User{
		Username: "admin", Password: "$2a$10$hash", Role: model.RoleAdmin, Timezone: "Europe/Berlin",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := repo.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Username != "admin" || got.Role != model.RoleAdmin || !got.Active {
		t.Fatalf("unexpected user: %+v", got)
	}
	if got.Timezone != "Europe/Berlin" {
		t.Fatalf("timezone not round-tripped: %q", got.Timezone)
	}

	byName, err := repo.GetByUsername("admin")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if byName.ID != id {
		t.Fatalf("expected id %d, got %d", id, byName.ID)
	}
}

func TestUserInsertDefaultsRole(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepo(db)

	id, err := repo.Insert(model.User{Username: "v", Password: "hash"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, _ := repo.Get(id)
	if got.Role != model.RoleViewer {
		t.Fatalf("expected viewer default, got %q", got.Role)
	}
}

func TestUserInsertDuplicateUsername(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepo(db)

	if _, err := repo.Insert(model.User{Username: "a", Password: "x"}); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := repo.Insert(model.User{Username: "a", Password: "y"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestUserGetNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepo(db)

	if _, err := repo.Get(7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetByUsername("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserCount(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepo(db)

	n, err := repo.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 users, got %d", n)
	}
	if _, err := repo.Insert(model.User{Username: "a", Password: "x"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n, _ = repo.Count(); n != 1 {
		t.Fatalf("expected 1 user, got %d", n)
	}
}
