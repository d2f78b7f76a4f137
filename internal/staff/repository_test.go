package staff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
)

func TestInMemoryRepository(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	repo.Put(&Member{ID: "b", Name: "B", Role: "nurse", Active: true})
	repo.Put(&Member{ID: "a", Name: "A", Role: "physician", Active: true})
	repo.Put(&Member{ID: "c", Name: "C", Role: "nurse", Active: false})

	m, err := repo.GetByID(ctx, "a")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if m.Role != "physician" {
		t.Errorf("role = %q, want physician", m.Role)
	}

	if _, err := repo.GetByID(ctx, "zzz"); !errors.Is(err, ErrStaffNotFound) {
		t.Errorf("expected ErrStaffNotFound, got %v", err)
	}

	active, err := repo.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active members, got %d", len(active))
	}
	if active[0].ID != "a" || active[1].ID != "b" {
		t.Errorf("expected deterministic ID order, got %s, %s", active[0].ID, active[1].ID)
	}
}

func TestMemberQualifiedFor(t *testing.T) {
	m := &Member{Role: "nurse"}
	if !m.QualifiedFor("") {
		t.Error("empty required role should match anyone")
	}
	if !m.QualifiedFor("nurse") {
		t.Error("matching role should qualify")
	}
	if m.QualifiedFor("physician") {
		t.Error("mismatched role should not qualify")
	}
}

func TestPostgresRepository_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, name, role, active, created_at`).
		WithArgs("staff-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "role", "active", "created_at"}).
			AddRow("staff-1", "Dr. Reyes", "physician", true, time.Now()))

	repo := NewPostgresRepositoryWithDB(mock)
	m, err := repo.GetByID(context.Background(), "staff-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if m.Name != "Dr. Reyes" {
		t.Errorf("Name = %q", m.Name)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, name, role, active, created_at`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "role", "active", "created_at"}))

	repo := NewPostgresRepositoryWithDB(mock)
	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrStaffNotFound) {
		t.Errorf("expected ErrStaffNotFound, got %v", err)
	}
}
