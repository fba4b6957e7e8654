package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"hr-attendance-bot/internal/models"
	"hr-attendance-bot/migrations"
)

// openTestDB creates a migrated in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := migrations.Apply(db); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

func TestSessionGetMissing(t *testing.T) {
	repo := NewSQLiteSessionRepository(openTestDB(t))

	if _, err := repo.Get(context.Background(), 1); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get() error = %v, want %v", err, ErrSessionNotFound)
	}
}

func TestSessionSaveAndGet(t *testing.T) {
	repo := NewSQLiteSessionRepository(openTestDB(t))
	ctx := context.Background()
	updated := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	s := &models.Session{ChatID: 100, UserID: "42", Role: models.RoleManager, AccessToken: "tok", UpdatedAt: updated}
	if err := repo.Save(ctx, s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if s.DeviceID == "" {
		t.Fatal("Save() did not assign a device id")
	}

	got, err := repo.Get(ctx, 100)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.UserID != "42" || got.Role != models.RoleManager || got.AccessToken != "tok" || got.TokenType != "Bearer" {
		t.Errorf("Get() = %+v", got)
	}
	if got.DeviceID != s.DeviceID {
		t.Errorf("device id = %q, want %q", got.DeviceID, s.DeviceID)
	}
	if !got.UpdatedAt.Equal(updated) {
		t.Errorf("updated_at = %v, want %v", got.UpdatedAt, updated)
	}
}

func TestSessionKeepsDeviceIDAcrossLogins(t *testing.T) {
	repo := NewSQLiteSessionRepository(openTestDB(t))
	ctx := context.Background()

	first := &models.Session{ChatID: 100, UserID: "42", Role: models.RoleEmployee, AccessToken: "a"}
	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	second := &models.Session{ChatID: 100, UserID: "43", Role: models.RoleAdmin, AccessToken: "b", DeviceID: "ignored"}
	if err := repo.Save(ctx, second); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if second.DeviceID != first.DeviceID {
		t.Errorf("device id changed from %q to %q", first.DeviceID, second.DeviceID)
	}

	got, err := repo.Get(ctx, 100)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.UserID != "43" || got.Role != models.RoleAdmin || got.AccessToken != "b" {
		t.Errorf("Get() = %+v", got)
	}
}

func TestSessionDelete(t *testing.T) {
	repo := NewSQLiteSessionRepository(openTestDB(t))
	ctx := context.Background()

	if err := repo.Save(ctx, &models.Session{ChatID: 5, UserID: "1", Role: models.RoleEmployee}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := repo.Delete(ctx, 5); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.Get(ctx, 5); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get() after delete error = %v, want %v", err, ErrSessionNotFound)
	}
	// deleting twice is not an error
	if err := repo.Delete(ctx, 5); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
}
