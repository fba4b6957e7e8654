package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"hr-attendance-bot/internal/models"
	"hr-attendance-bot/migrations"
)

var ErrSessionNotFound = errors.New("session not found")

// SQLiteSessionRepository keeps one session row per chat
type SQLiteSessionRepository struct {
	db *sql.DB
}

// OpenSessionDB opens the sqlite file at path and applies the schema
func OpenSessionDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session db: %w", err)
	}
	// sqlite serialises writers; one connection also keeps :memory: databases shared
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure session db: %w", err)
	}
	if err := migrations.Apply(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// NewSQLiteSessionRepository wraps an already migrated database
func NewSQLiteSessionRepository(db *sql.DB) *SQLiteSessionRepository {
	return &SQLiteSessionRepository{db: db}
}

// Get loads the session of a chat
func (r *SQLiteSessionRepository) Get(ctx context.Context, chatID int64) (*models.Session, error) {
	var (
		s         models.Session
		role      string
		updatedAt string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT chat_id, user_id, role, access_token, token_type, device_id, updated_at
		 FROM chat_sessions WHERE chat_id = ?`, chatID,
	).Scan(&s.ChatID, &s.UserID, &role, &s.AccessToken, &s.TokenType, &s.DeviceID, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	s.Role = models.Role(role)
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		s.UpdatedAt = t
	}
	return &s, nil
}

// Save upserts the session. A chat keeps the device id it was first given;
// s.DeviceID is updated to the stored value.
func (r *SQLiteSessionRepository) Save(ctx context.Context, s *models.Session) error {
	if s == nil {
		return errors.New("nil session")
	}
	if s.DeviceID == "" {
		s.DeviceID = uuid.NewString()
	}
	if s.TokenType == "" {
		s.TokenType = "Bearer"
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}

	var deviceID string
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO chat_sessions (chat_id, user_id, role, access_token, token_type, device_id, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(chat_id) DO UPDATE SET user_id=excluded.user_id, role=excluded.role,
		 access_token=excluded.access_token, token_type=excluded.token_type, updated_at=excluded.updated_at
		 RETURNING device_id`,
		s.ChatID, s.UserID, string(s.Role), s.AccessToken, s.TokenType, s.DeviceID, s.UpdatedAt.UTC().Format(time.RFC3339Nano),
	).Scan(&deviceID)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	s.DeviceID = deviceID
	return nil
}

// Delete forgets a chat's session
func (r *SQLiteSessionRepository) Delete(ctx context.Context, chatID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
