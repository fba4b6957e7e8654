// Package repository defines repository interfaces for data access
package repository

import (
	"context"
	"time"

	"hr-attendance-bot/internal/models"
)

// CodeService issues short-lived one-time attendance codes
type CodeService interface {
	// GenerateCode asks the backend for a code scoped to the user and action
	GenerateCode(ctx context.Context, userID string, action models.ActionKind) (string, error)
}

// SubmissionService records check-in and check-out events
type SubmissionService interface {
	CheckIn(ctx context.Context, req models.SubmitRequest) (*models.AttendanceRecord, error)
	CheckOut(ctx context.Context, req models.SubmitRequest) (*models.AttendanceRecord, error)
}

// TodayRepository reads the authoritative attendance for a single day
type TodayRepository interface {
	// GetToday returns the record for the day containing day, or nil when there is none
	GetToday(ctx context.Context, userID string, day time.Time) (*models.AttendanceRecord, error)
}

// HistoryRepository reads past attendance
type HistoryRepository interface {
	GetHistory(ctx context.Context, userID string, from, to time.Time, page, size int) ([]models.AttendanceRecord, error)
	GetSummary(ctx context.Context, userID string, from, to time.Time) (*models.AttendanceSummary, error)
	GetByDate(ctx context.Context, userID string, date time.Time) (*models.AttendanceRecord, error)
}

// ModificationRepository handles attendance correction requests
type ModificationRepository interface {
	RequestModification(ctx context.Context, req models.ModificationRequest) (*models.ModificationRequest, error)
	ListModificationRequests(ctx context.Context, userID string) ([]models.ModificationRequest, error)
	ListPendingModifications(ctx context.Context, departmentID string) ([]models.ModificationRequest, error)
	DecideModification(ctx context.Context, requestID int64, approverID string, d models.Decision) error
}

// AuthRepository exchanges credentials for a session
type AuthRepository interface {
	Login(ctx context.Context, identifier, password string) (*models.Session, error)
}

// SessionRepository persists per-chat login state
type SessionRepository interface {
	// Get returns ErrSessionNotFound when the chat has never logged in
	Get(ctx context.Context, chatID int64) (*models.Session, error)
	Save(ctx context.Context, s *models.Session) error
	Delete(ctx context.Context, chatID int64) error
}

// Geocoder turns coordinates into a human readable address
type Geocoder interface {
	Reverse(ctx context.Context, latitude, longitude float64) (string, error)
}
