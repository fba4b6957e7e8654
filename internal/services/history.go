package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hr-attendance-bot/internal/models"
	"hr-attendance-bot/internal/repository"
)

const (
	// HistoryPageSize is the number of records per history page
	HistoryPageSize = 10
	// HistoryWindow is how far back /history looks
	HistoryWindow = 30 * 24 * time.Hour
	// maxExportPages bounds how many pages an export may read
	maxExportPages = 50

	modificationTimeLayout = "2006-01-02T15:04:05"
)

var (
	ErrNotApprover           = errors.New("only managers and admins can decide requests")
	ErrInvalidModification   = errors.New("invalid modification request")
	ErrNoAttendanceOnDate    = errors.New("no attendance recorded on that date")
	ErrCheckOutBeforeCheckIn = errors.New("check-out cannot be before check-in")
)

// HistoryService reads paginated attendance history and summaries
type HistoryService struct {
	repo repository.HistoryRepository
	now  func() time.Time
}

// NewHistoryService creates a new history service
func NewHistoryService(repo repository.HistoryRepository) *HistoryService {
	return &HistoryService{repo: repo, now: time.Now}
}

// Page returns one page of history between from and to
func (s *HistoryService) Page(ctx context.Context, userID string, from, to time.Time, page int) (*models.HistoryPage, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	if page < 0 {
		page = 0
	}
	records, err := s.repo.GetHistory(ctx, userID, from, to, page, HistoryPageSize)
	if err != nil {
		return nil, err
	}
	return &models.HistoryPage{
		Records: records,
		Page:    page,
		Size:    HistoryPageSize,
		HasNext: len(records) == HistoryPageSize,
	}, nil
}

// RecentWindow returns the default history range ending at the next midnight
func (s *HistoryService) RecentWindow() (time.Time, time.Time) {
	now := s.now()
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	return to.Add(-HistoryWindow), to
}

// All reads every page between from and to
func (s *HistoryService) All(ctx context.Context, userID string, from, to time.Time) ([]models.AttendanceRecord, error) {
	var all []models.AttendanceRecord
	for page := 0; page < maxExportPages; page++ {
		p, err := s.Page(ctx, userID, from, to, page)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Records...)
		if !p.HasNext {
			break
		}
	}
	return all, nil
}

// MonthRange returns the first instant of t's month and of the next month
func MonthRange(t time.Time) (time.Time, time.Time) {
	from := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return from, from.AddDate(0, 1, 0)
}

// MonthSummary aggregates the current month
func (s *HistoryService) MonthSummary(ctx context.Context, userID string) (*models.AttendanceSummary, time.Time, error) {
	if userID == "" {
		return nil, time.Time{}, ErrMissingUser
	}
	from, to := MonthRange(s.now())
	summary, err := s.repo.GetSummary(ctx, userID, from, to)
	if err != nil {
		return nil, from, err
	}
	return summary, from, nil
}

// ModificationService files and decides attendance correction requests.
// Approve and reject share one Decision shape.
type ModificationService struct {
	repo    repository.ModificationRepository
	history repository.HistoryRepository
}

// NewModificationService creates a new modification service
func NewModificationService(repo repository.ModificationRepository, history repository.HistoryRepository) *ModificationService {
	return &ModificationService{repo: repo, history: history}
}

// ModificationInput is a correction typed by the user: a date and HH:MM times
type ModificationInput struct {
	Date     string
	CheckIn  string
	CheckOut string
	Reason   string
}

// Submit validates input, resolves the day's attendance record and files the request
func (s *ModificationService) Submit(ctx context.Context, userID string, in ModificationInput) (*models.ModificationRequest, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(in.Date), time.Local)
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidModification)
	}
	checkIn, err := clockOn(day, in.CheckIn)
	if err != nil {
		return nil, err
	}
	checkOut, err := clockOn(day, in.CheckOut)
	if err != nil {
		return nil, err
	}
	if checkOut.Before(checkIn) {
		return nil, ErrCheckOutBeforeCheckIn
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrInvalidModification)
	}

	rec, err := s.history.GetByDate(ctx, userID, day)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNoAttendanceOnDate
	}

	return s.repo.RequestModification(ctx, models.ModificationRequest{
		UserID:       userID,
		AttendanceID: rec.ID,
		CheckInTime:  checkIn.Format(modificationTimeLayout),
		CheckOutTime: checkOut.Format(modificationTimeLayout),
		Reason:       reason,
	})
}

func clockOn(day time.Time, hhmm string) (time.Time, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(hhmm))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: time must be HH:MM", ErrInvalidModification)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}

// Mine lists the user's own requests
func (s *ModificationService) Mine(ctx context.Context, userID string) ([]models.ModificationRequest, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	return s.repo.ListModificationRequests(ctx, userID)
}

// Pending lists a department's undecided requests
func (s *ModificationService) Pending(ctx context.Context, who Identity, departmentID string) ([]models.ModificationRequest, error) {
	if !who.Role.CanApprove() {
		return nil, ErrNotApprover
	}
	if strings.TrimSpace(departmentID) == "" {
		return nil, fmt.Errorf("%w: department id is required", ErrInvalidModification)
	}
	return s.repo.ListPendingModifications(ctx, strings.TrimSpace(departmentID))
}

// Decide approves or rejects a request on behalf of who
func (s *ModificationService) Decide(ctx context.Context, who Identity, requestID int64, d models.Decision) error {
	if !who.Role.CanApprove() {
		return ErrNotApprover
	}
	if requestID <= 0 {
		return fmt.Errorf("%w: request id must be positive", ErrInvalidModification)
	}
	return s.repo.DecideModification(ctx, requestID, who.UserID, d)
}
