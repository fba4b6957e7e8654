package services

import (
	"context"
	"errors"
	"log"

	"hr-attendance-bot/internal/models"
)

// ScanProcessor defines the interface for routing scanner payloads to a chat's flow
type ScanProcessor interface {
	ProcessScan(ctx context.Context, chatID int64, payload string) (*models.AttendanceRecord, error)
}

// BotNotifier defines the interface for bot notifications
type BotNotifier interface {
	SendNotification(message string)
	SendPersonalNotification(chatID int64, message string)
}

// ScanService hands payloads from external scanners to the chat's controller
type ScanService struct {
	registry    *ControllerRegistry
	botNotifier BotNotifier
}

// NewScanService creates a new scan service
func NewScanService(registry *ControllerRegistry, botNotifier BotNotifier) *ScanService {
	return &ScanService{registry: registry, botNotifier: botNotifier}
}

// ProcessScan scans payload on behalf of chatID and tells the chat the outcome.
// Debounced scans are dropped without a message.
func (s *ScanService) ProcessScan(ctx context.Context, chatID int64, payload string) (*models.AttendanceRecord, error) {
	c, ok := s.registry.Get(chatID)
	if !ok {
		return nil, ErrNoActiveFlow
	}

	action := c.View().Action
	rec, err := c.Scan(ctx, payload)
	if errors.Is(err, ErrScanDebounced) {
		return nil, err
	}
	if err != nil && !errors.Is(err, ErrSnapshotRefreshFailed) {
		log.Printf("❌ Scan for chat %d rejected: %v", chatID, err)
		s.botNotifier.SendPersonalNotification(chatID, UserMessage(err))
		return nil, err
	}

	s.botNotifier.SendPersonalNotification(chatID, SubmittedMessage(action, c.View().Snapshot))
	return rec, err
}
