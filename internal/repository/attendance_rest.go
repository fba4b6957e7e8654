package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hr-attendance-bot/internal/models"
)

// isoMillis matches the backend's expected ISO-8601 range parameters
const isoMillis = "2006-01-02T15:04:05.000Z"

// backendTimeLayouts are tried in order; the backend may omit the zone
var backendTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// recordDTO is the wire form of an attendance record
type recordDTO struct {
	ID           int64    `json:"id"`
	UserID       any      `json:"userId"`
	CheckInTime  string   `json:"checkInTime"`
	CheckOutTime string   `json:"checkOutTime"`
	Status       string   `json:"status"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Address      string   `json:"address"`
	WorkingHours float64  `json:"workingHours"`
}

func (d recordDTO) toModel() models.AttendanceRecord {
	return models.AttendanceRecord{
		ID:           d.ID,
		UserID:       idString(d.UserID),
		CheckInTime:  parseBackendTime(d.CheckInTime),
		CheckOutTime: parseBackendTime(d.CheckOutTime),
		Status:       d.Status,
		Latitude:     d.Latitude,
		Longitude:    d.Longitude,
		Address:      d.Address,
		WorkingHours: d.WorkingHours,
	}
}

// historyEnvelope covers both a bare array and a Spring style page
type historyEnvelope struct {
	Content []recordDTO `json:"content"`
}

func parseBackendTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range backendTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return &t
		}
	}
	log.Printf("⚠️ Unparseable timestamp from backend: %q", s)
	return nil
}

// idString normalises ids the backend sends either as numbers or strings
func idString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return fmt.Sprint(id)
	}
}

func decodeRecords(body []byte) ([]models.AttendanceRecord, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	var dtos []recordDTO
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &dtos); err != nil {
			return nil, fmt.Errorf("failed to decode history: %w", err)
		}
	} else {
		var env historyEnvelope
		if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
			return nil, fmt.Errorf("failed to decode history: %w", err)
		}
		dtos = env.Content
	}

	records := make([]models.AttendanceRecord, 0, len(dtos))
	for _, d := range dtos {
		records = append(records, d.toModel())
	}
	return records, nil
}

func decodeRecord(body []byte) (*models.AttendanceRecord, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	var d recordDTO
	if err := json.Unmarshal([]byte(trimmed), &d); err != nil {
		return nil, fmt.Errorf("failed to decode attendance record: %w", err)
	}
	rec := d.toModel()
	return &rec, nil
}

// GenerateCode requests a one-time code for the user and action
func (r *HRRESTClient) GenerateCode(ctx context.Context, userID string, action models.ActionKind) (string, error) {
	query := url.Values{}
	query.Set("userId", userID)
	query.Set("type", string(action))

	body, err := r.do(ctx, http.MethodPost, "/api/attendance/generate-code", query, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	code := textBody(body)
	if code == "" {
		return "", fmt.Errorf("failed to generate code: %w", ErrEmptyResponse)
	}
	return code, nil
}

// CheckIn submits a check-in with its code and location
func (r *HRRESTClient) CheckIn(ctx context.Context, req models.SubmitRequest) (*models.AttendanceRecord, error) {
	return r.submit(ctx, "/api/attendance/check-in", req)
}

// CheckOut submits a check-out with its code and location
func (r *HRRESTClient) CheckOut(ctx context.Context, req models.SubmitRequest) (*models.AttendanceRecord, error) {
	return r.submit(ctx, "/api/attendance/check-out", req)
}

func (r *HRRESTClient) submit(ctx context.Context, path string, req models.SubmitRequest) (*models.AttendanceRecord, error) {
	query := url.Values{}
	query.Set("userId", req.UserID)
	query.Set("code", req.Code)
	query.Set("latitude", strconv.FormatFloat(req.Latitude, 'f', -1, 64))
	query.Set("longitude", strconv.FormatFloat(req.Longitude, 'f', -1, 64))
	query.Set("address", req.Address)

	body, err := r.do(ctx, http.MethodPost, path, query, nil)
	if err != nil {
		return nil, err
	}
	rec, err := decodeRecord(body)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		log.Printf("✅ Attendance recorded for user %s (record %d)", req.UserID, rec.ID)
	}
	return rec, nil
}

// GetToday returns the record between local midnight of day and the next
// midnight, or nil when the user has not checked in
func (r *HRRESTClient) GetToday(ctx context.Context, userID string, day time.Time) (*models.AttendanceRecord, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	records, err := r.GetHistory(ctx, userID, start, end, 0, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// GetHistory reads one page of history. A 403 means the user may not see
// history and yields an empty page.
func (r *HRRESTClient) GetHistory(ctx context.Context, userID string, from, to time.Time, page, size int) ([]models.AttendanceRecord, error) {
	query := url.Values{}
	query.Set("userId", userID)
	query.Set("startDate", from.UTC().Format(isoMillis))
	query.Set("endDate", to.UTC().Format(isoMillis))
	query.Set("page", strconv.Itoa(page))
	query.Set("size", strconv.Itoa(size))

	body, err := r.do(ctx, http.MethodGet, "/api/attendance/history", query, nil)
	if err != nil {
		if statusIs(err, http.StatusForbidden) {
			log.Printf("⚠️ History forbidden for user %s, returning empty page", userID)
			return []models.AttendanceRecord{}, nil
		}
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	return decodeRecords(body)
}

// GetSummary reads aggregates for a range. A 403 yields a zero summary.
func (r *HRRESTClient) GetSummary(ctx context.Context, userID string, from, to time.Time) (*models.AttendanceSummary, error) {
	query := url.Values{}
	query.Set("userId", userID)
	query.Set("startDate", from.UTC().Format(isoMillis))
	query.Set("endDate", to.UTC().Format(isoMillis))

	body, err := r.do(ctx, http.MethodGet, "/api/attendance/summary", query, nil)
	if err != nil {
		if statusIs(err, http.StatusForbidden) {
			return &models.AttendanceSummary{}, nil
		}
		return nil, fmt.Errorf("failed to fetch summary: %w", err)
	}

	var summary models.AttendanceSummary
	if strings.TrimSpace(string(body)) != "" {
		if err := json.Unmarshal(body, &summary); err != nil {
			return nil, fmt.Errorf("failed to decode summary: %w", err)
		}
	}
	return &summary, nil
}

// GetByDate reads the record of a single calendar date
func (r *HRRESTClient) GetByDate(ctx context.Context, userID string, date time.Time) (*models.AttendanceRecord, error) {
	query := url.Values{}
	query.Set("userId", userID)
	query.Set("date", date.Format("2006-01-02"))

	body, err := r.do(ctx, http.MethodGet, "/api/attendance/by-date", query, nil)
	if err != nil {
		if statusIs(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch attendance by date: %w", err)
	}
	return decodeRecord(body)
}
