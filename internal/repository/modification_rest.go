package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"hr-attendance-bot/internal/models"
)

// RequestModification files a correction request for one day
func (r *HRRESTClient) RequestModification(ctx context.Context, req models.ModificationRequest) (*models.ModificationRequest, error) {
	query := url.Values{}
	query.Set("userId", req.UserID)

	body, err := r.do(ctx, http.MethodPost, "/api/attendance/request-modification", query, req)
	if err != nil {
		return nil, fmt.Errorf("failed to request modification: %w", err)
	}

	created := req
	if trimmed := strings.TrimSpace(string(body)); strings.HasPrefix(trimmed, "{") {
		var dto modificationDTO
		if err := json.Unmarshal([]byte(trimmed), &dto); err != nil {
			return nil, fmt.Errorf("failed to decode modification request: %w", err)
		}
		created = dto.toModel()
	}
	return &created, nil
}

// ListModificationRequests returns the user's own requests
func (r *HRRESTClient) ListModificationRequests(ctx context.Context, userID string) ([]models.ModificationRequest, error) {
	query := url.Values{}
	query.Set("userId", userID)

	body, err := r.do(ctx, http.MethodGet, "/api/attendance/modification-requests", query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list modification requests: %w", err)
	}
	return decodeModifications(body)
}

// ListPendingModifications returns requests waiting for a manager decision
func (r *HRRESTClient) ListPendingModifications(ctx context.Context, departmentID string) ([]models.ModificationRequest, error) {
	query := url.Values{}
	query.Set("departmentId", departmentID)

	body, err := r.do(ctx, http.MethodGet, "/api/attendance/manager/modification-requests/pending", query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	return decodeModifications(body)
}

// DecideModification approves or rejects a request
func (r *HRRESTClient) DecideModification(ctx context.Context, requestID int64, approverID string, d models.Decision) error {
	query := url.Values{}
	query.Set("approverId", approverID)
	query.Set("approved", strconv.FormatBool(d.Approved))
	if d.Comment != "" {
		query.Set("comment", d.Comment)
	}

	path := fmt.Sprintf("/api/attendance/manager/modification-requests/%d/approve", requestID)
	if _, err := r.do(ctx, http.MethodPost, path, query, nil); err != nil {
		return fmt.Errorf("failed to decide request %d: %w", requestID, err)
	}
	return nil
}

// modificationDTO is the wire form of a modification request as listed by the backend
type modificationDTO struct {
	ID                    int64  `json:"id"`
	UserID                any    `json:"userId"`
	AttendanceID          int64  `json:"attendanceId"`
	CheckInTime           string `json:"checkInTime"`
	CheckOutTime          string `json:"checkOutTime"`
	RequestedCheckInTime  string `json:"requestedCheckInTime"`
	RequestedCheckOutTime string `json:"requestedCheckOutTime"`
	Reason                string `json:"reason"`
	Status                string `json:"status"`
	Approved              *bool  `json:"approved"`
	ApprovalComment       string `json:"approvalComment"`
	RequestTime           string `json:"requestTime"`
	Attendance            *struct {
		ID int64 `json:"id"`
	} `json:"attendance"`
}

func (d modificationDTO) toModel() models.ModificationRequest {
	m := models.ModificationRequest{
		ID:                    d.ID,
		UserID:                idString(d.UserID),
		AttendanceID:          d.AttendanceID,
		CheckInTime:           d.CheckInTime,
		CheckOutTime:          d.CheckOutTime,
		RequestedCheckInTime:  d.RequestedCheckInTime,
		RequestedCheckOutTime: d.RequestedCheckOutTime,
		Reason:                d.Reason,
		Status:                d.Status,
		Approved:              d.Approved,
		ApprovalComment:       d.ApprovalComment,
		RequestTime:           d.RequestTime,
	}
	if m.AttendanceID == 0 && d.Attendance != nil {
		m.AttendanceID = d.Attendance.ID
	}
	return m
}

func decodeModifications(body []byte) ([]models.ModificationRequest, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return []models.ModificationRequest{}, nil
	}
	var dtos []modificationDTO
	if err := json.Unmarshal([]byte(trimmed), &dtos); err != nil {
		return nil, fmt.Errorf("failed to decode modification requests: %w", err)
	}
	list := make([]models.ModificationRequest, 0, len(dtos))
	for _, d := range dtos {
		list = append(list, d.toModel())
	}
	return list, nil
}
