package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hr-attendance-bot/internal/models"
	"hr-attendance-bot/internal/services"
)

// mockScanService is a mock implementation for testing
type mockScanService struct {
	called      bool
	lastChatID  int64
	lastPayload string
	returnRec   *models.AttendanceRecord
	returnError error
}

func (m *mockScanService) ProcessScan(ctx context.Context, chatID int64, payload string) (*models.AttendanceRecord, error) {
	m.called = true
	m.lastChatID = chatID
	m.lastPayload = payload
	return m.returnRec, m.returnError
}

// Ensure mock implements the interface
var _ services.ScanProcessor = (*mockScanService)(nil)

func TestHandleScan(t *testing.T) {
	const token = "s3cret"

	tests := []struct {
		name           string
		method         string
		token          string
		body           interface{}
		serviceErr     error
		returnRecord   bool
		wantStatusCode int
		wantCalled     bool
	}{
		{
			name:           "Accepted scan",
			method:         http.MethodPost,
			token:          token,
			body:           ScanRequest{ChatID: 100, Payload: "42:883901:CHECK_IN"},
			returnRecord:   true,
			wantStatusCode: http.StatusOK,
			wantCalled:     true,
		},
		{
			name:           "Invalid method - GET",
			method:         http.MethodGet,
			token:          token,
			wantStatusCode: http.StatusMethodNotAllowed,
		},
		{
			name:           "Missing token",
			method:         http.MethodPost,
			body:           ScanRequest{ChatID: 100, Payload: "42:883901:CHECK_IN"},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "Wrong token",
			method:         http.MethodPost,
			token:          "guess",
			body:           ScanRequest{ChatID: 100, Payload: "42:883901:CHECK_IN"},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "Invalid JSON body",
			method:         http.MethodPost,
			token:          token,
			body:           "invalid json",
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "Missing chat id",
			method:         http.MethodPost,
			token:          token,
			body:           ScanRequest{Payload: "42:883901:CHECK_IN"},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "No active flow",
			method:         http.MethodPost,
			token:          token,
			body:           ScanRequest{ChatID: 100, Payload: "42:883901:CHECK_IN"},
			serviceErr:     services.ErrNoActiveFlow,
			wantStatusCode: http.StatusNotFound,
			wantCalled:     true,
		},
		{
			name:           "Malformed payload",
			method:         http.MethodPost,
			token:          token,
			body:           ScanRequest{ChatID: 100, Payload: "883901"},
			serviceErr:     services.ErrInvalidQRFormat,
			wantStatusCode: http.StatusUnprocessableEntity,
			wantCalled:     true,
		},
		{
			name:           "Debounced",
			method:         http.MethodPost,
			token:          token,
			body:           ScanRequest{ChatID: 100, Payload: "42:883901:CHECK_IN"},
			serviceErr:     services.ErrScanDebounced,
			wantStatusCode: http.StatusConflict,
			wantCalled:     true,
		},
		{
			name:           "Backend failure",
			method:         http.MethodPost,
			token:          token,
			body:           ScanRequest{ChatID: 100, Payload: "42:883901:CHECK_IN"},
			serviceErr:     fmt.Errorf("%w: %w", services.ErrSubmissionFailed, errors.New("connection refused")),
			wantStatusCode: http.StatusBadGateway,
			wantCalled:     true,
		},
		{
			name:           "Recorded but snapshot refresh failed",
			method:         http.MethodPost,
			token:          token,
			body:           ScanRequest{ChatID: 100, Payload: "42:883901:CHECK_IN"},
			serviceErr:     services.ErrSnapshotRefreshFailed,
			returnRecord:   true,
			wantStatusCode: http.StatusOK,
			wantCalled:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &mockScanService{returnError: tt.serviceErr}
			if tt.returnRecord {
				mockService.returnRec = &models.AttendanceRecord{ID: 9}
			}
			handler := NewScanHandler(mockService, token)

			var bodyBytes []byte
			if tt.body != nil {
				if str, ok := tt.body.(string); ok {
					bodyBytes = []byte(str)
				} else {
					var err error
					bodyBytes, err = json.Marshal(tt.body)
					if err != nil {
						t.Fatalf("Failed to marshal body: %v", err)
					}
				}
			}

			req := httptest.NewRequest(tt.method, "/api/scan", bytes.NewReader(bodyBytes))
			req.Header.Set("Content-Type", "application/json")
			if tt.token != "" {
				req.Header.Set(ScannerTokenHeader, tt.token)
			}
			rr := httptest.NewRecorder()

			handler.HandleScan(rr, req)

			if rr.Code != tt.wantStatusCode {
				t.Errorf("HandleScan() status = %v, want %v", rr.Code, tt.wantStatusCode)
			}
			if mockService.called != tt.wantCalled {
				t.Errorf("ProcessScan called = %v, want %v", mockService.called, tt.wantCalled)
			}
			if tt.wantCalled {
				want := tt.body.(ScanRequest)
				if mockService.lastChatID != want.ChatID || mockService.lastPayload != want.Payload {
					t.Errorf("ProcessScan(%d, %q), want (%d, %q)",
						mockService.lastChatID, mockService.lastPayload, want.ChatID, want.Payload)
				}
			}
			if tt.wantStatusCode == http.StatusOK && tt.returnRecord {
				var resp scanResponse
				if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
					t.Fatalf("decode response: %v", err)
				}
				if resp.Status != "ok" || resp.Record == nil || resp.Record.ID != 9 {
					t.Errorf("response = %+v", resp)
				}
			}
		})
	}
}

func TestHandleScanBodyLimit(t *testing.T) {
	mockService := &mockScanService{}
	handler := NewScanHandler(mockService, "s3cret")

	body, _ := json.Marshal(ScanRequest{ChatID: 1, Payload: strings.Repeat("9", maxScanBodyBytes)})
	req := httptest.NewRequest(http.MethodPost, "/api/scan", bytes.NewReader(body))
	req.Header.Set(ScannerTokenHeader, "s3cret")
	rr := httptest.NewRecorder()

	handler.HandleScan(rr, req)

	if rr.Code != http.StatusRequestEntityTooLarge || mockService.called {
		t.Errorf("status = %d, called = %v; want 413 without a call", rr.Code, mockService.called)
	}
}

func TestHandleScanWithoutConfiguredToken(t *testing.T) {
	mockService := &mockScanService{}
	handler := NewScanHandler(mockService, "")

	body, _ := json.Marshal(ScanRequest{ChatID: 1, Payload: "1:123456:CHECK_IN"})
	req := httptest.NewRequest(http.MethodPost, "/api/scan", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	handler.HandleScan(rr, req)

	if rr.Code != http.StatusUnauthorized || mockService.called {
		t.Errorf("status = %d, called = %v; want 401 without a call", rr.Code, mockService.called)
	}
}

func TestHandleHealth(t *testing.T) {
	rr := httptest.NewRecorder()
	HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "OK" {
		t.Errorf("HandleHealth() = %d %q", rr.Code, rr.Body.String())
	}
}
