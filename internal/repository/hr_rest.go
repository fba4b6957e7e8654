// Package repository provides HR backend REST API implementations
package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"hr-attendance-bot/internal/models"
)

// invalidOrExpiredCodeMessage is the exact body the backend sends for a rejected code
const invalidOrExpiredCodeMessage = "Invalid or expired code"

var (
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrUserNotFound         = errors.New("user not found")
	ErrEmptyResponse        = errors.New("empty response from backend")
)

// APIError is a non-2xx answer from the HR backend
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed: %s", e.Status)
}

// Unwrap lets errors.Is match the distinguished expired-code rejection
func (e *APIError) Unwrap() error {
	if e.Message == invalidOrExpiredCodeMessage {
		return ErrInvalidOrExpiredCode
	}
	return nil
}

// HRRESTClient talks to the HR backend. The zero-session client can only log in;
// ForSession returns a copy that authenticates as a chat's user.
type HRRESTClient struct {
	baseURL    string
	authToken  string
	tokenType  string
	deviceID   string
	httpClient *http.Client
}

// NewHRRESTClient creates a client for the backend at baseURL
func NewHRRESTClient(baseURL string, timeout time.Duration) *HRRESTClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HRRESTClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ForSession returns a client that sends the session's token and device id
func (r *HRRESTClient) ForSession(s *models.Session) *HRRESTClient {
	cp := *r
	if s != nil {
		cp.authToken = s.AccessToken
		cp.tokenType = s.TokenType
		cp.deviceID = s.DeviceID
	}
	return &cp
}

func (r *HRRESTClient) addAuthHeader(req *http.Request) {
	if r.authToken == "" {
		return
	}
	tokenType := r.tokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	req.Header.Set("Authorization", tokenType+" "+r.authToken)
}

// do sends a request and returns the raw body of a 2xx response.
// Non-2xx responses become *APIError.
func (r *HRRESTClient) do(ctx context.Context, method, path string, query url.Values, body interface{}) ([]byte, error) {
	apiURL := r.baseURL + path
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if r.deviceID != "" {
		req.Header.Set("X-Device-ID", r.deviceID)
	}
	r.addAuthHeader(req)

	log.Printf("🔍 %s %s [%s]", method, path, requestID)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		log.Printf("❌ HTTP error %s %s [%s]: %v", method, path, requestID, err)
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	log.Printf("🔍 %s %s [%s] -> %d", method, path, requestID, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Message:    errorMessage(respBody),
		}
	}
	return respBody, nil
}

// errorMessage extracts a readable message from an error body, which the
// backend sends as plain text, a JSON string or {"message": "..."}
func errorMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err == nil {
			return strings.TrimSpace(s)
		}
	case '{':
		var obj struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
			if obj.Message != "" {
				return obj.Message
			}
			if obj.Error != "" {
				return obj.Error
			}
		}
	}
	return trimmed
}

// textBody reads a body that is either plain text or a JSON string
func textBody(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err == nil {
			return strings.TrimSpace(s)
		}
	}
	return trimmed
}

// statusIs reports whether err is an APIError with the given status
func statusIs(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
