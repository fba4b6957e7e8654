// Package handlers provides HTTP handlers for API endpoints
package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"hr-attendance-bot/internal/models"
	"hr-attendance-bot/internal/services"
)

// ScannerTokenHeader carries the shared secret of a paired scanner
const ScannerTokenHeader = "X-Scanner-Token"

const maxScanBodyBytes = 4 << 10

// ScanRequest is sent by a hardware QR scanner paired with a chat
type ScanRequest struct {
	ChatID  int64  `json:"chat_id"`
	Payload string `json:"payload"`
}

type scanResponse struct {
	Status  string                   `json:"status"`
	Message string                   `json:"message,omitempty"`
	Record  *models.AttendanceRecord `json:"record,omitempty"`
}

// ScanHandler handles scanner submissions
type ScanHandler struct {
	service services.ScanProcessor
	token   string
}

// NewScanHandler creates a new scan handler. An empty token rejects every request.
func NewScanHandler(service services.ScanProcessor, token string) *ScanHandler {
	return &ScanHandler{service: service, token: token}
}

// HandleScan routes a scanned payload to the chat's check-in flow
func (h *ScanHandler) HandleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	got := r.Header.Get(ScannerTokenHeader)
	if h.token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxScanBodyBytes)
	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ChatID == 0 {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	log.Printf("🔍 [Scanner] chat %d payload received", req.ChatID)

	rec, err := h.service.ProcessScan(r.Context(), req.ChatID, req.Payload)
	if err != nil && !errors.Is(err, services.ErrSnapshotRefreshFailed) {
		status := scanStatus(err)
		if status >= http.StatusInternalServerError {
			log.Printf("❌ Error processing scan for chat %d: %v", req.ChatID, err)
		}
		writeJSON(w, status, scanResponse{Status: "error", Message: services.UserMessage(err)})
		return
	}

	writeJSON(w, http.StatusOK, scanResponse{Status: "ok", Record: rec})
}

func scanStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrNoActiveFlow):
		return http.StatusNotFound
	case errors.Is(err, services.ErrBusy), errors.Is(err, services.ErrScanDebounced), errors.Is(err, services.ErrInvalidState):
		return http.StatusConflict
	case services.IsValidationError(err), errors.Is(err, services.ErrCodeExpiredOrInvalid),
		errors.Is(err, services.ErrLocationPermissionDenied):
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("❌ Failed to write response: %v", err)
	}
}

// HandleHealth answers health checks
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
