// Package models contains data structures for the application
package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ActionKind is the operation a generated attendance code is scoped to
type ActionKind string

const (
	ActionCheckIn  ActionKind = "CHECK_IN"
	ActionCheckOut ActionKind = "CHECK_OUT"
)

// Valid reports whether the action is one of the two known kinds
func (a ActionKind) Valid() bool {
	return a == ActionCheckIn || a == ActionCheckOut
}

// Role is the active user's role as reported by the login endpoint
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleManager  Role = "MANAGER"
	RoleEmployee Role = "EMPLOYEE"
)

// Valid reports whether the role is one the client knows about
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleEmployee:
		return true
	}
	return false
}

// CanApprove reports whether the role may decide modification requests
func (r Role) CanApprove() bool {
	return r == RoleAdmin || r == RoleManager
}

// AttendanceRecord is a single day's attendance as returned by the HR backend
type AttendanceRecord struct {
	ID           int64      `json:"id"`
	UserID       string     `json:"userId"`
	CheckInTime  *time.Time `json:"checkInTime"`
	CheckOutTime *time.Time `json:"checkOutTime"`
	Status       string     `json:"status"`
	Latitude     *float64   `json:"latitude,omitempty"`
	Longitude    *float64   `json:"longitude,omitempty"`
	Address      string     `json:"address,omitempty"`
	WorkingHours float64    `json:"workingHours,omitempty"`
}

// DaySnapshot holds the authoritative check-in/out times for the current day.
// It is only ever replaced by a re-fetch from the backend.
type DaySnapshot struct {
	CheckInTime  *time.Time
	CheckOutTime *time.Time
}

// SnapshotFromRecord converts a today record (possibly nil) into a snapshot
func SnapshotFromRecord(rec *AttendanceRecord) DaySnapshot {
	if rec == nil {
		return DaySnapshot{}
	}
	return DaySnapshot{CheckInTime: rec.CheckInTime, CheckOutTime: rec.CheckOutTime}
}

// CheckedIn reports whether a check-in was recorded today
func (s DaySnapshot) CheckedIn() bool {
	return s.CheckInTime != nil
}

// CheckedOut reports whether a check-out was recorded today
func (s DaySnapshot) CheckedOut() bool {
	return s.CheckOutTime != nil
}

// LocationReading is the device location attached to a submission
type LocationReading struct {
	Latitude  float64
	Longitude float64
	Address   string
	ReadAt    time.Time
}

// PendingAction is the in-flight check-in or check-out attempt
type PendingAction struct {
	Action     ActionKind
	IssuedCode string
}

// SubmitRequest carries a check-in or check-out submission
type SubmitRequest struct {
	UserID    string
	Code      string
	Latitude  float64
	Longitude float64
	Address   string
}

// Session is the locally stored login state for one chat
type Session struct {
	ChatID      int64
	UserID      string
	Role        Role
	AccessToken string
	TokenType   string
	DeviceID    string
	UpdatedAt   time.Time
}

// LoggedIn reports whether the session carries a user
func (s *Session) LoggedIn() bool {
	return s != nil && s.UserID != ""
}

// Expired reports whether the access token's exp claim is in the past.
// The signature is not checked; tokens that are not JWTs never expire here.
func (s *Session) Expired(now time.Time) bool {
	if s == nil || s.AccessToken == "" {
		return true
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.AccessToken, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}

// HistoryPage is one page of attendance history
type HistoryPage struct {
	Records []AttendanceRecord
	Page    int
	Size    int
	HasNext bool
}

// AttendanceSummary aggregates attendance over a date range
type AttendanceSummary struct {
	TotalDays           int     `json:"totalDays"`
	PresentDays         int     `json:"presentDays"`
	LateDays            int     `json:"lateDays"`
	AbsentDays          int     `json:"absentDays"`
	TotalWorkingHours   float64 `json:"totalWorkingHours"`
	AverageWorkingHours float64 `json:"averageWorkingHours"`
	OvertimeDays        int     `json:"overtimeDays"`
}

// ModificationRequest asks a manager to correct a day's attendance.
// Times use the backend's yyyy-MM-ddTHH:mm:ss form.
type ModificationRequest struct {
	ID                    int64  `json:"id,omitempty"`
	UserID                string `json:"userId"`
	AttendanceID          int64  `json:"attendanceId,omitempty"`
	CheckInTime           string `json:"checkInTime,omitempty"`
	CheckOutTime          string `json:"checkOutTime,omitempty"`
	RequestedCheckInTime  string `json:"-"`
	RequestedCheckOutTime string `json:"-"`
	Reason                string `json:"reason"`
	Status                string `json:"-"`
	Approved              *bool  `json:"-"`
	ApprovalComment       string `json:"-"`
	RequestTime           string `json:"-"`
}

// Decision approves or rejects a pending request
type Decision struct {
	Approved bool
	Comment  string
}
