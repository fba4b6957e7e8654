package models

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, exp *time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: "42"}
	if exp != nil {
		claims.ExpiresAt = jwt.NewNumericDate(*exp)
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return tok
}

func TestSessionExpired(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	tests := []struct {
		name    string
		session *Session
		want    bool
	}{
		{name: "Nil session", session: nil, want: true},
		{name: "No token", session: &Session{UserID: "42"}, want: true},
		{name: "Opaque token", session: &Session{UserID: "42", AccessToken: "not-a-jwt"}, want: false},
		{name: "JWT without exp", session: &Session{UserID: "42", AccessToken: signedToken(t, nil)}, want: false},
		{name: "JWT expired", session: &Session{UserID: "42", AccessToken: signedToken(t, &past)}, want: true},
		{name: "JWT valid", session: &Session{UserID: "42", AccessToken: signedToken(t, &future)}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.Expired(now); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDaySnapshot(t *testing.T) {
	in := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		rec            *AttendanceRecord
		wantCheckedIn  bool
		wantCheckedOut bool
	}{
		{name: "No record", rec: nil},
		{name: "Empty record", rec: &AttendanceRecord{}},
		{name: "Checked in", rec: &AttendanceRecord{CheckInTime: &in}, wantCheckedIn: true},
		{name: "Checked out", rec: &AttendanceRecord{CheckInTime: &in, CheckOutTime: &in}, wantCheckedIn: true, wantCheckedOut: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := SnapshotFromRecord(tt.rec)
			if s.CheckedIn() != tt.wantCheckedIn || s.CheckedOut() != tt.wantCheckedOut {
				t.Errorf("CheckedIn=%v CheckedOut=%v, want %v/%v", s.CheckedIn(), s.CheckedOut(), tt.wantCheckedIn, tt.wantCheckedOut)
			}
		})
	}
}

func TestRoles(t *testing.T) {
	tests := []struct {
		role        Role
		wantValid   bool
		wantApprove bool
	}{
		{role: RoleAdmin, wantValid: true, wantApprove: true},
		{role: RoleManager, wantValid: true, wantApprove: true},
		{role: RoleEmployee, wantValid: true},
		{role: "GUEST"},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if tt.role.Valid() != tt.wantValid || tt.role.CanApprove() != tt.wantApprove {
				t.Errorf("Valid=%v CanApprove=%v", tt.role.Valid(), tt.role.CanApprove())
			}
		})
	}
}
