package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"hr-attendance-bot/internal/models"
	"hr-attendance-bot/internal/repository"
)

// UserMessage turns a flow error into the Markdown text shown to the user.
// Each failure kind has its own message; backend text is escaped.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrLocationPermissionDenied):
		return "📍 Location access was denied. Share your location with the button below to check in or out."
	case errors.Is(err, ErrCameraPermissionDenied):
		return "📷 Camera access was denied. Enable QR scanning or enter the code manually."
	case errors.Is(err, ErrCameraUnavailable):
		return "📷 QR scanning is not available here. Please enter the code manually."
	case errors.Is(err, ErrCodeGenerationFailed):
		return "❌ Could not generate an attendance code. Please try again."
	case errors.Is(err, ErrInvalidQRFormat):
		return "❌ Invalid QR code format."
	case errors.Is(err, ErrQRIdentityMismatch):
		return "❌ This QR code is not for you or not for this action."
	case errors.Is(err, ErrCodeExpiredOrInvalid):
		return "⌛ The code has expired or is invalid. Please generate a new code and try again."
	case errors.Is(err, ErrSubmissionFailed):
		return "❌ " + submissionDetail(err)
	case errors.Is(err, ErrInvalidCodeLength):
		return "🔢 Please enter a valid 6-digit code."
	case errors.Is(err, ErrLocationPending):
		return "⏳ Waiting for your location. Please share it first."
	case errors.Is(err, ErrLocationUnavailable):
		return "📍 Could not read your location. Please share it again."
	case errors.Is(err, ErrActionNotAllowed):
		return "ℹ️ That action is not available for today's attendance."
	case errors.Is(err, ErrBusy):
		return "⏳ Still working on your previous request."
	case errors.Is(err, ErrInvalidState):
		return "ℹ️ That step is not available right now. Use /checkin to start again."
	case errors.Is(err, ErrMissingUser):
		return "🔐 Please /login first."
	case errors.Is(err, ErrSnapshotRefreshFailed):
		return "⚠️ Could not load today's attendance."
	case errors.Is(err, ErrNoActiveFlow):
		return "ℹ️ There is no check-in in progress. Use /checkin to start."
	case errors.Is(err, ErrNotApprover):
		return "⛔ Only managers and admins can do that."
	case errors.Is(err, ErrNoAttendanceOnDate):
		return "ℹ️ No attendance was recorded on that date."
	case errors.Is(err, ErrCheckOutBeforeCheckIn):
		return "❌ Check-out time cannot be before check-in time."
	case errors.Is(err, ErrInvalidModification):
		return "❌ " + escape(err.Error())
	case errors.Is(err, repository.ErrInvalidCredentials):
		return "🔐 Invalid credentials."
	case errors.Is(err, repository.ErrUserNotFound):
		return "🔐 User not found."
	}
	return "❌ Request failed. Please try again."
}

// submissionDetail surfaces the backend's message for a failed submission
func submissionDetail(err error) string {
	var apiErr *repository.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return escape(apiErr.Message)
	}
	return "Could not process the request. Please try again."
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

// SubmittedMessage confirms a successful check-in or check-out
func SubmittedMessage(action models.ActionKind, snapshot models.DaySnapshot) string {
	var b strings.Builder
	if action == models.ActionCheckIn {
		b.WriteString("✅ *Checked in successfully*")
	} else {
		b.WriteString("✅ *Checked out successfully*")
	}
	b.WriteString("\n\n")
	b.WriteString(SnapshotMessage(snapshot))
	return b.String()
}

// SnapshotMessage renders today's check-in and check-out times
func SnapshotMessage(s models.DaySnapshot) string {
	return fmt.Sprintf("🕐 Check in: `%s`\n🕔 Check out: `%s`", clock(s.CheckInTime), clock(s.CheckOutTime))
}

func clock(t *time.Time) string {
	if t == nil {
		return "--:--"
	}
	return t.Format("15:04:05")
}
