package services

import (
	"strings"

	"hr-attendance-bot/internal/models"
)

// QRPayload is the content of an attendance QR code: userId:code:actionKind
type QRPayload struct {
	UserID string
	Code   string
	Action models.ActionKind
}

// ParseQRPayload splits a scanned payload by position. Anything other than
// exactly three fields is ErrInvalidQRFormat.
func ParseQRPayload(raw string) (QRPayload, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return QRPayload{}, ErrInvalidQRFormat
	}
	return QRPayload{
		UserID: parts[0],
		Code:   parts[1],
		Action: models.ActionKind(parts[2]),
	}, nil
}

// String encodes the payload in its wire form
func (p QRPayload) String() string {
	return p.UserID + ":" + p.Code + ":" + string(p.Action)
}

// Matches reports whether the payload belongs to the user and in-flight action
func (p QRPayload) Matches(userID string, action models.ActionKind) bool {
	return p.UserID == userID && p.Action == action
}
