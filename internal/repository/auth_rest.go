package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"hr-attendance-bot/internal/models"
)

var (
	ErrMissingCredentials  = errors.New("id and password are required")
	ErrInvalidLoginPayload = errors.New("invalid login response format")
)

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	Role        string `json:"role"`
	UserID      any    `json:"userId"`
}

// Login exchanges credentials for a session. The returned session has no
// chat id or device id; the caller fills those in.
func (r *HRRESTClient) Login(ctx context.Context, identifier, password string) (*models.Session, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	body, err := r.do(ctx, http.MethodPost, "/api/auth/login", nil, loginRequest{
		Identifier: identifier,
		Password:   password,
	})
	if err != nil {
		switch {
		case statusIs(err, http.StatusUnauthorized):
			return nil, ErrInvalidCredentials
		case statusIs(err, http.StatusNotFound):
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("login failed: %w", err)
	}

	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}
	userID := idString(resp.UserID)
	if resp.AccessToken == "" || resp.Role == "" || userID == "" {
		return nil, ErrInvalidLoginPayload
	}
	if resp.TokenType == "" {
		resp.TokenType = "Bearer"
	}

	log.Printf("✅ Logged in user %s as %s", userID, resp.Role)
	return &models.Session{
		UserID:      userID,
		Role:        models.Role(strings.ToUpper(resp.Role)),
		AccessToken: resp.AccessToken,
		TokenType:   resp.TokenType,
		UpdatedAt:   time.Now(),
	}, nil
}
