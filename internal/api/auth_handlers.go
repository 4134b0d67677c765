package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"roadmapper/internal/auth"
)

// TokenRequest represents the token exchange payload
type TokenRequest struct {
	Client string `json:"client"`
	APIKey string `json:"apiKey"`
}

// TokenResponse carries an issued access token
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"` // seconds
}

// HandleToken exchanges a configured API key for a short-lived JWT
func (s *Server) HandleToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "invalid_input")
		return
	}

	if req.Client == "" {
		respondError(w, http.StatusBadRequest, "client is required", "invalid_input")
		return
	}

	token, err := s.auth.ExchangeAPIKey(req.Client, req.APIKey)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidAPIKey) {
			respondError(w, http.StatusUnauthorized, "invalid API key", "unauthorized")
			return
		}
		s.logger.Error("Failed to issue token", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to issue token", "internal_error")
		return
	}

	respondJSON(w, http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresIn: int64(s.config.JWTExpiry().Seconds()),
	})
}
