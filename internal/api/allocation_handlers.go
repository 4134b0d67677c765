package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type RequestAllocationRequest struct {
	TeamID         string   `json:"teamId"`
	RequestedHours float64  `json:"requestedHours"`
	MemberIDs      []string `json:"memberIds"`
	StartDate      string   `json:"startDate"`
	EndDate        string   `json:"endDate"`
}

type UpdateMemberAllocationRequest struct {
	Hours     float64 `json:"hours"`
	StartDate string  `json:"startDate"`
	EndDate   string  `json:"endDate"`
}

// parseDate accepts a date-only or RFC3339 timestamp string.
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// HandleRequestAllocation allocates a team's members to a work item,
// splitting the requested hours equally across the named members.
func (s *Server) HandleRequestAllocation(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	workItemID := chi.URLParam(r, "id")

	var req RequestAllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "invalid_input")
		return
	}
	if req.TeamID == "" {
		respondError(w, http.StatusBadRequest, "teamId is required", "invalid_input")
		return
	}
	if req.RequestedHours < 0 {
		respondError(w, http.StatusBadRequest, "requestedHours must not be negative", "invalid_input")
		return
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid startDate", "invalid_input")
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid endDate", "invalid_input")
		return
	}

	result, err := s.ledger.RequestAllocation(ctx, workItemID, req.TeamID, req.RequestedHours, req.MemberIDs, start, end)
	if err != nil {
		s.logger.Error("Failed to request allocation",
			zap.Error(err),
			zap.String("work_item_id", workItemID),
			zap.String("team_id", req.TeamID))
		respondError(w, http.StatusInternalServerError, "failed to request allocation", "internal_error")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// HandleUpdateMemberAllocation changes one member's hours on a work item
func (s *Server) HandleUpdateMemberAllocation(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	teamID := chi.URLParam(r, "teamID")
	workItemID := chi.URLParam(r, "workItemID")
	memberID := chi.URLParam(r, "memberID")

	var req UpdateMemberAllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "invalid_input")
		return
	}
	if req.Hours < 0 {
		respondError(w, http.StatusBadRequest, "hours must not be negative", "invalid_input")
		return
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid startDate", "invalid_input")
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid endDate", "invalid_input")
		return
	}

	result, err := s.ledger.UpdateMemberAllocation(ctx, teamID, workItemID, memberID, req.Hours, start, end)
	if err != nil {
		s.logger.Error("Failed to update member allocation",
			zap.Error(err),
			zap.String("team_id", teamID),
			zap.String("work_item_id", workItemID),
			zap.String("member_id", memberID))
		respondError(w, http.StatusInternalServerError, "failed to update allocation", "internal_error")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// HandleRemoveMemberAllocation removes one member from a work item's allocation
func (s *Server) HandleRemoveMemberAllocation(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	teamID := chi.URLParam(r, "teamID")
	workItemID := chi.URLParam(r, "workItemID")
	memberID := chi.URLParam(r, "memberID")

	result, err := s.ledger.RemoveMemberAllocation(ctx, teamID, workItemID, memberID)
	if err != nil {
		s.logger.Error("Failed to remove member allocation",
			zap.Error(err),
			zap.String("team_id", teamID),
			zap.String("work_item_id", workItemID),
			zap.String("member_id", memberID))
		respondError(w, http.StatusInternalServerError, "failed to remove allocation", "internal_error")
		return
	}

	respondJSON(w, http.StatusOK, result)
}
