package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"roadmapper/internal/graph"
	"roadmapper/internal/planning"
)

// HandleTeamBandwidth returns a team's capacity and utilization
func (s *Server) HandleTeamBandwidth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	teamID := chi.URLParam(r, "id")

	bw, err := s.bandwidth.TeamBandwidth(ctx, teamID)
	if err != nil {
		if graph.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "team not found", "not_found")
			return
		}
		s.logger.Error("Failed to compute team bandwidth", zap.Error(err), zap.String("team_id", teamID))
		respondError(w, http.StatusInternalServerError, "failed to compute bandwidth", "internal_error")
		return
	}

	respondJSON(w, http.StatusOK, bw)
}

// HandleOverAllocations reports every member whose combined
// commitments exceed their weekly capacity
func (s *Server) HandleOverAllocations(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	loads, err := s.bandwidth.MemberLoads(ctx)
	if err != nil {
		s.logger.Error("Failed to compute member loads", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to compute member loads", "internal_error")
		return
	}

	overAllocated := make([]planning.MemberLoad, 0)
	for _, l := range loads {
		if l.IsOverAllocated {
			overAllocated = append(overAllocated, l)
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"members": overAllocated,
		"total":   len(loads),
	})
}

// HandleConnectedTeams returns the teams allocated to a work item
func (s *Server) HandleConnectedTeams(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	workItemID := chi.URLParam(r, "id")

	teams, err := s.bandwidth.ConnectedTeams(ctx, workItemID)
	if err != nil {
		if graph.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "work item not found", "not_found")
			return
		}
		s.logger.Error("Failed to list connected teams", zap.Error(err), zap.String("work_item_id", workItemID))
		respondError(w, http.StatusInternalServerError, "failed to list connected teams", "internal_error")
		return
	}

	if teams == nil {
		teams = []planning.ConnectedTeam{}
	}
	respondJSON(w, http.StatusOK, teams)
}

// HandleWorkItemCosts returns a work item's cost summary
func (s *Server) HandleWorkItemCosts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	workItemID := chi.URLParam(r, "id")

	summary, err := s.bandwidth.WorkItemCosts(ctx, workItemID)
	if err != nil {
		if graph.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "work item not found", "not_found")
			return
		}
		s.logger.Error("Failed to compute work item costs", zap.Error(err), zap.String("work_item_id", workItemID))
		respondError(w, http.StatusInternalServerError, "failed to compute costs", "internal_error")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// HandleMilestoneMetrics rolls up cost, value and completion over the
// work items contained in a milestone
func (s *Server) HandleMilestoneMetrics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	milestoneID := chi.URLParam(r, "id")

	metrics, err := s.rollup.MilestoneMetrics(ctx, milestoneID)
	if err != nil {
		if graph.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "milestone not found", "not_found")
			return
		}
		s.logger.Error("Failed to compute milestone metrics", zap.Error(err), zap.String("milestone_id", milestoneID))
		respondError(w, http.StatusInternalServerError, "failed to compute metrics", "internal_error")
		return
	}

	respondJSON(w, http.StatusOK, metrics)
}
