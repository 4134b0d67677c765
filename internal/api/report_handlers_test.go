package api

import (
	"context"
	"net/http"
	"testing"

	"roadmapper/internal/graph"
	"roadmapper/internal/planning"
)

func TestHandleTeamBandwidth(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	teamID, memberID, itemID := seedAllocationFixture(t, ts)

	// Commit half the member's week to the feature
	ctx := context.Background()
	if _, err := ts.ledger.RequestAllocation(ctx, itemID, teamID, 40, []string{memberID}, nil, nil); err != nil {
		t.Fatalf("Failed to allocate: %v", err)
	}

	rec, req := MakeParamRequest(t, http.MethodGet, "/api/teams/"+teamID+"/bandwidth", nil, map[string]string{"id": teamID})
	ts.HandleTeamBandwidth(rec, req)

	AssertStatusCode(t, rec.Code, http.StatusOK)

	var bw planning.TeamBandwidth
	DecodeJSON(t, rec, &bw)

	if bw.TeamID != teamID {
		t.Errorf("teamId = %q, want %q", bw.TeamID, teamID)
	}
	if len(bw.Members) != 1 {
		t.Fatalf("Expected 1 member, got %d", len(bw.Members))
	}
	if bw.AllocatedHours <= 0 {
		t.Errorf("Expected positive allocated hours, got %v", bw.AllocatedHours)
	}
}

func TestHandleTeamBandwidthMissingTeam(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	rec, req := MakeParamRequest(t, http.MethodGet, "/api/teams/nope/bandwidth", nil, map[string]string{"id": "nope"})
	ts.HandleTeamBandwidth(rec, req)

	AssertError(t, rec, http.StatusNotFound, "team not found", "not_found")
}

func TestHandleOverAllocations(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	// One member split across two teams, each committing more than half
	// of a 16-hour week.
	memberID := ts.CreateTestNode(t, graph.NodeMember, map[string]interface{}{
		"name":        "Dana",
		"hoursPerDay": 8,
		"daysPerWeek": 2,
		"dailyRate":   400,
	})
	teamA := ts.CreateTestNode(t, graph.NodeTeam, map[string]interface{}{"name": "A"})
	teamB := ts.CreateTestNode(t, graph.NodeTeam, map[string]interface{}{"name": "B"})
	itemA := ts.CreateTestNode(t, graph.NodeFeature, map[string]interface{}{"name": "FA", "duration": 5})
	itemB := ts.CreateTestNode(t, graph.NodeFeature, map[string]interface{}{"name": "FB", "duration": 5})
	ts.LinkTestMember(t, teamA, memberID, "engineer")
	ts.LinkTestMember(t, teamB, memberID, "engineer")

	ctx := context.Background()
	if _, err := ts.ledger.RequestAllocation(ctx, itemA, teamA, 12, []string{memberID}, nil, nil); err != nil {
		t.Fatalf("Failed to allocate on team A: %v", err)
	}
	if _, err := ts.ledger.RequestAllocation(ctx, itemB, teamB, 12, []string{memberID}, nil, nil); err != nil {
		t.Fatalf("Failed to allocate on team B: %v", err)
	}

	rec, req := MakeParamRequest(t, http.MethodGet, "/api/reports/over-allocations", nil, nil)
	ts.HandleOverAllocations(rec, req)

	AssertStatusCode(t, rec.Code, http.StatusOK)

	var resp struct {
		Members []planning.MemberLoad `json:"members"`
		Total   int                   `json:"total"`
	}
	DecodeJSON(t, rec, &resp)

	if resp.Total != 1 {
		t.Errorf("total = %d, want 1", resp.Total)
	}
	if len(resp.Members) != 1 {
		t.Fatalf("Expected 1 over-allocated member, got %d", len(resp.Members))
	}
	if resp.Members[0].MemberID != memberID {
		t.Errorf("memberId = %q, want %q", resp.Members[0].MemberID, memberID)
	}
	if !resp.Members[0].IsOverAllocated {
		t.Error("Expected member flagged as over-allocated")
	}
}

func TestHandleOverAllocationsEmpty(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	rec, req := MakeParamRequest(t, http.MethodGet, "/api/reports/over-allocations", nil, nil)
	ts.HandleOverAllocations(rec, req)

	AssertStatusCode(t, rec.Code, http.StatusOK)

	var resp struct {
		Members []planning.MemberLoad `json:"members"`
		Total   int                   `json:"total"`
	}
	DecodeJSON(t, rec, &resp)
	if len(resp.Members) != 0 {
		t.Errorf("Expected no over-allocated members, got %d", len(resp.Members))
	}
}

func TestHandleConnectedTeams(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	teamID, memberID, itemID := seedAllocationFixture(t, ts)

	ctx := context.Background()
	if _, err := ts.ledger.RequestAllocation(ctx, itemID, teamID, 40, []string{memberID}, nil, nil); err != nil {
		t.Fatalf("Failed to allocate: %v", err)
	}

	rec, req := MakeParamRequest(t, http.MethodGet, "/api/work-items/"+itemID+"/teams", nil, map[string]string{"id": itemID})
	ts.HandleConnectedTeams(rec, req)

	AssertStatusCode(t, rec.Code, http.StatusOK)

	var teams []planning.ConnectedTeam
	DecodeJSON(t, rec, &teams)
	if len(teams) != 1 {
		t.Fatalf("Expected 1 connected team, got %d", len(teams))
	}
	if teams[0].TeamID != teamID {
		t.Errorf("teamId = %q, want %q", teams[0].TeamID, teamID)
	}
	if teams[0].RequestedHours != 40 {
		t.Errorf("requestedHours = %v, want 40", teams[0].RequestedHours)
	}
}

func TestHandleWorkItemCosts(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	teamID, memberID, itemID := seedAllocationFixture(t, ts)

	ctx := context.Background()
	if _, err := ts.ledger.RequestAllocation(ctx, itemID, teamID, 40, []string{memberID}, nil, nil); err != nil {
		t.Fatalf("Failed to allocate: %v", err)
	}

	rec, req := MakeParamRequest(t, http.MethodGet, "/api/work-items/"+itemID+"/costs", nil, map[string]string{"id": itemID})
	ts.HandleWorkItemCosts(rec, req)

	AssertStatusCode(t, rec.Code, http.StatusOK)

	var summary planning.CostSummary
	DecodeJSON(t, rec, &summary)

	// 40 hours at 8 h/day and 400/day is 5 days, 2000
	if summary.TotalHours != 40 {
		t.Errorf("totalHours = %v, want 40", summary.TotalHours)
	}
	if summary.TotalDays != 5 {
		t.Errorf("totalDays = %v, want 5", summary.TotalDays)
	}
	if summary.TotalCost != 2000 {
		t.Errorf("totalCost = %v, want 2000", summary.TotalCost)
	}
}

func TestHandleMilestoneMetrics(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	teamID, memberID, itemID := seedAllocationFixture(t, ts)

	milestoneID := ts.CreateTestNode(t, graph.NodeMilestone, map[string]interface{}{"name": "Launch"})
	ctx := context.Background()
	if err := ts.Store.CreateEdge(ctx, &graph.Edge{Type: graph.EdgeContains, From: milestoneID, To: itemID}); err != nil {
		t.Fatalf("Failed to link milestone: %v", err)
	}
	if _, err := ts.ledger.RequestAllocation(ctx, itemID, teamID, 40, []string{memberID}, nil, nil); err != nil {
		t.Fatalf("Failed to allocate: %v", err)
	}

	rec, req := MakeParamRequest(t, http.MethodGet, "/api/milestones/"+milestoneID+"/metrics", nil, map[string]string{"id": milestoneID})
	ts.HandleMilestoneMetrics(rec, req)

	AssertStatusCode(t, rec.Code, http.StatusOK)

	var metrics planning.MilestoneMetrics
	DecodeJSON(t, rec, &metrics)

	if metrics.NodeCount != 1 {
		t.Errorf("nodeCount = %d, want 1", metrics.NodeCount)
	}
	if metrics.TotalCost != 2000 {
		t.Errorf("totalCost = %v, want 2000", metrics.TotalCost)
	}
}

func TestHandleMilestoneMetricsMissing(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	rec, req := MakeParamRequest(t, http.MethodGet, "/api/milestones/nope/metrics", nil, map[string]string{"id": "nope"})
	ts.HandleMilestoneMetrics(rec, req)

	AssertError(t, rec, http.StatusNotFound, "milestone not found", "not_found")
}
