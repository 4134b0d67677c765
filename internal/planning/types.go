// Package planning implements the resource-allocation and cost-rollup
// engine: capacity math, the allocation ledger and its two denormalized
// projections, bandwidth aggregation, and milestone rollups.
package planning

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"roadmapper/internal/codec"
	"roadmapper/internal/graph"
)

// Member is a person node. Rates and schedules live on the member, so
// capacity and cost always reflect the values at computation time.
type Member struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	HoursPerDay float64 `json:"hoursPerDay"`
	DaysPerWeek float64 `json:"daysPerWeek"`
	DailyRate   float64 `json:"dailyRate"`
}

// WorkAllocation is the team-roster projection of one member's
// commitment to one work item.
type WorkAllocation struct {
	WorkItemID             string     `json:"workItemId"`
	PercentOfDailyCapacity float64    `json:"percentOfDailyCapacity"`
	StartDate              *time.Time `json:"startDate,omitempty"`
	EndDate                *time.Time `json:"endDate,omitempty"`
	TotalHours             float64    `json:"totalHours"`
}

// RosterEntry records one member's overall commitment to a team plus
// the per-work-item breakdown. A member appears at most once per
// roster, keyed by memberId.
type RosterEntry struct {
	MemberID          string                      `json:"memberId"`
	AllocationPercent float64                     `json:"allocationPercent"`
	Role              string                      `json:"role"`
	StartDate         *time.Time                  `json:"startDate,omitempty"`
	WorkAllocations   codec.List[WorkAllocation]  `json:"workAllocations"`
}

// Team is a team node with its roster projection.
type Team struct {
	ID     string                  `json:"id"`
	Name   string                  `json:"name"`
	Roster codec.List[RosterEntry] `json:"roster"`
}

// AllocatedMember is the work-item projection of one member's
// commitment. Hours here mirror TotalHours on the roster side.
type AllocatedMember struct {
	MemberID    string     `json:"memberId"`
	Hours       float64    `json:"hours"`
	HoursPerDay float64    `json:"hoursPerDay"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	Cost        float64    `json:"cost"`
}

// TeamAllocation is a work item's record of hours requested from one
// team, broken down per member.
type TeamAllocation struct {
	TeamID           string            `json:"teamId"`
	RequestedHours   float64           `json:"requestedHours"`
	AllocatedMembers []AllocatedMember `json:"allocatedMembers"`
}

// ProviderCost holds one cost-model entry on a provider node,
// discriminated by CostType.
type ProviderCost struct {
	CostType       string   `json:"costType"`
	Amount         float64  `json:"amount"`
	BillingPeriod  string   `json:"billingPeriod"` // "monthly" or "annual"
	UnitPrice      float64  `json:"unitPrice"`
	MinimumUnits   float64  `json:"minimumUnits"`
	EstimatedUnits float64  `json:"estimatedUnits"`
	MaximumUnits   *float64 `json:"maximumUnits,omitempty"`
	Percentage     float64  `json:"percentage"`
	MonthlyVolume  float64  `json:"monthlyVolume"`
	MinimumMonthly float64  `json:"minimumMonthly"`
}

// DiligenceItem is a due-diligence checklist entry on a provider node.
// The engine never interprets these; they ride along through the codec
// boundary like every other list field.
type DiligenceItem struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Status string `json:"status"`
}

// WorkItem is a feature, option, or provider node. The three are
// structurally identical for allocation purposes.
type WorkItem struct {
	ID        string     `json:"id"`
	Type      string     `json:"-"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	Duration  int        `json:"duration"` // days
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`

	TeamAllocations codec.List[TeamAllocation] `json:"teamAllocations"`

	// Provider cost models and option economics; zero-valued for
	// node types they do not apply to.
	Costs              codec.List[ProviderCost]  `json:"costs"`
	DDItems            codec.List[DiligenceItem] `json:"ddItems"`
	TransactionFeeRate float64                   `json:"transactionFeeRate"`
	MonthlyVolume      float64                   `json:"monthlyVolume"`
}

// Milestone is a milestone node. All reported metrics are derived at
// read time; only an optional manual status is persisted.
type Milestone struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// decodeFields unmarshals a node's field map into dst. Type mismatches
// on individual fields are logged and skipped rather than failing the
// whole decode; list fields recover through the codec layer.
func decodeFields(n *graph.Node, dst any, logger *zap.Logger) {
	raw, err := json.Marshal(n.Fields)
	if err != nil {
		logger.Warn("Failed to re-serialize node fields",
			zap.String("node_id", n.ID), zap.Error(err))
		return
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		logger.Warn("Node has malformed fields, keeping what decoded",
			zap.String("node_id", n.ID),
			zap.String("node_type", n.Type),
			zap.Error(err))
	}
}

// MemberFromNode decodes a member node.
func MemberFromNode(n *graph.Node, logger *zap.Logger) *Member {
	m := &Member{}
	decodeFields(n, m, logger)
	m.ID = n.ID
	return m
}

// TeamFromNode decodes a team node, normalizing the roster field.
func TeamFromNode(n *graph.Node, logger *zap.Logger) *Team {
	t := &Team{}
	decodeFields(n, t, logger)
	t.ID = n.ID
	return t
}

// WorkItemFromNode decodes a feature/option/provider node, normalizing
// its list fields.
func WorkItemFromNode(n *graph.Node, logger *zap.Logger) *WorkItem {
	w := &WorkItem{}
	decodeFields(n, w, logger)
	w.ID = n.ID
	w.Type = n.Type
	return w
}

// MilestoneFromNode decodes a milestone node.
func MilestoneFromNode(n *graph.Node, logger *zap.Logger) *Milestone {
	m := &Milestone{}
	decodeFields(n, m, logger)
	m.ID = n.ID
	return m
}

// rosterField serializes a team's roster canonically (always a native
// array, never a string-wrapped one).
func rosterField(t *Team) json.RawMessage {
	raw, err := json.Marshal(t.Roster)
	if err != nil {
		return json.RawMessage("[]")
	}
	return raw
}

// teamAllocationsField serializes a work item's teamAllocations
// canonically.
func teamAllocationsField(w *WorkItem) json.RawMessage {
	raw, err := json.Marshal(w.TeamAllocations)
	if err != nil {
		return json.RawMessage("[]")
	}
	return raw
}

// findRosterEntry returns the roster entry for memberID, or nil.
func findRosterEntry(t *Team, memberID string) *RosterEntry {
	for i := range t.Roster {
		if t.Roster[i].MemberID == memberID {
			return &t.Roster[i]
		}
	}
	return nil
}

// findTeamAllocation returns the work item's allocation entry for
// teamID, or nil.
func findTeamAllocation(w *WorkItem, teamID string) *TeamAllocation {
	for i := range w.TeamAllocations {
		if w.TeamAllocations[i].TeamID == teamID {
			return &w.TeamAllocations[i]
		}
	}
	return nil
}
