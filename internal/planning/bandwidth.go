package planning

import (
	"context"

	"go.uber.org/zap"

	"roadmapper/internal/graph"
)

// Aggregator derives read-time bandwidth and cost figures from the
// persisted projections. It holds no state of its own.
type Aggregator struct {
	store  graph.Store
	logger *zap.Logger
}

// NewAggregator creates an aggregator over the given store.
func NewAggregator(store graph.Store, logger *zap.Logger) *Aggregator {
	return &Aggregator{store: store, logger: logger}
}

// MemberBandwidth is one roster member's share of a team's capacity.
type MemberBandwidth struct {
	MemberID          string  `json:"memberId"`
	Name              string  `json:"name"`
	WeeklyCapacity    float64 `json:"weeklyCapacity"`
	AllocationPercent float64 `json:"allocationPercent"`
	TotalHours        float64 `json:"totalHours"`     // this team's share of the member's week
	AllocatedHours    float64 `json:"allocatedHours"` // committed to work items
	AvailableHours    float64 `json:"availableHours"`
}

// TeamBandwidth is a team's total vs. allocated capacity.
type TeamBandwidth struct {
	TeamID          string            `json:"teamId"`
	TeamName        string            `json:"teamName"`
	TotalHours      float64           `json:"totalHours"`
	AllocatedHours  float64           `json:"allocatedHours"`
	UtilizationRate float64           `json:"utilizationRate"`
	Members         []MemberBandwidth `json:"members"`
}

// TeamBandwidth sums a team's weekly capacity and the share of it
// committed to work items.
func (a *Aggregator) TeamBandwidth(ctx context.Context, teamID string) (*TeamBandwidth, error) {
	node, err := a.store.GetNode(ctx, teamID)
	if err != nil {
		return nil, err
	}
	team := TeamFromNode(node, a.logger)
	return a.teamBandwidth(ctx, team), nil
}

func (a *Aggregator) teamBandwidth(ctx context.Context, team *Team) *TeamBandwidth {
	tb := &TeamBandwidth{
		TeamID:   team.ID,
		TeamName: team.Name,
		Members:  make([]MemberBandwidth, 0, len(team.Roster)),
	}

	for _, entry := range team.Roster {
		member, ok := a.loadMember(ctx, entry.MemberID)
		if !ok {
			// Dangling roster reference; the member contributes
			// nothing until the roster is cleaned up.
			continue
		}

		weekly := WeeklyCapacity(member)
		total := weekly * entry.AllocationPercent / 100

		var allocated float64
		for _, wa := range entry.WorkAllocations {
			allocated += wa.PercentOfDailyCapacity / 100 * weekly * entry.AllocationPercent / 100
		}

		tb.TotalHours += total
		tb.AllocatedHours += allocated
		tb.Members = append(tb.Members, MemberBandwidth{
			MemberID:          member.ID,
			Name:              member.Name,
			WeeklyCapacity:    weekly,
			AllocationPercent: entry.AllocationPercent,
			TotalHours:        total,
			AllocatedHours:    allocated,
			AvailableHours:    total - allocated,
		})
	}

	if tb.TotalHours > 0 {
		tb.UtilizationRate = tb.AllocatedHours / tb.TotalHours * 100
	}
	return tb
}

// ContributingAllocation is one commitment counted against a member in
// the over-allocation report.
type ContributingAllocation struct {
	WorkItemID   string  `json:"workItemId"`
	WorkItemName string  `json:"workItemName"`
	TeamID       string  `json:"teamId"`
	WeeklyHours  float64 `json:"weeklyHours"`
	TotalHours   float64 `json:"totalHours"`
}

// MemberLoad is a member's aggregate commitment across every team and
// work item they belong to.
type MemberLoad struct {
	MemberID          string                   `json:"memberId"`
	Name              string                   `json:"name"`
	EffectiveCapacity float64                  `json:"effectiveCapacity"`
	CommittedHours    float64                  `json:"committedHours"`
	IsOverAllocated   bool                     `json:"isOverAllocated"`
	Allocations       []ContributingAllocation `json:"allocations"`
}

// MemberLoads builds the global over-allocation report: unlike the
// per-team figures, commitments are summed across all teams, and a
// member exceeding their effective weekly capacity is flagged. Single
// writes never exceed 100% per team (the ledger clamps), so only this
// cross-team view can reveal over-commitment.
func (a *Aggregator) MemberLoads(ctx context.Context) ([]MemberLoad, error) {
	teams, err := a.store.ListNodes(ctx, graph.NodeTeam)
	if err != nil {
		return nil, err
	}

	loads := make(map[string]*MemberLoad)
	var order []string

	for _, node := range teams {
		team := TeamFromNode(node, a.logger)
		for _, entry := range team.Roster {
			member, ok := a.loadMember(ctx, entry.MemberID)
			if !ok {
				continue
			}

			load := loads[member.ID]
			if load == nil {
				load = &MemberLoad{
					MemberID:          member.ID,
					Name:              member.Name,
					EffectiveCapacity: WeeklyCapacity(member),
				}
				loads[member.ID] = load
				order = append(order, member.ID)
			}

			weekly := WeeklyCapacity(member)
			for _, wa := range entry.WorkAllocations {
				weeklyHours := wa.PercentOfDailyCapacity / 100 * weekly
				load.CommittedHours += weeklyHours
				load.Allocations = append(load.Allocations, ContributingAllocation{
					WorkItemID:   wa.WorkItemID,
					WorkItemName: a.workItemName(ctx, wa.WorkItemID),
					TeamID:       team.ID,
					WeeklyHours:  weeklyHours,
					TotalHours:   wa.TotalHours,
				})
			}
		}
	}

	out := make([]MemberLoad, 0, len(order))
	for _, id := range order {
		load := loads[id]
		load.IsOverAllocated = load.CommittedHours > load.EffectiveCapacity
		out = append(out, *load)
	}
	return out, nil
}

// ConnectedTeam is the allocation view-model for one team attached to
// a work item, with per-member available bandwidth for the allocation
// UI.
type ConnectedTeam struct {
	TeamID         string            `json:"teamId"`
	TeamName       string            `json:"teamName"`
	RequestedHours float64           `json:"requestedHours"`
	Members        []MemberBandwidth `json:"availableBandwidth"`
}

// ConnectedTeams builds the view-models for every team holding an
// allocation on the work item.
func (a *Aggregator) ConnectedTeams(ctx context.Context, workItemID string) ([]ConnectedTeam, error) {
	node, err := a.store.GetNode(ctx, workItemID)
	if err != nil {
		return nil, err
	}
	item := WorkItemFromNode(node, a.logger)

	out := make([]ConnectedTeam, 0, len(item.TeamAllocations))
	for _, ta := range item.TeamAllocations {
		teamNode, err := a.store.GetNode(ctx, ta.TeamID)
		if err != nil {
			if graph.IsNotFound(err) {
				a.logger.Debug("Allocation references missing team",
					zap.String("team_id", ta.TeamID),
					zap.String("work_item_id", workItemID))
				continue
			}
			return nil, err
		}
		team := TeamFromNode(teamNode, a.logger)
		tb := a.teamBandwidth(ctx, team)

		out = append(out, ConnectedTeam{
			TeamID:         team.ID,
			TeamName:       team.Name,
			RequestedHours: ta.RequestedHours,
			Members:        tb.Members,
		})
	}
	return out, nil
}

// MemberCost is one member's line in a work-item cost summary.
type MemberCost struct {
	MemberID string  `json:"memberId"`
	Hours    float64 `json:"hours"`
	Days     float64 `json:"days"`
	Cost     float64 `json:"cost"`
}

// CostSummary is the cost view-model for a work item.
type CostSummary struct {
	WorkItemID string       `json:"workItemId"`
	TotalCost  float64      `json:"totalCost"`
	TotalHours float64      `json:"totalHours"`
	TotalDays  float64      `json:"totalDays"`
	Members    []MemberCost `json:"members"`
}

// WorkItemCosts sums allocated-member costs across every team
// allocation on the work item.
func (a *Aggregator) WorkItemCosts(ctx context.Context, workItemID string) (*CostSummary, error) {
	node, err := a.store.GetNode(ctx, workItemID)
	if err != nil {
		return nil, err
	}
	item := WorkItemFromNode(node, a.logger)

	summary := &CostSummary{WorkItemID: item.ID, Members: []MemberCost{}}
	for _, ta := range item.TeamAllocations {
		for _, am := range ta.AllocatedMembers {
			days := DailyEquivalent(am.Hours, am.HoursPerDay)
			summary.TotalCost += am.Cost
			summary.TotalHours += am.Hours
			summary.TotalDays += days
			summary.Members = append(summary.Members, MemberCost{
				MemberID: am.MemberID,
				Hours:    am.Hours,
				Days:     days,
				Cost:     am.Cost,
			})
		}
	}
	return summary, nil
}

func (a *Aggregator) loadMember(ctx context.Context, memberID string) (*Member, bool) {
	node, err := a.store.GetNode(ctx, memberID)
	if err != nil {
		a.logger.Debug("Member missing from graph",
			zap.String("member_id", memberID), zap.Error(err))
		return nil, false
	}
	return MemberFromNode(node, a.logger), true
}

func (a *Aggregator) workItemName(ctx context.Context, workItemID string) string {
	node, err := a.store.GetNode(ctx, workItemID)
	if err != nil {
		return ""
	}
	return WorkItemFromNode(node, a.logger).Name
}
