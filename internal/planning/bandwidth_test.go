package planning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"roadmapper/internal/graph"
)

func newTestAggregator(t *testing.T) (*Aggregator, *Ledger, *graph.MemoryStore) {
	t.Helper()

	ledger, store := newTestLedger(t)
	return NewAggregator(store, zaptest.NewLogger(t)), ledger, store
}

// One member at 40h/week fully committed to the team, with one work
// allocation at 50% of daily capacity: utilization is 50%.
func TestTeamBandwidthUtilization(t *testing.T) {
	agg, ledger, store := newTestAggregator(t)
	ctx := context.Background()

	m1 := seedMember(t, store, "Ada", 8, 5, 400)
	teamID := seedTeam(t, store, "Platform")
	itemID := seedWorkItem(t, store, graph.NodeFeature, "Checkout", nil)
	linkMember(t, ledger, teamID, m1)

	// 40 hours over 10 working days puts the allocation at 50%, and
	// the roster percent follows it.
	_, err := ledger.RequestAllocation(ctx, itemID, teamID, 40, []string{m1}, &windowStart, &windowEnd)
	require.NoError(t, err)

	tb, err := agg.TeamBandwidth(ctx, teamID)
	require.NoError(t, err)

	require.Len(t, tb.Members, 1)
	assert.InDelta(t, 40, tb.Members[0].WeeklyCapacity, 0.001)
	assert.InDelta(t, 50, tb.UtilizationRate, 0.001)
	assert.Greater(t, tb.Members[0].AvailableHours, 0.0)
}

func TestTeamBandwidthEmptyRosterIsZero(t *testing.T) {
	agg, _, store := newTestAggregator(t)
	ctx := context.Background()

	teamID := seedTeam(t, store, "Platform")

	tb, err := agg.TeamBandwidth(ctx, teamID)
	require.NoError(t, err)
	assert.Zero(t, tb.TotalHours)
	assert.Zero(t, tb.UtilizationRate)
}

func TestTeamBandwidthSkipsDanglingMember(t *testing.T) {
	agg, ledger, store := newTestAggregator(t)
	ctx := context.Background()

	m1 := seedMember(t, store, "Ada", 8, 5, 400)
	teamID := seedTeam(t, store, "Platform")
	linkMember(t, ledger, teamID, m1)

	// Member node deleted while still referenced by the roster.
	require.NoError(t, store.DeleteNode(ctx, m1))

	tb, err := agg.TeamBandwidth(ctx, teamID)
	require.NoError(t, err)
	assert.Empty(t, tb.Members)
	assert.Zero(t, tb.TotalHours)
}

// A member holding 25 weekly hours on each of two work items (different
// teams) is over their 40-hour capacity and gets flagged.
func TestMemberLoadsOverAllocation(t *testing.T) {
	agg, ledger, store := newTestAggregator(t)
	ctx := context.Background()

	m1 := seedMember(t, store, "Ada", 8, 5, 400)
	teamA := seedTeam(t, store, "Platform")
	teamB := seedTeam(t, store, "Payments")
	wi1 := seedWorkItem(t, store, graph.NodeFeature, "Checkout", nil)
	wi2 := seedWorkItem(t, store, graph.NodeFeature, "Refunds", nil)
	linkMember(t, ledger, teamA, m1)
	linkMember(t, ledger, teamB, m1)

	// 50 hours over 10 working days is 62.5% of daily capacity, which
	// is 25 weekly hours against a 40-hour week, per team.
	_, err := ledger.RequestAllocation(ctx, wi1, teamA, 50, []string{m1}, &windowStart, &windowEnd)
	require.NoError(t, err)
	_, err = ledger.RequestAllocation(ctx, wi2, teamB, 50, []string{m1}, &windowStart, &windowEnd)
	require.NoError(t, err)

	loads, err := agg.MemberLoads(ctx)
	require.NoError(t, err)
	require.Len(t, loads, 1)

	load := loads[0]
	assert.Equal(t, m1, load.MemberID)
	assert.InDelta(t, 40, load.EffectiveCapacity, 0.001)
	assert.InDelta(t, 50, load.CommittedHours, 0.001)
	assert.True(t, load.IsOverAllocated)
	require.Len(t, load.Allocations, 2)
	for _, contrib := range load.Allocations {
		assert.InDelta(t, 25, contrib.WeeklyHours, 0.001)
		assert.NotEmpty(t, contrib.WorkItemName)
	}
}

func TestMemberLoadsWithinCapacityNotFlagged(t *testing.T) {
	agg, ledger, store := newTestAggregator(t)
	ctx := context.Background()

	m1 := seedMember(t, store, "Ada", 8, 5, 400)
	teamID := seedTeam(t, store, "Platform")
	itemID := seedWorkItem(t, store, graph.NodeFeature, "Checkout", nil)
	linkMember(t, ledger, teamID, m1)

	_, err := ledger.RequestAllocation(ctx, itemID, teamID, 40, []string{m1}, &windowStart, &windowEnd)
	require.NoError(t, err)

	loads, err := agg.MemberLoads(ctx)
	require.NoError(t, err)
	require.Len(t, loads, 1)
	assert.False(t, loads[0].IsOverAllocated)
	assert.InDelta(t, 20, loads[0].CommittedHours, 0.001)
}

func TestConnectedTeamsViewModel(t *testing.T) {
	agg, ledger, store := newTestAggregator(t)
	ctx := context.Background()

	m1 := seedMember(t, store, "Ada", 8, 5, 400)
	teamID := seedTeam(t, store, "Platform")
	itemID := seedWorkItem(t, store, graph.NodeFeature, "Checkout", nil)
	linkMember(t, ledger, teamID, m1)

	_, err := ledger.RequestAllocation(ctx, itemID, teamID, 40, []string{m1}, &windowStart, &windowEnd)
	require.NoError(t, err)

	teams, err := agg.ConnectedTeams(ctx, itemID)
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Equal(t, teamID, teams[0].TeamID)
	assert.Equal(t, "Platform", teams[0].TeamName)
	assert.InDelta(t, 40, teams[0].RequestedHours, 0.001)
	require.Len(t, teams[0].Members, 1)
}

func TestWorkItemCosts(t *testing.T) {
	agg, ledger, store := newTestAggregator(t)
	ctx := context.Background()

	m1 := seedMember(t, store, "Ada", 8, 5, 400)
	m2 := seedMember(t, store, "Grace", 8, 5, 300)
	teamID := seedTeam(t, store, "Platform")
	itemID := seedWorkItem(t, store, graph.NodeFeature, "Checkout", nil)
	linkMember(t, ledger, teamID, m1)
	linkMember(t, ledger, teamID, m2)

	_, err := ledger.RequestAllocation(ctx, itemID, teamID, 80, []string{m1, m2}, &windowStart, &windowEnd)
	require.NoError(t, err)

	summary, err := agg.WorkItemCosts(ctx, itemID)
	require.NoError(t, err)

	// 40 hours each: (40/8)*400 + (40/8)*300.
	assert.InDelta(t, 3500, summary.TotalCost, 0.001)
	assert.InDelta(t, 80, summary.TotalHours, 0.001)
	assert.InDelta(t, 10, summary.TotalDays, 0.001)
	require.Len(t, summary.Members, 2)
}
