package planning

import (
	"context"

	"go.uber.org/zap"

	"roadmapper/internal/graph"
)

// Milestone statuses the rollup derives. The persisted status may be a
// manual override, which the rollup reports but never contests.
const (
	StatusPlanning   = "planning"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusActive     = "active"
)

// MilestoneMetrics is the derived summary for one milestone. Nothing
// here is persisted; it is recomputed from connected work items on
// every read.
type MilestoneMetrics struct {
	MilestoneID     string         `json:"milestoneId"`
	TotalCost       float64        `json:"totalCost"`
	MonthlyValue    float64        `json:"monthlyValue"`
	NodeCount       int            `json:"nodeCount"`
	CompletedCount  int            `json:"completedCount"`
	StatusCounts    map[string]int `json:"statusCounts"`
	IsComplete      bool           `json:"isComplete"`
	SuggestedStatus string         `json:"suggestedStatus"`
}

// Rollup walks milestone containment edges and aggregates cost, value,
// and completion figures across the connected work items.
type Rollup struct {
	store  graph.Store
	logger *zap.Logger
}

// NewRollup creates a rollup over the given store.
func NewRollup(store graph.Store, logger *zap.Logger) *Rollup {
	return &Rollup{store: store, logger: logger}
}

// MilestoneMetrics aggregates every work item connected to the
// milestone. Work items missing from the graph are skipped.
func (r *Rollup) MilestoneMetrics(ctx context.Context, milestoneID string) (*MilestoneMetrics, error) {
	edges, err := r.store.GetEdges(ctx, milestoneID, graph.EdgeContains)
	if err != nil {
		return nil, err
	}

	metrics := &MilestoneMetrics{
		MilestoneID:  milestoneID,
		StatusCounts: make(map[string]int),
	}

	for _, edge := range edges {
		itemID := edge.To
		if itemID == milestoneID {
			itemID = edge.From
		}

		node, err := r.store.GetNode(ctx, itemID)
		if err != nil {
			if graph.IsNotFound(err) {
				r.logger.Debug("Milestone references missing work item",
					zap.String("milestone_id", milestoneID),
					zap.String("work_item_id", itemID))
				continue
			}
			return nil, err
		}
		if !graph.IsWorkItemType(node.Type) {
			continue
		}
		item := WorkItemFromNode(node, r.logger)

		metrics.NodeCount++
		metrics.StatusCounts[item.Status]++
		if item.Status == StatusCompleted || item.Status == StatusActive {
			metrics.CompletedCount++
		}

		// Team costs: the allocated-member entries already carry the
		// cost the ledger derived at assignment time.
		for _, ta := range item.TeamAllocations {
			for _, am := range ta.AllocatedMembers {
				metrics.TotalCost += am.Cost
			}
		}

		switch item.Type {
		case graph.NodeProvider:
			metrics.TotalCost += ProviderMonthlyCosts(item.Costs, r.logger)
		case graph.NodeOption:
			metrics.MonthlyValue += OptionMonthlyValue(item.TransactionFeeRate, item.MonthlyVolume)
		}
	}

	metrics.IsComplete = metrics.NodeCount > 0 && metrics.CompletedCount == metrics.NodeCount
	metrics.SuggestedStatus = suggestStatus(metrics.NodeCount, metrics.CompletedCount)
	return metrics, nil
}

// suggestStatus maps completion progress to a milestone status. The
// suggestion is one-way: the UI may override it manually.
func suggestStatus(nodeCount, completedCount int) string {
	switch {
	case nodeCount == 0 || completedCount == 0:
		return StatusPlanning
	case completedCount < nodeCount:
		return StatusInProgress
	default:
		return StatusCompleted
	}
}
