package planning

import (
	"go.uber.org/zap"
)

// Provider cost-model discriminators.
const (
	CostTypeFixed        = "fixed"
	CostTypePerUnit      = "per_unit"
	CostTypeRevenueShare = "revenue_share"
	CostTypeTiered       = "tiered"
)

// Cost prices hours of a member's time at their daily rate.
func Cost(hours, hoursPerDay, dailyRate float64) float64 {
	return DailyEquivalent(hours, hoursPerDay) * dailyRate
}

// ProviderMonthlyCost normalizes one provider cost model to a monthly
// figure. Unknown cost types contribute zero and are logged, never an
// error.
func ProviderMonthlyCost(pc ProviderCost, logger *zap.Logger) float64 {
	switch pc.CostType {
	case CostTypeFixed:
		if pc.BillingPeriod == "annual" {
			return pc.Amount / 12
		}
		return pc.Amount

	case CostTypePerUnit:
		units := pc.EstimatedUnits
		if pc.MinimumUnits > units {
			units = pc.MinimumUnits
		}
		if pc.MaximumUnits != nil && units > *pc.MaximumUnits {
			units = *pc.MaximumUnits
		}
		return pc.UnitPrice * units

	case CostTypeRevenueShare:
		share := pc.Percentage / 100 * pc.MonthlyVolume
		if share < pc.MinimumMonthly {
			return pc.MinimumMonthly
		}
		return share

	case CostTypeTiered:
		// Only the floor is priced; marginal tier pricing against
		// actual volume is a follow-on.
		return pc.MinimumMonthly

	default:
		logger.Warn("Unknown provider cost type, contributing zero",
			zap.String("cost_type", pc.CostType))
		return 0
	}
}

// ProviderMonthlyCosts sums all cost models on a provider node.
func ProviderMonthlyCosts(costs []ProviderCost, logger *zap.Logger) float64 {
	var total float64
	for _, pc := range costs {
		total += ProviderMonthlyCost(pc, logger)
	}
	return total
}

// OptionMonthlyValue derives an option's monthly value from its
// transaction economics.
func OptionMonthlyValue(transactionFeeRate, monthlyVolume float64) float64 {
	return transactionFeeRate / 100 * monthlyVolume
}
