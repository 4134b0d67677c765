package planning

// Schedule defaults applied when a member's attributes are missing or
// zero.
const (
	DefaultHoursPerDay  = 8.0
	DefaultDaysPerWeek  = 5.0
	DefaultDurationDays = 10

	// durationPadding approximates calendar days from business days
	// when a work item has a duration but no explicit end date.
	durationPadding = 1.4
)

// effectiveHoursPerDay returns h, or the default when h is not
// positive.
func effectiveHoursPerDay(h float64) float64 {
	if h <= 0 {
		return DefaultHoursPerDay
	}
	return h
}

// effectiveDaysPerWeek returns d, or the default when d is not
// positive.
func effectiveDaysPerWeek(d float64) float64 {
	if d <= 0 {
		return DefaultDaysPerWeek
	}
	return d
}

// WeeklyCapacity derives a member's usable hours per week.
func WeeklyCapacity(m *Member) float64 {
	return effectiveHoursPerDay(m.HoursPerDay) * effectiveDaysPerWeek(m.DaysPerWeek)
}

// DailyEquivalent converts hours of work into person-days at the given
// working-day length.
func DailyEquivalent(hours, hoursPerDay float64) float64 {
	return hours / effectiveHoursPerDay(hoursPerDay)
}
