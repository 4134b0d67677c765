package planning

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"roadmapper/internal/graph"
)

// Ledger is the canonical writer of work allocations. Every change to
// "how much of member M's time, for team T, goes to work item W" flows
// through here, and always lands on both denormalized projections: the
// team's roster and the work item's teamAllocations. No other code
// writes either field.
type Ledger struct {
	store  graph.Store
	queue  *WriteQueue
	logger *zap.Logger
	now    func() time.Time
}

// NewLedger creates a ledger writing through the given queue.
func NewLedger(store graph.Store, queue *WriteQueue, logger *zap.Logger) *Ledger {
	return &Ledger{
		store:  store,
		queue:  queue,
		logger: logger,
		now:    time.Now,
	}
}

// AllocationResult carries the updated in-memory projections. Both
// views are consistent the moment the call returns, regardless of when
// the debounced persistence writes land.
type AllocationResult struct {
	Team     *Team     `json:"team"`
	WorkItem *WorkItem `json:"workItem"`
}

// assignment is the single value object behind both projections. One
// assignment is applied to the roster view and the work-item view by
// the two appliers below; neither view is ever mutated independently.
type assignment struct {
	teamID     string
	workItemID string
	memberID   string

	hours       float64
	percent     float64 // of the member's daily capacity, clamped [0,100]
	hoursPerDay float64
	start, end  time.Time
	cost        float64
}

// applyToRoster upserts the assignment into the member's roster entry
// and re-derives the entry's overall allocation percent, capped at 100.
func applyToRoster(entry *RosterEntry, a assignment) {
	wa := WorkAllocation{
		WorkItemID:             a.workItemID,
		PercentOfDailyCapacity: a.percent,
		StartDate:              timePtr(a.start),
		EndDate:                timePtr(a.end),
		TotalHours:             a.hours,
	}

	replaced := false
	for i := range entry.WorkAllocations {
		if entry.WorkAllocations[i].WorkItemID == a.workItemID {
			entry.WorkAllocations[i] = wa
			replaced = true
			break
		}
	}
	if !replaced {
		entry.WorkAllocations = append(entry.WorkAllocations, wa)
	}

	entry.AllocationPercent = rosterPercent(entry)
}

// applyToWorkItem mirrors the assignment into the work item's
// allocation entry for the team, preserving members not part of this
// assignment, and re-derives requestedHours as the sum of member hours.
func applyToWorkItem(w *WorkItem, a assignment) {
	ta := findTeamAllocation(w, a.teamID)
	if ta == nil {
		w.TeamAllocations = append(w.TeamAllocations, TeamAllocation{TeamID: a.teamID})
		ta = &w.TeamAllocations[len(w.TeamAllocations)-1]
	}

	am := AllocatedMember{
		MemberID:    a.memberID,
		Hours:       a.hours,
		HoursPerDay: a.hoursPerDay,
		StartDate:   timePtr(a.start),
		EndDate:     timePtr(a.end),
		Cost:        a.cost,
	}

	replaced := false
	for i := range ta.AllocatedMembers {
		if ta.AllocatedMembers[i].MemberID == a.memberID {
			ta.AllocatedMembers[i] = am
			replaced = true
			break
		}
	}
	if !replaced {
		ta.AllocatedMembers = append(ta.AllocatedMembers, am)
	}

	ta.RequestedHours = requestedHours(ta)
}

// rosterPercent sums a roster entry's work allocations, capped at 100.
func rosterPercent(entry *RosterEntry) float64 {
	var sum float64
	for _, wa := range entry.WorkAllocations {
		sum += wa.PercentOfDailyCapacity
	}
	return math.Min(100, sum)
}

// requestedHours sums the member hours on one team allocation.
func requestedHours(ta *TeamAllocation) float64 {
	var sum float64
	for _, am := range ta.AllocatedMembers {
		sum += am.Hours
	}
	return sum
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// resolveRange determines the effective date range of an allocation:
// explicit caller dates, then the work item's stored dates, then a
// window derived from its duration (default 10 days) starting today,
// padded to approximate business days.
func (l *Ledger) resolveRange(w *WorkItem, start, end *time.Time) (time.Time, time.Time) {
	var s time.Time
	switch {
	case start != nil:
		s = *start
	case w.StartDate != nil:
		s = *w.StartDate
	default:
		s = l.now()
	}

	var e time.Time
	switch {
	case end != nil:
		e = *end
	case w.EndDate != nil && start == nil:
		e = *w.EndDate
	default:
		duration := w.Duration
		if duration <= 0 {
			duration = DefaultDurationDays
		}
		calendarDays := float64(duration) * durationPadding
		e = s.Add(time.Duration(calendarDays * 24 * float64(time.Hour)))
	}

	if e.Before(s) {
		e = s
	}
	return s, e
}

// workingDays scales a calendar range by a member's working week. A
// degenerate range counts as one day so the percent math never divides
// by zero.
func workingDays(start, end time.Time, daysPerWeek float64) float64 {
	rangeDays := end.Sub(start).Hours() / 24
	wd := math.Round(rangeDays * effectiveDaysPerWeek(daysPerWeek) / 7)
	if wd < 1 {
		return 1
	}
	return wd
}

// buildAssignment computes the per-member allocation math: working
// days from the date range, percent of daily capacity clamped to
// [0,100], and cost at the member's daily rate.
func (l *Ledger) buildAssignment(teamID string, w *WorkItem, m *Member, hours float64, start, end time.Time) assignment {
	hpd := effectiveHoursPerDay(m.HoursPerDay)
	wd := workingDays(start, end, m.DaysPerWeek)

	percent := hours / wd / hpd * 100
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}

	return assignment{
		teamID:      teamID,
		workItemID:  w.ID,
		memberID:    m.ID,
		hours:       hours,
		percent:     percent,
		hoursPerDay: hpd,
		start:       start,
		end:         end,
		cost:        Cost(hours, hpd, m.DailyRate),
	}
}

// loadPair fetches the team and work item for an allocation operation.
// A missing node on either side makes the whole operation a silent
// no-op: the canvas may reference nodes mid-deletion.
func (l *Ledger) loadPair(ctx context.Context, teamID, workItemID string) (*Team, *WorkItem, bool, error) {
	teamNode, err := l.store.GetNode(ctx, teamID)
	if err != nil {
		if graph.IsNotFound(err) {
			l.logger.Debug("Allocation target team missing, skipping",
				zap.String("team_id", teamID))
			return nil, nil, false, nil
		}
		return nil, nil, false, err
	}

	itemNode, err := l.store.GetNode(ctx, workItemID)
	if err != nil {
		if graph.IsNotFound(err) {
			l.logger.Debug("Allocation target work item missing, skipping",
				zap.String("work_item_id", workItemID))
			return nil, nil, false, nil
		}
		return nil, nil, false, err
	}

	return TeamFromNode(teamNode, l.logger), WorkItemFromNode(itemNode, l.logger), true, nil
}

// persistPair enqueues both projections. Two separate records, two
// separate writes, no cross-record transaction: a partial failure
// leaves the projections diverged until a later save reconverges them,
// which the error handler surfaces as a save-failed notification.
func (l *Ledger) persistPair(team *Team, w *WorkItem) {
	l.queue.Enqueue(team.ID, "roster", rosterField(team))
	l.queue.Enqueue(w.ID, "teamAllocations", teamAllocationsField(w))
}

// RequestAllocation distributes requestedHours evenly across the named
// members and records the result on both projections. Members missing
// from the graph or from the team's roster are skipped. An empty
// member list is a no-op.
func (l *Ledger) RequestAllocation(ctx context.Context, workItemID, teamID string, requestedHours float64, memberIDs []string, start, end *time.Time) (*AllocationResult, error) {
	if len(memberIDs) == 0 {
		return nil, nil
	}

	team, item, ok, err := l.loadPair(ctx, teamID, workItemID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	rangeStart, rangeEnd := l.resolveRange(item, start, end)
	hoursPerMember := requestedHours / float64(len(memberIDs))

	applied := 0
	for _, memberID := range memberIDs {
		member, ok := l.loadMember(ctx, memberID)
		if !ok {
			continue
		}

		entry := findRosterEntry(team, memberID)
		if entry == nil {
			l.logger.Warn("Member not on team roster, skipping allocation",
				zap.String("member_id", memberID),
				zap.String("team_id", teamID))
			continue
		}

		a := l.buildAssignment(teamID, item, member, hoursPerMember, rangeStart, rangeEnd)
		applyToRoster(entry, a)
		applyToWorkItem(item, a)
		applied++
	}

	if applied == 0 {
		return &AllocationResult{Team: team, WorkItem: item}, nil
	}

	l.persistPair(team, item)

	l.logger.Info("Allocation requested",
		zap.String("work_item_id", workItemID),
		zap.String("team_id", teamID),
		zap.Float64("requested_hours", requestedHours),
		zap.Int("members", applied))

	return &AllocationResult{Team: team, WorkItem: item}, nil
}

// UpdateMemberAllocation reworks one member's hours on one work item.
// This is the incremental path behind slider edits.
func (l *Ledger) UpdateMemberAllocation(ctx context.Context, teamID, workItemID, memberID string, hours float64, start, end *time.Time) (*AllocationResult, error) {
	team, item, ok, err := l.loadPair(ctx, teamID, workItemID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	member, ok := l.loadMember(ctx, memberID)
	if !ok {
		return nil, nil
	}

	entry := findRosterEntry(team, memberID)
	if entry == nil {
		l.logger.Warn("Member not on team roster, skipping allocation",
			zap.String("member_id", memberID),
			zap.String("team_id", teamID))
		return nil, nil
	}

	rangeStart, rangeEnd := l.resolveRange(item, start, end)
	a := l.buildAssignment(teamID, item, member, hours, rangeStart, rangeEnd)
	applyToRoster(entry, a)
	applyToWorkItem(item, a)

	l.persistPair(team, item)

	return &AllocationResult{Team: team, WorkItem: item}, nil
}

// RemoveMemberAllocation deletes one member's commitment to one work
// item from both projections. Emptying a team allocation's member list
// this way removes the whole entry.
func (l *Ledger) RemoveMemberAllocation(ctx context.Context, teamID, workItemID, memberID string) (*AllocationResult, error) {
	team, item, ok, err := l.loadPair(ctx, teamID, workItemID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	if entry := findRosterEntry(team, memberID); entry != nil {
		kept := entry.WorkAllocations[:0]
		for _, wa := range entry.WorkAllocations {
			if wa.WorkItemID != workItemID {
				kept = append(kept, wa)
			}
		}
		entry.WorkAllocations = kept
		entry.AllocationPercent = rosterPercent(entry)
	}

	if ta := findTeamAllocation(item, teamID); ta != nil {
		kept := ta.AllocatedMembers[:0]
		for _, am := range ta.AllocatedMembers {
			if am.MemberID != memberID {
				kept = append(kept, am)
			}
		}
		ta.AllocatedMembers = kept
		ta.RequestedHours = requestedHours(ta)

		if len(ta.AllocatedMembers) == 0 {
			remaining := item.TeamAllocations[:0]
			for _, t := range item.TeamAllocations {
				if t.TeamID != teamID {
					remaining = append(remaining, t)
				}
			}
			item.TeamAllocations = remaining
		}
	}

	l.persistPair(team, item)

	l.logger.Info("Allocation removed",
		zap.String("work_item_id", workItemID),
		zap.String("team_id", teamID),
		zap.String("member_id", memberID))

	return &AllocationResult{Team: team, WorkItem: item}, nil
}

// OnMemberLinked bootstraps a zero-allocation roster entry when a
// team↔member edge is created. Idempotent: an existing entry is kept.
func (l *Ledger) OnMemberLinked(ctx context.Context, teamID, memberID, role string) error {
	teamNode, err := l.store.GetNode(ctx, teamID)
	if err != nil {
		if graph.IsNotFound(err) {
			return nil
		}
		return err
	}
	team := TeamFromNode(teamNode, l.logger)

	if findRosterEntry(team, memberID) != nil {
		return nil
	}

	start := l.now()
	team.Roster = append(team.Roster, RosterEntry{
		MemberID:          memberID,
		AllocationPercent: 0,
		Role:              role,
		StartDate:         &start,
	})

	l.queue.Enqueue(team.ID, "roster", rosterField(team))
	return nil
}

// OnMemberUnlinked removes the member's roster entry when the
// team↔member edge is deleted and cascades removal of their
// allocations from every work item the entry referenced.
func (l *Ledger) OnMemberUnlinked(ctx context.Context, teamID, memberID string) error {
	teamNode, err := l.store.GetNode(ctx, teamID)
	if err != nil {
		if graph.IsNotFound(err) {
			return nil
		}
		return err
	}
	team := TeamFromNode(teamNode, l.logger)

	entry := findRosterEntry(team, memberID)
	if entry == nil {
		return nil
	}
	cascade := append([]WorkAllocation(nil), entry.WorkAllocations...)

	kept := team.Roster[:0]
	for _, e := range team.Roster {
		if e.MemberID != memberID {
			kept = append(kept, e)
		}
	}
	team.Roster = kept
	l.queue.Enqueue(team.ID, "roster", rosterField(team))

	for _, wa := range cascade {
		itemNode, err := l.store.GetNode(ctx, wa.WorkItemID)
		if err != nil {
			if graph.IsNotFound(err) {
				continue
			}
			return err
		}
		item := WorkItemFromNode(itemNode, l.logger)

		ta := findTeamAllocation(item, teamID)
		if ta == nil {
			continue
		}
		keptMembers := ta.AllocatedMembers[:0]
		for _, am := range ta.AllocatedMembers {
			if am.MemberID != memberID {
				keptMembers = append(keptMembers, am)
			}
		}
		ta.AllocatedMembers = keptMembers
		ta.RequestedHours = requestedHours(ta)

		if len(ta.AllocatedMembers) == 0 {
			remaining := item.TeamAllocations[:0]
			for _, t := range item.TeamAllocations {
				if t.TeamID != teamID {
					remaining = append(remaining, t)
				}
			}
			item.TeamAllocations = remaining
		}

		l.queue.Enqueue(item.ID, "teamAllocations", teamAllocationsField(item))
	}

	l.logger.Info("Roster entry removed",
		zap.String("team_id", teamID),
		zap.String("member_id", memberID),
		zap.Int("cascaded_work_items", len(cascade)))
	return nil
}

// loadMember fetches and decodes a member, reporting false when the
// node is missing (the allocation simply skips that member).
func (l *Ledger) loadMember(ctx context.Context, memberID string) (*Member, bool) {
	node, err := l.store.GetNode(ctx, memberID)
	if err != nil {
		l.logger.Debug("Member missing, skipping",
			zap.String("member_id", memberID), zap.Error(err))
		return nil, false
	}
	return MemberFromNode(node, l.logger), true
}
