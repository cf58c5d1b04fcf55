// Package stats derives multi-day statistics from completed sessions.
//
// Every function takes the reference time explicitly so one call observes a
// single consistent "today", even if it runs across midnight.
package stats

import (
	"fmt"
	"math"
	"sort"
	"time"

	"zenfocus/internal/types"
)

// BucketScoreMode selects how a daily bucket combines session scores
type BucketScoreMode string

const (
	// BucketScoreRunning folds each scored session in as round((prev+score)/2),
	// starting from 0. The result depends on session order.
	BucketScoreRunning BucketScoreMode = "running"
	// BucketScoreWeighted uses the mean of the day's session scores
	BucketScoreWeighted BucketScoreMode = "weighted"
)

// ParseBucketScoreMode validates a mode name
func ParseBucketScoreMode(value string) (BucketScoreMode, error) {
	switch mode := BucketScoreMode(value); mode {
	case BucketScoreRunning, BucketScoreWeighted:
		return mode, nil
	case "":
		return BucketScoreRunning, nil
	default:
		return "", fmt.Errorf("unknown bucket score mode %q", value)
	}
}

// Aggregator computes statistics in one time zone
type Aggregator struct {
	loc  *time.Location
	mode BucketScoreMode
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithLocation sets the zone used to assign sessions to calendar days
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.loc = loc
		}
	}
}

// WithBucketScoreMode sets how daily bucket scores are combined
func WithBucketScoreMode(mode BucketScoreMode) Option {
	return func(a *Aggregator) {
		if mode != "" {
			a.mode = mode
		}
	}
}

// NewAggregator creates an aggregator using local time and running bucket scores by default
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{loc: time.Local, mode: BucketScoreRunning}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Location returns the aggregator's time zone
func (a *Aggregator) Location() *time.Location {
	return a.loc
}

// day truncates t to midnight of its calendar day in the aggregator's zone
func (a *Aggregator) day(t time.Time) time.Time {
	t = t.In(a.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, a.loc)
}

// completed filters to completed sessions
func completed(sessions []types.Session) []types.Session {
	out := make([]types.Session, 0, len(sessions))
	for _, s := range sessions {
		if s.Status == types.SessionCompleted {
			out = append(out, s)
		}
	}
	return out
}

// UserStats computes totals, today's focus time and streaks as of now
func (a *Aggregator) UserStats(sessions []types.Session, now time.Time) types.UserStats {
	sessions = completed(sessions)
	today := a.day(now)

	var stats types.UserStats
	var scoreSum, scored int
	for _, s := range sessions {
		stats.TotalFocusMinutes += s.TotalFocusMinutes
		stats.TotalSessions++
		if s.ProductivityScore != nil {
			scoreSum += *s.ProductivityScore
			scored++
		}
		if a.day(s.StartTime).Equal(today) {
			stats.TodayFocusMinutes += s.TotalFocusMinutes
		}
		if stats.LastSessionDate == nil || s.StartTime.After(*stats.LastSessionDate) {
			last := s.StartTime
			stats.LastSessionDate = &last
		}
	}
	if scored > 0 {
		stats.AverageProductivityScore = roundDiv(scoreSum, scored)
	}
	stats.Streaks = a.streaks(sessions, today)
	return stats
}

// DailyBuckets returns one bucket per calendar day in r, oldest first.
// Days without sessions get zero buckets. Sessions outside r are ignored.
func (a *Aggregator) DailyBuckets(sessions []types.Session, r types.DateRange) []types.DailyAggregate {
	from, to := a.day(r.From), a.day(r.To)
	if to.Before(from) {
		return []types.DailyAggregate{}
	}

	var buckets []types.DailyAggregate
	index := make(map[time.Time]int)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		index[d] = len(buckets)
		buckets = append(buckets, types.DailyAggregate{Date: d})
	}

	scores := make(map[int][]int)
	for _, s := range completed(sessions) {
		i, ok := index[a.day(s.StartTime)]
		if !ok {
			continue
		}
		b := &buckets[i]
		b.FocusMinutes += s.TotalFocusMinutes
		b.DistractedMinutes += s.TotalDistractedMinutes
		b.SessionsCount++
		if s.ProductivityScore != nil {
			scores[i] = append(scores[i], *s.ProductivityScore)
		}
	}

	for i, list := range scores {
		buckets[i].ProductivityScore = a.combine(list)
	}
	return buckets
}

// combine folds session scores for one bucket in arrival order. The running
// mode starts from 0, so a lone session scoring 80 yields a bucket score of 40.
func (a *Aggregator) combine(scores []int) int {
	if a.mode == BucketScoreWeighted {
		sum := 0
		for _, s := range scores {
			sum += s
		}
		return roundDiv(sum, len(scores))
	}
	prev := 0
	for _, s := range scores {
		prev = roundDiv(prev+s, 2)
	}
	return prev
}

// Streaks computes current and longest streaks as of now
func (a *Aggregator) Streaks(sessions []types.Session, now time.Time) types.StreakState {
	return a.streaks(completed(sessions), a.day(now))
}

func (a *Aggregator) streaks(sessions []types.Session, today time.Time) types.StreakState {
	present := make(map[time.Time]bool)
	for _, s := range sessions {
		present[a.day(s.StartTime)] = true
	}
	if len(present) == 0 {
		return types.StreakState{}
	}

	var state types.StreakState

	cursor := today
	if !present[cursor] {
		cursor = cursor.AddDate(0, 0, -1)
	}
	for present[cursor] {
		state.CurrentStreak++
		cursor = cursor.AddDate(0, 0, -1)
	}

	dates := make([]time.Time, 0, len(present))
	for d := range present {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })

	run := 1
	state.LongestStreak = 1
	for i := 1; i < len(dates); i++ {
		if dates[i].AddDate(0, 0, 1).Equal(dates[i-1]) {
			run++
		} else {
			run = 1
		}
		state.LongestStreak = max(state.LongestStreak, run)
	}
	return state
}

// WeeklySummary covers the seven calendar days ending today
func (a *Aggregator) WeeklySummary(sessions []types.Session, now time.Time) types.WeeklySummary {
	today := a.day(now)
	buckets := a.DailyBuckets(sessions, types.DateRange{From: today.AddDate(0, 0, -6), To: today})

	summary := types.WeeklySummary{Days: make([]types.WeekdaySummary, 0, len(buckets))}
	for _, b := range buckets {
		summary.Days = append(summary.Days, types.WeekdaySummary{
			Date:         b.Date,
			DayName:      b.Date.Format("Mon"),
			FocusMinutes: b.FocusMinutes,
			Sessions:     b.SessionsCount,
		})
	}

	window := types.DateRange{From: today.AddDate(0, 0, -6), To: today}
	var scoreSum, scored int
	for _, s := range completed(sessions) {
		if !window.Contains(s.StartTime.In(a.loc)) {
			continue
		}
		summary.TotalFocusMinutes += s.TotalFocusMinutes
		summary.TotalSessions++
		if s.ProductivityScore != nil {
			scoreSum += *s.ProductivityScore
			scored++
		}
	}
	if scored > 0 {
		summary.AverageScore = roundDiv(scoreSum, scored)
	}
	return summary
}

// RecentSessions returns up to n completed sessions, newest first, with display labels
func (a *Aggregator) RecentSessions(sessions []types.Session, now time.Time, n int) []types.RecentSession {
	list := completed(sessions)
	sort.SliceStable(list, func(i, j int) bool { return list[i].StartTime.After(list[j].StartTime) })
	if n >= 0 && len(list) > n {
		list = list[:n]
	}

	today := a.day(now)
	yesterday := today.AddDate(0, 0, -1)
	out := make([]types.RecentSession, 0, len(list))
	for _, s := range list {
		d := a.day(s.StartTime)
		label := d.Format("Mon, Jan 2")
		switch {
		case d.Equal(today):
			label = "Today"
		case d.Equal(yesterday):
			label = "Yesterday"
		}
		score := 0
		if s.ProductivityScore != nil {
			score = *s.ProductivityScore
		}
		out = append(out, types.RecentSession{
			ID:                s.ID,
			Date:              d,
			DisplayDate:       label,
			FocusMinutes:      s.TotalFocusMinutes,
			DistractedMinutes: s.TotalDistractedMinutes,
			Score:             score,
		})
	}
	return out
}

func roundDiv(sum, n int) int {
	return int(math.Round(float64(sum) / float64(n)))
}
