package types

import "time"

// DateRange is an inclusive range of calendar days
type DateRange struct {
	From time.Time `json:"from" yaml:"from"`
	To   time.Time `json:"to" yaml:"to"`
}

// Bounds returns the half-open instant interval [start, end) covered by the range
func (r DateRange) Bounds() (time.Time, time.Time) {
	from := time.Date(r.From.Year(), r.From.Month(), r.From.Day(), 0, 0, 0, 0, r.From.Location())
	to := time.Date(r.To.Year(), r.To.Month(), r.To.Day(), 0, 0, 0, 0, r.To.Location()).AddDate(0, 0, 1)
	return from, to
}

// Contains reports whether t falls within the range, treating To as the end of its day
func (r DateRange) Contains(t time.Time) bool {
	from, to := r.Bounds()
	return !t.Before(from) && t.Before(to)
}

// DailyAggregate summarizes one calendar day. It is always derived from sessions.
type DailyAggregate struct {
	Date              time.Time `json:"date" yaml:"date"`
	FocusMinutes      int       `json:"focusMinutes" yaml:"focusMinutes"`
	DistractedMinutes int       `json:"distractedMinutes" yaml:"distractedMinutes"`
	SessionsCount     int       `json:"sessionsCount" yaml:"sessionsCount"`
	ProductivityScore int       `json:"productivityScore" yaml:"productivityScore"`
}

// StreakState holds consecutive-day counts
type StreakState struct {
	CurrentStreak int `json:"currentStreak" yaml:"currentStreak"`
	LongestStreak int `json:"longestStreak" yaml:"longestStreak"`
}

// UserStats is the aggregate view over a user's history
type UserStats struct {
	TotalFocusMinutes        int         `json:"totalFocusMinutes" yaml:"totalFocusMinutes"`
	TotalSessions            int         `json:"totalSessions" yaml:"totalSessions"`
	AverageProductivityScore int         `json:"averageProductivityScore" yaml:"averageProductivityScore"`
	TodayFocusMinutes        int         `json:"todayFocusMinutes" yaml:"todayFocusMinutes"`
	Streaks                  StreakState `json:"streaks" yaml:"streaks"`
	LastSessionDate          *time.Time  `json:"lastSessionDate,omitempty" yaml:"lastSessionDate,omitempty"`
}

// WeekdaySummary is one day of the weekly summary
type WeekdaySummary struct {
	Date         time.Time `json:"date" yaml:"date"`
	DayName      string    `json:"dayName" yaml:"dayName"`
	FocusMinutes int       `json:"focusMinutes" yaml:"focusMinutes"`
	Sessions     int       `json:"sessions" yaml:"sessions"`
}

// WeeklySummary covers the last seven calendar days, oldest first
type WeeklySummary struct {
	Days              []WeekdaySummary `json:"days" yaml:"days"`
	TotalFocusMinutes int              `json:"totalFocusMinutes" yaml:"totalFocusMinutes"`
	TotalSessions     int              `json:"totalSessions" yaml:"totalSessions"`
	AverageScore      int              `json:"averageScore" yaml:"averageScore"`
}

// RecentSession is a display-ready summary of one completed session
type RecentSession struct {
	ID                string    `json:"id" yaml:"id"`
	Date              time.Time `json:"date" yaml:"date"`
	DisplayDate       string    `json:"displayDate" yaml:"displayDate"`
	FocusMinutes      int       `json:"focusMinutes" yaml:"focusMinutes"`
	DistractedMinutes int       `json:"distractedMinutes" yaml:"distractedMinutes"`
	Score             int       `json:"score" yaml:"score"`
}
