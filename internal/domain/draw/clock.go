package draw

import (
	"fmt"
	"time"
)

const (
	DefaultTimezone       = "Asia/Seoul"
	DefaultReferenceRound = 1179
	DefaultWaitingWindow  = 15 * time.Minute
	DefaultRetryWindow    = 2 * time.Hour
)

type DrawState string

const (
	StatePending    DrawState = "pending"
	StateInProgress DrawState = "in-progress"
	StateCompleted  DrawState = "completed"
)

// Schedule describes when draws happen. All calendar math runs in Location,
// independent of the host timezone.
type Schedule struct {
	Location       *time.Location
	Weekday        time.Weekday
	Hour           int
	Minute         int
	WaitingWindow  time.Duration
	RetryWindow    time.Duration
	ReferenceRound int
	ReferenceDate  time.Time
}

// NextDrawInfo describes the upcoming draw relative to a point in time.
type NextDrawInfo struct {
	Round     int
	DrawAt    time.Time
	Remaining time.Duration
	State     DrawState
}

func DefaultSchedule() Schedule {
	loc := LoadLocation(DefaultTimezone)
	return Schedule{
		Location:       loc,
		Weekday:        time.Saturday,
		Hour:           20,
		Minute:         35,
		WaitingWindow:  DefaultWaitingWindow,
		RetryWindow:    DefaultRetryWindow,
		ReferenceRound: DefaultReferenceRound,
		ReferenceDate:  time.Date(2025, time.July, 5, 0, 0, 0, 0, loc),
	}
}

// LoadLocation resolves a named zone. Asia/Seoul has no DST, so a fixed
// offset is an exact stand-in when the host lacks tzdata.
func LoadLocation(name string) *time.Location {
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	if name == DefaultTimezone {
		return time.FixedZone("KST", 9*60*60)
	}
	return time.UTC
}

func (s Schedule) Validate() error {
	if s.Location == nil {
		return fmt.Errorf("schedule location is required")
	}
	if s.Weekday < time.Sunday || s.Weekday > time.Saturday {
		return fmt.Errorf("invalid draw weekday %d", s.Weekday)
	}
	if s.Hour < 0 || s.Hour > 23 || s.Minute < 0 || s.Minute > 59 {
		return fmt.Errorf("invalid draw time %02d:%02d", s.Hour, s.Minute)
	}
	if s.WaitingWindow < 0 {
		return fmt.Errorf("waiting window must be >= 0")
	}
	if s.RetryWindow < s.WaitingWindow {
		return fmt.Errorf("retry window must be >= waiting window")
	}
	if s.ReferenceRound <= 0 {
		return fmt.Errorf("reference round must be > 0")
	}
	if s.ReferenceDate.IsZero() {
		return fmt.Errorf("reference date is required")
	}
	if s.ReferenceDate.In(s.Location).Weekday() != s.Weekday {
		return fmt.Errorf("reference date %s is not a draw day", s.ReferenceDate.Format(time.DateOnly))
	}
	return nil
}

// CurrentCompletedRound returns the newest round whose draw time has passed.
// The draw minute itself counts as completed.
func (s Schedule) CurrentCompletedRound(now time.Time) int {
	local := now.In(s.Location)
	weeks := floorDiv(daysBetween(s.ReferenceDate.In(s.Location), local), 7)
	round := s.ReferenceRound + weeks
	if local.Weekday() == s.Weekday && local.Before(s.drawInstant(local)) {
		round--
	}
	if round < 0 {
		return 0
	}
	return round
}

// AvailableRound is the newest round the upstreams are expected to publish:
// during the waiting period the just-drawn round is still being aggregated.
func (s Schedule) AvailableRound(now time.Time) int {
	round := s.CurrentCompletedRound(now)
	if s.IsInWaitingPeriod(now) {
		round--
	}
	if round < 0 {
		return 0
	}
	return round
}

func (s Schedule) IsInWaitingPeriod(now time.Time) bool {
	return s.withinAfterDraw(now, s.WaitingWindow)
}

func (s Schedule) IsWithinPostDrawRetryWindow(now time.Time) bool {
	return s.withinAfterDraw(now, s.RetryWindow)
}

func (s Schedule) State(now time.Time) DrawState {
	local := now.In(s.Location)
	if local.Weekday() != s.Weekday {
		return StateCompleted
	}
	if local.Before(s.drawInstant(local)) {
		return StatePending
	}
	if s.IsInWaitingPeriod(now) {
		return StateInProgress
	}
	return StateCompleted
}

// DrawDate returns midnight of the draw day of round in the schedule zone.
func (s Schedule) DrawDate(round int) time.Time {
	ref := s.ReferenceDate.In(s.Location)
	base := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, s.Location)
	return base.AddDate(0, 0, 7*(round-s.ReferenceRound))
}

func (s Schedule) DrawTime(round int) time.Time {
	return s.drawInstant(s.DrawDate(round))
}

func (s Schedule) NextDraw(now time.Time) NextDrawInfo {
	next := s.CurrentCompletedRound(now) + 1
	at := s.DrawTime(next)
	remaining := at.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return NextDrawInfo{
		Round:     next,
		DrawAt:    at,
		Remaining: remaining,
		State:     s.State(now),
	}
}

func (s Schedule) withinAfterDraw(now time.Time, window time.Duration) bool {
	local := now.In(s.Location)
	if local.Weekday() != s.Weekday || window <= 0 {
		return false
	}
	start := s.drawInstant(local)
	return !local.Before(start) && local.Before(start.Add(window))
}

func (s Schedule) drawInstant(day time.Time) time.Time {
	local := day.In(s.Location)
	return time.Date(local.Year(), local.Month(), local.Day(), s.Hour, s.Minute, 0, 0, s.Location)
}

func daysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
