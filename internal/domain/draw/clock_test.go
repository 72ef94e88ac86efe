package draw

import (
	"testing"
	"time"
)

func kst(t *testing.T, year int, month time.Month, day, hour, minute int) time.Time {
	t.Helper()
	return time.Date(year, month, day, hour, minute, 0, 0, DefaultSchedule().Location)
}

func TestSchedule_CurrentCompletedRound(t *testing.T) {
	t.Parallel()

	s := DefaultSchedule()
	if err := s.Validate(); err != nil {
		t.Fatalf("default schedule invalid: %v", err)
	}

	cases := []struct {
		name string
		now  time.Time
		want int
	}{
		{name: "reference draw minute", now: kst(t, 2025, time.July, 5, 20, 35), want: 1179},
		{name: "reference day before draw", now: kst(t, 2025, time.July, 5, 20, 34), want: 1178},
		{name: "day before reference", now: kst(t, 2025, time.July, 4, 12, 0), want: 1178},
		{name: "sunday after two weeks", now: kst(t, 2025, time.July, 20, 10, 0), want: 1181},
		{name: "friday is past draw", now: kst(t, 2025, time.July, 18, 23, 59), want: 1180},
		{name: "draw day morning", now: kst(t, 2025, time.July, 19, 10, 0), want: 1180},
		{name: "one minute before draw", now: kst(t, 2025, time.July, 19, 20, 34), want: 1180},
		{name: "draw minute inclusive", now: kst(t, 2025, time.July, 19, 20, 35), want: 1181},
		{name: "one minute after draw", now: kst(t, 2025, time.July, 19, 20, 36), want: 1181},
		{name: "first draw", now: kst(t, 2002, time.December, 7, 21, 0), want: 1},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := s.CurrentCompletedRound(tc.now); got != tc.want {
				t.Fatalf("unexpected round: got=%d want=%d", got, tc.want)
			}
		})
	}
}

func TestSchedule_IndependentOfCallerTimezone(t *testing.T) {
	t.Parallel()

	s := DefaultSchedule()
	// 11:36 UTC is 20:36 in Seoul on the same Saturday.
	nowUTC := time.Date(2025, time.July, 19, 11, 36, 0, 0, time.UTC)
	if got := s.CurrentCompletedRound(nowUTC); got != 1181 {
		t.Fatalf("unexpected round for UTC input: got=%d want=1181", got)
	}

	la := time.FixedZone("PDT", -7*60*60)
	// 04:34 PDT is 20:34 KST.
	nowLA := time.Date(2025, time.July, 19, 4, 34, 0, 0, la)
	if got := s.CurrentCompletedRound(nowLA); got != 1180 {
		t.Fatalf("unexpected round for PDT input: got=%d want=1180", got)
	}
}

func TestSchedule_Windows(t *testing.T) {
	t.Parallel()

	s := DefaultSchedule()

	waiting := []struct {
		now  time.Time
		want bool
	}{
		{now: kst(t, 2025, time.July, 19, 20, 34), want: false},
		{now: kst(t, 2025, time.July, 19, 20, 35), want: true},
		{now: kst(t, 2025, time.July, 19, 20, 49), want: true},
		{now: kst(t, 2025, time.July, 19, 20, 50), want: false},
		{now: kst(t, 2025, time.July, 20, 20, 40), want: false},
	}
	for _, tc := range waiting {
		if got := s.IsInWaitingPeriod(tc.now); got != tc.want {
			t.Fatalf("IsInWaitingPeriod(%s): got=%v want=%v", tc.now, got, tc.want)
		}
	}

	retry := []struct {
		now  time.Time
		want bool
	}{
		{now: kst(t, 2025, time.July, 19, 20, 34), want: false},
		{now: kst(t, 2025, time.July, 19, 20, 35), want: true},
		{now: kst(t, 2025, time.July, 19, 22, 34), want: true},
		{now: kst(t, 2025, time.July, 19, 22, 35), want: false},
		{now: kst(t, 2025, time.July, 18, 21, 0), want: false},
	}
	for _, tc := range retry {
		if got := s.IsWithinPostDrawRetryWindow(tc.now); got != tc.want {
			t.Fatalf("IsWithinPostDrawRetryWindow(%s): got=%v want=%v", tc.now, got, tc.want)
		}
	}
}

func TestSchedule_StateAndAvailableRound(t *testing.T) {
	t.Parallel()

	s := DefaultSchedule()

	cases := []struct {
		now       time.Time
		state     DrawState
		available int
	}{
		{now: kst(t, 2025, time.July, 18, 12, 0), state: StateCompleted, available: 1180},
		{now: kst(t, 2025, time.July, 19, 10, 0), state: StatePending, available: 1180},
		{now: kst(t, 2025, time.July, 19, 20, 40), state: StateInProgress, available: 1180},
		{now: kst(t, 2025, time.July, 19, 21, 0), state: StateCompleted, available: 1181},
		{now: kst(t, 2025, time.July, 20, 10, 0), state: StateCompleted, available: 1181},
	}
	for _, tc := range cases {
		if got := s.State(tc.now); got != tc.state {
			t.Fatalf("State(%s): got=%s want=%s", tc.now, got, tc.state)
		}
		if got := s.AvailableRound(tc.now); got != tc.available {
			t.Fatalf("AvailableRound(%s): got=%d want=%d", tc.now, got, tc.available)
		}
	}
}

func TestSchedule_NextDraw(t *testing.T) {
	t.Parallel()

	s := DefaultSchedule()

	morning := kst(t, 2025, time.July, 19, 10, 0)
	info := s.NextDraw(morning)
	if info.Round != 1181 {
		t.Fatalf("unexpected next round: got=%d want=1181", info.Round)
	}
	if !info.DrawAt.Equal(kst(t, 2025, time.July, 19, 20, 35)) {
		t.Fatalf("unexpected draw time: %s", info.DrawAt)
	}
	if info.Remaining != 10*time.Hour+35*time.Minute {
		t.Fatalf("unexpected remaining: %s", info.Remaining)
	}

	sunday := kst(t, 2025, time.July, 20, 10, 0)
	info = s.NextDraw(sunday)
	if info.Round != 1182 {
		t.Fatalf("unexpected next round: got=%d want=1182", info.Round)
	}
	if !info.DrawAt.Equal(kst(t, 2025, time.July, 26, 20, 35)) {
		t.Fatalf("unexpected draw time: %s", info.DrawAt)
	}
}

func TestSchedule_DrawDate(t *testing.T) {
	t.Parallel()

	s := DefaultSchedule()
	if got := s.DrawDate(1).Format(time.DateOnly); got != "2002-12-07" {
		t.Fatalf("unexpected first draw date: %s", got)
	}
	if got := s.DrawDate(1181).Format(time.DateOnly); got != "2025-07-19" {
		t.Fatalf("unexpected draw date for 1181: %s", got)
	}
}

func TestSchedule_ValidateRejectsBadConfig(t *testing.T) {
	t.Parallel()

	s := DefaultSchedule()
	s.RetryWindow = time.Minute
	if err := s.Validate(); err == nil {
		t.Fatalf("expected error when retry window is shorter than waiting window")
	}

	s = DefaultSchedule()
	s.ReferenceDate = kst(t, 2025, time.July, 6, 0, 0)
	if err := s.Validate(); err == nil {
		t.Fatalf("expected error when reference date is not a draw day")
	}
}
