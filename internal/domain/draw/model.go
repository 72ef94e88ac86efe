package draw

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

const (
	NumbersPerDraw = 6
	MinNumber      = 1
	MaxNumber      = 45
)

var (
	ErrInvalidResult     = errors.New("invalid draw result")
	ErrSourceUnavailable = errors.New("draw source unavailable")
)

type Source string

const (
	SourceOfficial             Source = "official"
	SourceSecondary            Source = "secondary"
	SourceVerifiedEmergency    Source = "verified-emergency"
	SourceSynthesizedEmergency Source = "synthesized-emergency"
)

// Precedence ranks sources when two rows claim the same round.
func (s Source) Precedence() int {
	switch s {
	case SourceOfficial:
		return 4
	case SourceSecondary:
		return 3
	case SourceVerifiedEmergency:
		return 2
	case SourceSynthesizedEmergency:
		return 1
	default:
		return 0
	}
}

// IsEmergency reports whether the row came from the local fallback table or generator.
func (s Source) IsEmergency() bool {
	return s == SourceVerifiedEmergency || s == SourceSynthesizedEmergency
}

// Prize holds first-tier prize metadata when the official source provides it.
type Prize struct {
	FirstPrizeAmount  int64
	FirstPrizeWinners int
	TotalSales        int64
	AccumulatedAmount int64
}

// Result is one completed draw.
type Result struct {
	Round     int
	Date      time.Time
	Numbers   [NumbersPerDraw]int
	Bonus     int
	Source    Source
	FetchedAt time.Time
	Prize     *Prize
}

// Normalize sorts numbers ascending.
func (r Result) Normalize() Result {
	nums := r.Numbers[:]
	sort.Ints(nums)
	return r
}

func (r Result) Validate() error {
	if r.Round <= 0 {
		return fmt.Errorf("%w: round must be > 0, got %d", ErrInvalidResult, r.Round)
	}

	seen := make(map[int]struct{}, NumbersPerDraw)
	for _, n := range r.Numbers {
		if n < MinNumber || n > MaxNumber {
			return fmt.Errorf("%w: round=%d number %d out of range", ErrInvalidResult, r.Round, n)
		}
		if _, dup := seen[n]; dup {
			return fmt.Errorf("%w: round=%d duplicate number %d", ErrInvalidResult, r.Round, n)
		}
		seen[n] = struct{}{}
	}

	if r.Bonus < MinNumber || r.Bonus > MaxNumber {
		return fmt.Errorf("%w: round=%d bonus %d out of range", ErrInvalidResult, r.Round, r.Bonus)
	}
	if _, dup := seen[r.Bonus]; dup {
		return fmt.Errorf("%w: round=%d bonus %d repeats a main number", ErrInvalidResult, r.Round, r.Bonus)
	}

	return nil
}

func (r Result) HasNumber(n int) bool {
	for _, v := range r.Numbers {
		if v == n {
			return true
		}
	}
	return false
}

// RoundRange is derived from a series and never stored on its own.
type RoundRange struct {
	LatestRound int
	OldestRound int
	TotalCount  int
}

func (r RoundRange) Empty() bool {
	return r.TotalCount == 0
}

// Contiguous reports whether the range holds every round between oldest and latest.
func (r RoundRange) Contiguous() bool {
	if r.TotalCount == 0 {
		return true
	}
	return r.TotalCount == r.LatestRound-r.OldestRound+1
}
