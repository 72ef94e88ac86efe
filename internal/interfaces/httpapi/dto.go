package httpapi

import (
	"time"

	"github.com/riskibarqy/lotto-feed/internal/domain/draw"
	"github.com/riskibarqy/lotto-feed/internal/platform/resilience"
	"github.com/riskibarqy/lotto-feed/internal/usecase"
)

type resultDTO[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

type drawDTO struct {
	Round     int        `json:"round"`
	DrawDate  string     `json:"drawDate"`
	Numbers   []int      `json:"numbers"`
	Bonus     int        `json:"bonus"`
	Source    string     `json:"source"`
	Emergency bool       `json:"emergency"`
	FetchedAt *time.Time `json:"fetchedAt,omitempty"`
	Prize     *prizeDTO  `json:"prize,omitempty"`
}

type prizeDTO struct {
	FirstPrizeAmount  int64 `json:"firstPrizeAmount"`
	FirstPrizeWinners int   `json:"firstPrizeWinners"`
	TotalSales        int64 `json:"totalSales"`
	AccumulatedAmount int64 `json:"accumulatedAmount"`
}

type rangeDTO struct {
	LatestRound int  `json:"latestRound"`
	OldestRound int  `json:"oldestRound"`
	TotalCount  int  `json:"totalCount"`
	Contiguous  bool `json:"contiguous"`
}

type nextDrawDTO struct {
	Round            int       `json:"round"`
	DrawAt           time.Time `json:"drawAt"`
	RemainingSeconds int64     `json:"remainingSeconds"`
	State            string    `json:"state"`
}

type refreshDTO struct {
	Trigger         string   `json:"trigger"`
	Outcome         string   `json:"outcome"`
	Shared          bool     `json:"shared"`
	StartedAt       string   `json:"startedAt"`
	DurationMS      int64    `json:"durationMs"`
	Before          rangeDTO `json:"before"`
	After           rangeDTO `json:"after"`
	Fetched         int      `json:"fetched"`
	Backfilled      int      `json:"backfilled"`
	OfficialMissing []int    `json:"officialMissing,omitempty"`
	Errors          []string `json:"errors,omitempty"`
}

type statusDTO struct {
	State           string                       `json:"state"`
	LastUpdate      *time.Time                   `json:"lastUpdate,omitempty"`
	CacheAgeSeconds int64                        `json:"cacheAgeSeconds"`
	Range           rangeDTO                     `json:"range"`
	BySource        map[string]int               `json:"bySource"`
	DrawState       string                       `json:"drawState"`
	CurrentRound    int                          `json:"currentRound"`
	AvailableRound  int                          `json:"availableRound"`
	Upstreams       []resilience.BreakerSnapshot `json:"upstreams"`
	LastRefresh     *refreshDTO                  `json:"lastRefresh,omitempty"`
	Subscribers     int                          `json:"subscribers"`
}

func drawToDTO(item draw.Result) drawDTO {
	out := drawDTO{
		Round:     item.Round,
		Numbers:   append([]int(nil), item.Numbers[:]...),
		Bonus:     item.Bonus,
		Source:    string(item.Source),
		Emergency: item.Source.IsEmergency(),
	}
	if !item.Date.IsZero() {
		out.DrawDate = item.Date.Format(time.DateOnly)
	}
	if !item.FetchedAt.IsZero() {
		fetchedAt := item.FetchedAt
		out.FetchedAt = &fetchedAt
	}
	if item.Prize != nil {
		out.Prize = &prizeDTO{
			FirstPrizeAmount:  item.Prize.FirstPrizeAmount,
			FirstPrizeWinners: item.Prize.FirstPrizeWinners,
			TotalSales:        item.Prize.TotalSales,
			AccumulatedAmount: item.Prize.AccumulatedAmount,
		}
	}
	return out
}

func drawsToDTO(items []draw.Result) []drawDTO {
	out := make([]drawDTO, 0, len(items))
	for _, item := range items {
		out = append(out, drawToDTO(item))
	}
	return out
}

func rangeToDTO(r draw.RoundRange) rangeDTO {
	return rangeDTO{
		LatestRound: r.LatestRound,
		OldestRound: r.OldestRound,
		TotalCount:  r.TotalCount,
		Contiguous:  r.Contiguous(),
	}
}

func nextDrawToDTO(info draw.NextDrawInfo) nextDrawDTO {
	return nextDrawDTO{
		Round:            info.Round,
		DrawAt:           info.DrawAt,
		RemainingSeconds: int64(info.Remaining / time.Second),
		State:            string(info.State),
	}
}

func refreshToDTO(outcome usecase.RefreshOutcome) refreshDTO {
	out := refreshDTO{
		Trigger:         string(outcome.Trigger),
		Outcome:         outcome.Outcome,
		Shared:          outcome.Shared,
		DurationMS:      outcome.Duration.Milliseconds(),
		Before:          rangeToDTO(outcome.Before),
		After:           rangeToDTO(outcome.After),
		Fetched:         outcome.Fetched,
		Backfilled:      outcome.Backfilled,
		OfficialMissing: outcome.OfficialMissing,
		Errors:          outcome.Errors,
	}
	if !outcome.StartedAt.IsZero() {
		out.StartedAt = outcome.StartedAt.Format(time.RFC3339)
	}
	return out
}

func statusToDTO(status usecase.ServiceStatus) statusDTO {
	out := statusDTO{
		State:           string(status.State),
		LastUpdate:      status.LastUpdate,
		CacheAgeSeconds: int64(status.CacheAge / time.Second),
		Range:           rangeToDTO(status.Range),
		BySource:        make(map[string]int, len(status.BySource)),
		DrawState:       string(status.DrawState),
		CurrentRound:    status.CurrentRound,
		AvailableRound:  status.AvailableRound,
		Upstreams:       status.Upstreams,
		Subscribers:     status.Subscribers,
	}
	for source, count := range status.BySource {
		out.BySource[string(source)] = count
	}
	if status.LastRefresh != nil {
		refresh := refreshToDTO(*status.LastRefresh)
		out.LastRefresh = &refresh
	}
	return out
}
