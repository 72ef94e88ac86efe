package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/riskibarqy/lotto-feed/internal/domain/draw"
	"github.com/riskibarqy/lotto-feed/internal/platform/logging"
	"github.com/riskibarqy/lotto-feed/internal/platform/metrics"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultRecentWindow        = 10
	defaultOfficialConcurrency = 10
)

type HybridMergerConfig struct {
	Official draw.OfficialSource
	History  draw.HistorySource
	Schedule draw.Schedule
	// RecentWindow is how many of the newest rounds are read from the
	// official source.
	RecentWindow        int
	OfficialConcurrency int
	Logger              *logging.Logger
	Metrics             *metrics.Metrics
	Now                 func() time.Time
}

// MergeReport describes one hybrid fetch. Rows is ascending with one row per
// round and only ever holds upstream data; gaps are left to the caller.
type MergeReport struct {
	TargetRound       int           `json:"targetRound"`
	Rows              []draw.Result `json:"-"`
	OfficialFetched   int           `json:"officialFetched"`
	OfficialMissing   []int         `json:"officialMissing,omitempty"`
	HistoricalFetched int           `json:"historicalFetched"`
	Errors            []string      `json:"errors,omitempty"`
	StartedAt         time.Time     `json:"startedAt"`
	Duration          time.Duration `json:"duration"`
}

func (r MergeReport) Range() draw.RoundRange {
	return draw.Range(r.Rows)
}

type HybridMerger struct {
	official     draw.OfficialSource
	history      draw.HistorySource
	schedule     draw.Schedule
	recentWindow int
	concurrency  int
	logger       *logging.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewHybridMerger(cfg HybridMergerConfig) *HybridMerger {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	window := cfg.RecentWindow
	if window <= 0 {
		window = defaultRecentWindow
	}
	concurrency := cfg.OfficialConcurrency
	if concurrency <= 0 {
		concurrency = defaultOfficialConcurrency
	}

	return &HybridMerger{
		official:     cfg.Official,
		history:      cfg.History,
		schedule:     cfg.Schedule,
		recentWindow: window,
		concurrency:  concurrency,
		logger:       logger.Named("merger"),
		metrics:      cfg.Metrics,
		now:          now,
	}
}

type officialOutcome struct {
	round int
	row   draw.Result
	found bool
	err   error
}

// FetchAllRounds targets every round up to the clock's available round: the
// newest RecentWindow rounds from the official source, one request per round,
// and the remainder from the history source. Both groups run concurrently.
// Failures never abort the fetch; they surface as missing rounds and Errors.
func (m *HybridMerger) FetchAllRounds(ctx context.Context) MergeReport {
	startedAt := m.now()
	target := m.schedule.AvailableRound(startedAt)

	ctx, span := startUsecaseSpan(ctx, "usecase.HybridMerger.FetchAllRounds", attribute.Int("draw.target_round", target))
	defer span.End()

	report := MergeReport{TargetRound: target, StartedAt: startedAt}
	if target < 1 {
		report.Rows = []draw.Result{}
		return report
	}

	recentFrom := max(target-m.recentWindow+1, 1)
	historicalTo := recentFrom - 1

	var (
		official   []draw.Result
		historical []draw.Result
		errMu      sync.Mutex
	)
	addErr := func(err error) {
		errMu.Lock()
		report.Errors = append(report.Errors, err.Error())
		errMu.Unlock()
	}

	var wg conc.WaitGroup
	wg.Go(func() {
		official, report.OfficialMissing = m.fetchRecent(ctx, recentFrom, target, addErr)
	})
	wg.Go(func() {
		historical = m.fetchHistorical(ctx, historicalTo, target, addErr)
	})
	wg.Wait()

	// Official rows outrank secondary ones, so the seam resolves to official.
	report.Rows = draw.MergeByPrecedence(historical, official)
	report.OfficialFetched = len(official)
	report.HistoricalFetched = len(historical)
	sort.Strings(report.Errors)
	report.Duration = m.now().Sub(startedAt)

	m.logger.InfoContext(ctx, "hybrid fetch finished",
		"target_round", target,
		"official_fetched", report.OfficialFetched,
		"official_missing", len(report.OfficialMissing),
		"historical_fetched", report.HistoricalFetched,
		"errors", len(report.Errors),
	)
	return report
}

func (m *HybridMerger) fetchRecent(ctx context.Context, from, to int, addErr func(error)) ([]draw.Result, []int) {
	if m.official == nil || to < from {
		return []draw.Result{}, rangeOf(from, to)
	}

	p := pool.NewWithResults[officialOutcome]().WithMaxGoroutines(m.concurrency)
	for round := from; round <= to; round++ {
		round := round
		p.Go(func() officialOutcome {
			started := time.Now()
			row, found, err := m.official.FetchRound(ctx, round)
			m.metrics.ObserveUpstream(string(draw.SourceOfficial), upstreamOutcome(found, err), time.Since(started))
			return officialOutcome{round: round, row: row, found: found, err: err}
		})
	}

	outcomes := p.Wait()
	rows := make([]draw.Result, 0, len(outcomes))
	missing := make([]int, 0)
	for _, outcome := range outcomes {
		switch {
		case outcome.err != nil:
			addErr(fmt.Errorf("official round %d: %w", outcome.round, outcome.err))
			missing = append(missing, outcome.round)
		case !outcome.found, outcome.row.Round != outcome.round, outcome.row.Validate() != nil:
			missing = append(missing, outcome.round)
		default:
			rows = append(rows, outcome.row)
		}
	}
	sort.Ints(missing)
	return rows, missing
}

// fetchHistorical returns secondary rows for rounds 1..to. The history source
// lists newest first, so reaching round 1 takes target rows; the recent
// window it also returns is discarded in favour of the official group.
func (m *HybridMerger) fetchHistorical(ctx context.Context, to, target int, addErr func(error)) []draw.Result {
	if m.history == nil || to < 1 {
		return []draw.Result{}
	}

	started := time.Now()
	rows, err := m.history.FetchBulk(ctx, target)
	m.metrics.ObserveUpstream(string(draw.SourceSecondary), upstreamOutcome(len(rows) > 0, err), time.Since(started))
	if err != nil {
		addErr(fmt.Errorf("secondary bulk: %w", err))
		m.logger.WarnContext(ctx, "history fetch failed", "target_count", target, "error", err)
	}

	out := make([]draw.Result, 0, len(rows))
	for _, row := range draw.Within(rows, 1, to) {
		if row.Validate() != nil {
			continue
		}
		out = append(out, row)
	}
	return out
}

func upstreamOutcome(found bool, err error) string {
	switch {
	case err != nil:
		return metrics.OutcomeError
	case !found:
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeSuccess
	}
}

func rangeOf(from, to int) []int {
	if to < from {
		return []int{}
	}
	out := make([]int, 0, to-from+1)
	for round := from; round <= to; round++ {
		out = append(out, round)
	}
	return out
}
