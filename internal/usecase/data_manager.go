package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/lotto-feed/internal/domain/draw"
	"github.com/riskibarqy/lotto-feed/internal/platform/cache"
	"github.com/riskibarqy/lotto-feed/internal/platform/logging"
	"github.com/riskibarqy/lotto-feed/internal/platform/metrics"
	"github.com/riskibarqy/lotto-feed/internal/platform/resilience"
	"github.com/robfig/cron/v3"
	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultCacheTTL        = 10 * time.Minute
	defaultRefreshInterval = 5 * time.Minute
	defaultRefreshTimeout  = 2 * time.Minute

	refreshFlightKey = "hybrid-refresh"
	outcomeFailed    = "failed"

	messageAggregating = "the latest draw is still being aggregated; showing the previous round"
	messageEmergency   = "live sources unavailable; showing emergency data"
	messageDegraded    = "served from emergency data after an internal error"
)

type ManagerState string

const (
	ManagerStateEmpty       ManagerState = "EMPTY"
	ManagerStateLoadedFresh ManagerState = "LOADED_FRESH"
	ManagerStateLoadedStale ManagerState = "LOADED_STALE"
	ManagerStateRefreshing  ManagerState = "REFRESHING"
)

type RefreshTrigger string

const (
	TriggerStartup   RefreshTrigger = "startup"
	TriggerSchedule  RefreshTrigger = "schedule"
	TriggerStaleRead RefreshTrigger = "stale-read"
	TriggerManual    RefreshTrigger = "manual"
)

// RoundFetcher produces upstream rows for the cache. *HybridMerger is the
// production implementation.
type RoundFetcher interface {
	FetchAllRounds(ctx context.Context) MergeReport
}

// BreakerReporter is implemented by upstream clients that expose their
// circuit breaker for status reporting.
type BreakerReporter interface {
	BreakerSnapshot() resilience.BreakerSnapshot
}

type DataManagerConfig struct {
	Fetcher         RoundFetcher
	Generator       *draw.Generator
	Schedule        draw.Schedule
	CacheTTL        time.Duration
	RefreshInterval time.Duration
	RefreshTimeout  time.Duration
	Upstreams       []BreakerReporter
	Logger          *logging.Logger
	Metrics         *metrics.Metrics
	Now             func() time.Time
}

// RefreshOutcome summarizes one refresh attempt. Outcome is one of
// replaced, kept or failed.
type RefreshOutcome struct {
	Trigger         RefreshTrigger  `json:"trigger"`
	Outcome         string          `json:"outcome"`
	Shared          bool            `json:"shared"`
	StartedAt       time.Time       `json:"startedAt"`
	Duration        time.Duration   `json:"duration"`
	Before          draw.RoundRange `json:"before"`
	After           draw.RoundRange `json:"after"`
	Fetched         int             `json:"fetched"`
	Backfilled      int             `json:"backfilled"`
	OfficialMissing []int           `json:"officialMissing,omitempty"`
	Errors          []string        `json:"errors,omitempty"`
}

// ChangeEvent is delivered to subscribers after every cache replacement.
type ChangeEvent struct {
	Trigger  RefreshTrigger      `json:"trigger"`
	Range    draw.RoundRange     `json:"range"`
	BySource map[draw.Source]int `json:"bySource"`
	At       time.Time           `json:"at"`
}

type ServiceStatus struct {
	State          ManagerState                 `json:"state"`
	LastUpdate     *time.Time                   `json:"lastUpdate,omitempty"`
	CacheAge       time.Duration                `json:"cacheAge"`
	Range          draw.RoundRange              `json:"range"`
	BySource       map[draw.Source]int          `json:"bySource"`
	DrawState      draw.DrawState               `json:"drawState"`
	CurrentRound   int                          `json:"currentRound"`
	AvailableRound int                          `json:"availableRound"`
	Upstreams      []resilience.BreakerSnapshot `json:"upstreams"`
	LastRefresh    *RefreshOutcome              `json:"lastRefresh,omitempty"`
	Subscribers    int                          `json:"subscribers"`
}

// DataManager owns the in-process draw cache and is the only writer to it.
// The cache is an ascending, gap-free series replaced wholesale on refresh.
type DataManager struct {
	fetcher         RoundFetcher
	generator       *draw.Generator
	schedule        draw.Schedule
	refreshInterval time.Duration
	refreshTimeout  time.Duration
	upstreams       []BreakerReporter
	logger          *logging.Logger
	metrics         *metrics.Metrics
	now             func() time.Time

	snapshot    *cache.Snapshot[[]draw.Result]
	flight      resilience.Flight[RefreshOutcome]
	lastRefresh atomic.Pointer[RefreshOutcome]

	subMu       sync.Mutex
	subscribers map[uint64]func(ChangeEvent)
	nextSubID   uint64

	lifecycleMu sync.Mutex
	scheduler   *cron.Cron
	background  conc.WaitGroup
	stopped     chan struct{}
}

// NewDataManager builds the manager and seeds the cache synchronously from
// the emergency generator, so reads never wait on the network.
func NewDataManager(cfg DataManagerConfig) *DataManager {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	schedule := cfg.Schedule
	if schedule.Location == nil {
		schedule = draw.DefaultSchedule()
	}
	generator := cfg.Generator
	if generator == nil {
		generator = draw.NewGenerator(schedule)
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	interval := cfg.RefreshInterval
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	timeout := cfg.RefreshTimeout
	if timeout <= 0 {
		timeout = defaultRefreshTimeout
	}

	m := &DataManager{
		fetcher:         cfg.Fetcher,
		generator:       generator,
		schedule:        schedule,
		refreshInterval: interval,
		refreshTimeout:  timeout,
		upstreams:       cfg.Upstreams,
		logger:          logger.Named("data_manager"),
		metrics:         cfg.Metrics,
		now:             now,
		snapshot:        cache.NewSnapshot[[]draw.Result](ttl).WithClock(now),
		subscribers:     make(map[uint64]func(ChangeEvent)),
		stopped:         make(chan struct{}),
	}

	m.seed()
	return m
}

// Start launches the initial hybrid fetch and the background scheduler.
// The initial fetch only replaces the seeded cache when it strictly improves
// coverage.
func (m *DataManager) Start(ctx context.Context) error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	if m.scheduler != nil {
		return nil
	}
	if m.isStopped() {
		return crerr.New("data manager already stopped")
	}

	cronLogger := logging.NewCronLogger(m.logger)
	scheduler := cron.New(
		cron.WithLocation(m.schedule.Location),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	spec := fmt.Sprintf("@every %s", m.refreshInterval)
	if _, err := scheduler.AddFunc(spec, m.runScheduledRefresh); err != nil {
		return crerr.Wrapf(err, "schedule refresh %q", spec)
	}
	m.scheduler = scheduler

	m.background.Go(func() {
		refreshCtx, cancel := m.detachedContext(ctx)
		defer cancel()
		m.refresh(refreshCtx, TriggerStartup, acceptStrictImprovement)
	})

	scheduler.Start()
	m.logger.InfoContext(ctx, "data manager started", "refresh_interval", m.refreshInterval.String(), "cache_ttl", m.snapshot.TTL().String())
	return nil
}

// Stop halts the scheduler and waits for running refreshes, bounded by ctx.
func (m *DataManager) Stop(ctx context.Context) error {
	m.lifecycleMu.Lock()
	scheduler := m.scheduler
	m.scheduler = nil
	select {
	case <-m.stopped:
	default:
		close(m.stopped)
	}
	m.lifecycleMu.Unlock()

	done := make(chan struct{})
	go func() {
		if scheduler != nil {
			<-scheduler.Stop().Done()
		}
		m.background.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return crerr.Wrap(ctx.Err(), "stop data manager")
	}
}

// GetLatestResult returns the newest available round. During the waiting
// period that is the previous round, flagged with an aggregating message.
func (m *DataManager) GetLatestResult(ctx context.Context) (res Result[draw.Result]) {
	now := m.now()
	defer guard(m, "GetLatestResult", &res, func() draw.Result {
		return m.generator.GenerateRound(max(m.schedule.AvailableRound(now), 1))
	})

	_, span := startUsecaseSpan(ctx, "usecase.DataManager.GetLatestResult")
	defer span.End()

	available := m.schedule.AvailableRound(now)
	if available < 1 {
		err := fmt.Errorf("%w: no draw has completed yet", ErrNotFound)
		recordSpanError(span, err)
		return fail[draw.Result](err)
	}

	rows := m.readRows(ctx)
	latest, ok := latestAtOrBefore(rows, available)
	if !ok {
		latest = m.generator.GenerateRound(available)
	}

	message := ""
	switch {
	case m.schedule.IsInWaitingPeriod(now):
		message = messageAggregating
	case latest.Source.IsEmergency():
		message = messageEmergency
	}
	return succeed(latest, message)
}

// GetHistory returns up to count newest rows, descending by round with no
// gaps. It never returns an empty list for a positive count.
func (m *DataManager) GetHistory(ctx context.Context, count int) (res Result[[]draw.Result]) {
	now := m.now()
	defer guard(m, "GetHistory", &res, func() []draw.Result {
		available := max(m.schedule.AvailableRound(now), 1)
		return descending(m.generator.GenerateRange(max(available-count+1, 1), available))
	})

	_, span := startUsecaseSpan(ctx, "usecase.DataManager.GetHistory", attribute.Int("draw.count", count))
	defer span.End()

	if count <= 0 {
		err := fmt.Errorf("%w: count must be greater than zero", ErrInvalidInput)
		recordSpanError(span, err)
		return fail[[]draw.Result](err)
	}

	available := m.schedule.AvailableRound(now)
	rows := m.readRows(ctx)

	out := make([]draw.Result, 0, min(count, len(rows)))
	expected := 0
	for i := len(rows) - 1; i >= 0 && len(out) < count; i-- {
		row := rows[i]
		if row.Round > available {
			continue
		}
		if expected != 0 && row.Round != expected {
			break
		}
		out = append(out, row)
		expected = row.Round - 1
	}

	if len(out) == 0 {
		from := max(available-count+1, 1)
		out = descending(m.generator.GenerateRange(from, max(available, 1)))
	}

	message := ""
	if containsEmergency(out) {
		message = messageEmergency
	}
	return succeed(out, message)
}

// GetRound returns a single round from the cache, falling back to the
// generator for rounds the cache does not hold.
func (m *DataManager) GetRound(ctx context.Context, round int) (res Result[draw.Result]) {
	defer guard(m, "GetRound", &res, func() draw.Result {
		return m.generator.GenerateRound(round)
	})

	_, span := startUsecaseSpan(ctx, "usecase.DataManager.GetRound", attribute.Int("draw.round", round))
	defer span.End()

	available := m.schedule.AvailableRound(m.now())
	if round < 1 || round > available {
		err := fmt.Errorf("%w: round must be between 1 and %d", ErrInvalidInput, available)
		recordSpanError(span, err)
		return fail[draw.Result](err)
	}

	rows := m.readRows(ctx)
	idx := sort.Search(len(rows), func(i int) bool { return rows[i].Round >= round })
	if idx < len(rows) && rows[idx].Round == round {
		row := rows[idx]
		message := ""
		if row.Source.IsEmergency() {
			message = messageEmergency
		}
		return succeed(row, message)
	}
	return succeed(m.generator.GenerateRound(round), messageEmergency)
}

// GetNextDrawInfo is computed from the clock alone.
func (m *DataManager) GetNextDrawInfo(now time.Time) (res Result[draw.NextDrawInfo]) {
	defer guard(m, "GetNextDrawInfo", &res, func() draw.NextDrawInfo {
		return draw.NextDrawInfo{}
	})

	if now.IsZero() {
		now = m.now()
	}
	return succeed(m.schedule.NextDraw(now), "")
}

// ForceRefresh runs a hybrid refresh now. Concurrent callers share the
// in-flight attempt. The outcome is always reported as success; whether the
// cache changed is in the data.
func (m *DataManager) ForceRefresh(ctx context.Context) (res Result[RefreshOutcome]) {
	defer guard(m, "ForceRefresh", &res, func() RefreshOutcome {
		return RefreshOutcome{Trigger: TriggerManual, Outcome: outcomeFailed}
	})

	ctx, span := startUsecaseSpan(ctx, "usecase.DataManager.ForceRefresh")
	defer span.End()

	refreshCtx, cancel := m.detachedContext(ctx)
	defer cancel()

	outcome := m.refresh(refreshCtx, TriggerManual, acceptNoShrink)
	return succeed(outcome, "")
}

func (m *DataManager) GetDataRange() (res Result[draw.RoundRange]) {
	defer guard(m, "GetDataRange", &res, func() draw.RoundRange {
		return draw.RoundRange{}
	})

	return succeed(draw.Range(m.readRows(context.Background())), "")
}

func (m *DataManager) GetServiceStatus() (res Result[ServiceStatus]) {
	defer guard(m, "GetServiceStatus", &res, func() ServiceStatus {
		return ServiceStatus{State: ManagerStateEmpty}
	})

	now := m.now()
	status := ServiceStatus{
		State:          m.State(),
		BySource:       map[draw.Source]int{},
		DrawState:      m.schedule.State(now),
		CurrentRound:   m.schedule.CurrentCompletedRound(now),
		AvailableRound: m.schedule.AvailableRound(now),
		Upstreams:      make([]resilience.BreakerSnapshot, 0, len(m.upstreams)),
		LastRefresh:    m.lastRefresh.Load(),
	}
	if version, ok := m.snapshot.Load(); ok {
		storedAt := version.StoredAt
		status.LastUpdate = &storedAt
		status.CacheAge = now.Sub(storedAt)
		status.Range = draw.Range(version.Value)
		status.BySource = draw.CountBySource(version.Value)
	}
	for _, upstream := range m.upstreams {
		status.Upstreams = append(status.Upstreams, upstream.BreakerSnapshot())
	}

	m.subMu.Lock()
	status.Subscribers = len(m.subscribers)
	m.subMu.Unlock()

	return succeed(status, "")
}

// ClearCache drops the cache; the next read regenerates it.
func (m *DataManager) ClearCache() Result[bool] {
	m.snapshot.Clear()
	m.metrics.SetCacheRows(nil, 0)
	m.logger.Info("cache cleared")
	return succeed(true, "")
}

// Subscribe registers fn for change notifications. Callbacks run on the
// refreshing goroutine and must not block.
func (m *DataManager) Subscribe(fn func(ChangeEvent)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	m.subMu.Lock()
	m.nextSubID++
	id := m.nextSubID
	m.subscribers[id] = fn
	m.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subscribers, id)
			m.subMu.Unlock()
		})
	}
}

func (m *DataManager) State() ManagerState {
	if m.flight.InFlight(refreshFlightKey) {
		return ManagerStateRefreshing
	}
	version, ok := m.snapshot.Load()
	if !ok {
		return ManagerStateEmpty
	}
	if m.snapshot.IsStale(version) {
		return ManagerStateLoadedStale
	}
	return ManagerStateLoadedFresh
}

type acceptPolicy int

const (
	// acceptNoShrink replaces the cache unless the new series is smaller.
	acceptNoShrink acceptPolicy = iota
	// acceptStrictImprovement requires more rounds or more real rows.
	acceptStrictImprovement
)

func (m *DataManager) runScheduledRefresh() {
	now := m.now()
	if !m.schedule.IsWithinPostDrawRetryWindow(now) || m.schedule.IsInWaitingPeriod(now) {
		m.logger.Debug("scheduled refresh skipped outside post-draw window")
		return
	}

	ctx, cancel := m.detachedContext(context.Background())
	defer cancel()
	m.refresh(ctx, TriggerSchedule, acceptNoShrink)
}

// refresh runs at most one hybrid fetch at a time; overlapping callers
// receive the in-flight outcome.
func (m *DataManager) refresh(ctx context.Context, trigger RefreshTrigger, policy acceptPolicy) RefreshOutcome {
	outcome, _, shared := m.flight.Do(refreshFlightKey, func() (RefreshOutcome, error) {
		return m.runRefresh(ctx, trigger, policy), nil
	})
	outcome.Shared = shared
	return outcome
}

func (m *DataManager) runRefresh(ctx context.Context, trigger RefreshTrigger, policy acceptPolicy) (outcome RefreshOutcome) {
	startedAt := m.now()
	outcome = RefreshOutcome{Trigger: trigger, Outcome: metrics.OutcomeKept, StartedAt: startedAt}

	defer func() {
		if r := recover(); r != nil {
			m.logger.ErrorContext(ctx, "refresh panicked", "trigger", string(trigger), "panic", fmt.Sprint(r))
			outcome.Outcome = outcomeFailed
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("panic: %v", r))
		}
		outcome.Duration = m.now().Sub(startedAt)
		m.metrics.ObserveRefresh(string(trigger), outcome.Outcome, outcome.Duration)
		stored := outcome
		m.lastRefresh.Store(&stored)
	}()

	if m.fetcher == nil {
		outcome.Errors = []string{"no upstream fetcher configured"}
		return outcome
	}

	report := m.fetcher.FetchAllRounds(ctx)
	outcome.Fetched = len(report.Rows)
	outcome.OfficialMissing = report.OfficialMissing
	outcome.Errors = report.Errors

	available := m.schedule.AvailableRound(m.now())
	var event *ChangeEvent
	version, replaced := m.snapshot.Update(func(current *cache.Version[[]draw.Result]) ([]draw.Result, bool) {
		var existing []draw.Result
		if current != nil {
			existing = current.Value
		}
		outcome.Before = draw.Range(existing)

		merged := draw.MergeByPrecedence(existing, report.Rows)
		missing := draw.Missing(merged, 1, available)
		if len(missing) > 0 {
			fills := make([]draw.Result, 0, len(missing))
			for _, round := range missing {
				fills = append(fills, m.generator.GenerateRound(round))
			}
			merged = draw.MergeByPrecedence(merged, fills)
		}
		outcome.Backfilled = len(missing)
		outcome.After = draw.Range(merged)

		if !accepts(policy, existing, merged) {
			outcome.After = outcome.Before
			return nil, false
		}
		event = &ChangeEvent{
			Trigger:  trigger,
			Range:    outcome.After,
			BySource: draw.CountBySource(merged),
		}
		return merged, true
	})

	if replaced {
		outcome.Outcome = metrics.OutcomeReplaced
		event.At = version.StoredAt
		m.publishCacheMetrics(version.Value)
		m.notify(*event)
	}

	m.logger.InfoContext(ctx, "cache refresh finished",
		"trigger", string(trigger),
		"outcome", outcome.Outcome,
		"fetched", outcome.Fetched,
		"backfilled", outcome.Backfilled,
		"total", outcome.After.TotalCount,
		"errors", len(outcome.Errors),
	)
	return outcome
}

func accepts(policy acceptPolicy, existing, merged []draw.Result) bool {
	before, after := draw.Range(existing), draw.Range(merged)
	if after.TotalCount < before.TotalCount {
		return false
	}
	if policy == acceptNoShrink {
		return true
	}
	return after.TotalCount > before.TotalCount || realRows(merged) > realRows(existing)
}

// readRows returns the cached series, regenerating it when the cache was
// cleared and scheduling an asynchronous refresh when it is stale.
func (m *DataManager) readRows(ctx context.Context) []draw.Result {
	version, ok := m.snapshot.Load()
	if !ok {
		version = m.seed()
	}
	if m.snapshot.IsStale(version) {
		m.refreshInBackground(ctx)
	}
	return version.Value
}

func (m *DataManager) refreshInBackground(ctx context.Context) {
	if m.fetcher == nil || m.flight.InFlight(refreshFlightKey) {
		return
	}

	// The stopped check and the WaitGroup Add share lifecycleMu with Stop, so
	// nothing is added once Stop has started waiting.
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()
	if m.isStopped() || !m.snapshot.BeginRefresh() {
		return
	}

	m.background.Go(func() {
		defer m.snapshot.EndRefresh()
		refreshCtx, cancel := m.detachedContext(ctx)
		defer cancel()
		m.refresh(refreshCtx, TriggerStaleRead, acceptNoShrink)
	})
}

func (m *DataManager) isStopped() bool {
	select {
	case <-m.stopped:
		return true
	default:
		return false
	}
}

// seed fills an empty cache from the generator. A concurrent writer that got
// there first wins.
func (m *DataManager) seed() *cache.Version[[]draw.Result] {
	available := m.schedule.AvailableRound(m.now())
	version, replaced := m.snapshot.Update(func(current *cache.Version[[]draw.Result]) ([]draw.Result, bool) {
		if current != nil {
			return nil, false
		}
		return m.generator.GenerateRange(1, available), true
	})
	if replaced {
		m.publishCacheMetrics(version.Value)
		m.logger.Info("cache seeded from emergency generator", "rounds", len(version.Value))
	}
	return version
}

func (m *DataManager) notify(event ChangeEvent) {
	m.subMu.Lock()
	ids := make([]uint64, 0, len(m.subscribers))
	for id := range m.subscribers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	callbacks := make([]func(ChangeEvent), 0, len(ids))
	for _, id := range ids {
		callbacks = append(callbacks, m.subscribers[id])
	}
	m.subMu.Unlock()

	for _, fn := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("change subscriber panicked", "panic", fmt.Sprint(r))
				}
			}()
			fn(event)
		}()
	}
}

func (m *DataManager) publishCacheMetrics(rows []draw.Result) {
	if m.metrics == nil {
		return
	}
	bySource := draw.CountBySource(rows)
	labels := make(map[string]int, len(bySource))
	for source, count := range bySource {
		labels[string(source)] = count
	}
	m.metrics.SetCacheRows(labels, draw.Range(rows).LatestRound)
}

// detachedContext keeps trace values from parent but not its cancellation,
// so a refresh outlives the request that triggered it.
func (m *DataManager) detachedContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(context.WithoutCancel(parent), m.refreshTimeout)
}

// guard turns a panic in a public operation into a successful degraded
// result built by fallback.
func guard[T any](m *DataManager, op string, res *Result[T], fallback func() T) {
	r := recover()
	if r == nil {
		return
	}
	m.logger.Error("data manager operation panicked", "op", op, "panic", fmt.Sprint(r))

	var data T
	func() {
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("fallback panicked", "op", op, "panic", fmt.Sprint(r))
			}
		}()
		data = fallback()
	}()
	*res = succeed(data, messageDegraded)
}

func latestAtOrBefore(rows []draw.Result, round int) (draw.Result, bool) {
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].Round <= round {
			return rows[i], true
		}
	}
	return draw.Result{}, false
}

func descending(rows []draw.Result) []draw.Result {
	out := make([]draw.Result, len(rows))
	for i, row := range rows {
		out[len(rows)-1-i] = row
	}
	return out
}

func containsEmergency(rows []draw.Result) bool {
	for _, row := range rows {
		if row.Source.IsEmergency() {
			return true
		}
	}
	return false
}

func realRows(rows []draw.Result) int {
	n := 0
	for _, row := range rows {
		if !row.Source.IsEmergency() {
			n++
		}
	}
	return n
}
