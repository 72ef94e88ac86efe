package lottostats

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
	"github.com/riskibarqy/lotto-feed/internal/domain/draw"
	"github.com/riskibarqy/lotto-feed/internal/platform/logging"
	"github.com/riskibarqy/lotto-feed/internal/platform/resilience"
	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout       = 15 * time.Second
	defaultPageSize      = 50
	defaultBatchSize     = 3
	defaultBatchDelay    = 300 * time.Millisecond
	defaultRatePerSecond = 5.0
	maxBodyBytes         = 4 << 20
)

type ClientConfig struct {
	HTTPClient *fasthttp.Client
	// ProxyURL is the intermediary; the page URL is passed to it escaped in
	// the url query parameter. Empty means the target is fetched directly.
	ProxyURL  string
	TargetURL string
	Timeout   time.Duration
	PageSize  int
	BatchSize int
	// BatchDelay pauses between batches. Zero uses the default, negative
	// disables the pause.
	BatchDelay     time.Duration
	ExtraPages     int
	RatePerSecond  float64
	Schedule       draw.Schedule
	Logger         *logging.Logger
	CircuitBreaker resilience.BreakerConfig
}

// Client scrapes the paged history table of the statistics site.
type Client struct {
	httpClient *fasthttp.Client
	proxyURL   string
	targetURL  string
	timeout    time.Duration
	pageSize   int
	batchSize  int
	batchDelay time.Duration
	extraPages int
	limiter    *rate.Limiter
	schedule   draw.Schedule
	logger     *logging.Logger
	breaker    *resilience.Breaker
	now        func() time.Time
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &fasthttp.Client{
			Name:                "lotto-feed",
			MaxResponseBodySize: maxBodyBytes,
			ReadTimeout:         defaultTimeout,
			WriteTimeout:        defaultTimeout,
		}
	}

	schedule := cfg.Schedule
	if schedule.Location == nil {
		schedule = draw.DefaultSchedule()
	}

	ratePerSecond := cfg.RatePerSecond
	if ratePerSecond <= 0 {
		ratePerSecond = defaultRatePerSecond
	}

	breakerCfg := cfg.CircuitBreaker
	if breakerCfg.Name == "" {
		breakerCfg.Name = string(draw.SourceSecondary)
	}

	c := &Client{
		httpClient: httpClient,
		proxyURL:   strings.TrimSpace(cfg.ProxyURL),
		targetURL:  strings.TrimSpace(cfg.TargetURL),
		timeout:    positiveDuration(cfg.Timeout, defaultTimeout),
		pageSize:   positiveInt(cfg.PageSize, defaultPageSize),
		batchSize:  positiveInt(cfg.BatchSize, defaultBatchSize),
		batchDelay: cfg.BatchDelay,
		extraPages: max(cfg.ExtraPages, 0),
		schedule:   schedule,
		logger:     logger.Named("secondary"),
		breaker:    resilience.NewBreaker(breakerCfg),
		now:        time.Now,
	}
	switch {
	case c.batchDelay == 0:
		c.batchDelay = defaultBatchDelay
	case c.batchDelay < 0:
		c.batchDelay = 0
	}
	c.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), c.batchSize)
	return c
}

// FetchPage fetches one page of the history table. Rows that do not parse
// into a valid draw are dropped; an unreachable page is an error wrapping
// draw.ErrSourceUnavailable.
func (c *Client) FetchPage(ctx context.Context, page, pageSize int) ([]draw.Result, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = c.pageSize
	}
	if c.targetURL == "" {
		return nil, crerr.Mark(crerr.New("secondary target url is not configured"), draw.ErrSourceUnavailable)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, crerr.Mark(crerr.Wrapf(err, "wait for rate limiter page=%d", page), draw.ErrSourceUnavailable)
	}

	var body []byte
	err := c.breaker.Execute(func() error {
		raw, fetchErr := c.get(ctx, c.pageURL(page, pageSize))
		body = raw
		return fetchErr
	}, nil)
	if err != nil {
		c.logger.WarnContext(ctx, "secondary page fetch failed", "page", page, "error", err)
		return nil, crerr.Mark(crerr.Wrapf(err, "fetch secondary page %d", page), draw.ErrSourceUnavailable)
	}

	rows, err := parseRows(body, c.schedule, c.now())
	if err != nil {
		c.logger.WarnContext(ctx, "secondary page unparseable", "page", page, "error", err)
		return []draw.Result{}, nil
	}
	return rows, nil
}

type pageResult struct {
	page int
	rows []draw.Result
	err  error
}

// FetchBulk collects at least targetCount distinct rounds when the source has
// them. Pages are fetched BatchSize at a time with a pause between batches.
// A failed or empty page is skipped; the call only fails when every page
// failed to produce anything and at least one page errored.
func (c *Client) FetchBulk(ctx context.Context, targetCount int) ([]draw.Result, error) {
	if targetCount <= 0 {
		return []draw.Result{}, nil
	}

	maxPages := (targetCount+c.pageSize-1)/c.pageSize + c.extraPages

	pool, err := ants.NewPool(c.batchSize)
	if err != nil {
		return nil, crerr.Wrap(err, "create secondary page pool")
	}
	defer pool.Release()

	collected := make(map[int]draw.Result, targetCount)
	failedPages := 0
	for first := 1; first <= maxPages && len(collected) < targetCount; first += c.batchSize {
		if first > 1 && c.batchDelay > 0 {
			timer := time.NewTimer(c.batchDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
			case <-timer.C:
			}
		}
		if ctx.Err() != nil {
			break
		}

		last := min(first+c.batchSize-1, maxPages)
		results := make([]pageResult, 0, last-first+1)
		var mu sync.Mutex
		var workers sync.WaitGroup
		for page := first; page <= last; page++ {
			page := page
			workers.Add(1)
			if err := pool.Submit(func() {
				defer workers.Done()
				rows, fetchErr := c.FetchPage(ctx, page, c.pageSize)
				mu.Lock()
				results = append(results, pageResult{page: page, rows: rows, err: fetchErr})
				mu.Unlock()
			}); err != nil {
				workers.Done()
				mu.Lock()
				results = append(results, pageResult{page: page, err: crerr.Wrap(err, "submit page fetch")})
				mu.Unlock()
			}
		}
		workers.Wait()

		sort.Slice(results, func(i, j int) bool { return results[i].page < results[j].page })
		for _, res := range results {
			if res.err != nil {
				failedPages++
				continue
			}
			if len(res.rows) == 0 {
				c.logger.DebugContext(ctx, "secondary page yielded no rows", "page", res.page)
			}
			for _, row := range res.rows {
				collected[row.Round] = row
			}
		}
	}

	if len(collected) == 0 && failedPages > 0 {
		return nil, crerr.Mark(crerr.Newf("secondary bulk fetch failed on %d pages", failedPages), draw.ErrSourceUnavailable)
	}

	out := make([]draw.Result, 0, len(collected))
	for _, row := range collected {
		out = append(out, row)
	}
	c.logger.InfoContext(ctx, "secondary bulk fetch finished", "target", targetCount, "collected", len(out), "failed_pages", failedPages)
	return draw.SortAscending(out), nil
}

func (c *Client) BreakerSnapshot() resilience.BreakerSnapshot {
	return c.breaker.Snapshot()
}

func (c *Client) pageURL(page, pageSize int) string {
	values := url.Values{}
	values.Set("page", strconv.Itoa(page))
	values.Set("size", strconv.Itoa(pageSize))

	target := c.targetURL
	if strings.Contains(target, "?") {
		target += "&" + values.Encode()
	} else {
		target += "?" + values.Encode()
	}
	if c.proxyURL == "" {
		return target
	}
	return c.proxyURL + "?url=" + url.QueryEscape(target)
}

func (c *Client) get(ctx context.Context, fullURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fullURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "text/html")

	deadline := time.Now().Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := c.httpClient.DoDeadline(req, resp, deadline); err != nil {
		return nil, crerr.Wrap(err, "send request")
	}

	status := resp.StatusCode()
	if status < fasthttp.StatusOK || status >= fasthttp.StatusMultipleChoices {
		return nil, crerr.Newf("secondary status=%d", status)
	}

	// resp is returned to the pool on exit.
	return append([]byte(nil), resp.Body()...), nil
}

func positiveInt(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func positiveDuration(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
