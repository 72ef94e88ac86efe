package officiallotto

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/lotto-feed/internal/domain/draw"
	"github.com/riskibarqy/lotto-feed/internal/platform/logging"
	"github.com/riskibarqy/lotto-feed/internal/platform/resilience"
	"github.com/valyala/bytebufferpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultBaseURL = "https://www.dhlottery.co.kr/common.do"
	defaultTimeout = 5 * time.Second
	maxBodyBytes   = 1 << 20

	statusSuccess = "success"
)

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	Timeout        time.Duration
	Schedule       draw.Schedule
	Logger         *logging.Logger
	CircuitBreaker resilience.BreakerConfig
}

// Client reads single rounds from the official lottery endpoint. It never
// retries; a failed call is reported once and left to the caller.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
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
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	schedule := cfg.Schedule
	if schedule.Location == nil {
		schedule = draw.DefaultSchedule()
	}

	breakerCfg := cfg.CircuitBreaker
	if breakerCfg.Name == "" {
		breakerCfg.Name = string(draw.SourceOfficial)
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		timeout:    timeout,
		schedule:   schedule,
		logger:     logger.Named("official"),
		breaker:    resilience.NewBreaker(breakerCfg),
		now:        time.Now,
	}
}

type roundPayload struct {
	ReturnValue    string `json:"returnValue"`
	DrwNo          int    `json:"drwNo"`
	DrwNoDate      string `json:"drwNoDate"`
	DrwtNo1        int    `json:"drwtNo1"`
	DrwtNo2        int    `json:"drwtNo2"`
	DrwtNo3        int    `json:"drwtNo3"`
	DrwtNo4        int    `json:"drwtNo4"`
	DrwtNo5        int    `json:"drwtNo5"`
	DrwtNo6        int    `json:"drwtNo6"`
	BnusNo         int    `json:"bnusNo"`
	FirstWinamnt   int64  `json:"firstWinamnt"`
	FirstPrzwnerCo int    `json:"firstPrzwnerCo"`
	TotSellamnt    int64  `json:"totSellamnt"`
	FirstAccumamnt int64  `json:"firstAccumamnt"`
}

// FetchRound returns the official result for round. found is false when the
// upstream answers with anything other than a valid published row.
func (c *Client) FetchRound(ctx context.Context, round int) (draw.Result, bool, error) {
	if round <= 0 {
		return draw.Result{}, false, nil
	}

	var payload roundPayload
	err := c.breaker.Execute(func() error {
		return c.fetch(ctx, round, &payload)
	}, nil)
	if err != nil {
		if crerr.Is(err, resilience.ErrCircuitOpen) {
			c.logger.WarnContext(ctx, "official circuit breaker rejected request", "round", round, "state", c.breaker.State())
		} else {
			c.logger.WarnContext(ctx, "official request failed", "round", round, "error", err)
		}
		return draw.Result{}, false, crerr.Mark(crerr.Wrapf(err, "fetch official round %d", round), draw.ErrSourceUnavailable)
	}

	if payload.ReturnValue != statusSuccess {
		c.logger.DebugContext(ctx, "official round not published", "round", round, "return_value", payload.ReturnValue)
		return draw.Result{}, false, nil
	}

	result := c.toResult(payload)
	if result.Round != round {
		c.logger.WarnContext(ctx, "official payload round mismatch", "round", round, "payload_round", payload.DrwNo)
		return draw.Result{}, false, nil
	}
	if err := result.Validate(); err != nil {
		c.logger.WarnContext(ctx, "official payload rejected", "round", round, "error", err)
		return draw.Result{}, false, nil
	}
	return result, true, nil
}

func (c *Client) BreakerSnapshot() resilience.BreakerSnapshot {
	return c.breaker.Snapshot()
}

func (c *Client) fetch(ctx context.Context, round int, target *roundPayload) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	values := url.Values{}
	values.Set("method", "getLottoNumber")
	values.Set("drwNo", strconv.Itoa(round))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+values.Encode(), nil)
	if err != nil {
		return crerr.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return crerr.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if _, err := buf.ReadFrom(io.LimitReader(resp.Body, maxBodyBytes)); err != nil {
		return crerr.Wrap(err, "read response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return crerr.Newf("official status=%d body=%s", resp.StatusCode, abbreviate(buf.String()))
	}

	// ConfigStd copies strings out of the pooled buffer.
	if err := sonic.ConfigStd.Unmarshal(buf.B, target); err != nil {
		return crerr.Wrap(err, "decode official payload")
	}
	return nil
}

func (c *Client) toResult(p roundPayload) draw.Result {
	date, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(p.DrwNoDate), c.schedule.Location)
	if err != nil {
		date = c.schedule.DrawDate(p.DrwNo)
	}

	result := draw.Result{
		Round:     p.DrwNo,
		Date:      date,
		Numbers:   [draw.NumbersPerDraw]int{p.DrwtNo1, p.DrwtNo2, p.DrwtNo3, p.DrwtNo4, p.DrwtNo5, p.DrwtNo6},
		Bonus:     p.BnusNo,
		Source:    draw.SourceOfficial,
		FetchedAt: c.now(),
	}
	if p.FirstWinamnt > 0 || p.TotSellamnt > 0 {
		result.Prize = &draw.Prize{
			FirstPrizeAmount:  p.FirstWinamnt,
			FirstPrizeWinners: p.FirstPrzwnerCo,
			TotalSales:        p.TotSellamnt,
			AccumulatedAmount: p.FirstAccumamnt,
		}
	}
	return result.Normalize()
}

func abbreviate(body string) string {
	body = strings.TrimSpace(body)
	if len(body) <= 256 {
		return body
	}
	return fmt.Sprintf("%s...(%d bytes)", body[:256], len(body))
}
