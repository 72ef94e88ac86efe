package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/lotto-feed/external/lottostats"
	"github.com/riskibarqy/lotto-feed/external/officiallotto"
	"github.com/riskibarqy/lotto-feed/internal/config"
	"github.com/riskibarqy/lotto-feed/internal/domain/draw"
	"github.com/riskibarqy/lotto-feed/internal/infrastructure/verified"
	"github.com/riskibarqy/lotto-feed/internal/interfaces/httpapi"
	"github.com/riskibarqy/lotto-feed/internal/platform/logging"
	"github.com/riskibarqy/lotto-feed/internal/platform/metrics"
	"github.com/riskibarqy/lotto-feed/internal/usecase"
)

// App owns the data manager and the public HTTP server built around it.
type App struct {
	cfg     config.Config
	logger  *logging.Logger
	server  *http.Server
	manager *usecase.DataManager
}

func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	extra, err := verified.LoadFile(cfg.EmergencyVerifiedFile, logger)
	if err != nil {
		return nil, crerr.Wrap(err, "load verified draws")
	}
	if len(extra) == 0 {
		logger.Warn("no recent verified draws loaded; unreachable recent rounds will be synthesized",
			"config_key", "EMERGENCY_VERIFIED_FILE",
		)
	}

	var registry *metrics.Metrics
	if cfg.MetricsEnabled {
		registry = metrics.New()
	}

	officialClient := officiallotto.NewClient(officiallotto.ClientConfig{
		BaseURL:        cfg.OfficialBaseURL,
		Timeout:        cfg.OfficialTimeout,
		Schedule:       cfg.Schedule,
		Logger:         logger.Named("official"),
		CircuitBreaker: cfg.OfficialCircuit,
	})
	upstreams := []usecase.BreakerReporter{officialClient}

	// A nil *lottostats.Client must not reach the merger as a non-nil interface.
	var history draw.HistorySource
	if cfg.SecondaryEnabled {
		statsClient := lottostats.NewClient(lottostats.ClientConfig{
			ProxyURL:       cfg.SecondaryProxyURL,
			TargetURL:      cfg.SecondaryTargetURL,
			Timeout:        cfg.SecondaryTimeout,
			PageSize:       cfg.SecondaryPageSize,
			BatchSize:      cfg.SecondaryBatchSize,
			BatchDelay:     cfg.SecondaryBatchDelay,
			ExtraPages:     cfg.SecondaryExtraPages,
			RatePerSecond:  cfg.SecondaryRatePerSecond,
			Schedule:       cfg.Schedule,
			Logger:         logger.Named("secondary"),
			CircuitBreaker: cfg.SecondaryCircuit,
		})
		history = statsClient
		upstreams = append(upstreams, statsClient)
	} else {
		logger.Warn("secondary source disabled; rounds older than the official window will be synthesized",
			"reason", "SECONDARY_TARGET_URL is empty",
			"official_window", cfg.OfficialRecentWindow,
		)
	}

	merger := usecase.NewHybridMerger(usecase.HybridMergerConfig{
		Official:            officialClient,
		History:             history,
		Schedule:            cfg.Schedule,
		RecentWindow:        cfg.OfficialRecentWindow,
		OfficialConcurrency: cfg.OfficialConcurrency,
		Logger:              logger,
		Metrics:             registry,
	})

	manager := usecase.NewDataManager(usecase.DataManagerConfig{
		Fetcher:         merger,
		Generator:       draw.NewGenerator(cfg.Schedule, extra...),
		Schedule:        cfg.Schedule,
		CacheTTL:        cfg.CacheTTL,
		RefreshInterval: cfg.RefreshInterval,
		RefreshTimeout:  cfg.RefreshTimeout,
		Upstreams:       upstreams,
		Logger:          logger,
		Metrics:         registry,
	})

	opts := httpapi.RouterOptions{
		SwaggerEnabled:     cfg.SwaggerEnabled,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}
	if registry != nil {
		opts.Metrics = registry.Handler()
	}
	router := httpapi.NewRouter(httpapi.NewHandler(manager, logger), logger, opts)

	return &App{
		cfg:     cfg,
		logger:  logger,
		manager: manager,
		server: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}, nil
}

// Handler exposes the router, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run starts the data manager and serves HTTP until ctx is cancelled, then
// shuts both down within the configured shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	if err := a.manager.Start(ctx); err != nil {
		return crerr.Wrap(err, "start data manager")
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			runErr = crerr.Wrap(err, "http server failed")
		}
	}

	return errors.Join(runErr, a.shutdown())
}

func (a *App) shutdown() error {
	timeout := a.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, crerr.Wrap(err, "graceful shutdown"))
	}
	if err := a.manager.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	a.logger.Info("http server stopped")

	return errors.Join(errs...)
}
