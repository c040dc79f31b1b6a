// Package app provides application-level wiring and dependency injection
// for the cloudsathi API server.
package app

import (
	"context"
	"log/slog"

	"cloudsathi/internal/api"
	"cloudsathi/internal/awsutil"
	"cloudsathi/internal/config"
	"cloudsathi/internal/metrics"
	"cloudsathi/internal/service/athena"
	"cloudsathi/internal/service/azurecost"
	"cloudsathi/internal/service/costexplorer"
	"cloudsathi/internal/service/cur"
	"cloudsathi/internal/service/curlocal"
	"cloudsathi/internal/service/recommend"
	"cloudsathi/internal/service/summary"
)

// Deps holds the external dependencies that main() must provide.
type Deps struct {
	Cfg    *config.Config
	Logger *slog.Logger
	// Clients override the SDK client factories; nil fields use the real SDKs.
	Clients Clients
}

// Clients lets tests substitute provider SDK clients.
type Clients struct {
	CostExplorer costexplorer.ClientFactory
	Azure        azurecost.ClientFactory
	Athena       athena.API
	Recommender  recommend.Recommender
	Ready        map[string]api.ReadinessCheck
}

// Services groups all service pointers that the API handler and router need.
type Services struct {
	CostExplorer *costexplorer.Service
	Azure        *azurecost.Service
	Athena       *athena.Runner
	CURLocal     *curlocal.Runner
	CUR          *cur.Service
	Summary      *summary.Service
	Recommend    *recommend.Service
}

// App holds the fully-wired application.
type App struct {
	Services Services
	Handler  *api.APIHandler
	Metrics  *metrics.Metrics
}

// Close releases resources held by the services.
func (a *App) Close() error {
	if a.Services.CURLocal != nil {
		return a.Services.CURLocal.Close()
	}
	return nil
}

// New wires all services and the API handler from the provided deps.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	logger := deps.Logger
	m := metrics.New()

	// === AWS ===
	ceFactory := deps.Clients.CostExplorer
	if ceFactory == nil {
		ceFactory = costexplorer.NewClient
	}
	ceSvc := costexplorer.NewService(cfg.AWS, ceFactory, logger, m)

	runner := newAthenaRunner(cfg.AWS, deps.Clients.Athena, logger, m)
	var (
		curRunner cur.Runner = runner
		local     *curlocal.Runner
	)
	switch {
	case cfg.AWS.CURLocalPath != "":
		var err error
		local, err = curlocal.Open(ctx, cfg.AWS.CURLocalPath, cfg.AWS.AthenaTable, logger)
		if err != nil {
			return nil, err
		}
		curRunner = local
		logger.Info("CUR endpoints read local export files", "source", local.Source(), "table", cfg.AWS.AthenaTable)
	case runner.MockMode():
		logger.Warn("AWS credentials not configured; CUR endpoints serve canned rows")
	}
	curSvc := cur.NewService(cfg.AWS, curRunner, logger)

	// === Azure ===
	azFactory := deps.Clients.Azure
	if azFactory == nil {
		azFactory = azurecost.NewClient
	}
	azSvc := azurecost.NewService(cfg.Azure, azFactory, logger, m)

	// === Recommendations ===
	backend := deps.Clients.Recommender
	if backend == nil && cfg.Recommender.URL != "" {
		backend = recommend.NewInferenceClient(cfg.Recommender.URL, cfg.Recommender.Timeout)
	}
	recSvc := recommend.NewService(backend, cfg.Recommender.Mock, logger, m)
	if !recSvc.Available() {
		logger.Warn("no recommender configured; /api/recommendations will return 503")
	}

	sumSvc := summary.NewService(ceSvc, azSvc)

	// === Readiness ===
	ready := deps.Clients.Ready
	if ready == nil {
		ready = map[string]api.ReadinessCheck{}
		if local != nil {
			ready["cur_local_files"] = local
		}
		if cfg.AWS.HasCredentials() {
			checker, err := awsutil.NewS3BucketChecker(cfg.AWS)
			if err != nil {
				logger.Warn("athena output location not checkable", "location", cfg.AWS.AthenaOutputLocation, "error", err)
			} else {
				logger.Debug("readiness check registered", "check", "athena_output_bucket", "bucket", checker.Bucket())
				ready["athena_output_bucket"] = checker
			}
		}
	}

	handler := api.NewHandler(api.Deps{
		AWS:       ceSvc,
		Azure:     azSvc,
		CUR:       curSvc,
		Summary:   sumSvc,
		Recommend: recSvc,
		Ready:     ready,
		Logger:    logger,
	})

	return &App{
		Services: Services{
			CostExplorer: ceSvc,
			Azure:        azSvc,
			Athena:       runner,
			CURLocal:     local,
			CUR:          curSvc,
			Summary:      sumSvc,
			Recommend:    recSvc,
		},
		Handler: handler,
		Metrics: m,
	}, nil
}

func newAthenaRunner(cfg config.AWSConfig, client athena.API, logger *slog.Logger, m *metrics.Metrics) *athena.Runner {
	if client != nil {
		return athena.NewRunner(client, athena.Options{PollInterval: cfg.PollInterval, QueryTimeout: cfg.QueryTimeout}, logger, m)
	}
	return athena.NewFromConfig(cfg, logger, m)
}
