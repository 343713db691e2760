package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/fmuoria/interview-portal/internal/agent"
	"github.com/fmuoria/interview-portal/internal/api"
	"github.com/fmuoria/interview-portal/internal/auth"
	"github.com/fmuoria/interview-portal/internal/cache"
	"github.com/fmuoria/interview-portal/internal/config"
	"github.com/fmuoria/interview-portal/internal/events"
	"github.com/fmuoria/interview-portal/internal/ingestion"
	"github.com/fmuoria/interview-portal/internal/interview"
	"github.com/fmuoria/interview-portal/internal/llm"
	"github.com/fmuoria/interview-portal/internal/scoring"
	"github.com/fmuoria/interview-portal/internal/storage"
	"github.com/fmuoria/interview-portal/internal/telemetry"
)

const serviceName = "interview-portal"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app := fx.New(
		fx.Supply(cfg),
		fx.StopTimeout(cfg.ShutdownTimeout),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
		fx.Provide(
			newLogger,
			newInterviewConfig,
			newStore,
			newCache,
			newPublisher,
			newGenerator,
			newApplicantScorer,
			newEvaluator,
			newResumeParser,
			interview.NewQuestionGenerator,
			newManager,
			newFileHandler,
			newAttachmentFetcher,
			newScreener,
			newAuthService,
			newServer,
		),
		fx.Invoke(startTracing, runHTTPServer),
	)

	app.Run()
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newInterviewConfig(cfg *config.Config) (*config.InterviewConfig, error) {
	return config.LoadInterviewConfig(cfg.InterviewConfigPath)
}

func newStore(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*storage.Store, error) {
	store, err := storage.Open(context.Background(), cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	logger.Info("database opened", zap.String("path", cfg.DatabasePath))

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return store.Close() },
	})
	return store, nil
}

// newCache uses Redis when REDIS_ADDR is set and an in-process cache otherwise
func newCache(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (cache.Cache, error) {
	opts := cache.DefaultOptions()
	opts.DefaultTTL = cfg.JobsCacheTTL

	var c cache.Cache
	if cfg.RedisAddr != "" {
		opts.RedisAddr = cfg.RedisAddr
		opts.RedisPassword = cfg.RedisPassword
		opts.RedisDB = cfg.RedisDB

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rc, err := cache.NewRedis(ctx, opts)
		if err != nil {
			return nil, err
		}
		logger.Info("using redis cache", zap.String("addr", cfg.RedisAddr))
		c = rc
	} else {
		logger.Info("using in-memory cache")
		c = cache.NewMemory(opts)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return c.Close() },
	})
	return c, nil
}

// newPublisher uses NATS when NATS_URL is set and logs events otherwise
func newPublisher(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (events.Publisher, error) {
	var p events.Publisher
	if cfg.NATSURL != "" {
		np, err := events.NewNATSPublisher(logger, cfg.NATSURL, cfg.NATSConnTimeout)
		if err != nil {
			return nil, err
		}
		p = np
	} else {
		logger.Info("NATS_URL not set, domain events are only logged")
		p = events.NewLogPublisher(logger)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			p.Close()
			return nil
		},
	})
	return p, nil
}

// newGenerator returns nil when Vertex AI is not configured; every consumer
// then falls back to heuristics
func newGenerator(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (llm.Generator, error) {
	if !cfg.LLMEnabled() {
		logger.Warn("GOOGLE_CLOUD_PROJECT not set, using heuristic parsing, bank questions and fallback scoring")
		return nil, nil
	}

	client, err := llm.NewVertexAIClient(context.Background(), llm.Options{
		ProjectID: cfg.GoogleCloudProject,
		Location:  cfg.GoogleCloudLocation,
		Model:     cfg.LLMModel,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("vertex ai enabled",
		zap.String("project", cfg.GoogleCloudProject),
		zap.String("model", cfg.LLMModel))

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return client.Close() },
	})
	return client, nil
}

func newApplicantScorer(gen llm.Generator) scoring.ApplicantScorer {
	if gen == nil {
		return nil
	}
	return scoring.NewScorer(gen)
}

func newEvaluator(gen llm.Generator, logger *zap.Logger) scoring.Evaluator {
	fallback := scoring.NewRandomEvaluator(time.Now().UnixNano())
	if gen == nil {
		return fallback
	}
	return scoring.NewLLMEvaluator(gen, fallback, logger)
}

func newResumeParser(gen llm.Generator, icfg *config.InterviewConfig, logger *zap.Logger) *ingestion.ResumeParser {
	return ingestion.NewResumeParser(gen, icfg.Skills, logger)
}

// newManager restores interview timers on start and stops them on shutdown
func newManager(lc fx.Lifecycle, store *storage.Store, generator *interview.QuestionGenerator, evaluator scoring.Evaluator,
	publisher events.Publisher, icfg *config.InterviewConfig, logger *zap.Logger) *interview.Manager {
	m := interview.NewManager(store, generator, evaluator, publisher, icfg, logger)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { return m.Restore(ctx) },
		OnStop: func(context.Context) error {
			m.Stop()
			return nil
		},
	})
	return m
}

func newFileHandler(cfg *config.Config) *ingestion.FileHandler {
	return ingestion.NewFileHandler(cfg.UploadsDir)
}

// newAttachmentFetcher returns nil unless Gmail credentials and an authorized token exist
func newAttachmentFetcher(cfg *config.Config, logger *zap.Logger) agent.AttachmentFetcher {
	if _, err := os.Stat(cfg.GmailCredentialsPath); err != nil {
		logger.Info("gmail import disabled, credentials not found", zap.String("path", cfg.GmailCredentialsPath))
		return nil
	}

	gh, err := ingestion.NewGmailHandler(context.Background(), cfg.GmailCredentialsPath, cfg.GmailTokenPath, logger)
	if err != nil {
		logger.Warn("gmail import disabled", zap.Error(err))
		return nil
	}
	return gh
}

func newScreener(store *storage.Store, scorer scoring.ApplicantScorer, files *ingestion.FileHandler,
	gmail agent.AttachmentFetcher, publisher events.Publisher, logger *zap.Logger) *agent.Screener {
	return agent.NewScreener(store, scorer, files, gmail, publisher, logger)
}

func newAuthService(store *storage.Store, cfg *config.Config, logger *zap.Logger) *auth.Service {
	return auth.NewService(store, auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL), logger)
}

func newServer(cfg *config.Config, store *storage.Store, authService *auth.Service, manager *interview.Manager,
	screener *agent.Screener, parser *ingestion.ResumeParser, files *ingestion.FileHandler,
	c cache.Cache, publisher events.Publisher, logger *zap.Logger) *api.Server {
	return api.NewServer(api.Deps{
		Store:              store,
		Auth:               authService,
		Interviews:         manager,
		Screener:           screener,
		Parser:             parser,
		Files:              files,
		Cache:              c,
		Publisher:          publisher,
		JobsCacheTTL:       cfg.JobsCacheTTL,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		AllowedOrigins:     cfg.AllowedOrigins,
		Logger:             logger,
	})
}

func startTracing(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) {
	if cfg.OTELCollectorURL == "" {
		return
	}

	var shutdown func(context.Context) error
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			shutdown, err = telemetry.InitTracer(ctx, serviceName, cfg.OTELCollectorURL)
			if err != nil {
				return err
			}
			logger.Info("tracing enabled", zap.String("collector", cfg.OTELCollectorURL))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if shutdown == nil {
				return nil
			}
			return shutdown(ctx)
		},
	})
}

func runHTTPServer(lc fx.Lifecycle, cfg *config.Config, server *api.Server, logger *zap.Logger) {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			logger.Info("starting interview portal", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down http server")
			return srv.Shutdown(ctx)
		},
	})
}
