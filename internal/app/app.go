// Package app builds the quiz engine's dependency graph from a Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/abhisek/satquiz/internal/concepts"
	"github.com/abhisek/satquiz/internal/config"
	"github.com/abhisek/satquiz/internal/messaging"
	"github.com/abhisek/satquiz/internal/progress"
	"github.com/abhisek/satquiz/internal/questions"
	"github.com/abhisek/satquiz/internal/quiz"
	"github.com/abhisek/satquiz/internal/ranking"
	"github.com/abhisek/satquiz/internal/store"
	"github.com/abhisek/satquiz/internal/worker"
)

// jobTimeout bounds each best-effort collaborator call.
const jobTimeout = 10 * time.Second

// App holds the constructed services. Close releases everything New opened.
type App struct {
	Config     config.Config
	Store      *store.Store
	Progress   *progress.Service
	Quiz       *quiz.Service
	Importer   *questions.Importer
	Tallies    *concepts.SQLTracker
	Ranking    ranking.Cache
	Dispatcher *worker.Dispatcher
	Logger     *slog.Logger

	// MQ is nil unless an AMQP URL is configured.
	MQ *messaging.RabbitMQClient

	closers []func() error
}

// Options overrides parts of the graph, mainly for tests.
type Options struct {
	// Store replaces opening cfg.DB.
	Store *store.Store
	// Ranking replaces the Redis connection.
	Ranking ranking.Cache
}

// New opens the store and optional collaborators and wires the services.
// Redis and RabbitMQ failures degrade to no-op collaborators.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	a := &App{Config: cfg, Logger: logger}

	st := opts.Store
	if st == nil {
		dsn, err := resolveDSN(cfg)
		if err != nil {
			return nil, err
		}
		st, err = store.Open(cfg.DBDriver, dsn)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.closers = append(a.closers, st.Close)
	}
	a.Store = st

	a.Ranking = opts.Ranking
	if a.Ranking == nil {
		a.Ranking = a.openRanking(cfg)
	}

	a.Tallies = concepts.NewSQLTracker(st)
	var tracker concepts.Tracker = a.Tallies
	if cfg.AMQPURL != "" {
		mq, err := messaging.NewRabbitMQClient(cfg.AMQPURL)
		if err != nil {
			logger.Warn("rabbitmq unavailable, writing concept tallies directly", "error", err)
		} else {
			a.MQ = mq
			a.closers = append(a.closers, mq.Close)
			tracker = concepts.NewPublisher(mq, cfg.ConceptQueue)
		}
	}

	a.Dispatcher = worker.NewDispatcher(cfg.Workers, cfg.Workers*16, jobTimeout, logger)

	a.Progress = progress.NewService(st, progress.RetryPolicy{
		MaxAttempts: cfg.RetryAttempts,
		Backoff:     cfg.RetryBackoff,
	}, logger)

	recorder := quiz.NewRecorder(quiz.RecorderDeps{
		Sessions: st,
		Source:   st,
		Progress: a.Progress,
		Concepts: tracker,
		Ranking:  a.Ranking,
		Dispatch: a.Dispatcher,
		Logger:   logger,
	}, cfg.PassThreshold)
	assembler := quiz.NewAssembler(st, a.Progress, nil, logger)
	a.Quiz = quiz.NewService(quiz.Config{
		QuizSize:      cfg.QuizSize,
		PassThreshold: cfg.PassThreshold,
	}, st, st, a.Progress, assembler, recorder, logger)

	a.Importer = questions.NewImporter(st, logger)

	logger.Debug("app ready", "driver", cfg.DBDriver, "redis", cfg.Redis.Addr != "", "amqp", a.MQ != nil)
	return a, nil
}

func (a *App) openRanking(cfg config.Config) ranking.Cache {
	if cfg.Redis.Addr == "" {
		return ranking.Nop{}
	}
	rc, err := ranking.NewRedisCache(ranking.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		a.Logger.Warn("redis unavailable, ranking disabled", "error", err)
		return ranking.Nop{}
	}
	a.closers = append(a.closers, rc.Close)
	return rc
}

// Close drains pending background jobs, then closes connections in
// reverse order of opening.
func (a *App) Close() error {
	if a.Dispatcher != nil {
		a.Dispatcher.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func resolveDSN(cfg config.Config) (string, error) {
	if cfg.DB != "" {
		if cfg.DBDriver == store.DriverSQLite {
			return cfg.DB, store.EnsureDir(cfg.DB)
		}
		return cfg.DB, nil
	}
	return store.DefaultDBPath()
}
