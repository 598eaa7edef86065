package bootstrap

import (
	"context"
	"os"
	"sync"

	"seller_server/adapter/in/worker"
	"seller_server/adapter/out/messaging"
	"seller_server/config"
	"seller_server/pkg/logger"

	"github.com/rs/zerolog"
)

// Worker runs the background side: the Redis Stream consumer feeding the
// worker pool, plus the poll scheduler that queues periodic ingestion runs.
type Worker struct {
	pool     *worker.Pool
	consumer *messaging.Consumer
	poller   *worker.PollScheduler
	deps     *Dependencies
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	zlog     zerolog.Logger
}

func NewWorker(cfg *config.Config, deps *Dependencies) (*Worker, error) {
	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		With().Timestamp().Str("component", "worker").Logger()

	syncProcessor := worker.NewSyncProcessor(deps.MessageService)
	responseProcessor := worker.NewResponseProcessor(deps.AutoResponder)
	handler := worker.NewHandler(syncProcessor, responseProcessor)

	poolConfig := worker.DefaultPoolConfig()
	if cfg.WorkerCount > 0 {
		poolConfig.Workers = cfg.WorkerCount
	}
	if cfg.WorkerQueueSize > 0 {
		poolConfig.QueueSize = cfg.WorkerQueueSize
	}
	if cfg.JobTimeout > 0 {
		poolConfig.JobTimeout = cfg.JobTimeout
	}

	pool := worker.NewPool(handler, poolConfig, zlog)

	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		pool:   pool,
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
		zlog:   zlog,
	}

	if deps.Redis != nil {
		streams := []string{
			messaging.StreamMessageSync,
			messaging.StreamAutoResponse,
		}
		w.consumer = messaging.NewConsumer(deps.Redis, &messaging.ConsumerConfig{
			Group:    "seller-workers",
			Consumer: cfg.WorkerID,
			Streams:  streams,
			Handler:  worker.NewStreamBridge(pool),
			Logger:   zlog,
		})
		logger.Info("Redis Stream Consumer configured for %d streams", len(streams))
	} else {
		logger.Warn("Redis not available, worker will only process direct submissions")
	}

	if cfg.PollEnabled && deps.Producer != nil {
		w.poller = worker.NewPollScheduler(deps.UserRepo, deps.Producer, cfg.PollInterval)
	}

	return w, nil
}

func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pool.Start()
	}()

	if w.consumer != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.zlog.Info().Msg("Starting Redis Stream Consumer...")
			if err := w.consumer.Run(w.ctx); err != nil && err != context.Canceled {
				w.zlog.Error().Err(err).Msg("Redis Stream Consumer error")
			}
		}()
	}

	if w.poller != nil {
		w.poller.Start()
		w.zlog.Info().Msg("Started ingestion poll scheduler")
	}

	<-w.ctx.Done()
}

func (w *Worker) Stop() {
	w.cancel()

	if w.poller != nil {
		w.poller.Stop()
	}

	w.pool.Stop()
	w.wg.Wait()
}

func (w *Worker) Submit(msg *worker.Message) bool {
	return w.pool.Submit(msg)
}

func (w *Worker) GetMetrics() worker.PoolMetrics {
	return w.pool.GetMetrics()
}

func (w *Worker) Dependencies() *Dependencies {
	return w.deps
}
