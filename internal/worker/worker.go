package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"botadmin/internal/metrics"
	"botadmin/internal/queue"
	"botadmin/internal/store"
)

// ProcessFunc ingests one uploaded file; the default simulates the work.
// A real deployment would extract text and push embeddings here.
type ProcessFunc func(ctx context.Context, job queue.FileJob) error

type Worker struct {
	store         *store.Store
	queue         *queue.StreamQueue
	process       ProcessFunc
	stageDelay    time.Duration
	maxJobRetries int
	logger        zerolog.Logger
	metrics       *metrics.Metrics
}

type Config struct {
	Store         *store.Store
	Queue         *queue.StreamQueue
	Process       ProcessFunc
	StageDelay    time.Duration
	MaxJobRetries int
	Logger        zerolog.Logger
	Metrics       *metrics.Metrics
}

func New(cfg Config) *Worker {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	if cfg.StageDelay <= 0 {
		cfg.StageDelay = 500 * time.Millisecond
	}
	if cfg.MaxJobRetries < 0 {
		cfg.MaxJobRetries = 0
	}
	w := &Worker{
		store:         cfg.Store,
		queue:         cfg.Queue,
		process:       cfg.Process,
		stageDelay:    cfg.StageDelay,
		maxJobRetries: cfg.MaxJobRetries,
		logger:        cfg.Logger,
		metrics:       m,
	}
	if w.process == nil {
		w.process = w.simulateIngestion
	}
	return w
}

func (w *Worker) Start(ctx context.Context, concurrency int) error {
	if err := w.queue.EnsureGroup(ctx); err != nil {
		return err
	}
	if concurrency < 1 {
		concurrency = 1
	}

	wg := sync.WaitGroup{}
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			w.consumeLoop(ctx, slot)
		}(i)
	}

	<-ctx.Done()
	wg.Wait()
	return nil
}

func (w *Worker) consumeLoop(ctx context.Context, slot int) {
	log := w.logger.With().Int("slot", slot).Logger()
	for {
		if err := ctx.Err(); err != nil {
			return
		}

		messages, err := w.queue.Read(ctx, 1)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("failed to read queue")
			time.Sleep(1 * time.Second)
			continue
		}

		for _, msg := range messages {
			w.handle(ctx, log, msg)
		}
	}
}

func (w *Worker) handle(ctx context.Context, log zerolog.Logger, msg queue.Message) {
	job := msg.Job
	log = log.With().Str("job_id", job.JobID).Str("bot_id", job.BotID).Int64("file_id", job.FileID).Logger()

	// A bot or file deleted while the job sat in the queue is not an
	// error; drop the job.
	bot, ok := w.store.BotByID(job.BotID)
	if !ok || !hasFile(bot, job.FileID) {
		log.Debug().Msg("job target gone, dropping")
		w.ack(ctx, log, msg.ID)
		return
	}

	if err := w.process(ctx, job); err != nil {
		if ctx.Err() != nil {
			return
		}
		w.metrics.FailedJobs.Inc()
		if job.Attempts+1 > w.maxJobRetries {
			log.Error().Err(err).Int("attempts", job.Attempts+1).Msg("file processing failed permanently")
			w.store.SetFileStatus(job.BotID, job.FileID, store.FileError, err.Error())
			w.ack(ctx, log, msg.ID)
			return
		}
		job.Attempts++
		log.Warn().Err(err).Int("attempt", job.Attempts).Msg("file processing failed, requeueing")
		if _, qerr := w.queue.Enqueue(ctx, job); qerr != nil {
			log.Error().Err(qerr).Msg("failed to requeue job")
		}
		w.ack(ctx, log, msg.ID)
		return
	}

	w.metrics.ProcessedJobs.Inc()
	log.Info().Msg("file processed")
	w.ack(ctx, log, msg.ID)
}

// simulateIngestion walks the file through every pipeline stage with a fixed
// delay per stage and marks it ready. It aborts when the file vanishes
// mid-flight.
func (w *Worker) simulateIngestion(ctx context.Context, job queue.FileJob) error {
	stages := []store.FileStatus{
		store.FileProcessingUpload,
		store.FilePendingRAG,
		store.FileProcessingRAG,
		store.FileReady,
	}
	for _, st := range stages {
		if !w.store.SetFileStatus(job.BotID, job.FileID, st, "") {
			return nil
		}
		if st == store.FileReady {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.stageDelay):
		}
	}
	return nil
}

func (w *Worker) ack(ctx context.Context, log zerolog.Logger, messageID string) {
	if err := w.queue.Ack(ctx, messageID); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("failed to ack message")
	}
}

func hasFile(b store.Bot, fileID int64) bool {
	for _, f := range b.Files {
		if f.ID == fileID {
			return true
		}
	}
	return false
}
