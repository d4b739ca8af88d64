package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meridianedu/assess-backend/internal/config"
	"github.com/meridianedu/assess-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	CompletionBatchSize    = 50
	CompletionBatchTimeout = 2 * time.Second
	CompletionPollTimeout  = 1 * time.Second
)

// CompletionWorker marks attempts SUBMITTED after their submission row
// lands. It drains the completion write-behind queue in batches.
type CompletionWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewCompletionWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *CompletionWorker {
	return &CompletionWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "completion_worker").Logger(),
	}
}

type completionPayload struct {
	AttemptID  string    `json:"attempt_id"`
	FinishedAt time.Time `json:"finished_at"`
}

func (w *CompletionWorker) Start(ctx context.Context) {
	w.log.Info().Msg("CompletionWorker started")

	batch := make([]*completionPayload, 0, CompletionBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= CompletionBatchSize || time.Since(lastFlush) >= CompletionBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, CompletionPollTimeout, config.WorkerKey.PersistAttemptsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p completionPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

func (w *CompletionWorker) flushSafe(ctx context.Context, batch []*completionPayload) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkMarkSubmitted(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk attempt completion failed, using fallback")

		for _, p := range batch {
			if err := w.persistSingle(ctx, p); err != nil {
				w.log.Error().Err(err).Msg("persistSingle failed — requeueing")
				raw, _ := json.Marshal(p)
				w.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, raw)
			}
		}
	}
}

func (w *CompletionWorker) bulkMarkSubmitted(ctx context.Context, batch []*completionPayload) error {
	n := len(batch)

	ids := make([]uuid.UUID, 0, n)
	finishedAts := make([]time.Time, 0, n)

	for _, p := range batch {
		aID, err := uuid.Parse(p.AttemptID)
		if err != nil {
			return err
		}
		ids = append(ids, aID)
		finishedAts = append(finishedAts, p.FinishedAt)
	}

	_, err := w.pool.Exec(ctx,
		`UPDATE attempts AS a
		 SET status = $1, finished_at = u.finished_at
		 FROM UNNEST($2::uuid[], $3::timestamptz[]) AS u(id, finished_at)
		 WHERE a.id = u.id AND a.status = $4`,
		model.AttemptStatusSubmitted, ids, finishedAts, model.AttemptStatusInProgress)
	return err
}

func (w *CompletionWorker) persistSingle(ctx context.Context, p *completionPayload) error {
	aID, err := uuid.Parse(p.AttemptID)
	if err != nil {
		return err
	}

	_, err = w.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = $1, finished_at = $2
		 WHERE id = $3 AND status = $4`,
		model.AttemptStatusSubmitted, p.FinishedAt, aID, model.AttemptStatusInProgress)
	return err
}
