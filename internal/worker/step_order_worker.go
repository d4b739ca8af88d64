package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meridianedu/assess-backend/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	StepOrderBatchSize    = 50
	StepOrderBatchTimeout = 2 * time.Second
	StepOrderPollTimeout  = 1 * time.Second
)

// StepOrderWorker persists each attempt's shuffled step sequence. The
// order is deterministic per student, so this is audit data rather than
// state the session needs back.
type StepOrderWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewStepOrderWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *StepOrderWorker {
	return &StepOrderWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "step_order_worker").Logger(),
	}
}

type stepOrderPayload struct {
	AttemptID string   `json:"attempt_id"`
	StepOrder []string `json:"step_order"`
}

func (w *StepOrderWorker) Start(ctx context.Context) {
	w.log.Info().Msg("StepOrderWorker started")

	batch := make([]*stepOrderPayload, 0, StepOrderBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= StepOrderBatchSize || time.Since(lastFlush) >= StepOrderBatchTimeout) {

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
			item, err := w.rdb.BLPop(ctx, StepOrderPollTimeout, config.WorkerKey.PersistStepOrderQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p stepOrderPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

func (w *StepOrderWorker) flushSafe(ctx context.Context, batch []*stepOrderPayload) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkUpdate(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk step order update failed, using fallback")

		for _, p := range batch {
			if err := w.persistSingle(ctx, p); err != nil {
				w.log.Error().Err(err).Msg("persistSingle failed — requeueing")
				raw, _ := json.Marshal(p)
				w.rdb.RPush(ctx, config.WorkerKey.PersistStepOrderQueue, raw)
			}
		}
	}
}

func (w *StepOrderWorker) bulkUpdate(ctx context.Context, batch []*stepOrderPayload) error {
	n := len(batch)

	ids := make([]uuid.UUID, 0, n)
	orders := make([][]string, 0, n)

	for _, p := range batch {
		aID, err := uuid.Parse(p.AttemptID)
		if err != nil {
			return err
		}
		ids = append(ids, aID)
		orders = append(orders, p.StepOrder)
	}

	// text[][] cannot carry ragged rows through UNNEST, so the orders go
	// across as JSON and are decoded back to text[] in SQL.
	ordersBytes := make([][]byte, n)
	for i, o := range orders {
		ordersBytes[i], _ = json.Marshal(o)
	}

	_, err := w.pool.Exec(ctx,
		`UPDATE attempts AS a
		 SET step_order = ARRAY(SELECT jsonb_array_elements_text(u.so))
		 FROM UNNEST($1::uuid[], $2::jsonb[]) AS u(id, so)
		 WHERE a.id = u.id`,
		ids, ordersBytes)
	return err
}

func (w *StepOrderWorker) persistSingle(ctx context.Context, p *stepOrderPayload) error {
	aID, err := uuid.Parse(p.AttemptID)
	if err != nil {
		return err
	}

	_, err = w.pool.Exec(ctx,
		`UPDATE attempts SET step_order = $1 WHERE id = $2`,
		p.StepOrder, aID)
	return err
}
