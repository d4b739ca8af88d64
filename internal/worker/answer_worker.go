package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/meridianedu/assess-backend/internal/config"
	"github.com/meridianedu/assess-backend/internal/model"
	"github.com/meridianedu/assess-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	AnswerBatchSize    = 100
	AnswerBatchTimeout = 2 * time.Second
	AnswerPollTimeout  = 1 * time.Second
)

// AnswerWorker drains the answer write-behind queue into attempt_answers.
type AnswerWorker struct {
	attemptRepo *repository.AttemptRepository
	rdb         *redis.Client
	log         zerolog.Logger
}

func NewAnswerWorker(attemptRepo *repository.AttemptRepository, rdb *redis.Client, log zerolog.Logger) *AnswerWorker {
	return &AnswerWorker{
		attemptRepo: attemptRepo,
		rdb:         rdb,
		log:         log.With().Str("component", "answer_worker").Logger(),
	}
}

type answerPayload struct {
	AttemptID string `json:"attempt_id"`
	StepID    string `json:"step_id"`
	Value     string `json:"value"`
	Index     *int   `json:"index,omitempty"`
}

func (w *AnswerWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AnswerWorker started")

	batch := make([]*answerPayload, 0, AnswerBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= AnswerBatchSize || time.Since(lastFlush) >= AnswerBatchTimeout) {

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
			item, err := w.rdb.BLPop(ctx, AnswerPollTimeout, config.WorkerKey.PersistAnswersQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p answerPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

func (w *AnswerWorker) flushSafe(ctx context.Context, batch []*answerPayload) {
	if len(batch) == 0 {
		return
	}

	answers, kept := w.toAnswers(batch)

	if err := w.attemptRepo.BulkUpsertAnswers(ctx, answers); err != nil {
		w.log.Warn().Err(err).Msg("bulk answer upsert failed, using fallback")

		for i := range answers {
			if err := w.attemptRepo.UpsertAnswer(ctx, &answers[i]); err != nil {
				w.log.Error().Err(err).Msg("persistSingle failed — requeueing")
				raw, _ := json.Marshal(kept[i])
				w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, raw)
			}
		}
	}
}

// toAnswers converts queue payloads to rows, dropping any with an
// unparseable attempt ID. kept stays index-aligned with the result so
// the fallback path can requeue the original payload.
func (w *AnswerWorker) toAnswers(batch []*answerPayload) ([]model.AttemptAnswer, []*answerPayload) {
	answers := make([]model.AttemptAnswer, 0, len(batch))
	kept := make([]*answerPayload, 0, len(batch))
	for _, p := range batch {
		aID, err := uuid.Parse(p.AttemptID)
		if err != nil {
			w.log.Error().Str("attempt_id", p.AttemptID).Msg("Invalid attempt ID in answer payload")
			continue
		}
		answers = append(answers, model.AttemptAnswer{
			AttemptID:   aID,
			StepID:      p.StepID,
			AnswerValue: p.Value,
			AnswerIndex: p.Index,
		})
		kept = append(kept, p)
	}
	return answers, kept
}
