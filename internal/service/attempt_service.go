package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/meridianedu/assess-backend/internal/assessment"
	"github.com/meridianedu/assess-backend/internal/config"
	"github.com/meridianedu/assess-backend/internal/model"
	"github.com/meridianedu/assess-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Attempt errors.
var (
	ErrAssignmentSubmitted = errors.New("assignment has already been submitted")
	ErrNoActiveAttempt     = errors.New("no attempt in progress for this assignment")
)

// TickEvent is pushed to session subscribers on every countdown tick and on
// state transitions worth announcing.
type TickEvent struct {
	View         assessment.View `json:"view"`
	ForcedSubmit bool            `json:"forced_submit"`
	Err          error           `json:"-"`
}

type sessionKey struct {
	assignmentID uuid.UUID
	studentID    int
}

// liveSession pairs the in-memory state machine with its countdown monitor
// and subscriber fan-out.
type liveSession struct {
	session   *assessment.Session
	attemptID uuid.UUID
	steps     []assessment.Step
	cancel    context.CancelFunc

	mu        sync.Mutex
	idemKey   string
	listeners map[chan TickEvent]struct{}
}

func (ls *liveSession) setIdempotencyKey(key string) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if key != "" {
		ls.idemKey = key
	}
}

func (ls *liveSession) idempotencyKey() string {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.idemKey
}

func (ls *liveSession) subscribe() (chan TickEvent, func()) {
	ch := make(chan TickEvent, 8)
	ls.mu.Lock()
	ls.listeners[ch] = struct{}{}
	ls.mu.Unlock()

	return ch, func() {
		ls.mu.Lock()
		delete(ls.listeners, ch)
		ls.mu.Unlock()
	}
}

// broadcast pushes an event to every subscriber, dropping it for any
// subscriber whose buffer is full. A slow WebSocket must never stall
// the countdown.
func (ls *liveSession) broadcast(ev TickEvent) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	for ch := range ls.listeners {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (ls *liveSession) closeListeners() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	for ch := range ls.listeners {
		close(ch)
		delete(ls.listeners, ch)
	}
}

// AttemptService owns the live assessment sessions: it starts attempts,
// drives per-session one-second countdowns, persists answers through the
// Redis write-behind queues, and finalizes submissions exactly once.
type AttemptService struct {
	cfg            *config.Config
	attemptRepo    *repository.AttemptRepository
	submissionRepo *repository.SubmissionRepository
	assignmentSvc  *AssignmentService
	rdb            *redis.Client
	log            zerolog.Logger

	mu       sync.Mutex
	sessions map[sessionKey]*liveSession
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	cfg *config.Config,
	attemptRepo *repository.AttemptRepository,
	submissionRepo *repository.SubmissionRepository,
	assignmentSvc *AssignmentService,
	rdb *redis.Client,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		cfg:            cfg,
		attemptRepo:    attemptRepo,
		submissionRepo: submissionRepo,
		assignmentSvc:  assignmentSvc,
		rdb:            rdb,
		log:            log.With().Str("component", "attempt_service").Logger(),
		sessions:       make(map[sessionKey]*liveSession),
	}
}

// Start begins (or resumes) an attempt. The call is idempotent: re-entry
// after a reload reuses the persisted start time, recomputes the identical
// step sequence, and restores autosaved answers. The countdown is derived
// from the original start time, never re-seeded.
func (s *AttemptService) Start(ctx context.Context, assignmentID uuid.UUID, studentID int) (assessment.View, error) {
	// A finished assignment can never be re-entered.
	if _, err := s.submissionRepo.GetByAssignmentAndStudent(ctx, assignmentID, studentID); err == nil {
		return assessment.View{}, ErrAssignmentSubmitted
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return assessment.View{}, fmt.Errorf("check submission: %w", err)
	}

	payload, err := s.assignmentSvc.GetAssignmentPayload(ctx, assignmentID)
	if err != nil {
		return assessment.View{}, err
	}

	steps := assessment.FlattenRaw(payload.Questions, strconv.Itoa(studentID))
	if len(steps) == 0 {
		return assessment.View{}, ErrNoQuestions
	}

	attempt, err := s.ensureAttempt(ctx, assignmentID, studentID, steps)
	if err != nil {
		return assessment.View{}, err
	}
	if attempt.Status != model.AttemptStatusInProgress {
		return assessment.View{}, ErrAssignmentSubmitted
	}

	ls, err := s.ensureLive(ctx, assignmentID, studentID, attempt, steps, payload.DurationMinutes)
	if err != nil {
		return assessment.View{}, err
	}

	return ls.session.Snapshot(), nil
}

// ensureAttempt creates the attempt row if missing and caches its start time.
func (s *AttemptService) ensureAttempt(ctx context.Context, assignmentID uuid.UUID, studentID int, steps []assessment.Step) (*model.Attempt, error) {
	startKey := config.CacheKey.AttemptStartKey(assignmentID.String(), studentID)

	attempt, err := s.attemptRepo.GetByAssignmentAndStudent(ctx, assignmentID, studentID)
	if err == nil {
		// Re-entry: make sure Redis has the start time for fast state reads.
		_ = s.rdb.Set(ctx, startKey, attempt.StartedAt.Unix(), 0).Err()
		return attempt, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get attempt: %w", err)
	}

	attempt = &model.Attempt{
		AssignmentID: assignmentID,
		StudentID:    studentID,
	}
	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Concurrent start: the other request won the insert.
			existing, fetchErr := s.attemptRepo.GetByAssignmentAndStudent(ctx, assignmentID, studentID)
			if fetchErr != nil {
				return nil, fmt.Errorf("concurrent start detected, but fetch failed: %w", fetchErr)
			}
			attempt = existing
		} else {
			return nil, fmt.Errorf("create attempt: %w", err)
		}
	}

	if err := s.rdb.Set(ctx, startKey, attempt.StartedAt.Unix(), 0).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to cache attempt start time")
	}

	// Persist the presented step order asynchronously; resume recomputes it
	// deterministically, so the row is audit data, not a hot dependency.
	s.enqueueStepOrder(ctx, attempt.ID, assessment.StepIDs(steps))

	return attempt, nil
}

// ensureLive returns the in-memory session for the attempt, creating the
// state machine and its countdown monitor if needed.
func (s *AttemptService) ensureLive(ctx context.Context, assignmentID uuid.UUID, studentID int, attempt *model.Attempt, steps []assessment.Step, durationMinutes int) (*liveSession, error) {
	key := sessionKey{assignmentID: assignmentID, studentID: studentID}

	s.mu.Lock()
	if ls, ok := s.sessions[key]; ok {
		s.mu.Unlock()
		return ls, nil
	}
	s.mu.Unlock()

	remaining := int(time.Until(attempt.StartedAt.Add(time.Duration(durationMinutes) * time.Minute)).Seconds())
	if remaining < 0 {
		remaining = 0
	}

	monitorCtx, cancel := context.WithCancel(context.Background())
	ls := &liveSession{
		attemptID: attempt.ID,
		steps:     steps,
		cancel:    cancel,
		idemKey:   uuid.New().String(),
		listeners: make(map[chan TickEvent]struct{}),
	}
	ls.session = assessment.NewSession(assignmentID, strconv.Itoa(studentID),
		s.finalizerFor(ls, assignmentID, studentID))

	if err := ls.session.Begin(steps, remaining); err != nil {
		cancel()
		return nil, err
	}

	saved, err := s.loadSavedAnswers(ctx, assignmentID, studentID, attempt.ID)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to restore autosaved answers")
	} else if len(saved) > 0 {
		ls.session.RestoreAnswers(saved)
	}

	s.mu.Lock()
	if existing, ok := s.sessions[key]; ok {
		// Another request raced us; keep theirs.
		s.mu.Unlock()
		cancel()
		return existing, nil
	}
	s.sessions[key] = ls
	s.mu.Unlock()

	go s.runMonitor(monitorCtx, key, ls)

	s.log.Info().
		Str("assignment_id", assignmentID.String()).
		Int("student_id", studentID).
		Int("steps", len(steps)).
		Int("remaining_seconds", remaining).
		Msg("Session started")

	return ls, nil
}

// runMonitor drives the one-second countdown for a session. When the timer
// hits zero the state machine issues its single forced submission; the
// monitor only reports the outcome and keeps ticking until the session is
// terminal so a failed forced submit can still be retried manually.
func (s *AttemptService) runMonitor(ctx context.Context, key sessionKey, ls *liveSession) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res := ls.session.Tick(ctx)
			ev := TickEvent{
				View:         ls.session.Snapshot(),
				ForcedSubmit: res.ForcedSubmit,
				Err:          res.Err,
			}
			ls.broadcast(ev)

			if res.ForcedSubmit && res.Err != nil {
				s.log.Error().Err(res.Err).
					Str("assignment_id", key.assignmentID.String()).
					Int("student_id", key.studentID).
					Msg("Forced submission failed")
			}

			if ls.session.State() == assessment.StateSubmitted {
				ls.closeListeners()
				s.dropSession(key)
				return
			}
		}
	}
}

func (s *AttemptService) dropSession(key sessionKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ls, ok := s.sessions[key]; ok {
		ls.cancel()
		delete(s.sessions, key)
	}
}

func (s *AttemptService) live(assignmentID uuid.UUID, studentID int) (*liveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ls, ok := s.sessions[sessionKey{assignmentID: assignmentID, studentID: studentID}]
	if !ok {
		return nil, ErrNoActiveAttempt
	}
	return ls, nil
}

// ─── Session operations ─────────────────────────────────────────────

// RecordAnswer stores an answer in the live session, autosaves it to Redis
// and queues the database write-behind.
func (s *AttemptService) RecordAnswer(ctx context.Context, assignmentID uuid.UUID, studentID int, stepID string, ans assessment.Answer) (assessment.View, error) {
	ls, err := s.live(assignmentID, studentID)
	if err != nil {
		return assessment.View{}, err
	}
	if err := ls.session.RecordAnswer(stepID, ans); err != nil {
		return ls.session.Snapshot(), err
	}

	raw, err := json.Marshal(ans)
	if err != nil {
		return ls.session.Snapshot(), fmt.Errorf("marshal answer: %w", err)
	}

	answersKey := config.CacheKey.StudentAnswersKey(assignmentID.String(), studentID)
	if err := s.rdb.HSet(ctx, answersKey, stepID, raw).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Autosave to redis failed")
	}

	s.enqueueAnswer(ctx, ls.attemptID, stepID, ans)
	return ls.session.Snapshot(), nil
}

// Continue advances the live session to the next step, enforcing part gating.
func (s *AttemptService) Continue(assignmentID uuid.UUID, studentID int) (assessment.View, error) {
	ls, err := s.live(assignmentID, studentID)
	if err != nil {
		return assessment.View{}, err
	}
	return ls.session.Continue()
}

// Previous steps the live session back.
func (s *AttemptService) Previous(assignmentID uuid.UUID, studentID int) (assessment.View, error) {
	ls, err := s.live(assignmentID, studentID)
	if err != nil {
		return assessment.View{}, err
	}
	return ls.session.Previous()
}

// CancelConfirm abandons the confirmation prompt.
func (s *AttemptService) CancelConfirm(assignmentID uuid.UUID, studentID int) (assessment.View, error) {
	ls, err := s.live(assignmentID, studentID)
	if err != nil {
		return assessment.View{}, err
	}
	return ls.session.CancelConfirm()
}

// AttachAudio registers an oral-response recording on the live session.
func (s *AttemptService) AttachAudio(assignmentID uuid.UUID, studentID int, att *assessment.Attachment) error {
	ls, err := s.live(assignmentID, studentID)
	if err != nil {
		return err
	}
	ls.session.SetAttachment(att)
	return nil
}

// Submit finalizes the live session. idemKey, when non-empty, overrides the
// generated idempotency key so client retries collapse server-side.
func (s *AttemptService) Submit(ctx context.Context, assignmentID uuid.UUID, studentID int, idemKey string) error {
	ls, err := s.live(assignmentID, studentID)
	if err != nil {
		return err
	}
	ls.setIdempotencyKey(idemKey)
	return ls.session.Submit(ctx)
}

// Subscribe attaches a listener to the session's countdown events.
// The returned func detaches it.
func (s *AttemptService) Subscribe(assignmentID uuid.UUID, studentID int) (<-chan TickEvent, func(), error) {
	ls, err := s.live(assignmentID, studentID)
	if err != nil {
		return nil, nil, err
	}
	ch, unsub := ls.subscribe()
	return ch, unsub, nil
}

// Snapshot returns the live session's current view.
func (s *AttemptService) Snapshot(assignmentID uuid.UUID, studentID int) (assessment.View, error) {
	ls, err := s.live(assignmentID, studentID)
	if err != nil {
		return assessment.View{}, err
	}
	return ls.session.Snapshot(), nil
}

// GetState returns a resume snapshot. It prefers the live session; with no
// live session (fresh process, expired map entry) it rebuilds the state from
// Redis with a PostgreSQL fallback, the same failover the start-time cache
// uses.
func (s *AttemptService) GetState(ctx context.Context, assignmentID uuid.UUID, studentID int) (*model.AttemptStateResponse, error) {
	attempt, err := s.attemptRepo.GetByAssignmentAndStudent(ctx, assignmentID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveAttempt
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}

	if ls, liveErr := s.live(assignmentID, studentID); liveErr == nil {
		view := ls.session.Snapshot()
		answersJSON, _ := json.Marshal(ls.session.Answers())
		return &model.AttemptStateResponse{
			AttemptID:        attempt.ID,
			AssignmentID:     assignmentID,
			State:            string(view.State),
			StepIndex:        view.StepIndex,
			StepCount:        view.TotalSteps,
			RemainingSeconds: view.RemainingSeconds,
			Answers:          answersJSON,
			StartedAt:        attempt.StartedAt,
		}, nil
	}

	// Cold path: derive remaining time from the persisted start.
	durationStr, err := s.rdb.Get(ctx, config.CacheKey.AssignmentDurationKey(assignmentID.String())).Result()
	var durationMinutes int
	if err != nil {
		payload, pErr := s.assignmentSvc.GetAssignmentPayload(ctx, assignmentID)
		if pErr != nil {
			return nil, pErr
		}
		durationMinutes = payload.DurationMinutes
	} else {
		durationMinutes, err = strconv.Atoi(durationStr)
		if err != nil {
			return nil, fmt.Errorf("invalid duration format in cache: %w", err)
		}
	}

	remaining := int(time.Until(attempt.StartedAt.Add(time.Duration(durationMinutes) * time.Minute)).Seconds())
	if remaining < 0 {
		remaining = 0
	}

	saved, err := s.loadSavedAnswers(ctx, assignmentID, studentID, attempt.ID)
	if err != nil {
		return nil, err
	}
	answersJSON, _ := json.Marshal(saved)

	state := assessment.StatePresenting
	if attempt.Status != model.AttemptStatusInProgress {
		state = assessment.StateSubmitted
	}

	return &model.AttemptStateResponse{
		AttemptID:        attempt.ID,
		AssignmentID:     assignmentID,
		State:            string(state),
		StepCount:        len(attempt.StepOrder),
		RemainingSeconds: remaining,
		Answers:          answersJSON,
		StartedAt:        attempt.StartedAt,
	}, nil
}

// Shutdown cancels every countdown monitor. Sessions resume from persisted
// state on the next start call.
func (s *AttemptService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, ls := range s.sessions {
		ls.cancel()
		ls.closeListeners()
		delete(s.sessions, key)
	}
}

// ─── Persistence plumbing ───────────────────────────────────────────

// loadSavedAnswers reads autosaved answers from the Redis hash, falling back
// to the attempt_answers table when the hash is gone.
func (s *AttemptService) loadSavedAnswers(ctx context.Context, assignmentID uuid.UUID, studentID int, attemptID uuid.UUID) (assessment.AnswerMap, error) {
	answersKey := config.CacheKey.StudentAnswersKey(assignmentID.String(), studentID)
	fields, err := s.rdb.HGetAll(ctx, answersKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get autosaved answers: %w", err)
	}

	saved := make(assessment.AnswerMap, len(fields))
	for stepID, raw := range fields {
		var ans assessment.Answer
		if err := json.Unmarshal([]byte(raw), &ans); err != nil {
			s.log.Warn().Str("step_id", stepID).Msg("Dropping malformed autosaved answer")
			continue
		}
		saved[stepID] = ans
	}
	if len(saved) > 0 {
		return saved, nil
	}

	rows, err := s.attemptRepo.ListAnswers(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("list persisted answers: %w", err)
	}
	for _, row := range rows {
		if row.AnswerIndex != nil {
			saved[row.StepID] = assessment.Choice(row.AnswerValue, *row.AnswerIndex)
		} else {
			saved[row.StepID] = assessment.Text(row.AnswerValue)
		}
	}
	return saved, nil
}

type persistAnswerItem struct {
	AttemptID string `json:"attempt_id"`
	StepID    string `json:"step_id"`
	Value     string `json:"value"`
	Index     *int   `json:"index,omitempty"`
}

func (s *AttemptService) enqueueAnswer(ctx context.Context, attemptID uuid.UUID, stepID string, ans assessment.Answer) {
	item := persistAnswerItem{
		AttemptID: attemptID.String(),
		StepID:    stepID,
		Value:     ans.Value,
	}
	if ans.Choice {
		idx := ans.Index
		item.Index = &idx
	}

	raw, err := json.Marshal(item)
	if err != nil {
		s.log.Error().Err(err).Msg("Marshal answer queue item")
		return
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, raw).Err(); err != nil {
		s.log.Error().Err(err).Msg("Enqueue answer persist")
	}
}

type persistStepOrderItem struct {
	AttemptID string   `json:"attempt_id"`
	StepOrder []string `json:"step_order"`
}

func (s *AttemptService) enqueueStepOrder(ctx context.Context, attemptID uuid.UUID, stepIDs []string) {
	raw, err := json.Marshal(persistStepOrderItem{AttemptID: attemptID.String(), StepOrder: stepIDs})
	if err != nil {
		s.log.Error().Err(err).Msg("Marshal step order queue item")
		return
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistStepOrderQueue, raw).Err(); err != nil {
		s.log.Error().Err(err).Msg("Enqueue step order persist")
	}
}

type completionItem struct {
	AttemptID  string    `json:"attempt_id"`
	FinishedAt time.Time `json:"finished_at"`
}

// finalizerFor builds the at-most-once finalize path for one session:
// write the attachment (if any), insert the submission row guarded by the
// unique pair constraint, queue the attempt completion, then clear the
// session's Redis footprint.
func (s *AttemptService) finalizerFor(ls *liveSession, assignmentID uuid.UUID, studentID int) assessment.Finalizer {
	return assessment.FinalizerFunc(func(ctx context.Context, p *assessment.SubmissionPayload) error {
		filePath := ""
		if p.File != nil {
			name := fmt.Sprintf("submission_%s%s", ls.attemptID, filepath.Ext(p.File.Filename))
			if err := os.WriteFile(filepath.Join(s.cfg.UploadDir, name), p.File.Data, 0o644); err != nil {
				return fmt.Errorf("store attachment: %w", err)
			}
			filePath = name
		}

		content, err := json.Marshal(p.Content)
		if err != nil {
			return fmt.Errorf("marshal content: %w", err)
		}

		submission := &model.Submission{
			AssignmentID:   assignmentID,
			StudentID:      studentID,
			AttemptID:      ls.attemptID,
			Content:        content,
			FilePath:       filePath,
			IdempotencyKey: ls.idempotencyKey(),
		}

		inserted, err := s.submissionRepo.Create(ctx, submission)
		if err != nil {
			return fmt.Errorf("insert submission: %w", err)
		}

		if inserted {
			raw, _ := json.Marshal(completionItem{
				AttemptID:  ls.attemptID.String(),
				FinishedAt: submission.SubmittedAt,
			})
			if qErr := s.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, raw).Err(); qErr != nil {
				// The row exists; fall back to flipping the attempt inline.
				s.log.Warn().Err(qErr).Msg("Enqueue completion failed, updating attempt inline")
				if dbErr := s.attemptRepo.MarkSubmitted(ctx, ls.attemptID); dbErr != nil {
					s.log.Error().Err(dbErr).Msg("Inline attempt completion failed")
				}
			}
		}

		pipe := s.rdb.Pipeline()
		pipe.Del(ctx, config.CacheKey.StudentAnswersKey(assignmentID.String(), studentID))
		pipe.Del(ctx, config.CacheKey.StudentStepOrderKey(assignmentID.String(), studentID))
		pipe.Del(ctx, config.CacheKey.AttemptStartKey(assignmentID.String(), studentID))
		if _, cErr := pipe.Exec(ctx); cErr != nil {
			s.log.Warn().Err(cErr).Msg("Session cache cleanup failed")
		}

		s.log.Info().
			Str("assignment_id", assignmentID.String()).
			Int("student_id", studentID).
			Bool("inserted", inserted).
			Int("answers", len(p.Content)).
			Msg("Submission finalized")
		return nil
	})
}
