package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/meridianedu/assess-backend/internal/assessment"
	"github.com/meridianedu/assess-backend/internal/middleware"
	"github.com/meridianedu/assess-backend/internal/response"
	"github.com/meridianedu/assess-backend/internal/service"
	ws "github.com/meridianedu/assess-backend/internal/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler drives a live assessment session over a WebSocket: navigation
// actions come in, state views and countdown ticks go out.
type WSHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/student/assignments/:assignment_id/session
// Upgrades to WebSocket and drives the student's live session.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	assignmentID, err := uuid.Parse(c.Param("assignment_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assignment ID"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	studentID := claims.UserID

	// Connecting starts (or resumes) the attempt.
	view, err := h.attemptService.Start(c.Request.Context(), assignmentID, studentID)
	if err != nil {
		ws.WriteError(conn, string(errCodeFor(err)), err.Error())
		return
	}

	wsLog := h.log.With().
		Int("student_id", studentID).
		Str("assignment_id", assignmentID.String()).
		Logger()

	wsLog.Info().Msg("Student connected")

	// Single writer: the read loop and the tick forwarder both publish here.
	out := make(chan any, 16)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case msg, ok := <-out:
				if !ok {
					return
				}
				if err := ws.WriteTyped(conn, msg); err != nil {
					wsLog.Debug().Err(err).Msg("Write failed")
					return
				}
			}
		}
	}()
	defer close(done)

	out <- ws.StateResponse{Event: ws.EventState, View: view}

	ticks, unsubscribe, err := h.attemptService.Subscribe(assignmentID, studentID)
	if err == nil {
		defer unsubscribe()
		go func() {
			for ev := range ticks {
				select {
				case out <- ws.TickResponse{
					Event:            ws.EventTick,
					RemainingSeconds: ev.View.RemainingSeconds,
					Forced:           ev.ForcedSubmit,
				}:
				case <-done:
					return
				}
				if ev.View.State == assessment.StateSubmitted {
					select {
					case out <- ws.SubmittedResponse{Event: ws.EventSubmitted, Forced: ev.ForcedSubmit}:
					case <-done:
					}
					return
				}
			}
		}()
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		var envelope ws.RequestEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			out <- ws.ErrorResponse{Event: ws.EventError, Error: "malformed message"}
			continue
		}

		h.dispatch(c.Request.Context(), out, wsLog, assignmentID, studentID, envelope.Action, raw)

		if envelope.Action == ws.ActionSubmit {
			if snap, sErr := h.attemptService.Snapshot(assignmentID, studentID); sErr != nil || snap.State == assessment.StateSubmitted {
				return
			}
		}
	}
}

func (h *WSHandler) dispatch(ctx context.Context, out chan<- any, wsLog zerolog.Logger, assignmentID uuid.UUID, studentID int, action ws.Action, raw []byte) {
	switch action {
	case ws.ActionAnswer:
		h.handleAnswer(ctx, out, assignmentID, studentID, raw)

	case ws.ActionContinue:
		view, err := h.attemptService.Continue(assignmentID, studentID)
		h.reply(out, view, err)

	case ws.ActionPrevious:
		view, err := h.attemptService.Previous(assignmentID, studentID)
		h.reply(out, view, err)

	case ws.ActionCancel:
		view, err := h.attemptService.CancelConfirm(assignmentID, studentID)
		h.reply(out, view, err)

	case ws.ActionSubmit:
		var req ws.SubmitRequest
		_ = json.Unmarshal(raw, &req)
		if err := h.attemptService.Submit(ctx, assignmentID, studentID, req.IdempotencyKey); err != nil {
			out <- ws.ErrorResponse{Event: ws.EventError, Code: string(errCodeFor(err)), Error: err.Error()}
			return
		}
		out <- ws.SubmittedResponse{Event: ws.EventSubmitted}

	case ws.ActionPing:
		out <- ws.PongResponse{Event: ws.EventPong}

	default:
		wsLog.Warn().Str("action", string(action)).Msg("Unknown action")
		out <- ws.ErrorResponse{Event: ws.EventError, Error: "unknown action: " + string(action)}
	}
}

func (h *WSHandler) handleAnswer(ctx context.Context, out chan<- any, assignmentID uuid.UUID, studentID int, raw []byte) {
	var req ws.AnswerRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.StepID == "" || len(req.Answer) == 0 {
		out <- ws.ErrorResponse{Event: ws.EventError, Error: "step_id and answer are required"}
		return
	}

	var ans assessment.Answer
	if err := json.Unmarshal(req.Answer, &ans); err != nil {
		out <- ws.ErrorResponse{Event: ws.EventError, Error: "answer must be a string or {value,index}"}
		return
	}

	if _, err := h.attemptService.RecordAnswer(ctx, assignmentID, studentID, req.StepID, ans); err != nil {
		out <- ws.ErrorResponse{Event: ws.EventError, Code: string(errCodeFor(err)), Error: err.Error()}
		return
	}

	out <- ws.SavedResponse{Event: ws.EventSaved, StepID: req.StepID}
}

// reply sends the refreshed view, or a non-fatal error that leaves the shown
// state unchanged.
func (h *WSHandler) reply(out chan<- any, view assessment.View, err error) {
	if err != nil {
		out <- ws.ErrorResponse{Event: ws.EventError, Code: string(errCodeFor(err)), Error: err.Error()}
		return
	}
	out <- ws.StateResponse{Event: ws.EventState, View: view}
}

// errCodeFor maps session and service errors onto API error codes.
func errCodeFor(err error) response.ErrCode {
	switch {
	case errors.Is(err, assessment.ErrPartIncomplete):
		return response.ErrPartIncomplete
	case errors.Is(err, assessment.ErrAlreadySubmitted),
		errors.Is(err, service.ErrAssignmentSubmitted):
		return response.ErrAlreadySubmitted
	case errors.Is(err, assessment.ErrSubmitInFlight):
		return response.ErrSubmissionInFlight
	case errors.Is(err, service.ErrNoActiveAttempt):
		return response.ErrAttemptNotFound
	case errors.Is(err, assessment.ErrUnknownStep):
		return response.ErrInvalidPayload
	case errors.Is(err, assessment.ErrAtFirstStep),
		errors.Is(err, assessment.ErrNotPresenting),
		errors.Is(err, assessment.ErrNotConfirming):
		return response.ErrActionForbidden
	case errors.Is(err, service.ErrAssignmentNotPublished),
		errors.Is(err, service.ErrNoQuestions):
		return response.ErrAssignmentNotAvailable
	default:
		return response.ErrInternal
	}
}
