package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/meridianedu/assess-backend/internal/assessment"
	"github.com/meridianedu/assess-backend/internal/middleware"
	"github.com/meridianedu/assess-backend/internal/response"
	"github.com/meridianedu/assess-backend/internal/service"
)

// StudentPortalHandler handles student-facing endpoints: the assignment
// list, attempt lifecycle and the terminal submission.
type StudentPortalHandler struct {
	assignmentService *service.AssignmentService
	attemptService    *service.AttemptService
	mediaService      *service.MediaService
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(
	assignmentService *service.AssignmentService,
	attemptService *service.AttemptService,
	mediaService *service.MediaService,
) *StudentPortalHandler {
	return &StudentPortalHandler{
		assignmentService: assignmentService,
		attemptService:    attemptService,
		mediaService:      mediaService,
	}
}

// ListAssignments godoc
// GET /api/v1/student/assignments
// Returns published assignments with the student's submission state.
func (h *StudentPortalHandler) ListAssignments(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	items, err := h.assignmentService.ListForStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"assignments": items})
}

// GetAssignment godoc
// GET /api/v1/student/assignments/:assignment_id
// Returns the cached assignment payload (no answer material is stored
// server-side; grading is done by instructors).
func (h *StudentPortalHandler) GetAssignment(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assignmentID, err := uuid.Parse(c.Param("assignment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	payload, err := h.assignmentService.GetAssignmentPayload(c.Request.Context(), assignmentID)
	if err != nil {
		if errors.Is(err, service.ErrAssignmentNotPublished) || errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrAssignmentNotAvailable)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, payload)
}

// StartAttempt godoc
// POST /api/v1/student/assignments/:assignment_id/attempt
// Starts (or resumes) the timed attempt and returns the opening view.
// Idempotent: the countdown always derives from the first start.
func (h *StudentPortalHandler) StartAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assignmentID, err := uuid.Parse(c.Param("assignment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	view, err := h.attemptService.Start(c.Request.Context(), assignmentID, claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAssignmentSubmitted):
			response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
		case errors.Is(err, service.ErrAssignmentNotPublished), errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusNotFound, response.ErrAssignmentNotAvailable)
		case errors.Is(err, service.ErrNoQuestions):
			response.Fail(c, http.StatusConflict, response.ErrNoQuestions)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, view)
}

// GetAttemptState godoc
// GET /api/v1/student/assignments/:assignment_id/attempt/state
// Resume snapshot after a reload: autosaved answers plus remaining time
// derived from the persisted start.
func (h *StudentPortalHandler) GetAttemptState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assignmentID, err := uuid.Parse(c.Param("assignment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.attemptService.GetState(c.Request.Context(), assignmentID, claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrNoActiveAttempt) {
			response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// SubmitAttempt godoc
// POST /api/v1/student/assignments/:assignment_id/attempt/submit
// HTTP submission path. multipart/form-data attaches the oral recording
// under "file"; plain JSON submits answers only. X-Idempotency-Key makes
// client retries collapse server-side.
func (h *StudentPortalHandler) SubmitAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assignmentID, err := uuid.Parse(c.Param("assignment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	// Optional oral recording riding along on the final request.
	if file, header, fErr := c.Request.FormFile("file"); fErr == nil {
		defer file.Close()
		name, contentType, data, rErr := h.mediaService.ReadAttachment(file, header)
		if rErr != nil {
			switch {
			case errors.Is(rErr, service.ErrUnsupportedFileType):
				response.Fail(c, http.StatusBadRequest, response.ErrUnsupportedFile)
			case errors.Is(rErr, service.ErrFileTooLarge):
				response.Fail(c, http.StatusRequestEntityTooLarge, response.ErrFileTooLarge)
			default:
				response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
			}
			return
		}
		if aErr := h.attemptService.AttachAudio(assignmentID, claims.UserID, &assessment.Attachment{
			Filename:    name,
			ContentType: contentType,
			Data:        data,
		}); aErr != nil {
			response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
			return
		}
	}

	idemKey := c.GetHeader("X-Idempotency-Key")
	if err := h.attemptService.Submit(c.Request.Context(), assignmentID, claims.UserID, idemKey); err != nil {
		switch {
		case errors.Is(err, assessment.ErrAlreadySubmitted), errors.Is(err, service.ErrAssignmentSubmitted):
			response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
		case errors.Is(err, assessment.ErrSubmitInFlight):
			response.Fail(c, http.StatusConflict, response.ErrSubmissionInFlight)
		case errors.Is(err, assessment.ErrNotConfirming):
			response.Fail(c, http.StatusConflict, response.ErrActionForbidden)
		case errors.Is(err, service.ErrNoActiveAttempt):
			response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
		default:
			response.Fail(c, http.StatusBadGateway, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "submitted"})
}
