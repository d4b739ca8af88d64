package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/meridianedu/assess-backend/internal/middleware"
	"github.com/meridianedu/assess-backend/internal/model"
	"github.com/meridianedu/assess-backend/internal/response"
	"github.com/meridianedu/assess-backend/internal/service"
	"github.com/meridianedu/assess-backend/internal/validator"
)

// superadminPermission widens author-scoped queries to every author.
const superadminPermission = string(model.PermissionAssignmentsWriteAll)

// AssignmentHandler handles assignment management endpoints.
type AssignmentHandler struct {
	assignmentService *service.AssignmentService
}

// NewAssignmentHandler creates a new AssignmentHandler.
func NewAssignmentHandler(assignmentService *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignmentService: assignmentService}
}

// isSuperadmin reports whether the claims carry the write-all permission.
func isSuperadmin(claims *service.Claims) bool {
	for _, p := range claims.Permissions {
		if p == superadminPermission {
			return true
		}
	}
	return false
}

// ListAssignments godoc
// GET /api/v1/admin/assignments
// Lists assignments with pagination. Superadmins see all; instructors see
// only their own.
func (h *AssignmentHandler) ListAssignments(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	authorFilter := claims.UserID
	if isSuperadmin(claims) {
		authorFilter = 0
	}

	assignments, pagination, err := h.assignmentService.ListByAuthor(c.Request.Context(), authorFilter, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"assignments": assignments}, pagination)
}

// GetAssignment godoc
// GET /api/v1/admin/assignments/:assignment_id
// Returns the full assignment including its question body.
func (h *AssignmentHandler) GetAssignment(c *gin.Context) {
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

	assignment, err := h.assignmentService.GetByID(c.Request.Context(), assignmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if !isSuperadmin(claims) && assignment.AuthorID != claims.UserID {
		response.Fail(c, http.StatusForbidden, response.ErrNotAssignmentAuthor)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"assignment": assignment})
}

// CreateAssignment godoc
// POST /api/v1/admin/assignments
// Creates a new draft assignment.
func (h *AssignmentHandler) CreateAssignment(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateAssignmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	assignment := &model.Assignment{
		Title:           req.Title,
		Description:     req.Description,
		AuthorID:        claims.UserID,
		Type:            req.Type,
		DurationMinutes: req.DurationMinutes,
		DueDate:         req.DueDate,
		Questions:       req.Questions,
	}

	if err := h.assignmentService.Create(c.Request.Context(), assignment); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"assignment": assignment})
}

// UpdateAssignment godoc
// PUT /api/v1/admin/assignments/:assignment_id
// Updates a draft assignment.
func (h *AssignmentHandler) UpdateAssignment(c *gin.Context) {
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

	var req model.UpdateAssignmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	existing, err := h.assignmentService.GetByID(c.Request.Context(), assignmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if req.Title != "" {
		existing.Title = req.Title
	}
	if req.Description != nil {
		existing.Description = *req.Description
	}
	if req.DurationMinutes > 0 {
		existing.DurationMinutes = req.DurationMinutes
	}
	if req.DueDate != nil {
		existing.DueDate = req.DueDate
	}
	if len(req.Questions) > 0 {
		existing.Questions = req.Questions
	}

	authorFilter := claims.UserID
	if isSuperadmin(claims) {
		authorFilter = 0
	}

	if err := h.assignmentService.Update(c.Request.Context(), authorFilter, existing); err != nil {
		switch {
		case errors.Is(err, service.ErrNotAssignmentAuthor):
			response.Fail(c, http.StatusForbidden, response.ErrNotAssignmentAuthor)
		case errors.Is(err, service.ErrAssignmentNotDraft):
			response.Fail(c, http.StatusBadRequest, response.ErrAssignmentNotDraft)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"assignment": existing})
}

// DeleteAssignment godoc
// DELETE /api/v1/admin/assignments/:assignment_id
// Deletes a draft assignment.
func (h *AssignmentHandler) DeleteAssignment(c *gin.Context) {
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

	authorFilter := claims.UserID
	if isSuperadmin(claims) {
		authorFilter = 0
	}

	if err := h.assignmentService.Delete(c.Request.Context(), assignmentID, authorFilter); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrNotAssignmentAuthor):
			response.Fail(c, http.StatusForbidden, response.ErrNotAssignmentAuthor)
		case errors.Is(err, service.ErrAssignmentNotDraft):
			response.Fail(c, http.StatusBadRequest, response.ErrAssignmentNotDraft)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// PublishAssignment godoc
// POST /api/v1/admin/assignments/:assignment_id/publish
// Publishes an assignment: validates and caches the payload to Redis,
// changes status.
func (h *AssignmentHandler) PublishAssignment(c *gin.Context) {
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

	authorFilter := claims.UserID
	if isSuperadmin(claims) {
		authorFilter = 0
	}

	if err := h.assignmentService.Publish(c.Request.Context(), assignmentID, authorFilter); err != nil {
		switch {
		case errors.Is(err, service.ErrNotAssignmentAuthor):
			response.Fail(c, http.StatusForbidden, response.ErrNotAssignmentAuthor)
		case errors.Is(err, service.ErrNoQuestions):
			response.Fail(c, http.StatusBadRequest, response.ErrNoQuestions)
		case errors.Is(err, service.ErrAssignmentNotDraft):
			response.Fail(c, http.StatusBadRequest, response.ErrAssignmentNotDraft)
		case errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "assignment published successfully"})
}

// RefreshAssignmentCache godoc
// POST /api/v1/admin/assignments/:assignment_id/refresh-cache
// Re-caches the assignment payload to Redis after question changes.
func (h *AssignmentHandler) RefreshAssignmentCache(c *gin.Context) {
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

	authorFilter := claims.UserID
	if isSuperadmin(claims) {
		authorFilter = 0
	}

	if err := h.assignmentService.RefreshCache(c.Request.Context(), assignmentID, authorFilter); err != nil {
		switch {
		case errors.Is(err, service.ErrNotAssignmentAuthor):
			response.Fail(c, http.StatusForbidden, response.ErrNotAssignmentAuthor)
		case errors.Is(err, service.ErrAssignmentNotPublished):
			response.Fail(c, http.StatusBadRequest, response.ErrAssignmentNotPublished)
		case errors.Is(err, service.ErrNoQuestions):
			response.Fail(c, http.StatusBadRequest, response.ErrNoQuestions)
		case errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "assignment cache refreshed successfully"})
}
