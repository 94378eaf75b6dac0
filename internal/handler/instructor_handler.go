package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/devarena/devarena-backend/internal/repository"
	"github.com/devarena/devarena-backend/internal/response"
)

// InstructorHandler handles instructor-facing result views.
type InstructorHandler struct {
	sessionRepo *repository.SessionRepository
}

// NewInstructorHandler creates a new InstructorHandler.
func NewInstructorHandler(sessionRepo *repository.SessionRepository) *InstructorHandler {
	return &InstructorHandler{sessionRepo: sessionRepo}
}

// GetResults godoc
// GET /api/v1/instructor/assessments/:assessment_id/results
// Returns paginated session results for an assessment. Sessions still
// awaiting scoring show a null score.
func (h *InstructorHandler) GetResults(c *gin.Context) {
	assessmentID, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	results, total, err := h.sessionRepo.ListByAssessment(c.Request.Context(), assessmentID, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if results == nil {
		results = []repository.SessionResult{}
	}

	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: int(total),
		TotalPages: totalPages,
	})
}
