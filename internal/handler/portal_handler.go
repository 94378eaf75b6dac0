package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/devarena/devarena-backend/internal/middleware"
	"github.com/devarena/devarena-backend/internal/response"
	"github.com/devarena/devarena-backend/internal/service"
)

// PortalHandler handles participant-facing catalog endpoints: lobby,
// joining an assessment and fetching its paper.
type PortalHandler struct {
	portal *service.PortalService
}

// NewPortalHandler creates a new PortalHandler.
func NewPortalHandler(portal *service.PortalService) *PortalHandler {
	return &PortalHandler{portal: portal}
}

// GetLobby godoc
// GET /api/v1/participant/lobby
// Returns published assessments with the participant's session status.
func (h *PortalHandler) GetLobby(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	lobby, err := h.portal.GetLobby(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if lobby == nil {
		lobby = []service.LobbyEntry{}
	}
	response.Success(c, http.StatusOK, gin.H{"assessments": lobby})
}

// JoinAssessment godoc
// POST /api/v1/participant/assessments/:assessment_id/join
// Creates the participant's session (idempotent).
func (h *PortalHandler) JoinAssessment(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assessmentID, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sess, err := h.portal.Join(c.Request.Context(), assessmentID, claims.UserID)
	if err != nil {
		failSession(c, err, nil)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": sess})
}

// GetPaper godoc
// GET /api/v1/participant/assessments/:assessment_id/paper
// Returns the questions without hidden test data. Requires a session for
// this assessment so papers cannot be fetched without joining.
func (h *PortalHandler) GetPaper(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assessmentID, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	paper, err := h.portal.GetPaper(c.Request.Context(), assessmentID, claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}

	response.Success(c, http.StatusOK, paper)
}
