package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/devarena/devarena-backend/internal/middleware"
	"github.com/devarena/devarena-backend/internal/model"
	"github.com/devarena/devarena-backend/internal/response"
	"github.com/devarena/devarena-backend/internal/service"
	"github.com/devarena/devarena-backend/internal/session"
	"github.com/devarena/devarena-backend/internal/validator"
)

// SessionHandler exposes the session engine operations over HTTP: the
// integrity handshake, navigation, answer saving, manual submission and the
// state snapshot.
type SessionHandler struct {
	ctrl   *session.Controller
	portal *service.PortalService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(ctrl *session.Controller, portal *service.PortalService) *SessionHandler {
	return &SessionHandler{ctrl: ctrl, portal: portal}
}

// authorize parses the session id and verifies ownership. Returns nil and
// writes the response on failure.
func (h *SessionHandler) authorize(c *gin.Context) *model.Session {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil
	}

	sess, err := h.portal.Authorize(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failSession(c, err, nil)
		return nil
	}
	return sess
}

// GetState godoc
// GET /api/v1/participant/sessions/:session_id/state
// The reload endpoint: status, remaining time and autosaved answers.
func (h *SessionHandler) GetState(c *gin.Context) {
	sess := h.authorize(c)
	if sess == nil {
		return
	}

	claims := middleware.GetClaims(c)
	state, err := h.portal.GetState(c.Request.Context(), sess.ID, claims.UserID)
	if err != nil {
		failSession(c, err, sess)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// RequireIntegrity godoc
// POST /api/v1/participant/sessions/:session_id/integrity/require
func (h *SessionHandler) RequireIntegrity(c *gin.Context) {
	sess := h.authorize(c)
	if sess == nil {
		return
	}

	updated, err := h.ctrl.RequireIntegrity(c.Request.Context(), sess.ID)
	if err != nil {
		failSession(c, err, sess)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": updated})
}

// ConfirmIntegrity godoc
// POST /api/v1/participant/sessions/:session_id/integrity/confirm
// First confirmation starts the clock: sets startedAt and deadlineAt.
func (h *SessionHandler) ConfirmIntegrity(c *gin.Context) {
	sess := h.authorize(c)
	if sess == nil {
		return
	}

	updated, err := h.ctrl.ConfirmIntegrity(c.Request.Context(), sess.ID)
	if err != nil {
		failSession(c, err, sess)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": updated})
}

// Navigate godoc
// POST /api/v1/participant/sessions/:session_id/navigate
func (h *SessionHandler) Navigate(c *gin.Context) {
	sess := h.authorize(c)
	if sess == nil {
		return
	}

	var req model.NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	updated, err := h.ctrl.NavigateTo(c.Request.Context(), sess.ID, *req.Index)
	if err != nil {
		failSession(c, err, sess)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": updated})
}

// SaveAnswer godoc
// POST /api/v1/participant/sessions/:session_id/answers
// HTTP fallback for the WebSocket autosave.
func (h *SessionHandler) SaveAnswer(c *gin.Context) {
	sess := h.authorize(c)
	if sess == nil {
		return
	}

	var req model.SaveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.ctrl.SaveAnswer(c.Request.Context(), sess.ID, questionID, req.Language, req.Code); err != nil {
		failSession(c, err, sess)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "saved", "saved_at": time.Now().UTC()})
}

// Submit godoc
// POST /api/v1/participant/sessions/:session_id/submit
// Manual terminal transition. Submitting an already-terminal session is a
// no-op that returns the original terminal record.
func (h *SessionHandler) Submit(c *gin.Context) {
	sess := h.authorize(c)
	if sess == nil {
		return
	}

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	updated, err := h.ctrl.Submit(c.Request.Context(), sess.ID, model.TriggerManual)
	if err != nil {
		failSession(c, err, sess)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": updated})
}
