package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/devarena/devarena-backend/internal/model"
	"github.com/devarena/devarena-backend/internal/response"
	"github.com/devarena/devarena-backend/internal/service"
	"github.com/devarena/devarena-backend/internal/session"
)

// failSession maps session engine errors to API error codes. Terminal-state
// rejections distinguish submitted from expired so the presentation layer
// can say which one ended the attempt.
func failSession(c *gin.Context, err error, current *model.Session) {
	switch {
	case errors.Is(err, session.ErrInvalidState):
		code := response.ErrInvalidSessionState
		if current != nil {
			switch current.Status {
			case model.SessionStatusSubmitted:
				code = response.ErrSessionSubmitted
			case model.SessionStatusExpired:
				code = response.ErrSessionExpired
			}
		}
		response.Fail(c, http.StatusConflict, code)
	case errors.Is(err, session.ErrAlreadyExists):
		response.Fail(c, http.StatusConflict, response.ErrSessionAlreadyExists)
	case errors.Is(err, session.ErrVersionConflict):
		response.Fail(c, http.StatusConflict, response.ErrVersionConflict)
	case errors.Is(err, session.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrAssessmentUnavailable):
		response.Fail(c, http.StatusBadRequest, response.ErrAssessmentUnavailable)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
