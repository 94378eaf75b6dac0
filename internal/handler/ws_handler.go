package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/devarena/devarena-backend/internal/middleware"
	"github.com/devarena/devarena-backend/internal/model"
	"github.com/devarena/devarena-backend/internal/service"
	"github.com/devarena/devarena-backend/internal/session"
	ws "github.com/devarena/devarena-backend/internal/websocket"
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

// WSHandler handles the live session stream: autosave, navigation, submit
// and integrity signals from the client, countdown ticks and terminal
// transitions back to it.
type WSHandler struct {
	ctrl     *session.Controller
	portal   *service.PortalService
	monitor  *session.Monitor
	timer    *session.Timer
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(ctrl *session.Controller, portal *service.PortalService, monitor *session.Monitor, timer *session.Timer, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		ctrl:     ctrl,
		portal:   portal,
		monitor:  monitor,
		timer:    timer,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/participant/sessions/:session_id/stream
// Upgrades to WebSocket for real-time autosave, countdown ticks and
// integrity signalling.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	// The tick pusher and the read loop both write to this connection, so
	// every frame goes through the serialized wrapper.
	conn := ws.NewConn(raw)
	defer conn.Close()

	participantID := claims.UserID

	// SECURITY: Validate ownership before streaming anything.
	if _, err := h.portal.Authorize(c.Request.Context(), sessionID, participantID); err != nil {
		conn.WriteError("NOT_FOUND", "no such session for this participant")
		return
	}

	wsLog := h.log.With().
		Int("participant_id", participantID).
		Str("session_id", sessionID.String()).
		Logger()

	wsLog.Info().Msg("Participant connected")

	// The connection dropping counts as integrity lost for sessions still
	// inside the proctored phase. Forget cancels any pending debounce so a
	// reconnect starts clean.
	defer h.monitor.Forget(sessionID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// The push loop ticks immediately, so a session resumed past its
	// deadline expires as soon as the stream opens.
	go h.pushTicks(ctx, conn, sessionID, wsLog)

	for {
		var msg ws.RequestPayload
		err := conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionAutosave:
			h.handleAutosave(conn, sessionID, &msg)
		case ws.ActionNavigate:
			h.handleNavigate(conn, sessionID, &msg)
		case ws.ActionSubmit:
			h.handleSubmit(conn, wsLog, sessionID)
		case ws.ActionIntegrityHeld:
			h.monitor.Signal(sessionID, true)
			conn.WriteJSON(ws.EventSuccess, map[string]string{"status": "integrity_held"})
		case ws.ActionIntegrityLost:
			h.monitor.Signal(sessionID, false)
			conn.WriteJSON(ws.EventSuccess, map[string]string{"status": "integrity_lost"})
		case ws.ActionPing:
			conn.WriteJSON(ws.EventPong, nil)
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			conn.WriteError("UNKNOWN_ACTION", "unknown action: "+string(msg.Action))
		}
	}
}

// pushTicks streams remaining time once per timer interval and drives the
// expiry check for this session. Stops when the session goes terminal,
// emitting a final submitted event with the terminal status.
func (h *WSHandler) pushTicks(ctx context.Context, conn *ws.Conn, sessionID uuid.UUID, wsLog zerolog.Logger) {
	ticker := time.NewTicker(h.timer.Interval())
	defer ticker.Stop()

	for {
		s, err := h.ctrl.Tick(ctx, sessionID)
		if err != nil {
			wsLog.Error().Err(err).Msg("Tick failed")
		} else if s.Status.Terminal() {
			conn.WriteJSON(ws.EventSubmitted, map[string]interface{}{
				"status":           s.Status,
				"submit_trigger":   s.SubmitTrigger,
				"submission_token": s.SubmissionToken,
			})
			return
		} else {
			conn.WriteJSON(ws.EventTick, map[string]interface{}{
				"status":            s.Status,
				"remaining_seconds": int(h.timer.Remaining(s).Seconds()),
			})
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// handleAutosave stores a draft through the controller, which rejects
// writes outside the ACTIVE state.
func (h *WSHandler) handleAutosave(conn *ws.Conn, sessionID uuid.UUID, msg *ws.RequestPayload) {
	ctx := context.Background()

	if msg.QuestionID == "" || msg.Language == "" {
		conn.WriteError("VALIDATION_ERROR", "question_id and language are required")
		return
	}

	// SECURITY: Validate the question id is a well-formed UUID to prevent
	// Redis key injection.
	questionID, err := uuid.Parse(msg.QuestionID)
	if err != nil {
		conn.WriteError("INVALID_ID", "invalid question_id format")
		return
	}

	if err := h.ctrl.SaveAnswer(ctx, sessionID, questionID, msg.Language, msg.Code); err != nil {
		if errors.Is(err, session.ErrInvalidState) {
			conn.WriteError("INVALID_SESSION_STATE", "session is not accepting answers")
			return
		}
		h.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Autosave error")
		conn.WriteError("INTERNAL_ERROR", "save failed")
		return
	}

	conn.WriteJSON(ws.EventSuccess, map[string]string{"status": "saved"})
}

func (h *WSHandler) handleNavigate(conn *ws.Conn, sessionID uuid.UUID, msg *ws.RequestPayload) {
	if msg.Index == nil {
		conn.WriteError("VALIDATION_ERROR", "index is required")
		return
	}

	s, err := h.ctrl.NavigateTo(context.Background(), sessionID, *msg.Index)
	if err != nil {
		if errors.Is(err, session.ErrInvalidState) {
			conn.WriteError("INVALID_SESSION_STATE", "navigation rejected")
			return
		}
		conn.WriteError("INTERNAL_ERROR", "navigation failed")
		return
	}

	conn.WriteJSON(ws.EventSuccess, map[string]interface{}{
		"status": "navigated",
		"index":  s.CurrentQuestionIndex,
	})
}

// handleSubmit performs the manual terminal transition. A session that is
// already terminal yields the original record, so repeated submits over the
// socket collapse to the same submission token.
func (h *WSHandler) handleSubmit(conn *ws.Conn, wsLog zerolog.Logger, sessionID uuid.UUID) {
	s, err := h.ctrl.Submit(context.Background(), sessionID, model.TriggerManual)
	if err != nil {
		if errors.Is(err, session.ErrInvalidState) {
			conn.WriteError("INVALID_SESSION_STATE", "session cannot be submitted from its current state")
			return
		}
		wsLog.Error().Err(err).Msg("Submit error")
		conn.WriteError("INTERNAL_ERROR", "submit failed")
		return
	}

	wsLog.Info().
		Str("status", string(s.Status)).
		Msg("Session submitted")

	conn.WriteJSON(ws.EventSubmitted, map[string]interface{}{
		"status":           s.Status,
		"submit_trigger":   s.SubmitTrigger,
		"submission_token": s.SubmissionToken,
	})
}
