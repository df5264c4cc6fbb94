package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assess/internal/middleware"
	"github.com/stemsi/exstem-assess/internal/model"
	"github.com/stemsi/exstem-assess/internal/response"
	"github.com/stemsi/exstem-assess/internal/service"
	ws "github.com/stemsi/exstem-assess/internal/websocket"
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

// WSHandler handles WebSocket exam streaming.
type WSHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.ExamSessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/student/sessions/:id/stream
// Upgrades to WebSocket for autosave, countdown and submit. The session is
// checked before the upgrade so ownership errors stay plain HTTP.
func (h *WSHandler) SessionStream(c *gin.Context) {
	sessionID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	p := middleware.GetPrincipal(c)

	status, err := h.sessionService.TimeStatus(c.Request.Context(), p, sessionID)
	if err != nil {
		failService(c, err)
		return
	}
	if status.Completed {
		response.Fail(c, http.StatusConflict, response.ErrExamCompleted)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("user_id", p.UserID).
		Str("session_id", sessionID.String()).
		Logger()

	wsLog.Info().Msg("Student connected")

	// A submit must not be cut short by the client going away.
	ctx := context.WithoutCancel(c.Request.Context())

	for {
		env, err := ws.ReadEnvelope(conn)
		if err != nil {
			if errors.Is(err, ws.ErrMalformedMessage) {
				ws.WriteError(conn, string(response.ErrInvalidPayload), "message must be JSON")
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch env.Action {
		case ws.ActionAutosave:
			h.handleAutosave(ctx, conn, p, sessionID, env)
		case ws.ActionTime:
			h.handleTime(ctx, conn, p, sessionID)
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		case ws.ActionSubmit:
			if h.handleSubmit(ctx, conn, wsLog, p, sessionID, env) {
				return
			}
		default:
			wsLog.Warn().Str("action", string(env.Action)).Msg("Unknown action")
			ws.WriteError(conn, string(response.ErrInvalidPayload), "unknown action: "+string(env.Action))
		}
	}
}

// handleAutosave stores one draft answer.
func (h *WSHandler) handleAutosave(ctx context.Context, conn *websocket.Conn, p model.Principal, sessionID uuid.UUID, env *ws.RequestEnvelope) {
	var req ws.AutosaveRequest
	if err := env.Decode(&req); err != nil || req.QuestionID <= 0 {
		ws.WriteError(conn, string(response.ErrInvalidPayload), "question_id and values are required")
		return
	}

	if err := h.sessionService.Autosave(ctx, p, sessionID, req.QuestionID, req.Values); err != nil {
		writeServiceError(conn, err)
		return
	}

	ws.WriteTyped(conn, ws.SavedResponse{Event: ws.EventSaved, QuestionID: req.QuestionID})
}

// handleTime pushes the current countdown.
func (h *WSHandler) handleTime(ctx context.Context, conn *websocket.Conn, p model.Principal, sessionID uuid.UUID) {
	status, err := h.sessionService.TimeStatus(ctx, p, sessionID)
	if err != nil {
		writeServiceError(conn, err)
		return
	}

	ws.WriteTyped(conn, ws.TimeResponse{
		Event:                ws.EventTime,
		TimeRemainingSeconds: status.TimeRemainingSeconds,
		TimeExpired:          status.TimeExpired,
		Completed:            status.Completed,
	})
}

// handleSubmit finalizes the session. It reports whether the stream is done.
func (h *WSHandler) handleSubmit(ctx context.Context, conn *websocket.Conn, wsLog zerolog.Logger, p model.Principal, sessionID uuid.UUID, env *ws.RequestEnvelope) bool {
	var req ws.SubmitRequest
	if err := env.Decode(&req); err != nil {
		ws.WriteError(conn, string(response.ErrInvalidPayload), "answers must map question ids to values")
		return false
	}

	answers := model.SubmitAnswersRequest{Answers: req.Answers}.AnswerMap()
	res, err := h.sessionService.Finalize(ctx, p, sessionID, answers)
	if err != nil {
		wsLog.Error().Err(err).Msg("Submit failed")
		writeServiceError(conn, err)
		return false
	}

	ws.WriteTyped(conn, ws.GradedResponse{
		Event:          ws.EventGraded,
		Score:          res.Score,
		MaxScore:       res.MaxScore,
		TotalQuestions: res.TotalQuestions,
		Expired:        res.Expired,
	})
	return true
}

func writeServiceError(conn *websocket.Conn, err error) {
	_, code := resolveError(err)
	ws.WriteError(conn, string(code), response.GetMessage(code))
}
