package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/exam"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/response"
	ws "github.com/stemsi/exstem-proctor/internal/websocket"
)

const eventBuffer = 64

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

// WSHandler streams session events to the candidate and accepts the same
// actions as the REST routes.
type WSHandler struct {
	tr       exam.Translator
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(tr exam.Translator, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		tr:       tr,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/session/stream?token=...
// Closing the socket does not submit the exam.
func (h *WSHandler) SessionStream(c *gin.Context) {
	sess := middleware.GetSession(c)
	if sess == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	lang := c.Query("lang")
	if lang == "" {
		lang = c.GetHeader("Accept-Language")
	}
	if lang != "" {
		sess.SetLang(lang)
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(raw)
	defer conn.Close()

	wsLog := h.log.With().Str("session_id", sess.ID().String()).Logger()
	wsLog.Info().Msg("Candidate connected")

	events, unsubscribe := sess.Subscribe(eventBuffer)
	defer unsubscribe()

	// The current state goes first so the client never starts blind.
	_ = conn.WriteTyped(ws.SessionEventResponse{
		Event: ws.EventSession,
		Data:  exam.Event{Type: exam.EventStage, Data: exam.StagePayload{Stage: sess.Stage()}},
	})

	go func() {
		for ev := range events {
			if err := conn.WriteTyped(ws.SessionEventResponse{Event: ws.EventSession, Data: ev}); err != nil {
				wsLog.Debug().Err(err).Msg("Event push failed")
				return
			}
		}
	}()

	for {
		env, err := conn.ReadEnvelope()
		if err != nil {
			if errors.Is(err, ws.ErrMalformedFrame) {
				_ = conn.WriteError("", string(response.ErrInvalidPayload), response.GetMessage(response.ErrInvalidPayload))
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		h.dispatch(c.Request.Context(), conn, sess, env, lang)
	}
}

func (h *WSHandler) dispatch(ctx context.Context, conn *ws.Conn, sess *exam.Session, env ws.RequestEnvelope, lang string) {
	switch env.Action {
	case ws.ActionAnswerMCQ:
		var req ws.AnswerMCQRequest
		if err := json.Unmarshal(env.Raw, &req); err != nil || req.Option == nil {
			h.invalid(conn, env.Action)
			return
		}
		h.reply(conn, env.Action, lang, sess.AnswerMCQ(req.QuestionID, *req.Option), gin.H{"question_id": req.QuestionID})

	case ws.ActionAnswerSAQ:
		var req ws.AnswerSAQRequest
		if err := json.Unmarshal(env.Raw, &req); err != nil {
			h.invalid(conn, env.Action)
			return
		}
		h.reply(conn, env.Action, lang, sess.AnswerSAQ(req.QuestionID, req.Text), gin.H{"question_id": req.QuestionID})

	case ws.ActionIntegrity:
		var req ws.IntegrityRequest
		if err := json.Unmarshal(env.Raw, &req); err != nil || req.Event.Kind == "" {
			h.invalid(conn, env.Action)
			return
		}
		verdict := sess.ReportViolation(req.Event)
		h.reply(conn, env.Action, lang, nil, gin.H{"verdict": verdict})

	case ws.ActionSubmit:
		outcome, err := sess.Submit(ctx)
		h.reply(conn, env.Action, lang, err, gin.H{"outcome": outcome})

	case ws.ActionPing:
		_ = conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})

	default:
		h.log.Debug().Str("action", string(env.Action)).Msg("Unknown action")
		_ = conn.WriteError(env.Action, string(response.ErrInvalidPayload), "unknown action: "+string(env.Action))
	}
}

func (h *WSHandler) reply(conn *ws.Conn, action ws.Action, lang string, err error, data interface{}) {
	if err != nil {
		e, known := classifySessionError(err)
		if !known {
			h.log.Error().Err(err).Str("action", string(action)).Msg("Unhandled session error")
		}
		_ = conn.WriteError(action, string(e.code), e.message(h.tr, lang))
		return
	}
	_ = conn.WriteTyped(ws.AckResponse{Event: ws.EventAck, Action: action, Data: data})
}

func (h *WSHandler) invalid(conn *ws.Conn, action ws.Action) {
	_ = conn.WriteError(action, string(response.ErrInvalidPayload), response.GetMessage(response.ErrInvalidPayload))
}
