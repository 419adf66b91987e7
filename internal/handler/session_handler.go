package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/exam"
	"github.com/stemsi/exstem-proctor/internal/i18n"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/validator"
)

// SessionCreator opens new exam sessions.
type SessionCreator interface {
	Create(lang string) (*model.CreateSessionResponse, error)
}

// SessionHandler exposes the candidate exam flow over REST.
type SessionHandler struct {
	sessions SessionCreator
	tr       exam.Translator
	log      zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions SessionCreator, tr exam.Translator, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		tr:       tr,
		log:      log.With().Str("component", "session_handler").Logger(),
	}
}

// CreateSession godoc
// POST /api/v1/sessions
// Opens a session in stage sign-in and returns its token.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	resp, err := h.sessions.Create(c.GetHeader("Accept-Language"))
	if err != nil {
		h.log.Error().Err(err).Str("request_id", response.RequestID(c)).Msg("Failed to open session")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusCreated, resp)
}

// GetSession godoc
// GET /api/v1/session
func (h *SessionHandler) GetSession(c *gin.Context) {
	sess := middleware.GetSession(c)
	response.Success(c, http.StatusOK, gin.H{"session": sess.Snapshot()})
}

// SignIn godoc
// POST /api/v1/session/sign-in
func (h *SessionHandler) SignIn(c *gin.Context) {
	var req model.SignInRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess := middleware.GetSession(c)
	if err := sess.SignIn(req.Candidate()); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": sess.Snapshot()})
}

// Back godoc
// POST /api/v1/session/back
func (h *SessionHandler) Back(c *gin.Context) {
	h.transition(c, (*exam.Session).Back)
}

// Start godoc
// POST /api/v1/session/start
func (h *SessionHandler) Start(c *gin.Context) {
	h.transition(c, (*exam.Session).Start)
}

// Reset godoc
// POST /api/v1/session/reset
func (h *SessionHandler) Reset(c *gin.Context) {
	h.transition(c, (*exam.Session).Reset)
}

func (h *SessionHandler) transition(c *gin.Context, step func(*exam.Session) error) {
	sess := middleware.GetSession(c)
	if err := step(sess); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": sess.Snapshot()})
}

// AnswerMCQ godoc
// PUT /api/v1/session/answers/mcq/:question_id
func (h *SessionHandler) AnswerMCQ(c *gin.Context) {
	qid, err := strconv.Atoi(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SelectOptionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess := middleware.GetSession(c)
	if err := sess.AnswerMCQ(qid, *req.Option); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"question_id": qid, "option": *req.Option})
}

// AnswerSAQ godoc
// PUT /api/v1/session/answers/saq/:question_id
func (h *SessionHandler) AnswerSAQ(c *gin.Context) {
	qid, err := strconv.Atoi(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.WriteResponseRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess := middleware.GetSession(c)
	if err := sess.AnswerSAQ(qid, req.Text); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"question_id": qid})
}

// ReportIntegrity godoc
// POST /api/v1/session/integrity
// Always answers 200 with a verdict once the payload is valid.
func (h *SessionHandler) ReportIntegrity(c *gin.Context) {
	var ev model.IntegrityEvent
	if fields := validator.Bind(c, &ev); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	verdict := middleware.GetSession(c).ReportViolation(ev)
	response.Success(c, http.StatusOK, gin.H{"verdict": verdict})
}

// Submit godoc
// POST /api/v1/session/submit
func (h *SessionHandler) Submit(c *gin.Context) {
	sess := middleware.GetSession(c)
	outcome, err := sess.Submit(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	body := gin.H{"outcome": outcome, "session": sess.Snapshot()}
	if outcome == model.SubmitOutcomeSubmitted {
		body["message"] = h.tr.T(c.GetHeader("Accept-Language"), i18n.MsgSubmissionSucceeded)
	}
	response.Success(c, http.StatusOK, body)
}

// fail maps session errors to the response envelope.
func (h *SessionHandler) fail(c *gin.Context, err error) {
	e, known := classifySessionError(err)
	if !known {
		h.log.Error().Err(err).Str("request_id", response.RequestID(c)).Msg("Unhandled session error")
	}
	switch {
	case e.fields != nil:
		response.FailWithFields(c, e.status, e.code, e.fields)
	case e.msgID != "":
		response.FailWithMessage(c, e.status, e.code, e.message(h.tr, c.GetHeader("Accept-Language")))
	default:
		response.Fail(c, e.status, e.code)
	}
}
