package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/validator"
)

// ProctorAuthenticator logs proctors in and loads their accounts.
type ProctorAuthenticator interface {
	Login(ctx context.Context, req model.ProctorLoginRequest) (*model.ProctorLoginResponse, error)
	GetByID(ctx context.Context, id int) (*model.Proctor, error)
}

// AuthHandler handles proctor authentication endpoints.
type AuthHandler struct {
	proctors ProctorAuthenticator
	log      zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(proctors ProctorAuthenticator, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		proctors: proctors,
		log:      log.With().Str("component", "auth_handler").Logger(),
	}
}

// ProctorLogin godoc
// POST /api/v1/auth/proctor/login
// Validates email + password and returns a proctor JWT.
func (h *AuthHandler) ProctorLogin(c *gin.Context) {
	var req model.ProctorLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	resp, err := h.proctors.Login(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
			return
		}
		h.log.Error().Err(err).Str("request_id", response.RequestID(c)).Msg("Proctor login failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, resp)
}

// GetProctorProfile godoc
// GET /api/v1/auth/proctor/me
func (h *AuthHandler) GetProctorProfile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	proctor, err := h.proctors.GetByID(c.Request.Context(), claims.ProctorID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"proctor": proctor})
}
