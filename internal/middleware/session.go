package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stemsi/exstem-proctor/internal/exam"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// ContextKeySession is the Gin context key for the resolved exam session.
const ContextKeySession = "session"

// SessionLookup resolves session ids to live sessions.
type SessionLookup interface {
	Get(id uuid.UUID) (*exam.Session, error)
}

// LoadSession resolves the session named by the token claims. It must run
// after RequireSessionJWT. Evicted sessions answer 404 so the client knows
// to start over.
func LoadSession(sessions SessionLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := service.SessionIDFromClaims(GetClaims(c))
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		sess, err := sessions.Get(id)
		if err != nil {
			response.AbortFail(c, http.StatusNotFound, response.ErrSessionNotFound)
			return
		}

		c.Set(ContextKeySession, sess)
		c.Next()
	}
}

// GetSession returns the session stored by LoadSession.
func GetSession(c *gin.Context) *exam.Session {
	val, exists := c.Get(ContextKeySession)
	if !exists {
		return nil
	}
	sess, _ := val.(*exam.Session)
	return sess
}
