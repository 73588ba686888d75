package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/quickmeet/signaling/internal/domain"
	"github.com/quickmeet/signaling/internal/security"
	"github.com/quickmeet/signaling/internal/session"
)

const sessionKey = "session"

// AuthMiddleware resolves the Authorization bearer token to the active
// session. Tokens that parse but no longer match a stored session are
// rejected: the user logged in elsewhere.
func AuthMiddleware(tokens *security.TokenManager, store session.Store) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := strings.TrimPrefix(ctx.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		if _, err := tokens.Parse(token); err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		sess, err := store.GetSessionByToken(ctx.Request.Context(), token)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}
		ctx.Set(sessionKey, sess)
		ctx.Next()
	}
}

// currentSession returns the session placed by AuthMiddleware.
func currentSession(ctx *gin.Context) *domain.Session {
	v, ok := ctx.Get(sessionKey)
	if !ok {
		return nil
	}
	return v.(*domain.Session)
}
