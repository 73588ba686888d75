package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/quickmeet/signaling/internal/domain"
	"github.com/quickmeet/signaling/internal/security"
	"github.com/quickmeet/signaling/internal/session"
)

// AuthController issues the websocket credential. Account storage and
// password verification live in a separate identity service; this
// endpoint trusts the caller's profile and only establishes the
// realtime session.
type AuthController struct {
	tokens *security.TokenManager
	store  session.Store
}

func NewAuthController(tokens *security.TokenManager, store session.Store) *AuthController {
	return &AuthController{tokens: tokens, store: store}
}

func (c *AuthController) Login(ctx *gin.Context) {
	type LoginRequest struct {
		UserID   string `json:"userId"`
		Nickname string `json:"nickName" binding:"required"`
		Sex      int    `json:"sex"`
		IsAdmin  bool   `json:"admin"`
	}
	var req LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if req.UserID == "" {
		req.UserID = uuid.New().String()
	}

	token, err := c.tokens.Generate(req.UserID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	sess := &domain.Session{
		UserID:   req.UserID,
		Nickname: req.Nickname,
		Sex:      req.Sex,
		IsAdmin:  req.IsAdmin,
		Token:    token,
	}
	if err := c.store.PutSession(ctx.Request.Context(), sess); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"token": token, "userId": req.UserID})
}

// Logout revokes the caller's session; the token stops resolving and
// any later websocket upgrade with it gets a 401.
func (c *AuthController) Logout(ctx *gin.Context) {
	sess := currentSession(ctx)
	if err := c.store.RemoveToken(ctx.Request.Context(), sess.Token); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "logged out"})
}
