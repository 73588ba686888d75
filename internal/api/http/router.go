package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/quickmeet/signaling/internal/security"
	"github.com/quickmeet/signaling/internal/session"
	"github.com/quickmeet/signaling/internal/ws"
)

func SetupRouter(
	allowedOrigins []string,
	tokens *security.TokenManager,
	store session.Store,
	gateway *ws.Gateway,
	authController *AuthController,
	meetingController *MeetingController,
) *gin.Engine {
	router := gin.Default()

	config := cors.DefaultConfig()
	if len(allowedOrigins) > 0 {
		config.AllowOrigins = allowedOrigins
	} else {
		config.AllowAllOrigins = true
	}
	config.AllowCredentials = len(allowedOrigins) > 0
	config.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"Origin",
		"Accept",
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	router.Use(cors.New(config))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	router.GET("/ws", gateway.Handle)

	api := router.Group("/api")
	api.POST("/auth/login", authController.Login)
	api.POST("/auth/logout", AuthMiddleware(tokens, store), authController.Logout)

	meetings := api.Group("/meetings")
	meetings.Use(AuthMiddleware(tokens, store))
	meetings.POST("/create", meetingController.Create)
	meetings.POST("/prejoin", meetingController.PreJoin)
	meetings.POST("/join", meetingController.Join)
	meetings.POST("/exit", meetingController.Exit)
	meetings.POST("/kick", meetingController.Kick)
	meetings.POST("/finish", meetingController.Finish)
	meetings.POST("/invite", meetingController.Invite)
	meetings.POST("/invite/accept", meetingController.AcceptInvite)

	return router
}
