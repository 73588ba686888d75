package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quickmeet/signaling/internal/api/http/converter"
	"github.com/quickmeet/signaling/internal/domain"
	"github.com/quickmeet/signaling/internal/service"
)

type MeetingController struct {
	meetings *service.MeetingService
}

func NewMeetingController(meetings *service.MeetingService) *MeetingController {
	return &MeetingController{meetings: meetings}
}

func (c *MeetingController) Create(ctx *gin.Context) {
	type CreateRequest struct {
		Name         string `json:"meetingName" binding:"required"`
		JoinType     int    `json:"joinType"`
		JoinPassword string `json:"joinPassword"`
	}
	var req CreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	sess := currentSession(ctx)
	meeting, err := c.meetings.CreateInstant(ctx.Request.Context(), sess, req.Name, domain.JoinType(req.JoinType), req.JoinPassword)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"meeting": converter.MeetingToApi(meeting)})
}

func (c *MeetingController) PreJoin(ctx *gin.Context) {
	type PreJoinRequest struct {
		MeetingNo string `json:"meetingNo" binding:"required"`
		Password  string `json:"password"`
	}
	var req PreJoinRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	sess := currentSession(ctx)
	meeting, err := c.meetings.PreJoin(ctx.Request.Context(), sess, req.MeetingNo, req.Password)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"meeting": converter.MeetingToApi(meeting)})
}

func (c *MeetingController) Join(ctx *gin.Context) {
	type JoinRequest struct {
		VideoOpen bool `json:"videoOpen"`
	}
	var req JoinRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	sess := currentSession(ctx)
	if err := c.meetings.Join(ctx.Request.Context(), sess, req.VideoOpen); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "joined"})
}

func (c *MeetingController) Exit(ctx *gin.Context) {
	sess := currentSession(ctx)
	if err := c.meetings.Exit(ctx.Request.Context(), sess, domain.MemberStatusExited); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "exited"})
}

func (c *MeetingController) Kick(ctx *gin.Context) {
	type KickRequest struct {
		UserID    string `json:"userId" binding:"required"`
		Blacklist bool   `json:"blacklist"`
	}
	var req KickRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	status := domain.MemberStatusKicked
	if req.Blacklist {
		status = domain.MemberStatusBlacklisted
	}

	sess := currentSession(ctx)
	if err := c.meetings.ForceExit(ctx.Request.Context(), sess, req.UserID, status); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (c *MeetingController) Finish(ctx *gin.Context) {
	sess := currentSession(ctx)
	meetingID := sess.CurrentMeetingID
	if meetingID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "no current meeting"})
		return
	}
	if err := c.meetings.Finish(ctx.Request.Context(), meetingID, sess.UserID); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "finished"})
}

func (c *MeetingController) Invite(ctx *gin.Context) {
	type InviteRequest struct {
		UserIDs []string `json:"userIds" binding:"required"`
	}
	var req InviteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	sess := currentSession(ctx)
	if err := c.meetings.Invite(ctx.Request.Context(), sess, req.UserIDs); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "invited"})
}

func (c *MeetingController) AcceptInvite(ctx *gin.Context) {
	type AcceptRequest struct {
		MeetingID string `json:"meetingId" binding:"required"`
	}
	var req AcceptRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	sess := currentSession(ctx)
	meeting, err := c.meetings.AcceptInvite(ctx.Request.Context(), sess, req.MeetingID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"meeting": converter.MeetingToApi(meeting)})
}

// respondError maps rule violations to 400 and everything else to 500.
func respondError(ctx *gin.Context, err error) {
	if domain.IsBusinessError(err) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
