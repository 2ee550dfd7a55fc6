package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/middleware"
	"github.com/weiawesome/wes-io-chat/pkg/response"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/ice"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/service"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/store"
)

// ICEServerSource lists ICE servers for WebRTC clients.
type ICEServerSource interface {
	Servers(ctx context.Context) []ice.ICEServer
}

// SendMessageRequest is the body of the REST send path.
type SendMessageRequest struct {
	Content string             `json:"content"`
	Type    domain.MessageType `json:"type"`
}

// PresenceResponse reports a single user's presence.
type PresenceResponse struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

// Handler handles HTTP requests for realtime service.
type Handler struct {
	service        service.RealtimeService
	iceServers     ICEServerSource
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler creates a new HTTP handler.
func NewHandler(svc service.RealtimeService, iceServers ICEServerSource, authMiddleware *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        svc,
		iceServers:     iceServers,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		// Public routes
		api.GET("/ice-servers", h.ICEServers)

		// Protected routes
		protected := api.Group("", h.authMiddleware.RequireAuth())
		protected.POST("/conversations/:conversationId/messages", h.SendMessage)
		protected.GET("/conversations/:conversationId/messages/last", h.LastMessage)
		protected.GET("/presence", h.ListOnline)
		protected.GET("/presence/:userId", h.GetPresence)
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}

// ICEServers returns the STUN/TURN servers clients should use.
func (h *Handler) ICEServers(c *gin.Context) {
	response.Success(c, gin.H{"iceServers": h.iceServers.Servers(c.Request.Context())})
}

// SendMessage persists a message and pushes it to the conversation room.
func (h *Handler) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	userID := middleware.GetUserID(c)
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind send message request")
		response.BadRequest(c, err.Error())
		return
	}

	msg, err := h.service.SendMessage(ctx, userID, c.Param("conversationId"), req.Content, req.Type)
	if err != nil {
		h.writeError(c, err, "failed to send message")
		return
	}

	response.Created(c, msg)
}

// LastMessage returns the newest message of a conversation.
func (h *Handler) LastMessage(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	msg, err := h.service.LastMessage(c.Request.Context(), userID, c.Param("conversationId"))
	if err != nil {
		if errors.Is(err, store.ErrMessageNotFound) {
			response.NotFound(c, "conversation has no messages")
			return
		}
		h.writeError(c, err, "failed to load last message")
		return
	}

	response.Success(c, msg)
}

// ListOnline returns every online user.
func (h *Handler) ListOnline(c *gin.Context) {
	response.Success(c, gin.H{"onlineUserIds": h.service.OnlineUserIDs()})
}

// GetPresence reports whether a user is online.
func (h *Handler) GetPresence(c *gin.Context) {
	userID := c.Param("userId")
	response.Success(c, PresenceResponse{UserID: userID, Online: h.service.IsOnline(userID)})
}

func (h *Handler) writeError(c *gin.Context, err error, fallback string) {
	code := domain.ErrorCode(err)
	if code == domain.ErrCodeInternal {
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Msg(fallback)
		response.InternalError(c, fallback)
		return
	}
	response.FromCode(c, code, err.Error())
}
