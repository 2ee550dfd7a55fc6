package handler

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	pkglog "github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/middleware"
	"github.com/weiawesome/wes-io-chat/pkg/response"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/hub"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/lifecycle"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/service"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// WSHandler handles WebSocket connections.
type WSHandler struct {
	hub     *hub.Hub
	service service.RealtimeService
}

// NewWSHandler creates a new WebSocket handler.
func NewWSHandler(h *hub.Hub, svc service.RealtimeService) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
	}
}

// ServeHTTP authenticates the request, then upgrades it and starts the
// connection pumps. Unauthenticated requests are refused before the upgrade.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l := pkglog.Ctx(r.Context())

	token := lifecycle.ExtractToken(r.Header.Get(middleware.AuthHeaderKey), r.URL.Query().Get("token"))
	userID, err := h.service.Authenticate(r.Context(), token)
	if err != nil {
		l.Info().Err(err).Msg("websocket upgrade refused")
		writeError(w, http.StatusUnauthorized, domain.ErrCodeUnauthorized, "invalid or missing token")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	session := domain.NewSession(uuid.New().String(), userID)
	client := hub.NewClient(h.hub, conn, session)

	// The request context ends with the handshake; keep only its logger.
	ctx := pkglog.WithLogger(context.Background(), l)

	client.SetDisconnectHandler(func(c *hub.Client) {
		h.service.HandleDisconnect(ctx, c.Session)
	})

	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	h.service.HandleConnect(ctx, session)
	go client.ReadPump(func(c *hub.Client, message []byte) {
		h.service.HandleCommand(ctx, c.Session, message)
	})
}

// RegisterRoutes registers the WebSocket route behind the request logger.
func (h *WSHandler) RegisterRoutes(mux *http.ServeMux, logger zerolog.Logger) {
	mux.Handle("/ws", pkglog.HTTPMiddleware(logger)(h))
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response.Response{
		Success: false,
		Error:   &response.ErrorInfo{Code: code, Message: message},
	})
}
