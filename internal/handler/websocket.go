package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"project_portal/internal/config"
	"project_portal/internal/middleware"
	"project_portal/internal/realtime"
	apperrors "project_portal/pkg/errors"
	"project_portal/pkg/logger"
)

type WebSocketHandler struct {
	gateway  *realtime.Gateway
	upgrader websocket.Upgrader
	log      logger.Logger
}

func NewWebSocketHandler(gateway *realtime.Gateway, cors config.CORSConfig, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		gateway: gateway,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cors.AllowedOrigins),
		},
		log: log,
	}
}

// Serve authenticates before upgrading, so a bad token is a plain 401 and no
// session is ever registered for it.
func (h *WebSocketHandler) Serve(c *gin.Context) {
	identity, err := h.gateway.Authenticate(c.Request.Context(), middleware.BearerToken(c))
	if err != nil {
		h.log.Debug("WebSocket authentication failed", "error", err, "client_ip", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": apperrors.PublicMessage(err)})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("Failed to upgrade connection", "error", err, "user_id", identity.UserID)
		return
	}

	h.gateway.Serve(c.Request.Context(), conn, h.gateway.Connect(identity))
}

// originChecker allows same-host requests, requests without Origin, and the
// configured origins. "*" or an empty list allows any origin.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(origin, "/")] = struct{}{}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set[origin]; ok {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}
