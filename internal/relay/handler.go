package relay

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vladislav-moscow/Social/internal/logger"
)

// Handler upgrades HTTP requests to relay connections.
type Handler struct {
	hub            *Hub
	originPatterns []string
}

// NewHandler accepts browser connections only from allowedOrigin. Clients
// that send no Origin header (CLIs, services) are always accepted.
func NewHandler(hub *Hub, allowedOrigin string) *Handler {
	h := &Handler{hub: hub}
	if u, err := url.Parse(allowedOrigin); err == nil && u.Host != "" {
		h.originPatterns = []string{u.Host}
	}
	return h
}

// ServeWebSocket serves one connection until it closes. It runs on the raw
// http.ResponseWriter because the upgrade has to hijack the connection.
func (h *Handler) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  h.originPatterns,
		CompressionMode: websocket.CompressionContextTakeover,
	})
	if err != nil {
		logger.Log.Warn("Relay upgrade failed",
			logger.WithIP(remoteIP(r)),
			zap.String("origin", r.Header.Get("Origin")),
			zap.Error(err))
		return
	}

	client := NewClient(h.hub, conn, uuid.NewString())
	client.RemoteAddr = remoteIP(r)
	client.UserAgent = r.UserAgent()

	h.hub.Register(client)

	go client.WritePump()
	client.ReadPump()
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// HandleOnline reports the registry and hub counters.
func (h *Handler) HandleOnline(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"users":   h.hub.Online(),
		"metrics": h.hub.GetMetrics(),
	})
}
