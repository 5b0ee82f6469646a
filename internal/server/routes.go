package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/localdrop/localdrop/internal/presence"
	"github.com/localdrop/localdrop/internal/relay"
	"github.com/localdrop/localdrop/internal/roomcode"
)

// Origins are enforced by OriginFilter before the upgrade is attempted.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Options configures the router.
type Options struct {
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter wires the relay's HTTP surface.
func NewRouter(hub *relay.Hub, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger))
	if len(opts.AllowedOrigins) > 0 {
		r.Use(OriginFilter(opts.AllowedOrigins))
	}

	r.GET("/health", healthCheck)
	r.GET("/ws", ServeWs(hub, logger))
	r.GET("/api/rooms/:code", GetRoom(hub))

	return r
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ServeWs upgrades the request and hands the connection to the hub.
func ServeWs(hub *relay.Hub, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Debug("failed to upgrade connection", "remote", c.ClientIP(), "error", err)
			return
		}

		client := relay.NewClient(hub, conn, presence.DeviceClassFromUserAgent(c.Request.UserAgent()))
		if !hub.Register(client) {
			conn.Close()
			return
		}

		go client.WritePump()
		go client.ReadPump()
	}
}

// GetRoom reports who is currently in a room.
func GetRoom(hub *relay.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := roomcode.Canonical(c.Param("code"))

		participants, found, err := hub.Lookup(c.Request.Context(), code)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"room":         code,
			"participants": participants,
		})
	}
}
