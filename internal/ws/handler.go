package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/e-projects/platform-api/internal/models"
	appErrors "github.com/e-projects/platform-api/pkg/errors"
	"github.com/e-projects/platform-api/pkg/response"
)

// SessionValidator authenticates a websocket handshake. Browsers cannot set
// headers on the upgrade request, so the token travels as a query parameter.
type SessionValidator interface {
	ValidateToken(tokenString string) (*models.SessionClaims, error)
	CheckSession(ctx context.Context, claims *models.SessionClaims) (*models.UserInfo, error)
}

// Handler upgrades authenticated clients into hub connections.
type Handler struct {
	hub      *Hub
	auth     SessionValidator
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler constructs a websocket handler.
func NewHandler(hub *Hub, auth SessionValidator, allowedOrigins []string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}

	return &Handler{
		hub:  hub,
		auth: auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				_, ok := origins[r.Header.Get("Origin")]
				return ok
			},
		},
		logger: logger,
	}
}

// Serve handles GET /ws?token=...
func (h *Handler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing token"))
		return
	}

	claims, err := h.auth.ValidateToken(token)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token"))
		return
	}
	user, err := h.auth.CheckSession(c.Request.Context(), claims)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) && appErr.Code == appErrors.ErrSessionExpired.Code {
			response.SessionExpired(c, appErr.Message)
		} else {
			response.Error(c, err)
		}
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{
		conn:      conn,
		send:      make(chan []byte, 64),
		userID:    user.ID,
		sessionID: claims.SessionID,
		admin:     user.Access.IsAdmin,
	}
	h.hub.register(cl)
	defer h.hub.unregister(cl)

	h.logger.Debug("websocket connected",
		zap.String("user_id", user.ID),
		zap.Bool("admin", cl.admin))

	hello, _ := json.Marshal(Event{Type: EventConnected})
	select {
	case cl.send <- hello:
	default:
	}

	// Inbound frames are ignored; the socket is push-only.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
