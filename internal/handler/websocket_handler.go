package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/dafibh/ledgerly/ledgerly-backend/internal/websocket"
	ws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// TokenValidator resolves an access token to the owning user's ID
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (userID int32, err error)
}

// WebSocketHandler upgrades authenticated clients to a live change feed
type WebSocketHandler struct {
	hub       *websocket.Hub
	validator TokenValidator
	origins   originPolicy
	upgrader  ws.Upgrader
}

// originPolicy is the set of browser origins allowed to open a feed. A "*"
// entry allows any origin.
type originPolicy struct {
	any     bool
	allowed map[string]struct{}
}

func newOriginPolicy(origins []string) originPolicy {
	p := originPolicy{allowed: make(map[string]struct{}, len(origins))}
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch origin {
		case "":
		case "*":
			p.any = true
		default:
			p.allowed[strings.ToLower(origin)] = struct{}{}
		}
	}
	return p
}

func (p originPolicy) permits(origin string) bool {
	if p.any {
		return true
	}
	_, ok := p.allowed[strings.ToLower(strings.TrimRight(origin, "/"))]
	return ok
}

// NewWebSocketHandler creates a new WebSocketHandler
func NewWebSocketHandler(hub *websocket.Hub, validator TokenValidator, allowedOrigins []string) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:       hub,
		validator: validator,
		origins:   newOriginPolicy(allowedOrigins),
	}
	h.upgrader = ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin rejects cross-site browsers. Requests without an Origin header
// come from non-browser clients and are allowed.
func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.origins.permits(origin) {
		return true
	}

	log.Warn().
		Str("origin", origin).
		Msg("Live feed rejected: origin not allowed")
	return false
}

// feedToken reads the access token from the token query parameter, falling
// back to a bearer Authorization header for clients that can set one
func feedToken(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	parts := strings.SplitN(r.Header.Get(echo.HeaderAuthorization), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// HandleWS handles GET /ws
func (h *WebSocketHandler) HandleWS(c echo.Context) error {
	token := feedToken(c.Request())
	if token == "" {
		return NewUnauthorizedError(c, credentialsRequired)
	}

	userID, err := h.validator.ValidateToken(c.Request().Context(), token)
	if err != nil || userID == 0 {
		log.Debug().Err(err).Msg("Live feed rejected: invalid token")
		return NewUnauthorizedError(c, credentialsRequired)
	}

	// Upgrade writes its own error response on failure
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Warn().Err(err).Int32("user_id", userID).Msg("Live feed upgrade failed")
		return nil
	}

	client := websocket.NewClient(conn, userID, h.hub)
	h.hub.Register(client)

	log.Info().
		Int32("user_id", userID).
		Str("client_id", client.ID()).
		Int("user_clients", h.hub.ClientCount(userID)).
		Msg("Live feed client connected")

	go client.WritePump()
	go client.ReadPump()

	return nil
}
