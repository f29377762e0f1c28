package api

import (
	"errors"
	"net/http"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"

	"github.com/ultra-dojo/coach/pkg/push"
)

// wsHandler handles GET /api/v1/ws/sessions/:session_id: upgrade, attach
// as the session's push channel, then hold the connection open. Client
// frames are drained and ignored; the channel is push-only.
func (s *Server) wsHandler(c *echo.Context) error {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		// Origin validation is handled by the reverse proxy in front of
		// this service.
		InsecureSkipVerify: true,
	})
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	ch, err := s.registry.Attach(ctx, sessionID, conn)
	if err != nil {
		reason := "session not found"
		if errors.Is(err, push.ErrProvisionalSession) {
			reason = "provisional session id not accepted"
		}
		_ = conn.Close(push.StatusSessionRejected, reason)
		return nil
	}
	defer s.registry.Detach(ch)

	// Read loop exists only to notice the close.
	for {
		if _, _, err := conn.Read(ch.Context()); err != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return nil
		}
	}
}
