package handler

import (
	"net/http"

	"app/internal/config"
	"app/internal/middleware"
	"app/internal/notify"

	"github.com/labstack/echo/v4"
	"golang.org/x/net/websocket"
)

type WSHandler struct {
	hub *notify.Hub
}

func NewWSHandler(hub *notify.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

func (h *WSHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	e.GET("/ws", h.userSocket, middleware.AuthJWT(cfg))
	e.GET("/ws/admin", h.adminSocket, middleware.AuthJWT(cfg), middleware.AdminRoleGuard())
}

func (h *WSHandler) userSocket(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	websocket.Handler(func(ws *websocket.Conn) {
		defer ws.Close()

		sessionID := h.hub.RegisterUser(userID, ws)
		defer h.hub.UnregisterUser(userID, sessionID)

		//受信はping代わりに読み捨てる。切断でエラーが返り抜ける
		for {
			var msg string
			if err := websocket.Message.Receive(ws, &msg); err != nil {
				return
			}
		}
	}).ServeHTTP(c.Response(), c.Request())
	return nil
}

func (h *WSHandler) adminSocket(c echo.Context) error {
	websocket.Handler(func(ws *websocket.Conn) {
		defer ws.Close()

		sessionID := h.hub.RegisterAdmin(ws)
		defer h.hub.UnregisterAdmin(sessionID)

		for {
			var msg string
			if err := websocket.Message.Receive(ws, &msg); err != nil {
				return
			}
		}
	}).ServeHTTP(c.Response(), c.Request())
	return nil
}
