package quiz

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/career-assessment/internal/auth"
	httperrors "github.com/gokatarajesh/career-assessment/pkg/http/errors"
	ws "github.com/gokatarajesh/career-assessment/pkg/http/ws"
)

// WSHandler streams session events to connected clients.
type WSHandler struct {
	manager  *Manager
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

func NewWSHandler(manager *Manager, hub *ws.Hub, upgrader websocket.Upgrader, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		manager:  manager,
		hub:      hub,
		upgrader: upgrader,
		logger:   logger.With().Str("component", "quiz_ws").Logger(),
	}
}

// HubObserver forwards every session change to the owner's WebSocket connections. Discarded
// sessions are announced with session_closed.
func HubObserver(hub *ws.Hub, logger zerolog.Logger) Observer {
	return ObserverFunc(func(event SessionEvent) {
		var (
			msg ws.Message
			err error
		)
		if event.Closed != "" {
			msg, err = ws.NewMessage(ws.TypeSessionClosed, ws.SessionClosedPayload{
				Test:      event.View.Test,
				SessionID: event.View.ID,
				Reason:    string(event.Closed),
			})
		} else {
			msg, err = ws.NewMessage(ws.TypeSessionUpdate, event.View)
		}
		if err != nil {
			logger.Warn().Err(err).Msg("failed to marshal session update")
			return
		}
		if err := hub.SendToUser(event.UserID, msg); err != nil && !errors.Is(err, ws.ErrConnectionNotFound) {
			logger.Debug().Err(err).Str("user_id", event.UserID).Msg("session update not delivered")
		}
	})
}

// HandleWebSocket handles GET /ws/sessions. Authentication happens in middleware.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Missing token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	userID := principal.UserID
	c := ws.NewConnection(conn, h.logger.With().Str("user_id", userID).Logger())
	h.hub.RegisterConnection(userID, c)
	go c.WritePump()

	for _, test := range h.manager.ActiveTests(userID) {
		h.sendSession(c, userID, test, "")
	}

	c.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(c, userID, msg)
	})
	h.hub.UnregisterConnection(userID, c)
}

func (h *WSHandler) handleMessage(c *ws.Connection, userID string, msg ws.Message) error {
	switch msg.Type {
	case ws.TypePing:
		reply, _ := ws.NewMessage(ws.TypePong, nil)
		reply.RequestID = msg.RequestID
		return c.Send(reply)
	case ws.TypeRequestSession:
		var payload ws.RequestSessionPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.Test == "" {
			return h.sendError(c, msg.RequestID, httperrors.ErrCodeInvalidPayload, "request_session needs a test")
		}
		h.sendSession(c, userID, payload.Test, msg.RequestID)
		return nil
	default:
		return h.sendError(c, msg.RequestID, httperrors.ErrCodeUnknownMessageType, "unknown message type: "+msg.Type)
	}
}

func (h *WSHandler) sendSession(c *ws.Connection, userID, test, requestID string) {
	runner, ok := h.manager.Lookup(userID, test)
	if !ok {
		_ = h.sendError(c, requestID, httperrors.ErrCodeSessionNotFound, "no active session for "+test)
		return
	}
	view, err := runner.View()
	if err != nil {
		_ = h.sendError(c, requestID, httperrors.ErrCodeSessionNotFound, "no active session for "+test)
		return
	}
	msg, err := ws.NewMessage(ws.TypeSessionUpdate, view)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to marshal session view")
		return
	}
	msg.RequestID = requestID
	if err := c.Send(msg); err != nil {
		h.logger.Debug().Err(err).Msg("session view not sent")
	}
}

func (h *WSHandler) sendError(c *ws.Connection, requestID, code, message string) error {
	msg, err := ws.NewMessage(ws.TypeError, ws.ErrorPayload{Code: code, Message: message})
	if err != nil {
		return err
	}
	msg.RequestID = requestID
	return c.Send(msg)
}
