package session

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/fluentflow/internal/auth/jwt"
	"github.com/gokatarajesh/fluentflow/internal/exam"
	"github.com/gokatarajesh/fluentflow/internal/logging"
	httperrors "github.com/gokatarajesh/fluentflow/pkg/http/errors"
	ws "github.com/gokatarajesh/fluentflow/pkg/http/ws"
)

// WSHandler upgrades session connections and routes client messages to the session.
type WSHandler struct {
	manager  *Manager
	hub      *ws.Hub
	tokens   tokenIssuer
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewWSHandler creates the session WebSocket handler.
func NewWSHandler(manager *Manager, hub *ws.Hub, tokens tokenIssuer, upgrader websocket.Upgrader, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		manager:  manager,
		hub:      hub,
		tokens:   tokens,
		upgrader: upgrader,
		logger:   logger.With().Str("component", "session_ws").Logger(),
	}
}

// HandleWebSocket authenticates the session token and upgrades the connection.
// Route: GET /ws/sessions/{id}?token=
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.tokens.Authorize(jwt.TokenFromRequest(r), id); err != nil {
		h.logger.Warn().Err(err).Str("session_id", id).Msg("WebSocket token validation failed")
		respondError(w, err)
		return
	}
	s, err := h.manager.Get(id)
	if err != nil {
		respondError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.HandleConnection(conn, s)
}

// HandleConnection serves an upgraded connection until the peer disconnects.
func (h *WSHandler) HandleConnection(conn *websocket.Conn, s *exam.Session) {
	wsConn := ws.NewConnection(conn, logging.ForSession(h.logger, s.ID()))
	h.hub.RegisterConnection(s.ID(), wsConn)

	go wsConn.WritePump()

	h.sendState(wsConn, s, "")

	wsConn.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(wsConn, s.ID(), msg)
	})

	h.hub.UnregisterConnection(wsConn.ID())
}

func (h *WSHandler) handleMessage(conn *ws.Connection, sessionID string, msg ws.Message) error {
	s, err := h.manager.Get(sessionID)
	if err != nil {
		return h.sendError(conn, err, msg.RequestID)
	}

	if msg.Type == ws.TypeRequestState {
		return h.sendState(conn, s, msg.RequestID)
	}

	in, err := decodeIntent(msg)
	if err != nil {
		return h.sendErrorCode(conn, httperrors.ErrCodeInvalidPayload, err.Error(), msg.RequestID)
	}
	if _, err := Apply(s, in); err != nil {
		h.logger.Debug().Err(err).Str("session_id", sessionID).Str("type", msg.Type).Msg("intent rejected")
		return h.sendError(conn, err, msg.RequestID)
	}
	return h.sendState(conn, s, msg.RequestID)
}

// decodeIntent reads the payload that belongs to msg.Type. Missing payloads are allowed for
// every type; submit_answer then falls back to the selected answer.
func decodeIntent(msg ws.Message) (Intent, error) {
	in := Intent{Type: msg.Type}
	empty := len(msg.Payload) == 0 || string(msg.Payload) == "null"

	switch msg.Type {
	case ws.TypeSelectAnswer, ws.TypeSubmitAnswer:
		if empty {
			return in, nil
		}
		var p ws.AnswerPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return in, fmt.Errorf("invalid %s payload", msg.Type)
		}
		in.Answer = p.Answer
	case ws.TypeSetDifficulty:
		var p ws.SetDifficultyPayload
		if !empty {
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				return in, fmt.Errorf("invalid %s payload", msg.Type)
			}
		}
		in.Difficulty = p.Difficulty
	case ws.TypeRate:
		if empty {
			return in, fmt.Errorf("invalid %s payload", msg.Type)
		}
		var p ws.RatePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return in, fmt.Errorf("invalid %s payload", msg.Type)
		}
		in.SequenceID = p.SequenceID
		in.Rating = p.Rating
	}
	return in, nil
}

func (h *WSHandler) sendState(conn *ws.Connection, s *exam.Session, requestID string) error {
	msg, err := ws.NewMessage(ws.TypeState, StatePayload(s.ID(), s.Snapshot()), requestID)
	if err != nil {
		return err
	}
	return conn.Send(msg)
}

func (h *WSHandler) sendError(conn *ws.Connection, err error, requestID string) error {
	e := classify(err)
	return h.sendErrorCode(conn, e.code, e.message, requestID)
}

func (h *WSHandler) sendErrorCode(conn *ws.Connection, code, message, requestID string) error {
	msg, err := ws.NewMessage(ws.TypeError, ws.ErrorPayload{Code: code, Message: message}, requestID)
	if err != nil {
		return err
	}
	return conn.Send(msg)
}
