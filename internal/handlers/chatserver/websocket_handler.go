package chatserver

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"

	"banter/internal/auth"
	"banter/internal/chat"
	"banter/internal/config"
	ws "banter/internal/websocket"
)

// WebSocketHandler upgrades chat connections and pumps their frames into the
// chat hub. Inbound frames are {"method": "...", "args": [...]}; outbound
// events are produced by the notifier.
type WebSocketHandler struct {
	hub       *chat.Hub
	wsHub     *ws.Hub
	upgrader  gorillaws.Upgrader
	jwtKey    string
	blacklist auth.TokenBlacklist
	wsCfg     config.WebSocketConfig
	logger    *log.Logger
}

// NewWebSocketHandler creates the websocket endpoint.
func NewWebSocketHandler(hub *chat.Hub, wsHub *ws.Hub, jwtKey string, blacklist auth.TokenBlacklist, wsCfg config.WebSocketConfig, logger *log.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:   hub,
		wsHub: wsHub,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		jwtKey:    jwtKey,
		blacklist: blacklist,
		wsCfg:     wsCfg,
		logger:    logger,
	}
}

type frame struct {
	Method string            `json:"method"`
	Args   []json.RawMessage `json:"args"`
}

func argString(args []json.RawMessage, i int) string {
	if i >= len(args) {
		return ""
	}
	var s string
	if err := json.Unmarshal(args[i], &s); err != nil {
		return ""
	}
	return s
}

// ServeWS authenticates the session, upgrades the socket and runs the pumps.
// A reconnect=true query marks a transport re-establishment rather than a
// fresh session.
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	claims, err := auth.ValidateToken(r.Context(), token, h.jwtKey, h.blacklist)
	if err != nil {
		http.Error(w, "invalid session", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade: %v", err)
		return
	}

	connectionID := uuid.NewString()
	client := ws.NewClient(connectionID, h.wsHub, conn, h.wsCfg)
	caller := &chat.Caller{
		UserID:       claims.UserID,
		ConnectionID: connectionID,
		UserAgent:    r.UserAgent(),
	}

	go client.WritePump()

	reconnecting := r.URL.Query().Get("reconnect") == "true"
	if reconnecting {
		err = h.hub.Reconnect(r.Context(), caller)
	} else {
		err = h.hub.Join(r.Context(), caller)
	}
	if err != nil {
		h.logger.Printf("session start %s: %v", connectionID, err)
		h.hub.Notifier().Error(connectionID, err)
		conn.Close()
		return
	}

	client.ReadPump(
		func(payload []byte) { h.dispatch(caller, payload) },
		func() { h.hub.Disconnect(context.Background(), connectionID) },
	)
}

func (h *WebSocketHandler) dispatch(caller *chat.Caller, payload []byte) {
	var f frame
	if err := json.Unmarshal(payload, &f); err != nil {
		h.hub.Notifier().Error(caller.ConnectionID, err)
		return
	}

	ctx := context.Background()
	var err error

	switch f.Method {
	case "send":
		err = h.hub.Send(ctx, caller, argString(f.Args, 0), argString(f.Args, 1), argString(f.Args, 2))
	case "joinRoom":
		err = h.hub.JoinRoom(ctx, caller, argString(f.Args, 0), argString(f.Args, 1))
	case "leaveRoom":
		err = h.hub.LeaveRoom(ctx, caller, argString(f.Args, 0))
	case "typing":
		err = h.hub.Typing(ctx, caller, argString(f.Args, 0))
	case "checkStatus":
		err = h.hub.CheckStatus(ctx, caller, argString(f.Args, 0))
	case "updateActivity":
		err = h.hub.UpdateActivity(ctx, caller)
	case "getRooms":
		err = h.hub.GetRooms(ctx, caller)
	case "getRoomInfo":
		err = h.hub.GetRoomInfo(ctx, caller, argString(f.Args, 0))
	case "getPreviousMessages":
		err = h.hub.GetPreviousMessages(ctx, caller, argString(f.Args, 0))
	case "getUserInfo":
		err = h.hub.GetUserInfo(ctx, caller, argString(f.Args, 0))
	default:
		h.hub.Notifier().Error(caller.ConnectionID, &unknownMethodError{method: f.Method})
		return
	}

	if err != nil {
		h.hub.Notifier().Error(caller.ConnectionID, err)
	}
}

type unknownMethodError struct {
	method string
}

func (e *unknownMethodError) Error() string {
	return "unknown method " + e.method
}
