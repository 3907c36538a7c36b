package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/urmzd/peerlobby/pkg/api/types"
	"github.com/urmzd/peerlobby/pkg/device"
	"github.com/urmzd/peerlobby/pkg/lobby"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// SocketHandler exposes the lobby over a websocket: clients send actions and
// receive a snapshot after every state change.
type SocketHandler struct {
	svc      lobby.Service
	upgrader websocket.Upgrader
}

// NewSocketHandler creates a new socket handler
func NewSocketHandler(svc lobby.Service) *SocketHandler {
	return &SocketHandler{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Serve handles GET /ws
// @Summary      Lobby websocket
// @Description  Bidirectional socket. Client frames are types.SocketRequest; server frames are types.SocketMessage.
// @Tags         lobby
// @Success      101  {string}  string  "Switching protocols"
// @Router       /ws [get]
func (h *SocketHandler) Serve(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	replies := make(chan types.SocketMessage, 16)
	done := make(chan struct{})
	go h.writePump(ws, replies, done)
	h.readPump(ws, replies)
	close(done)
}

func (h *SocketHandler) readPump(ws *websocket.Conn, replies chan<- types.SocketMessage) {
	defer ws.Close()

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var req types.SocketRequest
		if err := ws.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Msg("Websocket read failed")
			}
			return
		}
		if err := Apply(h.svc, req); err != nil {
			status, code := errorStatus(err)
			if status >= http.StatusInternalServerError {
				log.Warn().Err(err).Str("action", req.Action).Msg("Socket action failed")
			}
			select {
			case replies <- types.SocketMessage{Type: "error", Error: &types.ErrorResponse{Error: code, Message: err.Error()}}:
			default:
			}
		}
	}
}

func (h *SocketHandler) writePump(ws *websocket.Conn, replies <-chan types.SocketMessage, done <-chan struct{}) {
	snapshots := h.svc.Subscribe()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.svc.Unsubscribe(snapshots)
		ws.Close()
	}()

	write := func(msg types.SocketMessage) bool {
		ws.SetWriteDeadline(time.Now().Add(writeWait))
		return ws.WriteJSON(msg) == nil
	}

	initial := h.svc.State()
	if !write(types.SocketMessage{Type: "state", State: &initial}) {
		return
	}

	for {
		select {
		case <-done:
			return
		case snap, ok := <-snapshots:
			if !ok {
				ws.SetWriteDeadline(time.Now().Add(writeWait))
				ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !write(types.SocketMessage{Type: "state", State: &snap}) {
				return
			}
		case msg := <-replies:
			if !write(msg) {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Apply performs one socket action against svc.
func Apply(svc lobby.Service, req types.SocketRequest) error {
	switch req.Action {
	case types.ActionJoin:
		svc.JoinLobby()
	case types.ActionLeave:
		svc.LeaveLobby()
	case types.ActionSetRole:
		return svc.SetMyRole(device.Role(req.Role))
	case types.ActionSetMode:
		return svc.SetRemoteMode(lobby.Mode(req.Mode))
	case types.ActionStartGame:
		return svc.StartGame(req.Game)
	case types.ActionStopGame:
		svc.StopGame()
	case types.ActionSendCommand:
		_, err := svc.SendCommand(req.Name, req.Class, req.TargetID)
		return err
	case types.ActionSendSettings:
		duration := float64(lobby.DefaultBackToWhiteDuration)
		if req.Duration != nil {
			duration = *req.Duration
		}
		return svc.SendSettings(req.BackToWhite, duration)
	case types.ActionClearError:
		svc.ClearError()
	default:
		return fmt.Errorf("%w: unknown action %q", device.ErrValidation, req.Action)
	}
	return nil
}
