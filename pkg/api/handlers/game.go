package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/peerlobby/pkg/api/types"
	"github.com/urmzd/peerlobby/pkg/lobby"
)

// GameHandler relays game lifecycle, commands and settings to peers.
type GameHandler struct {
	svc lobby.Service
}

// NewGameHandler creates a new game handler
func NewGameHandler(svc lobby.Service) *GameHandler {
	return &GameHandler{svc: svc}
}

// Start handles POST /game/start
// @Summary      Start a game
// @Description  Sets the game phase to playing and broadcasts game_state to all peers
// @Tags         game
// @Accept       json
// @Produce      json
// @Param        request  body      types.StartGameRequest  true  "colors or chain-calc"
// @Success      200      {object}  lobby.Snapshot
// @Failure      400      {object}  types.ErrorResponse  "Unknown game"
// @Router       /game/start [post]
func (h *GameHandler) Start(c *gin.Context) {
	var req types.StartGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if err := h.svc.StartGame(req.Game); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.svc.State())
}

// Stop handles POST /game/stop
// @Summary      Stop the game
// @Description  Returns to the lobby phase and broadcasts game_state to all peers
// @Tags         game
// @Produce      json
// @Success      200  {object}  lobby.Snapshot
// @Router       /game/stop [post]
func (h *GameHandler) Stop(c *gin.Context) {
	h.svc.StopGame()
	c.JSON(http.StatusOK, h.svc.State())
}

// SendCommand handles POST /commands
// @Summary      Send a command
// @Description  Stamps a command with the current time and sends it to one peer or all
// @Tags         game
// @Accept       json
// @Produce      json
// @Param        request  body      types.SendCommandRequest  true  "Command"
// @Success      200      {object}  types.CommandResponse
// @Failure      400      {object}  types.ErrorResponse  "Invalid command"
// @Router       /commands [post]
func (h *GameHandler) SendCommand(c *gin.Context) {
	var req types.SendCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	cmd, err := h.svc.SendCommand(req.Name, req.Class, req.TargetID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.CommandResponse{Command: cmd})
}

// SendSettings handles POST /settings
// @Summary      Broadcast display settings
// @Tags         game
// @Accept       json
// @Produce      json
// @Param        request  body      types.SendSettingsRequest  true  "Back-to-white settings"
// @Success      200      {object}  lobby.Snapshot
// @Failure      400      {object}  types.ErrorResponse  "Invalid settings"
// @Router       /settings [post]
func (h *GameHandler) SendSettings(c *gin.Context) {
	var req types.SendSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	duration := float64(lobby.DefaultBackToWhiteDuration)
	if req.Duration != nil {
		duration = *req.Duration
	}
	if err := h.svc.SendSettings(req.BackToWhite, duration); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.svc.State())
}
