package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/peerlobby/pkg/api/types"
	"github.com/urmzd/peerlobby/pkg/device"
	"github.com/urmzd/peerlobby/pkg/lobby"
)

// LobbyHandler handles lobby membership and state endpoints
type LobbyHandler struct {
	svc lobby.Service
}

// NewLobbyHandler creates a new lobby handler
func NewLobbyHandler(svc lobby.Service) *LobbyHandler {
	return &LobbyHandler{svc: svc}
}

// GetState handles GET /lobby
// @Summary      Get lobby state
// @Description  Returns a snapshot of the local lobby state
// @Tags         lobby
// @Produce      json
// @Success      200  {object}  lobby.Snapshot
// @Router       /lobby [get]
func (h *LobbyHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.State())
}

// GetIdentity handles GET /lobby/identity
// @Summary      Get local identity
// @Tags         lobby
// @Produce      json
// @Success      200  {object}  types.IdentityResponse
// @Router       /lobby/identity [get]
func (h *LobbyHandler) GetIdentity(c *gin.Context) {
	self := h.svc.Identity()
	c.JSON(http.StatusOK, types.IdentityResponse{ClientID: self.ClientID, Name: self.Name})
}

// ListDevices handles GET /lobby/devices
// @Summary      List known devices
// @Tags         lobby
// @Produce      json
// @Success      200  {array}  device.Device
// @Router       /lobby/devices [get]
func (h *LobbyHandler) ListDevices(c *gin.Context) {
	devices := h.svc.State().Devices
	if devices == nil {
		devices = []device.Device{}
	}
	c.JSON(http.StatusOK, devices)
}

// Join handles POST /lobby/join
// @Summary      Join the lobby
// @Description  Enters lobby mode. A no-op when already active.
// @Tags         lobby
// @Produce      json
// @Success      200  {object}  lobby.Snapshot
// @Router       /lobby/join [post]
func (h *LobbyHandler) Join(c *gin.Context) {
	h.svc.JoinLobby()
	c.JSON(http.StatusOK, h.svc.State())
}

// Leave handles POST /lobby/leave
// @Summary      Leave the lobby
// @Description  Stops advertising and discovery and resets the role to idle
// @Tags         lobby
// @Produce      json
// @Success      200  {object}  lobby.Snapshot
// @Router       /lobby/leave [post]
func (h *LobbyHandler) Leave(c *gin.Context) {
	h.svc.LeaveLobby()
	c.JSON(http.StatusOK, h.svc.State())
}

// SetRole handles PUT /lobby/role
// @Summary      Set local role
// @Tags         lobby
// @Accept       json
// @Produce      json
// @Param        request  body      types.SetRoleRequest  true  "display, controller or idle"
// @Success      200      {object}  lobby.Snapshot
// @Failure      400      {object}  types.ErrorResponse  "Invalid role"
// @Router       /lobby/role [put]
func (h *LobbyHandler) SetRole(c *gin.Context) {
	var req types.SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if err := h.svc.SetMyRole(device.Role(req.Role)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.svc.State())
}

// SetMode handles PUT /lobby/mode
// @Summary      Set remote mode
// @Tags         lobby
// @Accept       json
// @Produce      json
// @Param        request  body      types.SetModeRequest  true  "none, lobby, controller or display"
// @Success      200      {object}  lobby.Snapshot
// @Failure      400      {object}  types.ErrorResponse  "Invalid mode"
// @Router       /lobby/mode [put]
func (h *LobbyHandler) SetMode(c *gin.Context) {
	var req types.SetModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if err := h.svc.SetRemoteMode(lobby.Mode(req.Mode)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.svc.State())
}

// ClearError handles DELETE /lobby/error
// @Summary      Clear the advisory error
// @Tags         lobby
// @Produce      json
// @Success      200  {object}  lobby.Snapshot
// @Router       /lobby/error [delete]
func (h *LobbyHandler) ClearError(c *gin.Context) {
	h.svc.ClearError()
	c.JSON(http.StatusOK, h.svc.State())
}
