package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
	"github.com/urmzd/peerlobby/pkg/api/types"
	"github.com/urmzd/peerlobby/pkg/lobby"
)

const (
	defaultQRSize = 256
	maxQRSize     = 1024
)

// QRHandler renders the lobby join descriptor as a QR code.
type QRHandler struct {
	svc   lobby.Service
	lobby string
}

// NewQRHandler creates a QR handler for the named lobby.
func NewQRHandler(svc lobby.Service, lobbyName string) *QRHandler {
	return &QRHandler{svc: svc, lobby: lobbyName}
}

// Descriptor returns the join descriptor for this node.
func (h *QRHandler) Descriptor() types.JoinDescriptor {
	self := h.svc.Identity()
	return types.JoinDescriptor{Lobby: h.lobby, ClientID: self.ClientID, Name: self.Name}
}

// Join handles GET /lobby/join-info
// @Summary      Get join descriptor
// @Tags         lobby
// @Produce      json
// @Success      200  {object}  types.JoinDescriptor
// @Router       /lobby/join-info [get]
func (h *QRHandler) Join(c *gin.Context) {
	c.JSON(http.StatusOK, h.Descriptor())
}

// QR handles GET /lobby/qr
// @Summary      Lobby QR code
// @Description  PNG QR code encoding the join descriptor
// @Tags         lobby
// @Produce      png
// @Param        size  query     int  false  "Image size in pixels (default 256, max 1024)"
// @Success      200   {file}    binary
// @Failure      400   {object}  types.ErrorResponse  "Invalid size"
// @Router       /lobby/qr [get]
func (h *QRHandler) QR(c *gin.Context) {
	size := defaultQRSize
	if raw := c.Query("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxQRSize {
			badRequest(c, "size must be between 1 and 1024")
			return
		}
		size = n
	}

	content, err := json.Marshal(h.Descriptor())
	if err != nil {
		writeError(c, err)
		return
	}
	png, err := qrcode.Encode(string(content), qrcode.Medium, size)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
