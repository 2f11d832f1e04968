// Package http holds the collaborator-facing REST handlers.
package http

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/domain"
)

// MessageNotice is posted by the persistence collaborator after it stored a message.
type MessageNotice struct {
	ReceiverID domain.UserID   `json:"receiverId" binding:"required"`
	Message    json.RawMessage `json:"message" binding:"required"`
}

// ReactionNotice carries the full reaction list of a stored message.
type ReactionNotice struct {
	ReceiverID domain.UserID     `json:"receiverId" binding:"required"`
	MessageID  string            `json:"messageId" binding:"required"`
	Reactions  []domain.Reaction `json:"reactions"`
}

type DeliveryResponse struct {
	Delivered bool `json:"delivered"`
}

type OnlineResponse struct {
	Users []domain.UserID `json:"users"`
}

type Handlers struct {
	Router   *app.Router
	Registry *app.Registry
}

// RegisterInternal mounts the notify endpoints on g.
func (h *Handlers) RegisterInternal(g *gin.RouterGroup) {
	g.POST("/messages", h.handleMessage)
	g.POST("/reactions", h.handleReaction)
}

func (h *Handlers) handleMessage(c *gin.Context) {
	var req MessageNotice
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Message) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid message notice"})
		return
	}
	delivered := h.Router.NotifyMessage(req.ReceiverID, req.Message)
	log.Debug().Str("module", "transport.http").Str("to", string(req.ReceiverID)).Bool("delivered", delivered).Msg("message notice")
	c.JSON(http.StatusOK, DeliveryResponse{Delivered: delivered})
}

func (h *Handlers) handleReaction(c *gin.Context) {
	var req ReactionNotice
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid reaction notice"})
		return
	}
	delivered := h.Router.NotifyReaction(req.ReceiverID, req.MessageID, req.Reactions)
	log.Debug().Str("module", "transport.http").Str("to", string(req.ReceiverID)).Bool("delivered", delivered).Msg("reaction notice")
	c.JSON(http.StatusOK, DeliveryResponse{Delivered: delivered})
}

func (h *Handlers) HandleOnline(c *gin.Context) {
	c.JSON(http.StatusOK, OnlineResponse{Users: h.Registry.Snapshot()})
}

// RequireInternalKey guards collaborator endpoints. An empty key disables the check.
func RequireInternalKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}
		got := c.GetHeader("X-Internal-Key")
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid internal key"})
			return
		}
		c.Next()
	}
}
