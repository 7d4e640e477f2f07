package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/middleware"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/models"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/services"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/pkg/errors"
)

// Store is the shared message store, wired in main (and by tests).
var Store *services.MessageStore

// SendMessage handles POST /chat/messages
func SendMessage(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		InboxID       *string `json:"inboxId"`
		GroupID       *string `json:"groupId"`
		OrgWide       bool    `json:"orgWide"`
		Body          string  `json:"body"`
		AttachmentURL string  `json:"attachmentUrl"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	msg, err := Store.CreateMessage(services.CreateMessageInput{
		Sender:     actor,
		InboxID:    req.InboxID,
		GroupID:    req.GroupID,
		OrgWide:    req.OrgWide,
		Body:       req.Body,
		Attachment: req.AttachmentURL,
	})
	if err != nil {
		c.JSON(errors.StatusOf(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// GetMessages handles GET /chat/messages?inboxId=... | ?groupId=...
func GetMessages(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	inboxID := c.Query("inboxId")
	groupID := c.Query("groupId")

	// Same membership rule as the live channel: re-checked per request.
	channel := ""
	if inboxID != "" {
		channel = "inbox." + inboxID
	} else if groupID != "" {
		channel = "group." + groupID
	}
	if channel == "" || !Authorizer.Authorize(actor, channel).Allow {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	messages, err := Store.ListMessages(strPtr(inboxID), strPtr(groupID), 0)
	if err != nil {
		c.JSON(errors.StatusOf(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// GetConversations handles GET /chat/conversations
func GetConversations(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	conversations, err := Store.ListConversations(actor)
	if err != nil {
		c.JSON(errors.StatusOf(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// MarkRead handles POST /chat/messages/:id/read
func MarkRead(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	read, err := Store.MarkRead(c.Param("id"), actor)
	if err != nil {
		c.JSON(errors.StatusOf(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"readAt": read.ReadAt})
}

// FlagMessage handles POST /chat/messages/:id/flag
func FlagMessage(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		FlagType string `json:"flagType" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	flag, err := Store.FlagMessage(c.Param("id"), models.FlagType(req.FlagType), actor)
	if err != nil {
		c.JSON(errors.StatusOf(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"flag": flag})
}

// DeleteMessage handles DELETE /chat/messages/:id
func DeleteMessage(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := Store.DeleteMessage(c.Param("id"), actor); err != nil {
		c.JSON(errors.StatusOf(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
