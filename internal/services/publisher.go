package services

import (
	"time"

	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/broadcast"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/models"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/pkg/logger"
)

// EventPublisher translates domain actions into broadcast events: one stable
// event name, one target channel, one allow-listed payload. Payloads never
// carry the full internal entity, and payload construction tolerates
// partially-populated sources with safe defaults — a malformed broadcast
// must never block the persistence operation that already succeeded.
type EventPublisher struct {
	hub *broadcast.Hub
}

func NewEventPublisher(hub *broadcast.Hub) *EventPublisher {
	return &EventPublisher{hub: hub}
}

// MessageSent targets the message's container channel
// (inbox.<id>, group.<id>, or org.broadcast).
func (p *EventPublisher) MessageSent(msg *models.Message) {
	if msg == nil {
		logger.Warn().Str("event", broadcast.EventMessageSent).Msg("publish skipped: nil message")
		return
	}

	var channel string
	switch {
	case msg.InboxID != nil:
		channel = broadcast.InboxChannel(*msg.InboxID)
	case msg.GroupID != nil:
		channel = broadcast.GroupChannel(*msg.GroupID)
	default:
		channel = broadcast.OrgChannel
	}

	p.hub.Publish(channel, broadcast.EventMessageSent, map[string]interface{}{
		"id":          msg.ID,
		"sender_id":   msg.SenderID,
		"sender_role": string(msg.SenderRole),
		"message":     msg.Body,
		"attachment":  msg.AttachmentURL,
		"created_at":  formatTime(msg.CreatedAt),
	})
}

// MessageRead targets conversation.<inbox id> (read receipts are an inbox
// concept; group and org reads are persisted but not broadcast).
func (p *EventPublisher) MessageRead(read *models.MessageRead, inboxID string) {
	if read == nil || inboxID == "" {
		return
	}

	p.hub.Publish(broadcast.ConversationChannel(inboxID), broadcast.EventMessageRead, map[string]interface{}{
		"message_id": read.MessageID,
		"user_id":    read.ReaderID,
		"user_type":  string(read.ReaderRole),
		"read_at":    formatTime(read.ReadAt),
	})
}

// MessageFlagged always targets admin.moderation, regardless of which
// channel the flagged message lived in. Fixed routing, not a
// subscription-time decision; the reporter's own channel sees nothing.
func (p *EventPublisher) MessageFlagged(flag *models.MessageFlag) {
	if flag == nil {
		logger.Warn().Str("event", broadcast.EventMessageFlagged).Msg("publish skipped: nil flag")
		return
	}

	p.hub.Publish(broadcast.ModerationChannel, broadcast.EventMessageFlagged, map[string]interface{}{
		"flag_id":         flag.ID,
		"message_id":      flag.MessageID,
		"flag_type":       string(flag.FlagType),
		"flagged_by_type": string(flag.FlaggedByRole),
		"status":          string(flag.Status),
		"created_at":      formatTime(flag.CreatedAt),
	})
}

// UserTyping targets inbox.<id>. Ephemeral: nothing is persisted.
func (p *EventPublisher) UserTyping(actorID, inboxID string, isTyping bool) {
	if inboxID == "" {
		return
	}

	p.hub.Publish(broadcast.InboxChannel(inboxID), broadcast.EventUserTyping, map[string]interface{}{
		"user_id":   actorID,
		"is_typing": isTyping,
	})
}

// PresenceUpdated targets the public presence channel.
func (p *EventPublisher) PresenceUpdated(state broadcast.PresenceState) {
	p.hub.Publish(broadcast.PresenceChannel, broadcast.EventPresenceUpdated, map[string]interface{}{
		"user_id":      state.Actor.ID,
		"user_type":    string(state.Actor.Role),
		"status":       string(state.Status),
		"last_seen_at": formatTime(state.LastSeen),
	})
}

func formatTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
