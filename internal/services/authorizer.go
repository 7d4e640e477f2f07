package services

import (
	"gorm.io/gorm"

	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/broadcast"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/models"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/pkg/logger"
)

// ChannelAuthorizer decides, per (actor, channel name), whether the actor may
// subscribe. Pure check: no side effects, safe to call on every (re)connect.
// Membership is looked up fresh on every call because rosters and inbox
// participants change mid-session. Malformed channel names are a Deny,
// never an error.
type ChannelAuthorizer struct {
	db *gorm.DB
}

func NewChannelAuthorizer(db *gorm.DB) *ChannelAuthorizer {
	return &ChannelAuthorizer{db: db}
}

func (a *ChannelAuthorizer) Authorize(actor models.Actor, channelName string) broadcast.AuthDecision {
	deny := broadcast.AuthDecision{Allow: false}

	if actor.IsZero() {
		return deny
	}

	ch, ok := broadcast.ParseChannel(channelName)
	if !ok {
		return deny
	}

	switch ch.Kind {
	case broadcast.ChannelInbox, broadcast.ChannelConversation:
		// Allow iff the actor is one of the two inbox parties.
		var inbox models.Inbox
		if err := a.db.First(&inbox, "id = ?", ch.ID).Error; err != nil {
			return deny
		}
		return broadcast.AuthDecision{Allow: inbox.IsParticipant(actor.ID)}

	case broadcast.ChannelGroup:
		var count int64
		if err := a.db.Model(&models.GroupMember{}).
			Where("group_id = ? AND actor_id = ?", ch.ID, actor.ID).
			Count(&count).Error; err != nil {
			logger.Error().Err(err).Str("channel", channelName).Msg("group membership lookup failed")
			return deny
		}
		return broadcast.AuthDecision{Allow: count > 0}

	case broadcast.ChannelModeration:
		var count int64
		if err := a.db.Model(&models.User{}).
			Where("id = ? AND role = ? AND is_active = ?", actor.ID, models.RoleAdmin, true).
			Count(&count).Error; err != nil {
			logger.Error().Err(err).Str("channel", channelName).Msg("admin lookup failed")
			return deny
		}
		return broadcast.AuthDecision{Allow: count > 0}

	case broadcast.ChannelPresence, broadcast.ChannelOrg:
		// Any authenticated actor. The payload feeds the public roster.
		return broadcast.AuthDecision{Allow: true, Payload: a.presencePayload(actor)}
	}

	return deny
}

// presencePayload resolves display fields for the roster. A failed lookup
// still allows the subscribe with the identity the token carries.
func (a *ChannelAuthorizer) presencePayload(actor models.Actor) map[string]interface{} {
	name, avatar := actor.Name, actor.Avatar
	var user models.User
	if err := a.db.Select("name", "image").First(&user, "id = ?", actor.ID).Error; err == nil {
		name, avatar = user.Name, user.Image
	}
	return map[string]interface{}{
		"user_id":   actor.ID,
		"user_type": string(actor.Role),
		"name":      name,
		"avatar":    avatar,
	}
}
