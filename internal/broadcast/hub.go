package broadcast

import (
	"errors"

	"sync"

	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/models"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/pkg/logger"
)

// ErrForbidden is returned when the authorizer denies a subscribe attempt
// (including malformed channel names).
var ErrForbidden = errors.New("forbidden")

// AuthDecision is the authorizer's answer for one (actor, channel) pair.
// Payload carries the presence roster fields returned on a presence allow.
type AuthDecision struct {
	Allow   bool
	Payload map[string]interface{}
}

// Authorizer decides channel access. It is consulted on every subscribe
// attempt; membership is never cached across a session.
type Authorizer interface {
	Authorize(actor models.Actor, channelName string) AuthDecision
}

// Hub maintains per-channel member sets and fans published events out to
// every current member. Channels are locked independently so unrelated
// channels never contend.
type Hub struct {
	auth Authorizer

	mu       sync.RWMutex
	channels map[string]*channelState
}

type channelState struct {
	mu      sync.RWMutex
	members map[string]Subscriber // keyed by connection id
}

func NewHub(auth Authorizer) *Hub {
	return &Hub{
		auth:     auth,
		channels: make(map[string]*channelState),
	}
}

func (h *Hub) channel(name string, create bool) *channelState {
	h.mu.RLock()
	ch := h.channels[name]
	h.mu.RUnlock()
	if ch != nil || !create {
		return ch
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if ch = h.channels[name]; ch == nil {
		ch = &channelState{members: make(map[string]Subscriber)}
		h.channels[name] = ch
	}
	return ch
}

// Subscribe authorizes and registers sub on the named channel. The
// authorizer runs on every attempt. On a presence-channel join the roster
// delta is broadcast to all current members (including the joiner).
func (h *Hub) Subscribe(sub Subscriber, channelName string) error {
	parsed, ok := ParseChannel(channelName)
	if !ok {
		return ErrForbidden
	}

	decision := h.auth.Authorize(sub.Actor(), channelName)
	if !decision.Allow {
		return ErrForbidden
	}

	for {
		ch := h.channel(channelName, true)
		ch.mu.Lock()
		ch.members[sub.ID()] = sub
		ch.mu.Unlock()

		// The last other member's unsubscribe may have deleted this state
		// from the registry between the lookup and the insert, which would
		// strand the new member on an unreachable set. Re-verify and retry
		// on the fresh state if so.
		h.mu.RLock()
		current := h.channels[channelName]
		h.mu.RUnlock()
		if current == ch {
			break
		}
	}

	if parsed.Kind == ChannelPresence {
		payload := decision.Payload
		if payload == nil {
			payload = map[string]interface{}{"user_id": sub.Actor().ID, "user_type": string(sub.Actor().Role)}
		}
		h.Publish(channelName, EventPresenceJoined, payload)
	}
	return nil
}

// Unsubscribe removes sub from one channel.
func (h *Hub) Unsubscribe(sub Subscriber, channelName string) {
	h.removeMember(channelName, sub.ID(), sub.Actor())
}

// Drop removes sub from every channel it belongs to (disconnect path).
func (h *Hub) Drop(sub Subscriber) {
	h.mu.RLock()
	names := make([]string, 0, len(h.channels))
	for name := range h.channels {
		names = append(names, name)
	}
	h.mu.RUnlock()

	for _, name := range names {
		h.removeMember(name, sub.ID(), sub.Actor())
	}
}

func (h *Hub) removeMember(channelName, connID string, actor models.Actor) {
	ch := h.channel(channelName, false)
	if ch == nil {
		return
	}

	ch.mu.Lock()
	_, present := ch.members[connID]
	if present {
		delete(ch.members, connID)
	}
	empty := len(ch.members) == 0
	ch.mu.Unlock()

	if !present {
		return
	}

	if empty {
		h.mu.Lock()
		// Re-check under the registry lock; a new member may have raced in.
		ch.mu.RLock()
		if len(ch.members) == 0 {
			delete(h.channels, channelName)
		}
		ch.mu.RUnlock()
		h.mu.Unlock()
	}

	if parsed, ok := ParseChannel(channelName); ok && parsed.Kind == ChannelPresence {
		h.Publish(channelName, EventPresenceLeft, map[string]interface{}{
			"user_id":   actor.ID,
			"user_type": string(actor.Role),
		})
	}
}

// Publish delivers an event to every current member of the channel. Members
// that cannot accept delivery are dropped from the set and logged; delivery
// to one slow connection never delays or fails delivery to others. Publish
// itself never fails due to a downstream consumer fault.
func (h *Hub) Publish(channelName, event string, data map[string]interface{}) {
	ch := h.channel(channelName, false)
	if ch == nil {
		return
	}

	frame := Frame{Event: event, Channel: channelName, Data: data}

	ch.mu.RLock()
	members := make([]Subscriber, 0, len(ch.members))
	for _, sub := range ch.members {
		members = append(members, sub)
	}
	ch.mu.RUnlock()

	for _, sub := range members {
		if err := sub.Send(frame); err != nil {
			logger.Warn().
				Err(err).
				Str("channel", channelName).
				Str("event", event).
				Str("conn_id", sub.ID()).
				Msg("delivery fault, dropping subscriber")
			h.removeMember(channelName, sub.ID(), sub.Actor())
		}
	}
}

// IsActorSubscribed reports whether any connection for the actor is a
// member of the channel. Used to decide whether an offline push is needed.
func (h *Hub) IsActorSubscribed(channelName, actorID string) bool {
	ch := h.channel(channelName, false)
	if ch == nil {
		return false
	}
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	for _, sub := range ch.members {
		if sub.Actor().ID == actorID {
			return true
		}
	}
	return false
}

// MemberCount returns the current subscriber count for a channel.
func (h *Hub) MemberCount(channelName string) int {
	ch := h.channel(channelName, false)
	if ch == nil {
		return 0
	}
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return len(ch.members)
}
