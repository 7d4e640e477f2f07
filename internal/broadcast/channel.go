package broadcast

import "strings"

// ChannelKind classifies the addressable broadcast scopes.
type ChannelKind string

const (
	// inbox.<id> — the two inbox participants (coach + user), private
	ChannelInbox ChannelKind = "inbox"
	// conversation.<id> — read-receipt channel, same membership as the inbox
	ChannelConversation ChannelKind = "conversation"
	// group.<id> — members of the group roster
	ChannelGroup ChannelKind = "group"
	// admin.moderation — all active admins
	ChannelModeration ChannelKind = "moderation"
	// presence — any authenticated actor
	ChannelPresence ChannelKind = "presence"
	// org.broadcast — organization-wide announcements, any authenticated actor
	ChannelOrg ChannelKind = "org"
)

const (
	PresenceChannel   = "presence"
	ModerationChannel = "admin.moderation"
	OrgChannel        = "org.broadcast"
)

// Channel is a parsed channel name.
type Channel struct {
	Kind ChannelKind
	ID   string // empty for the singleton channels
	Name string
}

// ParseChannel parses a channel name. A malformed name returns ok=false and
// is treated as Deny by the authorizer; it never panics.
func ParseChannel(name string) (Channel, bool) {
	switch name {
	case PresenceChannel:
		return Channel{Kind: ChannelPresence, Name: name}, true
	case ModerationChannel:
		return Channel{Kind: ChannelModeration, Name: name}, true
	case OrgChannel:
		return Channel{Kind: ChannelOrg, Name: name}, true
	}

	prefix, id, found := strings.Cut(name, ".")
	if !found || id == "" || strings.Contains(id, ".") {
		return Channel{}, false
	}

	switch prefix {
	case "inbox":
		return Channel{Kind: ChannelInbox, ID: id, Name: name}, true
	case "conversation":
		return Channel{Kind: ChannelConversation, ID: id, Name: name}, true
	case "group":
		return Channel{Kind: ChannelGroup, ID: id, Name: name}, true
	}
	return Channel{}, false
}

// Name builders used by the publisher.

func InboxChannel(id string) string        { return "inbox." + id }
func ConversationChannel(id string) string { return "conversation." + id }
func GroupChannel(id string) string        { return "group." + id }
