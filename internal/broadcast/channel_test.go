package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseChannel(t *testing.T) {
	tests := []struct {
		name     string
		ok       bool
		wantKind ChannelKind
		wantID   string
	}{
		{"inbox.42", true, ChannelInbox, "42"},
		{"conversation.42", true, ChannelConversation, "42"},
		{"group.7", true, ChannelGroup, "7"},
		{"admin.moderation", true, ChannelModeration, ""},
		{"presence", true, ChannelPresence, ""},
		{"org.broadcast", true, ChannelOrg, ""},

		// Malformed names are rejected, never a panic.
		{"", false, "", ""},
		{"inbox.", false, "", ""},
		{"inbox", false, "", ""},
		{"inbox.42.extra", false, "", ""},
		{"bogus.42", false, "", ""},
		{"admin.other", false, "", ""},
	}

	for _, tt := range tests {
		ch, ok := ParseChannel(tt.name)
		assert.Equal(t, tt.ok, ok, "ParseChannel(%q)", tt.name)
		if tt.ok {
			assert.Equal(t, tt.wantKind, ch.Kind, "ParseChannel(%q) kind", tt.name)
			assert.Equal(t, tt.wantID, ch.ID, "ParseChannel(%q) id", tt.name)
		}
	}
}

func TestChannelBuilders(t *testing.T) {
	assert.Equal(t, "inbox.42", InboxChannel("42"))
	assert.Equal(t, "conversation.42", ConversationChannel("42"))
	assert.Equal(t, "group.7", GroupChannel("7"))
}
