package bot

import (
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
)

func roleReaction(userID, messageID string, emoji discordgo.Emoji) *discordgo.MessageReaction {
	return &discordgo.MessageReaction{UserID: userID, MessageID: messageID, ChannelID: "roles", GuildID: testGuildID, Emoji: emoji}
}

func TestReactionRoles(t *testing.T) {
	custom := discordgo.Emoji{ID: testRoleEmojiID, Name: "game"}
	unicode := discordgo.Emoji{Name: "🎮"}
	unmapped := discordgo.Emoji{Name: "🍕"}

	tests := []struct {
		name        string
		messageID   string
		emoji       discordgo.Emoji
		userID      string
		wantAdded   []string
		wantRemoved []string
	}{
		{
			name: "custom emoji", messageID: "roles-msg", emoji: custom, userID: testUserID,
			wantAdded: []string{testUserID + ":role-game"}, wantRemoved: []string{testUserID + ":role-game"},
		},
		{
			name: "unicode emoji", messageID: "roles-msg", emoji: unicode, userID: testUserID,
			wantAdded: []string{testUserID + ":role-pad"}, wantRemoved: []string{testUserID + ":role-pad"},
		},
		{name: "unmapped emoji", messageID: "roles-msg", emoji: unmapped, userID: testUserID},
		{name: "other message", messageID: "elsewhere", emoji: custom, userID: testUserID},
		{name: "own reaction", messageID: "roles-msg", emoji: custom, userID: testBotID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, api, _, _ := newTestBot(t)
			r := roleReaction(tt.userID, tt.messageID, tt.emoji)

			b.MessageReactionAdd(nil, &discordgo.MessageReactionAdd{MessageReaction: r})
			if strings.Join(api.rolesAdded, ",") != strings.Join(tt.wantAdded, ",") {
				t.Errorf("roles added = %v, want %v", api.rolesAdded, tt.wantAdded)
			}
			b.MessageReactionRemove(nil, &discordgo.MessageReactionRemove{MessageReaction: r})
			if strings.Join(api.rolesRemoved, ",") != strings.Join(tt.wantRemoved, ",") {
				t.Errorf("roles removed = %v, want %v", api.rolesRemoved, tt.wantRemoved)
			}
		})
	}
}

func TestEnsureRoleMessageEditsExisting(t *testing.T) {
	b, api, _, _ := newTestBot(t)
	api.messages["roles-msg"] = &discordgo.Message{ID: "roles-msg", ChannelID: "roles"}

	b.ensureRoleMessage()

	if len(api.edits) != 1 || api.edits[0].ID != "roles-msg" {
		t.Fatalf("edits = %+v, want one edit of roles-msg", api.edits)
	}
	embeds := *api.edits[0].Embeds
	if len(embeds) != 1 || !strings.Contains(embeds[0].Description, "<:game:"+testRoleEmojiID+"> **Game news**") {
		t.Errorf("role embed = %+v", embeds)
	}
	if len(api.sent) != 0 {
		t.Errorf("sent %d new messages, want none", len(api.sent))
	}
}

func TestEnsureRoleMessagePostsNew(t *testing.T) {
	b, api, _, _ := newTestBot(t)

	b.ensureRoleMessage()

	msg := api.lastSent("roles")
	if msg == nil {
		t.Fatal("no role message posted")
	}
	want := []string{msg.ID + ":game:" + testRoleEmojiID, msg.ID + ":🎮"}
	if strings.Join(api.reactionsAdded, ",") != strings.Join(want, ",") {
		t.Errorf("reactions = %v, want %v", api.reactionsAdded, want)
	}

	// reactions now count on the new message
	b.MessageReactionAdd(nil, &discordgo.MessageReactionAdd{MessageReaction: roleReaction(testUserID, msg.ID, discordgo.Emoji{Name: "🎮"})})
	if len(api.rolesAdded) != 1 {
		t.Errorf("roles added = %v, want one", api.rolesAdded)
	}
}
