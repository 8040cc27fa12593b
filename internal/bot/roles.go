package bot

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/warden-bot/internal/config"
)

func isSnowflake(s string) bool {
	if len(s) < 15 || len(s) > 21 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// emojiAPIName returns the form MessageReactionAdd expects: name:id for
// custom emoji, the character itself for unicode emoji.
func emojiAPIName(rr config.RoleReaction) string {
	if isSnowflake(rr.EmojiID) {
		return rr.Name + ":" + rr.EmojiID
	}
	return rr.EmojiID
}

func emojiMarkdown(rr config.RoleReaction) string {
	if isSnowflake(rr.EmojiID) {
		return fmt.Sprintf("<:%s:%s>", rr.Name, rr.EmojiID)
	}
	return rr.EmojiID
}

// emojiKey is the lookup key of a reaction: the custom emoji id, or the
// unicode character.
func emojiKey(e discordgo.Emoji) string {
	if e.ID != "" {
		return e.ID
	}
	return e.Name
}

func (b *Bot) roleEmbed() *discordgo.MessageEmbed {
	rr := b.cfg.ReactionRoles
	var sb strings.Builder
	sb.WriteString("React to the appropriate icon to receive the matching role!\n\n")
	for _, role := range rr.Roles {
		label := role.Label
		if label == "" {
			label = role.Name
		}
		fmt.Fprintf(&sb, "%s **%s**\n", emojiMarkdown(role), label)
	}
	sb.WriteString("\n*Remove your reaction to drop the role.*")
	return &discordgo.MessageEmbed{
		Title:       rr.Title,
		Description: sb.String(),
		Color:       embedColor,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Automatic role system | React to join!"},
	}
}

func (b *Bot) roleMessage() string {
	b.selfMu.RLock()
	defer b.selfMu.RUnlock()
	return b.roleMessageID
}

func (b *Bot) setRoleMessage(id string) {
	b.selfMu.Lock()
	b.roleMessageID = id
	b.selfMu.Unlock()
}

// ensureRoleMessage refreshes the role embed in place, or posts a new one
// with every mapped reaction when the configured message cannot be fetched.
func (b *Bot) ensureRoleMessage() {
	rr := b.cfg.ReactionRoles
	if rr.ChannelID == "" || len(rr.Roles) == 0 {
		return
	}
	embed := b.roleEmbed()
	if id := b.roleMessage(); id != "" {
		_, err := b.api.ChannelMessage(rr.ChannelID, id)
		if err == nil {
			edit := discordgo.NewMessageEdit(rr.ChannelID, id).SetEmbeds([]*discordgo.MessageEmbed{embed})
			if _, err := b.api.ChannelMessageEditComplex(edit); err != nil {
				b.logWarn("updating role message failed", "channel_id", rr.ChannelID, "message_id", id, "error", err)
			} else {
				b.logInfo("role message updated", "message_id", id)
			}
			return
		}
		b.logWarn("fetching role message failed, sending a new one", "channel_id", rr.ChannelID, "message_id", id, "error", err)
	}

	msg := b.sendEmbed(rr.ChannelID, embed)
	if msg == nil {
		return
	}
	b.setRoleMessage(msg.ID)
	for _, role := range rr.Roles {
		if err := b.api.MessageReactionAdd(msg.ChannelID, msg.ID, emojiAPIName(role)); err != nil {
			b.logWarn("adding role reaction failed", "role", role.Name, "emoji_id", role.EmojiID, "error", err)
		}
	}
	b.logWarn("new role message posted; set reaction_roles.message_id to keep it across restarts", "message_id", msg.ID)
}

// handleRoleReaction grants (add) or revokes the role mapped to the reacted emoji.
func (b *Bot) handleRoleReaction(r *discordgo.MessageReaction, add bool) {
	if r.MessageID == "" || r.MessageID != b.roleMessage() || r.UserID == b.self() {
		return
	}
	role, ok := b.roleByEmoji[emojiKey(r.Emoji)]
	if !ok {
		return
	}
	var err error
	if add {
		err = b.api.GuildMemberRoleAdd(r.GuildID, r.UserID, role.RoleID)
	} else {
		err = b.api.GuildMemberRoleRemove(r.GuildID, r.UserID, role.RoleID)
	}
	if err != nil {
		b.logError("changing reaction role failed", "user_id", r.UserID, "role_id", role.RoleID, "add", add, "error", err)
		return
	}
	b.logInfo("reaction role changed", "user_id", r.UserID, "role", role.Name, "add", add)
}

func (b *Bot) cmdRoles(r *request) {
	rr := b.cfg.ReactionRoles
	if len(rr.Roles) == 0 {
		b.replyTransient(r.msg, helpTTL, "No reaction roles are configured.")
		return
	}
	var sb strings.Builder
	for _, role := range rr.Roles {
		fmt.Fprintf(&sb, "%s → <@&%s>\n", emojiMarkdown(role), role.RoleID)
	}
	if id := b.roleMessage(); id != "" && r.msg.GuildID != "" {
		fmt.Fprintf(&sb, "\nReact here: https://discord.com/channels/%s/%s/%s", r.msg.GuildID, rr.ChannelID, id)
	}
	b.replyEmbedTransient(r.msg, helpTTL, &discordgo.MessageEmbed{
		Title:       "🎭 Reaction Roles",
		Description: sb.String(),
		Color:       embedColor,
	})
}
