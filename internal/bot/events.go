package bot

import "github.com/bwmarrin/discordgo"

// MessageDelete counts removed messages and cleans up clip channel notices.
func (b *Bot) MessageDelete(_ *discordgo.Session, m *discordgo.MessageDelete) {
	if m.Message == nil {
		return
	}
	if b.cfg.ClipChannelID != "" && m.ChannelID == b.cfg.ClipChannelID {
		b.clipDeleted(m.ID)
	}
	b.trackDelete(m.BeforeDelete)
}

// MessageUpdate counts edits whose content changed.
func (b *Bot) MessageUpdate(_ *discordgo.Session, m *discordgo.MessageUpdate) {
	if m.Message == nil {
		return
	}
	b.trackEdit(m.Message, m.BeforeUpdate)
}

// MessageReactionAdd routes a reaction to reaction roles, the movie and
// series prompts and the reaction counters.
func (b *Bot) MessageReactionAdd(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.MessageReaction == nil || r.UserID == b.self() {
		return
	}
	if r.Member != nil && r.Member.User != nil && r.Member.User.Bot {
		return
	}
	b.handleRoleReaction(r.MessageReaction, true)
	if !b.handleMovieReaction(r.MessageReaction) {
		b.handleSeriesReaction(r.MessageReaction)
	}
	b.trackReaction(r.MessageReaction, 1)
}

// MessageReactionRemove revokes reaction roles and undoes the reaction counters.
func (b *Bot) MessageReactionRemove(_ *discordgo.Session, r *discordgo.MessageReactionRemove) {
	if r.MessageReaction == nil || r.UserID == b.self() {
		return
	}
	b.handleRoleReaction(r.MessageReaction, false)
	b.trackReaction(r.MessageReaction, -1)
}

// VoiceStateUpdate accumulates voice and streaming time.
func (b *Bot) VoiceStateUpdate(_ *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.VoiceState == nil || v.UserID == "" || v.UserID == b.self() {
		return
	}
	b.trackVoice(v.VoiceState)
}
