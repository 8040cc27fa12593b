package bot

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// playingActivity returns the name of the first "Playing" activity, or "".
func playingActivity(acts []*discordgo.Activity) string {
	for _, a := range acts {
		if a != nil && a.Type == discordgo.ActivityTypeGame && a.Name != "" {
			return a.Name
		}
	}
	return ""
}

// PresenceUpdate opens, switches or closes the user's game session.
func (b *Bot) PresenceUpdate(_ *discordgo.Session, p *discordgo.PresenceUpdate) {
	if p.User == nil || p.User.ID == "" || p.User.Bot || p.GuildID == "" {
		return
	}
	userID := p.User.ID
	game := ""
	if raw := playingActivity(p.Activities); raw != "" {
		var err error
		game, err = b.store.StandardGameName(b.ctx, raw)
		if err != nil {
			b.logWarn("resolving game alias failed", "game", raw, "error", err)
		}
	}

	b.sessionMu.Lock()
	active := b.gameSessions[userID]
	if game == active {
		b.sessionMu.Unlock()
		return
	}
	if game == "" {
		delete(b.gameSessions, userID)
	} else {
		b.gameSessions[userID] = game
	}
	b.sessionMu.Unlock()

	now := b.now()
	if active != "" {
		if err := b.store.EndGameSession(b.ctx, userID, active, now); err != nil {
			b.logError("ending game session failed", "user_id", userID, "game", active, "error", err)
		} else {
			b.logDebug("game session ended", "user_id", userID, "game", active)
		}
	}
	if game != "" {
		if err := b.store.StartGameSession(b.ctx, userID, displayName(nil, p.User), game, now); err != nil {
			b.logError("starting game session failed", "user_id", userID, "game", game, "error", err)
		} else {
			b.logDebug("game session started", "user_id", userID, "game", game)
		}
	}
}

func (b *Bot) cmdGame(r *request) {
	if len(r.args) == 0 {
		b.replyTransient(r.msg, helpTTL, "Invalid user ID or mention. Use a valid ID or @user.")
		return
	}
	userID, ok := parseUserRef(r.args[0])
	if !ok {
		b.replyTransient(r.msg, helpTTL, "Invalid user ID or mention. Use a valid ID or @user.")
		return
	}
	totals, err := b.store.GameTotals(b.ctx, userID)
	if err != nil {
		b.logError("loading game totals failed", "user_id", userID, "error", err)
		b.replyTransient(r.msg, helpTTL, "Failed to fetch stats. Please try again later.")
		return
	}

	name := "Unknown"
	if r.msg.GuildID != "" {
		if m, err := b.api.GuildMember(r.msg.GuildID, userID); err == nil {
			name = displayName(m, m.User)
		}
	}
	value := "No activities recorded."
	if len(totals) > 0 {
		lines := make([]string, 0, len(totals))
		for _, t := range totals {
			lines = append(lines, fmt.Sprintf("**%s**: %d sessions, %s", t.Name, t.Sessions, formatSeconds(t.Seconds)))
		}
		value = truncate(strings.Join(lines, "\n"), 1024)
	}
	b.replyEmbedTransient(r.msg, helpTTL, &discordgo.MessageEmbed{
		Title:  "🎮 Activity Stats for " + name,
		Color:  embedColor,
		Fields: []*discordgo.MessageEmbedField{{Name: "All Time", Value: value}},
	})
}

func (b *Bot) cmdGameAlias(r *request) {
	q := quotedArgs(r.rest)
	if len(q) < 2 {
		b.replyTransient(r.msg, helpTTL, "Usage: "+b.cfg.Prefix+"galias \"standardName\" \"aliasName\"")
		return
	}
	if err := b.store.AddGameAlias(b.ctx, q[0], q[1]); err != nil {
		b.logError("adding game alias failed", "standard", q[0], "alias", q[1], "error", err)
		b.replyTransient(r.msg, helpTTL, "Failed to add alias. Please try again later.")
		return
	}
	b.replyTransient(r.msg, helpTTL, fmt.Sprintf("Alias added: \"%s\" -> \"%s\"", q[1], q[0]))
}
