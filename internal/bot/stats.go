package bot

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/warden-bot/internal/store"
	"github.com/pkg/errors"
)

func countWords(content string) int {
	return len(strings.Fields(content))
}

// cleanWord lower-cases w and drops everything that is not a letter.
func cleanWord(w string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, w)
}

func countSwears(content string, swears map[string]bool) int {
	n := 0
	for _, w := range strings.Fields(content) {
		if c := cleanWord(w); c != "" && swears[c] {
			n++
		}
	}
	return n
}

func (b *Bot) swearCount(content string) int {
	b.swearMu.RLock()
	defer b.swearMu.RUnlock()
	return countSwears(content, b.swears)
}

// loadSwearWords merges the stored swear list into the configured one.
func (b *Bot) loadSwearWords(ctx context.Context) {
	words, err := b.store.SwearWords(ctx)
	if err != nil {
		b.logError("loading swear words failed", "error", err)
		return
	}
	b.swearMu.Lock()
	for _, w := range words {
		if c := cleanWord(w); c != "" {
			b.swears[c] = true
		}
	}
	n := len(b.swears)
	b.swearMu.Unlock()
	b.logDebug("swear words loaded", "count", n)
}

func (b *Bot) addStats(userID string, d store.StatDelta) {
	if err := b.store.AddUserStats(b.ctx, userID, d, b.now()); err != nil {
		b.logError("updating user stats failed", "user_id", userID, "error", err)
	}
}

// trackMessage counts a regular (non-command) message.
func (b *Bot) trackMessage(m *discordgo.Message) {
	b.addStats(m.Author.ID, store.StatDelta{
		Nickname: displayName(m.Member, m.Author),
		Messages: 1,
		Words:    int64(countWords(m.Content)),
		Swears:   int64(b.swearCount(m.Content)),
	})
}

func (b *Bot) trackDelete(before *discordgo.Message) {
	if before == nil || before.Author == nil || before.Author.Bot {
		return
	}
	b.addStats(before.Author.ID, store.StatDelta{Removed: 1})
}

func (b *Bot) trackEdit(m *discordgo.Message, before *discordgo.Message) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	// Embed unfurls also fire updates; only count real content changes.
	if before == nil || before.Content == m.Content {
		return
	}
	b.addStats(m.Author.ID, store.StatDelta{Edited: 1, Swears: int64(b.swearCount(m.Content))})
}

// trackReaction moves the given/received counters by delta (+1 add, -1 remove).
func (b *Bot) trackReaction(r *discordgo.MessageReaction, delta int64) {
	if r.UserID == b.self() {
		return
	}
	b.addStats(r.UserID, store.StatDelta{ReactionsGiven: delta})

	msg, err := b.api.ChannelMessage(r.ChannelID, r.MessageID)
	if err != nil {
		b.logDebug("fetching reacted message failed", "channel_id", r.ChannelID, "message_id", r.MessageID, "error", err)
		return
	}
	if msg.Author == nil || msg.Author.Bot || msg.Author.ID == r.UserID {
		return
	}
	b.addStats(msg.Author.ID, store.StatDelta{ReactionsReceived: delta})
}

// trackVoice turns voice join/leave and stream start/stop transitions into
// voice and streaming seconds.
func (b *Bot) trackVoice(v *discordgo.VoiceState) {
	if v.Member != nil && v.Member.User != nil && v.Member.User.Bot {
		return
	}
	now := b.now()
	inVoice := v.ChannelID != ""
	streaming := inVoice && v.SelfStream

	var d store.StatDelta
	b.sessionMu.Lock()
	if start, ok := b.voiceSessions[v.UserID]; ok && !inVoice {
		d.VoiceSeconds = int64(now.Sub(start) / time.Second)
		delete(b.voiceSessions, v.UserID)
	} else if !ok && inVoice {
		b.voiceSessions[v.UserID] = now
	}
	if start, ok := b.streamSessions[v.UserID]; ok && !streaming {
		d.StreamingSeconds = int64(now.Sub(start) / time.Second)
		delete(b.streamSessions, v.UserID)
	} else if !ok && streaming {
		b.streamSessions[v.UserID] = now
	}
	b.sessionMu.Unlock()

	if d.VoiceSeconds == 0 && d.StreamingSeconds == 0 {
		return
	}
	var user *discordgo.User
	if v.Member != nil {
		user = v.Member.User
	}
	d.Nickname = displayName(v.Member, user)
	b.addStats(v.UserID, d)
	b.logDebug("voice time recorded", "user_id", v.UserID, "voice_seconds", d.VoiceSeconds, "streaming_seconds", d.StreamingSeconds)
}

// formatSeconds renders a duration as "Xh Ym".
func formatSeconds(s int64) string {
	return fmt.Sprintf("%dh %dm", s/3600, (s%3600)/60)
}

func (b *Bot) cmdStat(r *request) {
	userID := r.msg.Author.ID
	if len(r.args) > 0 {
		id, ok := parseUserRef(r.args[0])
		if !ok {
			b.replyTransient(r.msg, helpTTL, "Invalid user ID or mention. Use a valid ID or @user.")
			return
		}
		userID = id
	}
	st, err := b.store.UserStats(b.ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		b.replyTransient(r.msg, helpTTL, "No stats found for this user.")
		return
	}
	if err != nil {
		b.logError("loading user stats failed", "user_id", userID, "error", err)
		b.replyTransient(r.msg, helpTTL, "Could not load stats.")
		return
	}
	name := st.Nickname
	if u, err := b.api.User(userID); err == nil {
		name = u.Username
	}
	if name == "" {
		name = "Unknown User"
	}
	b.replyEmbedTransient(r.msg, helpTTL, &discordgo.MessageEmbed{
		Title: "📊 User Stats: " + name,
		Color: embedColor,
		Description: fmt.Sprintf("**ID**: %s\n"+
			"**Total Messages**: %d\n"+
			"**Total Words**: %d\n"+
			"**Words per Message**: %.2f\n"+
			"**Messages Removed**: %d\n"+
			"**Messages Edited**: %d\n"+
			"**Total Swear Words**: %d\n"+
			"**Reactions Given**: %d\n"+
			"**Reactions Received**: %d\n"+
			"**Voice Time**: %s\n"+
			"**Streaming Time**: %s\n"+
			"**Last Updated**: %s",
			userID, st.TotalMessages, st.TotalWords, store.WordsPerMessage(st.TotalWords, st.TotalMessages),
			st.MessagesRemoved, st.MessagesEdited, st.TotalSwears, st.ReactionsGiven, st.ReactionsReceived,
			formatSeconds(st.VoiceSeconds), formatSeconds(st.StreamingSeconds), st.LastUpdated.Format("2006-01-02")),
		Timestamp: b.now().UTC().Format(time.RFC3339),
	})
}

func (b *Bot) cmdAllStat(r *request) {
	t, err := b.store.AggregateStats(b.ctx)
	if err != nil {
		b.logError("aggregating stats failed", "error", err)
		b.replyTransient(r.msg, helpTTL, "Could not load stats.")
		return
	}
	if t.Users == 0 {
		b.replyTransient(r.msg, helpTTL, "No user stats found.")
		return
	}
	b.replyEmbedTransient(r.msg, listTTL, &discordgo.MessageEmbed{
		Title: "📊 Aggregated Stats for All Users",
		Color: embedColor,
		Description: fmt.Sprintf("**Total Users**: %d\n"+
			"**Total Messages**: %d\n"+
			"**Total Words**: %d\n"+
			"**Words per Message**: %.2f\n"+
			"**Messages Removed**: %d\n"+
			"**Messages Edited**: %d\n"+
			"**Total Swear Words**: %d\n"+
			"**Reactions Given**: %d\n"+
			"**Reactions Received**: %d\n"+
			"**Voice Time**: %s\n"+
			"**Streaming Time**: %s",
			t.Users, t.TotalMessages, t.TotalWords, store.WordsPerMessage(t.TotalWords, t.TotalMessages),
			t.MessagesRemoved, t.MessagesEdited, t.TotalSwears, t.ReactionsGiven, t.ReactionsReceived,
			formatSeconds(t.VoiceSeconds), formatSeconds(t.StreamingSeconds)),
		Timestamp: b.now().UTC().Format(time.RFC3339),
	})
}

func (b *Bot) cmdSwear(r *request) {
	word := ""
	if len(r.args) > 0 {
		word = cleanWord(r.args[0])
	}
	if word == "" {
		b.replyTransient(r.msg, helpTTL, "Usage: `"+b.cfg.Prefix+"swear <word>`")
		return
	}
	added, err := b.store.AddSwearWord(b.ctx, word)
	if err != nil {
		b.logError("adding swear word failed", "error", err)
		b.replyTransient(r.msg, helpTTL, "Could not add the word.")
		return
	}
	b.swearMu.Lock()
	b.swears[word] = true
	b.swearMu.Unlock()
	if !added {
		b.replyTransient(r.msg, helpTTL, "That word is already on the list.")
		return
	}
	b.logInfo("swear word added", "admin_id", r.msg.Author.ID)
	b.replyTransient(r.msg, helpTTL, "Word added to the swear list.")
}
