package bot

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	maxRemoveCount = 100
	// bulkDeleteMaxAge is the age limit Discord enforces on bulk deletes.
	bulkDeleteMaxAge = 14 * 24 * time.Hour
	removedNoticeTTL = 2 * time.Second
)

func (b *Bot) cmdRemove(r *request) {
	m := r.msg
	var count int
	if len(r.args) > 0 {
		count, _ = strconv.Atoi(r.args[0])
	}
	if count < 1 || count > maxRemoveCount {
		b.replyTransient(m, shortTTL, fmt.Sprintf("Please provide a number between 1 and %d, e.g., `%sremove 4`.", maxRemoveCount, b.cfg.Prefix))
		return
	}

	msgs, err := b.api.ChannelMessages(m.ChannelID, count, m.ID, "", "")
	if err != nil {
		b.logError("fetching messages to remove failed", "channel_id", m.ChannelID, "error", err)
		b.replyTransient(m, shortTTL, "Error removing messages. Check my permissions or try again.")
		return
	}
	deleted := b.deleteMessages(m.ChannelID, msgs)
	if err := b.deleteMessage(m.ChannelID, m.ID); err != nil {
		b.logWarn("deleting remove command failed", "channel_id", m.ChannelID, "message_id", m.ID, "error", err)
	} else {
		deleted++
	}

	if err := b.store.AddRemovals(b.ctx, m.Author.ID, int64(deleted), b.now()); err != nil {
		b.logError("updating removal stats failed", "user_id", m.Author.ID, "error", err)
	}
	total, err := b.store.TotalRemovals(b.ctx)
	if err != nil {
		b.logWarn("reading total removals failed", "error", err)
	}
	byUser, err := b.store.UserRemovals(b.ctx, m.Author.ID)
	if err != nil {
		b.logWarn("reading user removals failed", "user_id", m.Author.ID, "error", err)
	}
	if b.cfg.DebugChannelID != "" {
		b.sendEmbed(b.cfg.DebugChannelID, &discordgo.MessageEmbed{
			Title:     fmt.Sprintf("%d messages removed by %s in <#%s>", deleted, m.Author.Username, m.ChannelID),
			Color:     0xff0000,
			Timestamp: b.now().UTC().Format(time.RFC3339),
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Total Removed Messages", Value: strconv.FormatInt(total, 10), Inline: true},
				{Name: "Total Removed by " + m.Author.Username, Value: strconv.FormatInt(byUser, 10), Inline: true},
			},
		})
	}
	b.logInfo("messages removed", "user_id", m.Author.ID, "channel_id", m.ChannelID, "count", deleted)

	if notice := b.sendChannelMessage(m.ChannelID, "Messages removed ✅"); notice != nil {
		b.scheduleDeletion(notice.ChannelID, notice.ID, removedNoticeTTL)
	}
}

// deleteMessages removes msgs from channelID and returns how many are gone.
// Messages younger than the bulk delete limit go in one call, older ones one by one.
func (b *Bot) deleteMessages(channelID string, msgs []*discordgo.Message) int {
	threshold := b.now().Add(-bulkDeleteMaxAge)
	var recent, old []string
	for _, msg := range msgs {
		if msg.Timestamp.After(threshold) {
			recent = append(recent, msg.ID)
		} else {
			old = append(old, msg.ID)
		}
	}

	deleted := 0
	switch len(recent) {
	case 0:
	case 1:
		// bulk delete requires at least two ids
		old = append(old, recent[0])
	default:
		if err := b.api.ChannelMessagesBulkDelete(channelID, recent); err != nil {
			b.logError("bulk delete failed", "channel_id", channelID, "count", len(recent), "error", err)
		} else {
			deleted += len(recent)
		}
	}
	for _, id := range old {
		if err := b.deleteMessage(channelID, id); err != nil {
			b.logError("deleting message failed", "channel_id", channelID, "message_id", id, "error", err)
			continue
		}
		deleted++
		b.logDebug("deleted message", "channel_id", channelID, "message_id", id)
	}
	return deleted
}
