package bot

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/warden-bot/internal/store"
	"github.com/pkg/errors"
)

const defaultClipDeleteAfter = 6 * time.Hour

var mediaExtensions = map[string]bool{
	"mp4": true, "mov": true, "webm": true, "avi": true, "mkv": true,
	"jpg": true, "jpeg": true, "png": true, "gif": true, "bmp": true, "webp": true, "tiff": true,
}

func extension(name string) string {
	ext := path.Ext(name)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// urlExtension returns the extension of the last path segment, ignoring the query.
func urlExtension(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return extension(strings.SplitN(raw, "?", 2)[0])
	}
	return extension(u.Path)
}

// isMedia reports whether the attachment is an image or a video judged by
// its URL extension, its content type or its file name.
func isMedia(a *discordgo.MessageAttachment) bool {
	if a == nil {
		return false
	}
	ct := strings.ToLower(a.ContentType)
	return mediaExtensions[urlExtension(a.URL)] ||
		strings.HasPrefix(ct, "video/") || strings.HasPrefix(ct, "image/") ||
		mediaExtensions[extension(a.Filename)]
}

func hasMedia(m *discordgo.Message) bool {
	for _, a := range m.Attachments {
		if isMedia(a) {
			return true
		}
	}
	return false
}

// handleClip approves media posts in the clip channel and schedules everything
// else for removal with a companion notice in the debug channel.
func (b *Bot) handleClip(m *discordgo.Message) {
	if hasMedia(m) {
		if err := b.api.MessageReactionAdd(m.ChannelID, m.ID, approveEmoji); err != nil {
			b.logWarn("reacting to clip failed", "message_id", m.ID, "error", err)
		}
		return
	}

	after := b.cfg.ClipDeleteAfter
	if after <= 0 {
		after = defaultClipDeleteAfter
	}
	at := b.now().Add(after)
	link := fmt.Sprintf("https://discord.com/channels/%s/%s/%s", m.GuildID, m.ChannelID, m.ID)
	logID := ""
	if notice := b.debug(fmt.Sprintf("Message %s will be removed <t:%d:R>", link, at.Unix())); notice != nil {
		logID = notice.ID
	}
	b.scheduleDeletionWithLog(m.ChannelID, m.ID, after, logID)
	b.logDebug("non-clip message scheduled for removal", "message_id", m.ID, "delete_at", at)
}

// clipDeleted removes the companion notice of a clip channel message that was
// deleted before the sweeper got to it.
func (b *Bot) clipDeleted(messageID string) {
	rec, err := b.store.DeletionByMessageID(b.ctx, messageID)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		b.logWarn("looking up deleted clip message failed", "message_id", messageID, "error", err)
		return
	}
	if rec.Status != store.DeletionPending {
		return
	}
	b.deleteCompanionLog(*rec)
	b.markDone(b.ctx, *rec)
}
