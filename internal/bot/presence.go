package bot

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/warden-bot/internal/store"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

var activityTypes = map[string]discordgo.ActivityType{
	"playing":   discordgo.ActivityTypeGame,
	"streaming": discordgo.ActivityTypeStreaming,
	"listening": discordgo.ActivityTypeListening,
	"watching":  discordgo.ActivityTypeWatching,
	"custom":    discordgo.ActivityTypeCustom,
	"competing": discordgo.ActivityTypeCompeting,
}

var statuses = map[string]discordgo.Status{
	"online":    discordgo.StatusOnline,
	"idle":      discordgo.StatusIdle,
	"dnd":       discordgo.StatusDoNotDisturb,
	"invisible": discordgo.StatusInvisible,
}

func sortedKeys[V any](m map[string]V) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

// presenceData builds the gateway payload for the saved settings.
func presenceData(bs *store.BotSettings) discordgo.UpdateStatusData {
	status := string(discordgo.StatusOnline)
	if s, ok := statuses[strings.ToLower(bs.Status)]; ok {
		status = string(s)
	}
	usd := discordgo.UpdateStatusData{Status: status}
	if t, ok := activityTypes[strings.ToLower(bs.ActivityType)]; ok && bs.ActivityText != "" {
		act := &discordgo.Activity{Name: bs.ActivityText, Type: t}
		if t == discordgo.ActivityTypeCustom {
			act.Name = "Custom Status"
			act.State = bs.ActivityText
		}
		usd.Activities = []*discordgo.Activity{act}
	}
	return usd
}

// currentSettings returns the saved presence, or an online default.
func (b *Bot) currentSettings(ctx context.Context) (*store.BotSettings, error) {
	bs, err := b.store.BotSettings(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return &store.BotSettings{Status: string(discordgo.StatusOnline)}, nil
	}
	return bs, err
}

func (b *Bot) restorePresence(ctx context.Context) {
	bs, err := b.store.BotSettings(ctx)
	if errors.Is(err, store.ErrNotFound) {
		b.logDebug("no saved presence")
		return
	}
	if err != nil {
		b.logError("loading presence failed", "error", err)
		return
	}
	if err := b.api.UpdateStatusComplex(presenceData(bs)); err != nil {
		b.logError("restoring presence failed", "error", err)
		return
	}
	b.logInfo("presence restored", "activity_type", bs.ActivityType, "activity", bs.ActivityText, "status", bs.Status)
}

// applyPresence saves bs and pushes it to the gateway.
func (b *Bot) applyPresence(r *request, bs *store.BotSettings, ok, debugLine string) {
	if err := b.api.UpdateStatusComplex(presenceData(bs)); err != nil {
		b.logError("updating presence failed", "error", err)
		b.replyTransient(r.msg, helpTTL, "Failed to update the bot presence. Check logs for details!")
		return
	}
	if err := b.store.SaveBotSettings(b.ctx, bs); err != nil {
		b.logError("saving presence failed", "error", err)
	}
	b.debug(debugLine)
	b.replyTransient(r.msg, helpTTL, ok)
}

func (b *Bot) cmdBotHelp(r *request) {
	p := b.cfg.Prefix
	b.replyEmbedTransient(r.msg, helpTTL, &discordgo.MessageEmbed{
		Title:       "🤖 Bot Status Commands Help",
		Description: "All commands are admin-only and messages will be deleted after 2 minutes.",
		Color:       embedColor,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:  "🔧 " + p + "botactivity <type> <activity>",
				Value: "Sets the bot's activity.\n**Usage:** `" + p + "botactivity watching movies`\n**Available types:** " + sortedKeys(activityTypes),
			},
			{
				Name:  "⚙️ " + p + "botstatus <status>",
				Value: "Sets the bot's status.\n**Usage:** `" + p + "botstatus idle`\n**Available statuses:** " + sortedKeys(statuses),
			},
			{
				Name:  "📝 " + p + "botdesc <description>",
				Value: "Sets a custom activity description.\n**Usage:** `" + p + "botdesc Playing with friends`",
			},
			{
				Name:  "📈 " + p + "botinfo",
				Value: "Shows uptime and host load.",
			},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "This message will be deleted in 2 minutes."},
	})
}

func (b *Bot) cmdBotActivity(r *request) {
	if len(r.args) < 2 {
		b.replyTransient(r.msg, helpTTL, fmt.Sprintf("Usage: `%sbotactivity <type> <activity>`, e.g., `%sbotactivity watching movies`", b.cfg.Prefix, b.cfg.Prefix))
		return
	}
	typ := strings.ToLower(r.args[0])
	if _, ok := activityTypes[typ]; !ok {
		b.replyTransient(r.msg, helpTTL, "Invalid activity type. Use one of: "+sortedKeys(activityTypes))
		return
	}
	text := strings.TrimSpace(strings.TrimPrefix(r.rest, r.args[0]))
	bs, err := b.currentSettings(b.ctx)
	if err != nil {
		b.logError("loading presence failed", "error", err)
		return
	}
	bs.ActivityType, bs.ActivityText = typ, text
	b.applyPresence(r, bs, fmt.Sprintf("Bot activity set to %s %s", typ, text), fmt.Sprintf("Activity updated: %s %s", typ, text))
}

func (b *Bot) cmdBotStatus(r *request) {
	if len(r.args) < 1 {
		b.replyTransient(r.msg, helpTTL, fmt.Sprintf("Usage: `%sbotstatus <status>`, e.g., `%sbotstatus idle`", b.cfg.Prefix, b.cfg.Prefix))
		return
	}
	status := strings.ToLower(r.args[0])
	if _, ok := statuses[status]; !ok {
		b.replyTransient(r.msg, helpTTL, "Invalid status. Use one of: "+sortedKeys(statuses))
		return
	}
	bs, err := b.currentSettings(b.ctx)
	if err != nil {
		b.logError("loading presence failed", "error", err)
		return
	}
	bs.Status = status
	b.applyPresence(r, bs, "Bot status set to "+status, "Status updated: "+status)
}

func (b *Bot) cmdBotDesc(r *request) {
	text := strings.TrimSpace(r.rest)
	if text == "" {
		b.replyTransient(r.msg, helpTTL, fmt.Sprintf("Usage: `%sbotdesc <description>`, e.g., `%sbotdesc Playing with friends`", b.cfg.Prefix, b.cfg.Prefix))
		return
	}
	bs, err := b.currentSettings(b.ctx)
	if err != nil {
		b.logError("loading presence failed", "error", err)
		return
	}
	bs.ActivityType, bs.ActivityText = "custom", text
	b.applyPresence(r, bs, "Bot description set to "+text, "Description updated: "+text)
}

func (b *Bot) cmdBotInfo(r *request) {
	fields := []*discordgo.MessageEmbedField{
		{Name: "⏱️ Bot uptime", Value: b.now().Sub(b.started).Truncate(time.Second).String(), Inline: true},
		{Name: "🐹 Go version", Value: runtime.Version(), Inline: true},
		{Name: "🚀 Goroutines", Value: fmt.Sprintf("%d", runtime.NumGoroutine()), Inline: true},
	}
	if hi, err := host.Info(); err == nil {
		fields = append(fields,
			&discordgo.MessageEmbedField{Name: "💻 OS", Value: fmt.Sprintf("%s %s", hi.Platform, hi.PlatformVersion), Inline: true},
			&discordgo.MessageEmbedField{Name: "🖥️ Host uptime", Value: (time.Duration(hi.Uptime) * time.Second).String(), Inline: true},
		)
	} else {
		b.logWarn("reading host info failed", "error", err)
	}
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "🔥 CPU", Value: fmt.Sprintf("%.1f%%", pct[0]), Inline: true})
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "🧠 Memory",
			Value:  fmt.Sprintf("%.1f%% (%d MB / %d MB)", vm.UsedPercent, vm.Used/1024/1024, vm.Total/1024/1024),
			Inline: true,
		})
	}
	if counts, err := b.store.DeletionCounts(b.ctx); err == nil {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "🗑️ Scheduled deletions",
			Value: fmt.Sprintf("%d pending, %d removed, %d errored",
				counts[store.DeletionPending], counts[store.DeletionRemoved], counts[store.DeletionErrored]),
		})
	}
	b.replyEmbedTransient(r.msg, helpTTL, &discordgo.MessageEmbed{
		Title:  "Bot info",
		Color:  embedColor,
		Fields: fields,
		Footer: &discordgo.MessageEmbedFooter{Text: "Started " + b.started.UTC().Format(time.RFC1123)},
	})
}
