package bot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
)

const (
	minTimer = 5 * time.Second
	maxTimer = 32 * 24 * time.Hour

	timerCommandTTL = time.Second
	// timerKeepAfter is how long the countdown stays after it runs out.
	timerKeepAfter = time.Hour
)

var (
	durationPartRe = regexp.MustCompile(`^(\d+)([smhd])$`)

	errZeroDuration = errors.New("each duration part must be greater than zero")
	errNoDuration   = errors.New("no duration given")
	errTimerRange   = errors.New("timer out of range")
)

// ParseDuration parses a single "<n><unit>" part where unit is s, m, h or d.
func ParseDuration(input string) (time.Duration, error) {
	match := durationPartRe.FindStringSubmatch(input)
	if len(match) != 3 {
		return 0, errors.New("invalid duration format")
	}

	num, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, errors.Wrap(err, "error parsing number")
	}

	switch match[2] {
	case "s":
		return time.Duration(num) * time.Second, nil
	case "m":
		return time.Duration(num) * time.Minute, nil
	case "h":
		return time.Duration(num) * time.Hour, nil
	case "d":
		return time.Duration(num) * 24 * time.Hour, nil
	default:
		return 0, errors.Errorf("invalid duration unit: %s", match[2])
	}
}

// FormatDuration renders d in the largest unit that divides it evenly.
func FormatDuration(duration time.Duration) string {
	if duration%(24*time.Hour) == 0 {
		days := duration / (24 * time.Hour)
		if days > 1 {
			return fmt.Sprintf("%d days", days)
		}
		return "1 day"
	}
	if duration%time.Hour == 0 {
		hours := duration / time.Hour
		if hours > 1 {
			return fmt.Sprintf("%d hours", hours)
		}
		return "1 hour"
	}
	if duration%time.Minute == 0 {
		minutes := duration / time.Minute
		if minutes > 1 {
			return fmt.Sprintf("%d minutes", minutes)
		}
		return "1 minute"
	}
	seconds := duration / time.Second
	if seconds > 1 {
		return fmt.Sprintf("%d seconds", seconds)
	}
	return "1 second"
}

// parseTimer consumes leading duration parts of args and returns their sum and
// the remaining words as the custom message.
func parseTimer(args []string) (time.Duration, string, error) {
	var total time.Duration
	i := 0
	for ; i < len(args); i++ {
		if !durationPartRe.MatchString(args[i]) {
			break
		}
		d, err := ParseDuration(args[i])
		if err != nil {
			return 0, "", err
		}
		if d <= 0 {
			return 0, "", errZeroDuration
		}
		total += d
	}
	if i == 0 {
		return 0, "", errNoDuration
	}
	if total < minTimer || total > maxTimer {
		return 0, "", errTimerRange
	}
	return total, strings.Join(args[i:], " "), nil
}

func (b *Bot) timerError(m *discordgo.Message, content string) {
	b.scheduleDeletion(m.ChannelID, m.ID, timerCommandTTL)
	if reply := b.send(m.ChannelID, &discordgo.MessageSend{Content: content, Reference: m.Reference()}); reply != nil {
		b.scheduleDeletion(reply.ChannelID, reply.ID, shortTTL)
	}
}

func (b *Bot) cmdTimer(r *request) {
	m := r.msg
	if len(r.args) == 0 {
		b.timerError(m, fmt.Sprintf("Please provide a time, e.g., `%stimer 30m [optional message]` or `%stimer 1h 30m [optional message]`", b.cfg.Prefix, b.cfg.Prefix))
		return
	}
	total, custom, err := parseTimer(r.args)
	switch {
	case errors.Is(err, errZeroDuration):
		b.timerError(m, "Each duration part must be greater than zero. For example, `1s`, `1m`, etc.")
		return
	case errors.Is(err, errNoDuration):
		b.timerError(m, fmt.Sprintf("Please provide at least one valid duration, e.g., `%stimer 30m` or `%stimer 1h 30m`.", b.cfg.Prefix, b.cfg.Prefix))
		return
	case errors.Is(err, errTimerRange):
		b.timerError(m, "Timer must be between 5 seconds and 32 days.")
		return
	case err != nil:
		b.timerError(m, "Invalid duration.")
		return
	}

	now := b.now()
	end := now.Add(total)
	content := fmt.Sprintf("<t:%d:R>", end.Unix())
	if custom != "" {
		content = custom + " " + content
	}
	b.scheduleDeletion(m.ChannelID, m.ID, timerCommandTTL)
	countdown := b.send(m.ChannelID, &discordgo.MessageSend{
		Content: truncate(content, maxMessageLen),
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{
				discordgo.AllowedMentionTypeUsers,
				discordgo.AllowedMentionTypeRoles,
				discordgo.AllowedMentionTypeEveryone,
			},
		},
	})
	if countdown == nil {
		return
	}
	b.scheduleDeletion(countdown.ChannelID, countdown.ID, total+timerKeepAfter)
	b.logInfo("timer set", "channel_id", m.ChannelID, "user_id", m.Author.ID, "duration", FormatDuration(total))
}
