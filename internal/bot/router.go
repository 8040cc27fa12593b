package bot

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// request is one parsed command invocation.
type request struct {
	msg  *discordgo.Message
	name string
	args []string
	rest string // text after the command word
}

type command struct {
	name      string
	adminOnly bool
	// ttl is how long the command and its replies stay in the channel.
	ttl time.Duration
	run func(r *request)
}

const (
	shortTTL  = 30 * time.Second
	minuteTTL = time.Minute
	helpTTL   = 2 * time.Minute
	listTTL   = 5 * time.Minute
)

const adminOnlyReply = "Only admins can use this command."

func (b *Bot) registerCommands() {
	cmds := []*command{
		{name: "help", ttl: helpTTL, run: b.cmdHelp},
		{name: "remove", adminOnly: true, ttl: shortTTL, run: b.cmdRemove},
		{name: "roles", ttl: helpTTL, run: b.cmdRoles},

		{name: "movieadd", ttl: shortTTL, run: b.cmdMovieAdd},
		{name: "movielist", ttl: listTTL, run: b.cmdMovieList},
		{name: "watched", adminOnly: true, ttl: shortTTL, run: b.cmdWatched},
		{name: "removemovie", adminOnly: true, ttl: shortTTL, run: b.cmdRemoveMovie},
		{name: "editmovie", adminOnly: true, ttl: shortTTL, run: b.cmdEditMovie},
		{name: "rmovie", ttl: shortTTL, run: b.cmdRandomMovie},
		{name: "moviehelp", ttl: shortTTL, run: b.cmdMovieHelp},

		{name: "serialadd", adminOnly: true, ttl: helpTTL, run: b.cmdSerialAdd},
		{name: "addseason", adminOnly: true, ttl: helpTTL, run: b.cmdAddSeason},
		{name: "addepisode", adminOnly: true, ttl: helpTTL, run: b.cmdAddEpisode},
		{name: "editseason", adminOnly: true, ttl: helpTTL, run: b.cmdEditSeason},
		{name: "watchedepisode", adminOnly: true, ttl: helpTTL, run: b.cmdWatchedEpisode},
		{name: "endseries", adminOnly: true, ttl: helpTTL, run: b.cmdEndSeries},
		{name: "serieslist", ttl: helpTTL, run: b.cmdSeriesList},
		{name: "seriesstatus", ttl: helpTTL, run: b.cmdSeriesStatus},
		{name: "seasonstatus", ttl: helpTTL, run: b.cmdSeasonStatus},
		{name: "series", ttl: helpTTL, run: b.cmdSeries},
		{name: "serialhelp", ttl: helpTTL, run: b.cmdSerialHelp},

		{name: "stat", ttl: helpTTL, run: b.cmdStat},
		{name: "allstat", ttl: listTTL, run: b.cmdAllStat},
		{name: "swear", adminOnly: true, ttl: helpTTL, run: b.cmdSwear},

		{name: "user", adminOnly: true, ttl: minuteTTL, run: b.cmdUser},

		{name: "game", ttl: helpTTL, run: b.cmdGame},
		{name: "galias", adminOnly: true, ttl: helpTTL, run: b.cmdGameAlias},

		{name: "timer", adminOnly: true, ttl: shortTTL, run: b.cmdTimer},

		{name: "bothelp", adminOnly: true, ttl: helpTTL, run: b.cmdBotHelp},
		{name: "botactivity", adminOnly: true, ttl: helpTTL, run: b.cmdBotActivity},
		{name: "botstatus", adminOnly: true, ttl: helpTTL, run: b.cmdBotStatus},
		{name: "botdesc", adminOnly: true, ttl: helpTTL, run: b.cmdBotDesc},
		{name: "botinfo", adminOnly: true, ttl: helpTTL, run: b.cmdBotInfo},
	}
	b.commands = make(map[string]*command, len(cmds))
	for _, c := range cmds {
		b.commands[c.name] = c
	}
}

// MessageCreate handles incoming Discord messages: clip channel policing,
// command dispatch, and message statistics for everything that is not a command.
func (b *Bot) MessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Message == nil || m.Author == nil || m.Author.Bot {
		return
	}
	b.logDebug("received message", "author_id", m.Author.ID, "channel_id", m.ChannelID, "guild_id", m.GuildID, "message_id", m.ID)

	if b.cfg.ClipChannelID != "" && m.ChannelID == b.cfg.ClipChannelID {
		b.handleClip(m.Message)
	}

	if r, ok := b.parseCommand(m.Message); ok {
		if cmd, found := b.commands[r.name]; found {
			b.dispatch(cmd, r)
			return
		}
	}
	b.trackMessage(m.Message)
}

func (b *Bot) dispatch(cmd *command, r *request) {
	if cmd.adminOnly && !b.isAdmin(r.msg.Author.ID) {
		b.logPermissionErrorOnce(r.msg.ChannelID, r.msg.Author.ID, cmd.name)
		b.replyTransient(r.msg, cmd.ttl, adminOnlyReply)
		return
	}
	b.logDebug("running command", "command", cmd.name, "user_id", r.msg.Author.ID, "channel_id", r.msg.ChannelID)
	cmd.run(r)
}

// parseCommand splits a message that starts with the command prefix or a
// mention of the bot. The command word is lower-cased.
func (b *Bot) parseCommand(m *discordgo.Message) (*request, bool) {
	content := strings.TrimSpace(m.Content)
	var body string
	switch {
	case b.cfg.Prefix != "" && strings.HasPrefix(content, b.cfg.Prefix):
		body = content[len(b.cfg.Prefix):]
	case b.self() != "" && isBotMentionPrefix(content, b.self()):
		body = stripBotMentionPrefix(content, b.self())
	default:
		return nil, false
	}
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return nil, false
	}
	name := fields[0]
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimLeft(body, " \t\n"), name))
	return &request{msg: m, name: strings.ToLower(name), args: fields[1:], rest: rest}, true
}

// isBotMentionPrefix returns true if content (after trimming leading/trailing space)
// starts with the bot's mention. Discord format is <@USER_ID> or <@!USER_ID>.
func isBotMentionPrefix(content, botID string) bool {
	trimmed := strings.TrimSpace(content)
	return strings.HasPrefix(trimmed, "<@"+botID+">") || strings.HasPrefix(trimmed, "<@!"+botID+">")
}

// stripBotMentionPrefix removes the bot mention prefix from content and returns the rest.
func stripBotMentionPrefix(content, botID string) string {
	trimmed := strings.TrimSpace(content)
	for _, prefix := range []string{"<@!" + botID + ">", "<@" + botID + ">"} {
		if strings.HasPrefix(trimmed, prefix) {
			return strings.TrimSpace(trimmed[len(prefix):])
		}
	}
	return trimmed
}

var (
	userRefRe = regexp.MustCompile(`^(?:<@!?(\d{17,20})>|(\d{17,20}))$`)
	quotedRe  = regexp.MustCompile(`"([^"]+)"`)
)

// parseUserRef accepts a raw snowflake or a user mention.
func parseUserRef(arg string) (string, bool) {
	match := userRefRe.FindStringSubmatch(strings.TrimSpace(arg))
	if match == nil {
		return "", false
	}
	if match[1] != "" {
		return match[1], true
	}
	return match[2], true
}

// quotedArgs returns every "double quoted" chunk of s.
func quotedArgs(s string) []string {
	var out []string
	for _, m := range quotedRe.FindAllStringSubmatch(s, -1) {
		out = append(out, m[1])
	}
	return out
}

// intArgs parses the first n args as positive integers.
func intArgs(args []string, n int) ([]int, bool) {
	if len(args) < n {
		return nil, false
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		v, err := strconv.Atoi(args[i])
		if err != nil || v < 1 {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}
