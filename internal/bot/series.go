package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/warden-bot/internal/store"
	"github.com/pkg/errors"
)

const seriesEmbedTTL = 24 * time.Hour

// seriesEmbed is a live !series embed whose ✅ reaction advances the next episode.
type seriesEmbed struct {
	seriesID uint
	season   int
	episode  int
}

func (b *Bot) logSeriesAction(action, title, details string) {
	line := fmt.Sprintf("Admin %s \"%s\" %s", action, title, details)
	b.logInfo("series: "+line)
	b.debug(line)
}

// seriesByArg loads the series named by args[0], replying on failure.
func (b *Bot) seriesByArg(r *request, id int) (*store.Series, bool) {
	series, err := b.store.SeriesByID(b.ctx, uint(id))
	if errors.Is(err, store.ErrNotFound) {
		b.replyTransient(r.msg, helpTTL, "Series not found.")
		return nil, false
	}
	if err != nil {
		b.logError("loading series failed", "series_id", id, "error", err)
		b.replyTransient(r.msg, helpTTL, "Could not load the series.")
		return nil, false
	}
	return series, true
}

func (b *Bot) seriesUsage(r *request, usage string) {
	b.replyTransient(r.msg, helpTTL, "Usage: `"+b.cfg.Prefix+usage+"`")
}

func (b *Bot) seriesFailed(r *request, what string, err error) {
	b.logError(what+" failed", "error", err)
	b.replyTransient(r.msg, helpTTL, "Something went wrong, please try again.")
}

// parseSeasonCounts reads "7,13,13" (spaces allowed) into per-season episode counts.
func parseSeasonCounts(s string) ([]int, bool) {
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return nil, false
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, false
		}
		out = append(out, n)
	}
	return out, len(out) > 0
}

func (b *Bot) cmdSerialAdd(r *request) {
	titles := quotedArgs(r.rest)
	if len(titles) == 0 {
		b.replyTransient(r.msg, helpTTL, fmt.Sprintf("Please provide a series title in quotes, e.g., `%sserialadd \"Breaking Bad\" 7,13,13,13,16`.", b.cfg.Prefix))
		return
	}
	title := titles[0]
	after := r.rest[strings.LastIndex(r.rest, "\"")+1:]
	counts, ok := parseSeasonCounts(after)
	if !ok {
		b.seriesUsage(r, "serialadd \"<Series Title>\" <episodes_per_season>")
		return
	}
	series, err := b.store.AddSeries(b.ctx, title, r.msg.Author.ID, counts)
	if err != nil {
		b.seriesFailed(r, "adding series", err)
		return
	}
	parts := make([]string, len(counts))
	for i, n := range counts {
		parts[i] = strconv.Itoa(n)
	}
	b.logSeriesAction("added", title, "with seasons: "+strings.Join(parts, ", "))
	b.replyTransient(r.msg, helpTTL, fmt.Sprintf("Added series \"%s\" with ID %d.", title, series.ID))
}

func (b *Bot) cmdAddSeason(r *request) {
	n, ok := intArgs(r.args, 2)
	if !ok {
		b.seriesUsage(r, "addseason <series_id> <number_of_episodes>")
		return
	}
	series, ok := b.seriesByArg(r, n[0])
	if !ok {
		return
	}
	season, err := b.store.AddSeason(b.ctx, series.ID, n[1])
	if err != nil {
		b.seriesFailed(r, "adding season", err)
		return
	}
	b.logSeriesAction("added", series.Title, fmt.Sprintf("season %d with %d episodes", season, n[1]))
	b.replyTransient(r.msg, helpTTL, fmt.Sprintf("Added season %d with %d episodes to \"%s\".", season, n[1], series.Title))
}

func (b *Bot) cmdAddEpisode(r *request) {
	n, ok := intArgs(r.args, 2)
	if !ok {
		b.seriesUsage(r, "addepisode <series_id> <season_number>")
		return
	}
	series, ok := b.seriesByArg(r, n[0])
	if !ok {
		return
	}
	episode, err := b.store.AddEpisode(b.ctx, series.ID, n[1])
	if err != nil {
		b.seriesFailed(r, "adding episode", err)
		return
	}
	b.logSeriesAction("added", series.Title, fmt.Sprintf("episode %d to season %d", episode, n[1]))
	b.replyTransient(r.msg, helpTTL, fmt.Sprintf("Added episode %d to season %d of \"%s\".", episode, n[1], series.Title))
}

func (b *Bot) cmdEditSeason(r *request) {
	n, ok := intArgs(r.args, 3)
	if !ok {
		b.seriesUsage(r, "editseason <series_id> <season_number> <new_episode_count>")
		return
	}
	series, ok := b.seriesByArg(r, n[0])
	if !ok {
		return
	}
	if err := b.store.EditSeasonEpisodes(b.ctx, series.ID, n[1], n[2]); err != nil {
		b.seriesFailed(r, "editing season", err)
		return
	}
	b.logSeriesAction("updated", series.Title, fmt.Sprintf("season %d to have %d episodes", n[1], n[2]))
	b.replyTransient(r.msg, helpTTL, fmt.Sprintf("Updated season %d of \"%s\" to have %d episodes.", n[1], series.Title, n[2]))
}

func (b *Bot) cmdWatchedEpisode(r *request) {
	n, ok := intArgs(r.args, 3)
	if !ok {
		b.seriesUsage(r, "watchedepisode <series_id> <season_number> <episode_number>")
		return
	}
	series, ok := b.seriesByArg(r, n[0])
	if !ok {
		return
	}
	err := b.store.MarkEpisodeWatched(b.ctx, series.ID, n[1], n[2], b.now())
	if errors.Is(err, store.ErrNotFound) {
		b.replyTransient(r.msg, helpTTL, "Episode not found.")
		return
	}
	if err != nil {
		b.seriesFailed(r, "marking episode watched", err)
		return
	}
	b.logSeriesAction("marked", series.Title, fmt.Sprintf("S%dE%d as watched manually", n[1], n[2]))
	b.replyTransient(r.msg, helpTTL, fmt.Sprintf("Marked \"%s\" S%dE%d as watched.", series.Title, n[1], n[2]))
}

func (b *Bot) cmdEndSeries(r *request) {
	n, ok := intArgs(r.args, 1)
	if !ok {
		b.seriesUsage(r, "endseries <series_id>")
		return
	}
	series, ok := b.seriesByArg(r, n[0])
	if !ok {
		return
	}
	if err := b.store.EndSeries(b.ctx, series.ID); err != nil {
		b.seriesFailed(r, "ending series", err)
		return
	}
	b.logSeriesAction("ended", series.Title, "and removed it from the list")
	b.replyTransient(r.msg, helpTTL, fmt.Sprintf("Series \"%s\" ended.", series.Title))
}

func (b *Bot) cmdSeriesList(r *request) {
	ss, err := b.store.ActiveSeries(b.ctx)
	if err != nil {
		b.seriesFailed(r, "listing series", err)
		return
	}
	if len(ss) == 0 {
		b.replyTransient(r.msg, helpTTL, "No series available.")
		return
	}
	var sb strings.Builder
	for _, s := range ss {
		fmt.Fprintf(&sb, "ID %d. %s\n", s.ID, s.Title)
	}
	b.replyEmbedTransient(r.msg, helpTTL, &discordgo.MessageEmbed{
		Title:       "📺 Series List",
		Description: sb.String(),
		Color:       embedColor,
	})
}

func (b *Bot) cmdSeriesStatus(r *request) {
	n, ok := intArgs(r.args, 1)
	if !ok {
		b.seriesUsage(r, "seriesstatus <series_id>")
		return
	}
	series, ok := b.seriesByArg(r, n[0])
	if !ok {
		return
	}
	eps, err := b.store.EpisodesBySeries(b.ctx, series.ID)
	if err != nil {
		b.seriesFailed(r, "listing episodes", err)
		return
	}
	var sb strings.Builder
	for _, p := range store.Progress(eps) {
		fmt.Fprintf(&sb, "Season %d: %d/%d watched\n", p.Season, p.Watched, p.Total)
	}
	if sb.Len() == 0 {
		sb.WriteString("No episodes yet.")
	}
	b.replyEmbedTransient(r.msg, helpTTL, &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("**%s (ID: %d)**", series.Title, series.ID),
		Description: sb.String(),
		Color:       embedColor,
	})
}

func (b *Bot) cmdSeasonStatus(r *request) {
	n, ok := intArgs(r.args, 2)
	if !ok {
		b.seriesUsage(r, "seasonstatus <series_id> <season_number>")
		return
	}
	series, ok := b.seriesByArg(r, n[0])
	if !ok {
		return
	}
	eps, err := b.store.EpisodesBySeason(b.ctx, series.ID, n[1])
	if err != nil {
		b.seriesFailed(r, "listing season", err)
		return
	}
	if len(eps) == 0 {
		b.replyTransient(r.msg, helpTTL, "Season not found.")
		return
	}
	var sb strings.Builder
	for _, ep := range eps {
		status := "Not watched"
		if ep.Watched && ep.WatchedAt != nil {
			status = "Watched on " + ep.WatchedAt.Format("2006-01-02")
		} else if ep.Watched {
			status = "Watched"
		}
		fmt.Fprintf(&sb, "Episode %d: %s\n", ep.EpisodeNumber, status)
	}
	b.replyEmbedTransient(r.msg, helpTTL, &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("**%s - Season %d**", series.Title, n[1]),
		Description: sb.String(),
		Color:       embedColor,
	})
}

// nextEpisode returns the first unwatched episode, or nil once everything is watched.
func (b *Bot) nextEpisode(seriesID uint) (*store.Episode, error) {
	ep, err := b.store.NextUnwatchedEpisode(b.ctx, seriesID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return ep, err
}

func seriesProgressEmbed(series *store.Series, next *store.Episode) *discordgo.MessageEmbed {
	desc := "All episodes have been watched."
	if next != nil {
		desc = fmt.Sprintf("Current episode: Season %d, Episode %d", next.SeasonNumber, next.EpisodeNumber)
	}
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("**%s (ID: %d)**", series.Title, series.ID),
		Description: desc,
		Color:       embedColor,
	}
}

func (b *Bot) cmdSeries(r *request) {
	n, ok := intArgs(r.args, 1)
	if !ok {
		b.seriesUsage(r, "series <series_id>")
		return
	}
	series, ok := b.seriesByArg(r, n[0])
	if !ok {
		return
	}
	next, err := b.nextEpisode(series.ID)
	if err != nil {
		b.seriesFailed(r, "finding next episode", err)
		return
	}
	b.scheduleDeletion(r.msg.ChannelID, r.msg.ID, helpTTL)
	msg := b.sendEmbed(r.msg.ChannelID, seriesProgressEmbed(series, next))
	if msg == nil {
		return
	}
	b.scheduleDeletion(msg.ChannelID, msg.ID, seriesEmbedTTL)
	if next == nil {
		return
	}
	if err := b.api.MessageReactionAdd(msg.ChannelID, msg.ID, approveEmoji); err != nil {
		b.logWarn("adding series reaction failed", "message_id", msg.ID, "error", err)
	}
	b.seriesMu.Lock()
	b.seriesEmbeds[msg.ID] = &seriesEmbed{seriesID: series.ID, season: next.SeasonNumber, episode: next.EpisodeNumber}
	b.seriesMu.Unlock()
}

func (b *Bot) cmdSerialHelp(r *request) {
	p := b.cfg.Prefix
	b.replyEmbedTransient(r.msg, helpTTL, &discordgo.MessageEmbed{
		Title: "📺 Series Commands Help",
		Color: embedColor,
		Description: "**Admin Commands:**\n" +
			"`" + p + "serialadd \"<Series Title>\" <episodes_per_season>` - Add a new series with comma-separated episode counts.\n" +
			"`" + p + "addseason <series_id> <number_of_episodes>` - Add a new season.\n" +
			"`" + p + "addepisode <series_id> <season_number>` - Add an episode to a season.\n" +
			"`" + p + "editseason <series_id> <season_number> <new_episode_count>` - Edit episode count.\n" +
			"`" + p + "watchedepisode <series_id> <season_number> <episode_number>` - Manually mark an episode as watched.\n" +
			"`" + p + "endseries <series_id>` - Hide a finished series from the list.\n" +
			"\n**User Commands:**\n" +
			"`" + p + "series <series_id>` - View series and mark episodes as watched with ✅ reaction.\n" +
			"`" + p + "serieslist` - List all series.\n" +
			"`" + p + "seriesstatus <series_id>` - Show series progress.\n" +
			"`" + p + "seasonstatus <series_id> <season_number>` - Show season details.\n" +
			"`" + p + "serialhelp` - Show this help.",
	})
}

// handleSeriesReaction advances a tracked !series embed when an admin reacts ✅.
// It reports whether the message was a tracked embed.
func (b *Bot) handleSeriesReaction(r *discordgo.MessageReaction) bool {
	b.seriesMu.Lock()
	tracked, ok := b.seriesEmbeds[r.MessageID]
	var cur seriesEmbed
	if ok {
		cur = *tracked
	}
	b.seriesMu.Unlock()
	if !ok {
		return false
	}
	if r.UserID == b.self() || r.Emoji.Name != approveEmoji || !b.isAdmin(r.UserID) {
		return true
	}

	if err := b.store.MarkEpisodeWatched(b.ctx, cur.seriesID, cur.season, cur.episode, b.now()); err != nil {
		b.logError("marking episode watched failed", "series_id", cur.seriesID, "error", err)
		return true
	}
	series, err := b.store.SeriesByID(b.ctx, cur.seriesID)
	if err != nil {
		b.logError("loading series failed", "series_id", cur.seriesID, "error", err)
		return true
	}
	b.logSeriesAction("marked", series.Title, fmt.Sprintf("S%dE%d as watched via reaction", cur.season, cur.episode))

	next, err := b.nextEpisode(series.ID)
	if err != nil {
		b.logError("finding next episode failed", "series_id", series.ID, "error", err)
		return true
	}
	edit := discordgo.NewMessageEdit(r.ChannelID, r.MessageID).SetEmbeds([]*discordgo.MessageEmbed{seriesProgressEmbed(series, next)})
	if _, err := b.api.ChannelMessageEditComplex(edit); err != nil {
		b.logWarn("updating series embed failed", "message_id", r.MessageID, "error", err)
	}

	b.seriesMu.Lock()
	if next != nil {
		b.seriesEmbeds[r.MessageID] = &seriesEmbed{seriesID: series.ID, season: next.SeasonNumber, episode: next.EpisodeNumber}
	} else {
		delete(b.seriesEmbeds, r.MessageID)
	}
	b.seriesMu.Unlock()

	if err := b.api.MessageReactionRemove(r.ChannelID, r.MessageID, approveEmoji, r.UserID); err != nil {
		b.logDebug("removing admin reaction failed", "message_id", r.MessageID, "error", err)
	}
	return true
}
