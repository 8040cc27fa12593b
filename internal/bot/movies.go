package bot

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/warden-bot/internal/store"
	"github.com/pkg/errors"
)

const (
	approveEmoji = "✅"
	rejectEmoji  = "❎"

	defaultMovieCooldownDays = 182
)

// movieSuggestion is a prompt in the debug channel waiting for an admin decision.
type movieSuggestion struct {
	userID    string
	movieID   uint
	channelID string // channel of the original command
	messageID string // the original command message
	isRandom  bool
}

func (b *Bot) movieCooldown() time.Duration {
	days := b.cfg.MovieCooldownDays
	if days <= 0 {
		days = defaultMovieCooldownDays
	}
	return time.Duration(days) * 24 * time.Hour
}

func (b *Bot) trackSuggestion(promptID string, s *movieSuggestion) {
	b.suggestMu.Lock()
	b.suggestions[promptID] = s
	b.suggestMu.Unlock()
}

// takeSuggestion removes and returns the suggestion for promptID.
func (b *Bot) takeSuggestion(promptID string) *movieSuggestion {
	b.suggestMu.Lock()
	defer b.suggestMu.Unlock()
	s := b.suggestions[promptID]
	delete(b.suggestions, promptID)
	return s
}

func (b *Bot) hasSuggestion(promptID string) bool {
	b.suggestMu.Lock()
	defer b.suggestMu.Unlock()
	_, ok := b.suggestions[promptID]
	return ok
}

func (b *Bot) postPrompt(content string) *discordgo.Message {
	prompt := b.debug(content)
	if prompt == nil {
		return nil
	}
	for _, e := range []string{approveEmoji, rejectEmoji} {
		if err := b.api.MessageReactionAdd(prompt.ChannelID, prompt.ID, e); err != nil {
			b.logWarn("adding prompt reaction failed", "message_id", prompt.ID, "emoji", e, "error", err)
		}
	}
	return prompt
}

func (b *Bot) cmdMovieAdd(r *request) {
	m := r.msg
	title := strings.TrimSpace(r.rest)
	if title == "" {
		b.replyTransient(m, shortTTL, fmt.Sprintf("Usage: `%smovieadd <movie name>`", b.cfg.Prefix))
		return
	}
	b.scheduleDeletion(m.ChannelID, m.ID, shortTTL)

	if _, err := b.store.MovieByTitle(b.ctx, title); err == nil {
		b.debug(fmt.Sprintf("%s tried to add \"%s\", but it is already in the list.", m.Author.Mention(), title))
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		b.logError("looking up movie failed", "title", title, "error", err)
		return
	}

	movie, err := b.store.AddMovie(b.ctx, title, m.Author.ID)
	if err != nil {
		b.logError("adding movie failed", "title", title, "error", err)
		return
	}
	prompt := b.postPrompt(fmt.Sprintf("%s suggests adding \"%s\" to the movie list.", m.Author.Mention(), title))
	if prompt == nil {
		return
	}
	b.trackSuggestion(prompt.ID, &movieSuggestion{
		userID:    m.Author.ID,
		movieID:   movie.ID,
		channelID: m.ChannelID,
		messageID: m.ID,
	})
	b.logInfo("movie suggested", "movie_id", movie.ID, "title", title, "user_id", m.Author.ID)
}

// movieListLines renders movies alphabetically; removed ones are struck through.
func movieListLines(ms []store.Movie) []string {
	sort.SliceStable(ms, func(i, j int) bool {
		return strings.ToLower(ms[i].Title) < strings.ToLower(ms[j].Title)
	})
	lines := make([]string, 0, len(ms))
	for _, mv := range ms {
		watched := "Not watched"
		if mv.LastWatched != nil {
			watched = mv.LastWatched.Format("2006-01-02")
		}
		title := mv.Title
		if mv.IsRemovedFromPool {
			title = "~~" + title + "~~"
		}
		line := fmt.Sprintf("%d. %s (Last watched: %s)", mv.ID, title, watched)
		if mv.Pending {
			line += " (pending approval)"
		}
		lines = append(lines, line)
	}
	return lines
}

func (b *Bot) cmdMovieList(r *request) {
	ms, err := b.store.Movies(b.ctx)
	if err != nil {
		b.logError("listing movies failed", "error", err)
		b.replyTransient(r.msg, shortTTL, "Could not load the movie list.")
		return
	}
	if len(ms) == 0 {
		b.replyTransient(r.msg, listTTL, "The movie list is empty.")
		return
	}
	b.replyTransient(r.msg, listTTL, "**Movie list:**\n"+strings.Join(movieListLines(ms), "\n"))
}

// movieArg parses the movie id argument and replies with usage on failure.
func (b *Bot) movieArg(r *request, usage string) (uint, bool) {
	if len(r.args) > 0 {
		if id, err := strconv.ParseUint(r.args[0], 10, 32); err == nil && id > 0 {
			return uint(id), true
		}
	}
	b.replyTransient(r.msg, shortTTL, "Usage: `"+b.cfg.Prefix+usage+"`")
	return 0, false
}

func (b *Bot) movieUpdateFailed(r *request, id uint, err error) {
	if errors.Is(err, store.ErrNotFound) {
		b.replyTransient(r.msg, shortTTL, fmt.Sprintf("Movie with ID %d not found.", id))
		return
	}
	b.logError("updating movie failed", "movie_id", id, "error", err)
	b.replyTransient(r.msg, shortTTL, "Could not update the movie.")
}

func (b *Bot) cmdWatched(r *request) {
	id, ok := b.movieArg(r, "watched <movie ID>")
	if !ok {
		return
	}
	if err := b.store.MarkMovieWatched(b.ctx, id, b.now()); err != nil {
		b.movieUpdateFailed(r, id, err)
		return
	}
	b.replyTransient(r.msg, shortTTL, fmt.Sprintf("Movie with ID %d marked as watched.", id))
}

func (b *Bot) cmdRemoveMovie(r *request) {
	id, ok := b.movieArg(r, "removemovie <movie ID>")
	if !ok {
		return
	}
	if err := b.store.RemoveMovieFromPool(b.ctx, id); err != nil {
		b.movieUpdateFailed(r, id, err)
		return
	}
	b.replyTransient(r.msg, shortTTL, fmt.Sprintf("Movie with ID %d removed from the random pool.", id))
}

func (b *Bot) cmdEditMovie(r *request) {
	usage := "editmovie <movie ID> <new title>"
	id, ok := b.movieArg(r, usage)
	if !ok {
		return
	}
	title := strings.TrimSpace(strings.TrimPrefix(r.rest, r.args[0]))
	if title == "" {
		b.replyTransient(r.msg, shortTTL, "Usage: `"+b.cfg.Prefix+usage+"`")
		return
	}
	if err := b.store.EditMovieTitle(b.ctx, id, title); err != nil {
		b.movieUpdateFailed(r, id, err)
		return
	}
	b.replyTransient(r.msg, shortTTL, fmt.Sprintf("Movie with ID %d renamed to \"%s\".", id, title))
}

func (b *Bot) cmdRandomMovie(r *request) {
	m := r.msg
	movie, err := b.store.RandomMovie(b.ctx, b.movieCooldown(), b.now(), b.pick)
	if errors.Is(err, store.ErrNotFound) {
		b.replyTransient(m, shortTTL, "No movies are available for a random pick right now.")
		return
	}
	if err != nil {
		b.logError("picking random movie failed", "error", err)
		b.replyTransient(m, shortTTL, "Could not pick a movie.")
		return
	}
	b.scheduleDeletion(m.ChannelID, m.ID, shortTTL)
	prompt := b.postPrompt(fmt.Sprintf("Random movie suggestion: \"%s\" (ID: %d). Approve or reject?", movie.Title, movie.ID))
	if prompt == nil {
		return
	}
	b.trackSuggestion(prompt.ID, &movieSuggestion{
		userID:    m.Author.ID,
		movieID:   movie.ID,
		channelID: m.ChannelID,
		messageID: m.ID,
		isRandom:  true,
	})
}

func (b *Bot) cmdMovieHelp(r *request) {
	p := b.cfg.Prefix
	b.replyEmbedTransient(r.msg, shortTTL, &discordgo.MessageEmbed{
		Title: "Movie commands",
		Color: embedColor,
		Description: strings.Join([]string{
			"`" + p + "movieadd <name>`: Suggest a movie; an admin approves it in the log channel.",
			"`" + p + "movielist`: Show all movies with their IDs.",
			"`" + p + "rmovie`: Pick a random movie not watched in the last " + strconv.Itoa(int(b.movieCooldown().Hours()/24)) + " days.",
			"`" + p + "watched <id>` (admin): Mark a movie as watched.",
			"`" + p + "removemovie <id>` (admin): Remove a movie from the random pool.",
			"`" + p + "editmovie <id> <title>` (admin): Rename a movie.",
		}, "\n"),
	})
}

// handleMovieReaction resolves suggestion prompts in the debug channel.
// It reports whether the reaction belonged to a prompt.
func (b *Bot) handleMovieReaction(r *discordgo.MessageReaction) bool {
	if r.ChannelID != b.cfg.DebugChannelID || !b.hasSuggestion(r.MessageID) {
		return false
	}
	if r.UserID == b.self() {
		return true
	}
	emoji := r.Emoji.Name
	if !b.isAdmin(r.UserID) || (emoji != approveEmoji && emoji != rejectEmoji) {
		if err := b.api.MessageReactionRemove(r.ChannelID, r.MessageID, r.Emoji.APIName(), r.UserID); err != nil {
			b.logWarn("removing reaction failed", "message_id", r.MessageID, "user_id", r.UserID, "error", err)
		}
		return true
	}

	s := b.takeSuggestion(r.MessageID)
	if s == nil {
		return true
	}
	movie, err := b.store.MovieByID(b.ctx, s.movieID)
	if err != nil {
		b.logError("loading suggested movie failed", "movie_id", s.movieID, "error", err)
		return true
	}
	if s.isRandom {
		b.resolveRandomPick(s, movie, emoji == approveEmoji)
	} else {
		b.resolveSuggestion(r, s, movie, emoji == approveEmoji)
	}
	return true
}

func (b *Bot) resolveSuggestion(r *discordgo.MessageReaction, s *movieSuggestion, movie *store.Movie, approved bool) {
	var (
		err    error
		mark   = rejectEmoji
		suffix = " - Rejected"
	)
	if approved {
		err = b.store.ApproveMovie(b.ctx, movie.ID)
		mark, suffix = approveEmoji, " - Approved"
	} else {
		err = b.store.DeleteMovie(b.ctx, movie.ID)
	}
	if err != nil {
		b.logError("resolving movie suggestion failed", "movie_id", movie.ID, "approved", approved, "error", err)
		return
	}
	if err := b.api.MessageReactionAdd(s.channelID, s.messageID, mark); err != nil {
		b.logDebug("reacting to suggestion failed", "message_id", s.messageID, "error", err)
	}
	if prompt, err := b.api.ChannelMessage(r.ChannelID, r.MessageID); err == nil {
		content := truncate(prompt.Content+suffix, maxMessageLen)
		edit := discordgo.NewMessageEdit(r.ChannelID, r.MessageID).SetContent(content)
		if _, err := b.api.ChannelMessageEditComplex(edit); err != nil {
			b.logWarn("editing suggestion prompt failed", "message_id", r.MessageID, "error", err)
		}
	}
	b.logInfo("movie suggestion resolved", "movie_id", movie.ID, "title", movie.Title, "approved", approved, "admin_id", r.UserID)
}

func (b *Bot) resolveRandomPick(s *movieSuggestion, movie *store.Movie, approved bool) {
	var content string
	if approved {
		if err := b.store.MarkMovieWatched(b.ctx, movie.ID, b.now()); err != nil {
			b.logError("marking random movie watched failed", "movie_id", movie.ID, "error", err)
			return
		}
		content = fmt.Sprintf("Random movie \"%s\" approved and marked as watched.", movie.Title)
	} else {
		content = fmt.Sprintf("Random movie \"%s\" rejected. It can be picked again.", movie.Title)
	}
	if reply := b.sendChannelMessage(s.channelID, content); reply != nil {
		b.scheduleDeletion(reply.ChannelID, reply.ID, shortTTL)
	}
}
