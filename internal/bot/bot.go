package bot

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/warden-bot/internal/config"
	"github.com/keshon/warden-bot/internal/store"
	"github.com/pkg/errors"
)

// Logger provides leveled logging. If nil, log calls are no-ops.
type Logger interface {
	Debug(msg string, keyvals ...interface{})
	Info(msg string, keyvals ...interface{})
	Warn(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})
}

// API abstracts the Discord calls the bot makes so handlers can be tested
// without a live session.
type API interface {
	ChannelMessage(channelID, messageID string) (*discordgo.Message, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string) ([]*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string) error
	ChannelMessagesBulkDelete(channelID string, messages []string) error
	MessageReactionAdd(channelID, messageID, emojiID string) error
	MessageReactionRemove(channelID, messageID, emojiID, userID string) error
	GuildMember(guildID, userID string) (*discordgo.Member, error)
	GuildMemberRoleAdd(guildID, userID, roleID string) error
	GuildMemberRoleRemove(guildID, userID, roleID string) error
	User(userID string) (*discordgo.User, error)
	UpdateStatusComplex(usd discordgo.UpdateStatusData) error
}

// Bot wires the Discord event handlers to the store.
type Bot struct {
	ctx        context.Context
	cancel     context.CancelFunc
	cancelOnce sync.Once
	sweepOnce  sync.Once
	wg         sync.WaitGroup

	store *store.Store
	api   API
	cfg   *config.Config
	log   Logger

	now     func() time.Time
	pick    func(n int) int
	started time.Time

	admins      map[string]bool
	roleByEmoji map[string]config.RoleReaction
	commands    map[string]*command

	selfMu        sync.RWMutex
	selfID        string
	roleMessageID string

	suggestMu   sync.Mutex
	suggestions map[string]*movieSuggestion // debug channel message id -> suggestion

	seriesMu     sync.Mutex
	seriesEmbeds map[string]*seriesEmbed // embed message id -> tracked series

	sessionMu      sync.Mutex
	voiceSessions  map[string]time.Time
	streamSessions map[string]time.Time
	gameSessions   map[string]string // user id -> standard game name

	swearMu sync.RWMutex
	swears  map[string]bool

	permErrorMu      sync.Mutex
	permErrorLastLog map[string]time.Time // user id -> last rejected admin command log
}

// NewBot creates a Bot backed by st that talks to Discord through api.
func NewBot(st *store.Store, api API, cfg *config.Config) *Bot {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{
		ctx:              ctx,
		cancel:           cancel,
		store:            st,
		api:              api,
		cfg:              cfg,
		now:              time.Now,
		pick:             rand.Intn,
		started:          time.Now(),
		admins:           make(map[string]bool),
		roleByEmoji:      make(map[string]config.RoleReaction),
		suggestions:      make(map[string]*movieSuggestion),
		seriesEmbeds:     make(map[string]*seriesEmbed),
		voiceSessions:    make(map[string]time.Time),
		streamSessions:   make(map[string]time.Time),
		gameSessions:     make(map[string]string),
		swears:           make(map[string]bool),
		permErrorLastLog: make(map[string]time.Time),
	}
	for _, id := range cfg.AdminIDs {
		b.admins[id] = true
	}
	for _, rr := range cfg.ReactionRoles.Roles {
		b.roleByEmoji[rr.EmojiID] = rr
	}
	b.roleMessageID = cfg.ReactionRoles.MessageID
	for _, w := range cfg.SwearWords {
		if c := cleanWord(w); c != "" {
			b.swears[c] = true
		}
	}
	b.registerCommands()
	return b
}

// SetLogger sets the logger. If nil, logging is a no-op.
func (b *Bot) SetLogger(l Logger) {
	b.log = l
}

// Stop cancels the sweeper and waits for it to return.
// It is safe to call multiple times. Use for graceful shutdown.
func (b *Bot) Stop() {
	b.cancelOnce.Do(b.cancel)
	b.wg.Wait()
}

// Ready handles the Discord ready event: it records the bot's own id, loads
// the swear list, restores the saved presence, refreshes the reaction role
// message and starts the deletion sweeper.
func (b *Bot) Ready(_ *discordgo.Session, event *discordgo.Ready) {
	if event.User != nil {
		b.setSelfID(event.User.ID)
		b.logInfo("bot ready", "username", event.User.Username)
	}
	b.loadSwearWords(b.ctx)
	b.restorePresence(b.ctx)
	b.ensureRoleMessage()
	b.StartSweeper()
}

func (b *Bot) setSelfID(id string) {
	b.selfMu.Lock()
	b.selfID = id
	b.selfMu.Unlock()
}

func (b *Bot) self() string {
	b.selfMu.RLock()
	defer b.selfMu.RUnlock()
	return b.selfID
}

func (b *Bot) isAdmin(userID string) bool {
	return b.admins[userID]
}

func (b *Bot) logDebug(msg string, keyvals ...interface{}) {
	if b.log != nil {
		b.log.Debug(msg, keyvals...)
	}
}
func (b *Bot) logInfo(msg string, keyvals ...interface{}) {
	if b.log != nil {
		b.log.Info(msg, keyvals...)
	}
}
func (b *Bot) logWarn(msg string, keyvals ...interface{}) {
	if b.log != nil {
		b.log.Warn(msg, keyvals...)
	}
}
func (b *Bot) logError(msg string, keyvals ...interface{}) {
	if b.log != nil {
		b.log.Error(msg, keyvals...)
	}
}

const permErrorBackoff = 5 * time.Minute

// logPermissionErrorOnce logs a rejected admin command at most once per user per permErrorBackoff.
func (b *Bot) logPermissionErrorOnce(channelID, userID, command string) {
	if b.log == nil {
		return
	}
	b.permErrorMu.Lock()
	last := b.permErrorLastLog[userID]
	now := b.now()
	if now.Sub(last) < permErrorBackoff {
		b.permErrorMu.Unlock()
		return
	}
	b.permErrorLastLog[userID] = now
	b.permErrorMu.Unlock()
	b.log.Warn("admin command rejected", "channel_id", channelID, "user_id", userID, "command", command)
}

// maxMessageLen is the platform limit for message content.
const maxMessageLen = 2000

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// sendChannelMessage sends a message to a channel and logs a warning on failure.
// Uses AllowedMentions with empty Parse to prevent @everyone/@here abuse from user-supplied text.
func (b *Bot) sendChannelMessage(channelID, content string) *discordgo.Message {
	return b.send(channelID, &discordgo.MessageSend{Content: truncate(content, maxMessageLen)})
}

func (b *Bot) sendEmbed(channelID string, embed *discordgo.MessageEmbed) *discordgo.Message {
	return b.send(channelID, &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}})
}

func (b *Bot) send(channelID string, data *discordgo.MessageSend) *discordgo.Message {
	if data.AllowedMentions == nil {
		data.AllowedMentions = &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{},
		}
	}
	msg, err := b.api.ChannelMessageSendComplex(channelID, data)
	if err != nil {
		b.logWarn("failed to send message", "channel_id", channelID, "error", err)
		return nil
	}
	return msg
}

// debug posts content to the debug channel. It returns nil when no debug
// channel is configured or the send failed.
func (b *Bot) debug(content string) *discordgo.Message {
	if b.cfg.DebugChannelID == "" {
		return nil
	}
	return b.sendChannelMessage(b.cfg.DebugChannelID, content)
}

// MirrorLog copies a rendered log line into the debug channel. Failures are
// logged at debug level only, which is below the mirror threshold.
func (b *Bot) MirrorLog(line string) {
	if b.cfg.DebugChannelID == "" {
		return
	}
	_, err := b.api.ChannelMessageSendComplex(b.cfg.DebugChannelID, &discordgo.MessageSend{
		Content:         truncate(line, maxMessageLen),
		AllowedMentions: &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}},
	})
	if err != nil {
		b.logDebug("mirroring log line failed", "error", err)
	}
}

// scheduleDeletion records channelID/messageID for the sweeper to remove after d.
func (b *Bot) scheduleDeletion(channelID, messageID string, d time.Duration) {
	b.scheduleDeletionWithLog(channelID, messageID, d, "")
}

func (b *Bot) scheduleDeletionWithLog(channelID, messageID string, d time.Duration, logMessageID string) {
	if _, err := b.store.ScheduleDeletion(b.ctx, channelID, messageID, b.now().Add(d), logMessageID); err != nil {
		b.logError("scheduling deletion failed", "channel_id", channelID, "message_id", messageID, "error", err)
	}
}

// replyTransient answers m with content and schedules both messages for
// deletion after ttl.
func (b *Bot) replyTransient(m *discordgo.Message, ttl time.Duration, content string) {
	b.replyTransientComplex(m, ttl, &discordgo.MessageSend{Content: truncate(content, maxMessageLen), Reference: m.Reference()})
}

// replyEmbedTransient posts embed in m's channel and schedules both messages
// for deletion after ttl.
func (b *Bot) replyEmbedTransient(m *discordgo.Message, ttl time.Duration, embed *discordgo.MessageEmbed) {
	b.replyTransientComplex(m, ttl, &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}})
}

func (b *Bot) replyTransientComplex(m *discordgo.Message, ttl time.Duration, data *discordgo.MessageSend) {
	b.scheduleDeletion(m.ChannelID, m.ID, ttl)
	if reply := b.send(m.ChannelID, data); reply != nil {
		b.scheduleDeletion(reply.ChannelID, reply.ID, ttl)
	}
}

// deleteMessage deletes a message and treats "Unknown Message" as success.
func (b *Bot) deleteMessage(channelID, messageID string) error {
	err := b.api.ChannelMessageDelete(channelID, messageID)
	if err == nil || restErrorCode(err) == discordgo.ErrCodeUnknownMessage {
		return nil
	}
	return err
}

// restErrorCode returns the Discord JSON error code of err, or 0.
func restErrorCode(err error) int {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Message != nil {
		return rest.Message.Code
	}
	return 0
}

// displayName returns the guild nickname when known, falling back to the
// global name and the username.
func displayName(member *discordgo.Member, user *discordgo.User) string {
	if member != nil && member.Nick != "" {
		return member.Nick
	}
	if user == nil {
		return ""
	}
	if user.GlobalName != "" {
		return user.GlobalName
	}
	return user.Username
}

const embedColor = 0x00b7ff
