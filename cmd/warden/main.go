package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/warden-bot/internal/bot"
	"github.com/keshon/warden-bot/internal/config"
	"github.com/keshon/warden-bot/internal/logger"
	"github.com/keshon/warden-bot/internal/status"
	"github.com/keshon/warden-bot/internal/store"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// discordgoAdapter adapts discordgo.Session to the bot.API interface.
type discordgoAdapter struct {
	session *discordgo.Session
}

func (a *discordgoAdapter) ChannelMessage(channelID, messageID string) (*discordgo.Message, error) {
	return a.session.ChannelMessage(channelID, messageID)
}

func (a *discordgoAdapter) ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string) ([]*discordgo.Message, error) {
	return a.session.ChannelMessages(channelID, limit, beforeID, afterID, aroundID)
}

func (a *discordgoAdapter) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend) (*discordgo.Message, error) {
	return a.session.ChannelMessageSendComplex(channelID, data)
}

func (a *discordgoAdapter) ChannelMessageEditComplex(m *discordgo.MessageEdit) (*discordgo.Message, error) {
	return a.session.ChannelMessageEditComplex(m)
}

func (a *discordgoAdapter) ChannelMessageDelete(channelID, msgID string) error {
	return a.session.ChannelMessageDelete(channelID, msgID)
}

func (a *discordgoAdapter) ChannelMessagesBulkDelete(channelID string, messages []string) error {
	return a.session.ChannelMessagesBulkDelete(channelID, messages)
}

func (a *discordgoAdapter) MessageReactionAdd(channelID, messageID, emojiID string) error {
	return a.session.MessageReactionAdd(channelID, messageID, emojiID)
}

func (a *discordgoAdapter) MessageReactionRemove(channelID, messageID, emojiID, userID string) error {
	return a.session.MessageReactionRemove(channelID, messageID, emojiID, userID)
}

func (a *discordgoAdapter) GuildMember(guildID, userID string) (*discordgo.Member, error) {
	return a.session.GuildMember(guildID, userID)
}

func (a *discordgoAdapter) GuildMemberRoleAdd(guildID, userID, roleID string) error {
	return a.session.GuildMemberRoleAdd(guildID, userID, roleID)
}

func (a *discordgoAdapter) GuildMemberRoleRemove(guildID, userID, roleID string) error {
	return a.session.GuildMemberRoleRemove(guildID, userID, roleID)
}

func (a *discordgoAdapter) User(userID string) (*discordgo.User, error) {
	return a.session.User(userID)
}

func (a *discordgoAdapter) UpdateStatusComplex(usd discordgo.UpdateStatusData) error {
	return a.session.UpdateStatusComplex(usd)
}

const intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildBans |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsMessageContent |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentsGuildPresences |
	discordgo.IntentsGuildVoiceStates

// discordgoLogger routes the library's own log lines through l.
func discordgoLogger(l logger.Logger) func(msgL, caller int, format string, a ...interface{}) {
	return func(msgL, _ int, format string, a ...interface{}) {
		msg := fmt.Sprintf(format, a...)
		switch msgL {
		case discordgo.LogError:
			l.Error(msg, "component", "discordgo")
		case discordgo.LogWarning:
			l.Warn(msg, "component", "discordgo")
		case discordgo.LogInformational:
			l.Info(msg, "component", "discordgo")
		default:
			l.Debug(msg, "component", "discordgo")
		}
	}
}

func main() {
	envPath := flag.String("env", "", "Path to .env file (empty = load from current working directory)")
	configPath := flag.String("config", "", "Path to the settings file (empty = config.yaml in the working directory, if present)")
	dbPath := flag.String("db", "", "Path to the SQLite database file (overrides DB_PATH)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	logFile := flag.String("log-file", "", "Optional path to log file (stdout/stderr if empty); rotated by size with lumberjack")
	flag.Parse()

	// Build logger output (stderr or file with size-based rotation)
	var logOutput io.Writer = os.Stderr
	if *logFile != "" {
		logOutput = &lumberjack.Logger{
			Filename:   *logFile,
			MaxSize:    100, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
	}

	l := logger.New(logger.Config{
		Level:  logger.ParseLevel(*logLevel),
		Format: *logFormat,
		Output: logOutput,
	})

	cfg, err := config.Load(*envPath, *configPath)
	if err != nil {
		log.Fatal("Error loading config: ", err)
	}

	// CLI flag overrides env/config value
	if *dbPath != "" {
		cfg.DB.Path = *dbPath
	}

	l.Info("starting", "db_driver", cfg.DB.Driver, "log_level", *logLevel, "log_format", *logFormat, "prefix", cfg.Prefix)

	gormLog := gormlogger.New(logger.StdLogger(l, logger.LevelWarn), gormlogger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
	db, err := store.Open(cfg.DB.Driver, cfg.DB.DSN(), &gorm.Config{Logger: gormLog})
	if err != nil {
		log.Fatal("Error opening database: ", err)
	}
	if err := store.Migrate(db); err != nil {
		log.Fatal("Error migrating database: ", err)
	}
	st := store.New(db)

	discordgo.Logger = discordgoLogger(l)
	dg, err := discordgo.New("Bot " + cfg.DiscordKey)
	if err != nil {
		log.Fatal("Error creating Discord session: ", err)
	}
	dg.Identify.Intents = intents
	// Keep recent messages so delete and edit events carry the previous content.
	dg.State.MaxMessageCount = 200

	b := bot.NewBot(st, &discordgoAdapter{session: dg}, cfg)
	b.SetLogger(l)
	l.SetMirror(logger.LevelWarn, func(_ logger.Level, line string) { b.MirrorLog(line) })

	dg.AddHandler(b.Ready)
	dg.AddHandler(b.MessageCreate)
	dg.AddHandler(b.MessageDelete)
	dg.AddHandler(b.MessageUpdate)
	dg.AddHandler(b.MessageReactionAdd)
	dg.AddHandler(b.MessageReactionRemove)
	dg.AddHandler(b.GuildMemberAdd)
	dg.AddHandler(b.GuildMemberRemove)
	dg.AddHandler(b.GuildMemberUpdate)
	dg.AddHandler(b.GuildBanAdd)
	dg.AddHandler(b.PresenceUpdate)
	dg.AddHandler(b.VoiceStateUpdate)

	if err := dg.Open(); err != nil {
		log.Fatal("Error opening Discord session: ", err)
	}

	var statusSrv *status.Server
	if cfg.StatusAddr != "" {
		statusSrv = status.NewServer(cfg.StatusAddr, st, l)
		statusSrv.Start()
		l.Info("status endpoint listening", "addr", cfg.StatusAddr)
	}

	l.Info("bot running", "sweep_interval", cfg.SweepInterval.String(), "admins", len(cfg.AdminIDs))
	fmt.Println("Bot is now running. Press CTRL+C to exit.")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	l.Info("shutting down")
	l.SetMirror(logger.LevelWarn, nil)
	if statusSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := statusSrv.Shutdown(ctx); err != nil {
			l.Warn("status server shutdown failed", "error", err)
		}
		cancel()
	}
	b.Stop()
	if err := dg.Close(); err != nil {
		l.Warn("closing Discord session failed", "error", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
