package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "?"
	}
}

// Logger provides leveled, optionally structured logging.
type Logger interface {
	Debug(msg string, keyvals ...interface{})
	Info(msg string, keyvals ...interface{})
	Warn(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})
}

// MirrorFunc receives a rendered single-line record. The bot uses it to copy
// warnings and errors into the debug channel.
type MirrorFunc func(level Level, line string)

// Config configures the logger.
type Config struct {
	Level  Level
	Format string // "text" or "json"
	Output io.Writer
	// Component is added as a "component" key to every record when set.
	Component string
}

// Mirrored is a Logger whose warn/error records can be copied to a sink
// installed after construction (the sink usually depends on a live session).
type Mirrored interface {
	Logger
	SetMirror(minLevel Level, fn MirrorFunc)
}

type loggerImpl struct {
	cfg   Config
	mu    sync.Mutex
	now   func() time.Time
	write func(level Level, msg string, keyvals []interface{})

	mirrorMu    sync.RWMutex
	mirror      MirrorFunc
	mirrorLevel Level
}

// New creates a Logger from config. Output defaults to os.Stderr if nil.
func New(cfg Config) Mirrored {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.Format != "json" {
		cfg.Format = "text"
	}
	impl := &loggerImpl{cfg: cfg, now: time.Now}
	if cfg.Format == "json" {
		impl.write = impl.writeJSON
	} else {
		impl.write = impl.writeText
	}
	return impl
}

// SetMirror installs fn for records at or above minLevel. A nil fn disables mirroring.
func (l *loggerImpl) SetMirror(minLevel Level, fn MirrorFunc) {
	l.mirrorMu.Lock()
	l.mirror = fn
	l.mirrorLevel = minLevel
	l.mirrorMu.Unlock()
}

func (l *loggerImpl) Debug(msg string, keyvals ...interface{}) { l.log(LevelDebug, msg, keyvals) }
func (l *loggerImpl) Info(msg string, keyvals ...interface{})  { l.log(LevelInfo, msg, keyvals) }
func (l *loggerImpl) Warn(msg string, keyvals ...interface{})  { l.log(LevelWarn, msg, keyvals) }
func (l *loggerImpl) Error(msg string, keyvals ...interface{}) { l.log(LevelError, msg, keyvals) }

func (l *loggerImpl) log(level Level, msg string, keyvals []interface{}) {
	if level < l.cfg.Level {
		return
	}
	if l.cfg.Component != "" {
		keyvals = append([]interface{}{"component", l.cfg.Component}, keyvals...)
	}
	l.mu.Lock()
	l.write(level, msg, keyvals)
	l.mu.Unlock()

	l.mirrorMu.RLock()
	fn, minLevel := l.mirror, l.mirrorLevel
	l.mirrorMu.RUnlock()
	if fn != nil && level >= minLevel {
		// Mirror outside mu so a sink that logs cannot deadlock.
		fn(level, renderLine(level, msg, keyvals))
	}
}

func renderLine(level Level, msg string, keyvals []interface{}) string {
	var sb strings.Builder
	sb.WriteString(level.String())
	sb.WriteByte(' ')
	sb.WriteString(msg)
	for i := 0; i+1 < len(keyvals); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", keyvals[i], keyvals[i+1])
	}
	return sb.String()
}

func (l *loggerImpl) writeText(level Level, msg string, keyvals []interface{}) {
	line := l.now().Format(time.RFC3339) + " " + renderLine(level, msg, keyvals) + "\n"
	_, _ = io.WriteString(l.cfg.Output, line)
}

func (l *loggerImpl) writeJSON(level Level, msg string, keyvals []interface{}) {
	m := map[string]interface{}{
		"time":  l.now().Format(time.RFC3339),
		"level": level.String(),
		"msg":   msg,
	}
	for i := 0; i+1 < len(keyvals); i += 2 {
		k, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keyvals[i+1].(error); isErr {
			m[k] = err.Error()
			continue
		}
		m[k] = keyvals[i+1]
	}
	enc := json.NewEncoder(l.cfg.Output)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(m)
}

// ParseLevel returns Level from string (debug, info, warn, error). Defaults to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// StdLogger returns a standard log.Logger that writes at the given level.
// discordgo and gorm both accept a *log.Logger-shaped writer.
func StdLogger(l Logger, level Level) *log.Logger {
	return log.New(&stdAdapter{l: l, level: level}, "", 0)
}

type stdAdapter struct {
	l     Logger
	level Level
}

func (a *stdAdapter) Write(p []byte) (n int, err error) {
	msg := strings.TrimRight(string(p), "\n")
	switch a.level {
	case LevelDebug:
		a.l.Debug(msg)
	case LevelWarn:
		a.l.Warn(msg)
	case LevelError:
		a.l.Error(msg)
	default:
		a.l.Info(msg)
	}
	return len(p), nil
}
