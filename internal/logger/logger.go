// Package logger provides structured logging with colored console output,
// optional file output, per-account prefixes, and an event hook that
// forwards tracker events to notification sinks.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Guliveer/twitch-points-tracker/internal/model"
)

var eventEmoji = map[model.Event]string{
	model.EventGainForWatch:       "📺",
	model.EventGainForWatchStreak: "📺",
	model.EventGainForClaim:       "🎁",
	model.EventGainForRaid:        "🎁",
	model.EventBonusClaim:         "💰",
	model.EventStreamerOnline:     "🟢",
	model.EventStreamerOffline:    "⚫",
	model.EventJoinRaid:           "⚔️",
	model.EventChatMention:        "💬",
}

// ANSI color codes for terminal output.
const (
	colorReset     = "\033[0m"
	colorRed       = "\033[31m"
	colorGreen     = "\033[32m"
	colorYellow    = "\033[33m"
	colorMagenta   = "\033[35m"
	colorCyan      = "\033[36m"
	colorGray      = "\033[90m"
	colorLightBlue = "\033[94m"
)

// coloredAttrKeys maps slog attribute keys to ANSI color codes for value highlighting.
var coloredAttrKeys = map[string]string{
	"streamer": colorMagenta,
	"channel":  colorMagenta,
	"target":   colorMagenta,
	"topic":    colorLightBlue,
}

// NotifyFunc receives every event logged through Logger.Event.
// Implementations should be non-blocking.
type NotifyFunc func(ctx context.Context, message string, event model.Event)

// Config holds logger configuration options.
type Config struct {
	Level       slog.Level
	FileLevel   slog.Level
	Colored     bool
	LogDir      string
	AccountName string
	NotifyFn    NotifyFunc
	// Output receives console lines. Defaults to os.Stdout.
	Output io.Writer
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		FileLevel: slog.LevelDebug,
		Colored:   true,
		Output:    os.Stdout,
	}
}

// Logger wraps slog.Logger with account-scoped context and event dispatch.
type Logger struct {
	*slog.Logger
	cfg      Config
	notifyFn atomic.Value // NotifyFunc
}

// Setup creates a new Logger with a console handler and, when LogDir is
// set, a plain-text file handler.
func Setup(cfg Config) (*Logger, error) {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	handlers := []slog.Handler{newColorHandler(out, cfg.Level, cfg.Colored, cfg.AccountName)}

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory %s: %w", cfg.LogDir, err)
		}

		filename := "tracker.log"
		if cfg.AccountName != "" {
			filename = cfg.AccountName + ".log"
		}

		logFile, err := os.OpenFile(filepath.Join(cfg.LogDir, filename), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		handlers = append(handlers, slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: cfg.FileLevel}))
	}

	var handler slog.Handler = handlers[0]
	if len(handlers) > 1 {
		handler = &multiHandler{handlers: handlers}
	}

	l := &Logger{Logger: slog.New(handler), cfg: cfg}
	if cfg.NotifyFn != nil {
		l.notifyFn.Store(cfg.NotifyFn)
	}
	return l, nil
}

// Discard returns a Logger that drops everything. Events still reach a
// NotifyFunc installed with SetNotifyFunc.
func Discard() *Logger {
	l, _ := Setup(Config{Level: slog.LevelError + 1, Output: io.Discard})
	return l
}

// WithAccount returns a new Logger whose lines carry the account name.
// The notify hook is not inherited.
func (l *Logger) WithAccount(name string) *Logger {
	cfg := l.cfg
	cfg.AccountName = name
	cfg.NotifyFn = nil
	child, err := Setup(cfg)
	if err != nil {
		l.Warn("Falling back to parent logger", "account", name, "error", err)
		return l
	}
	return child
}

// Event logs msg at INFO with the event's emoji and hands the formatted
// line to the notify hook.
func (l *Logger) Event(ctx context.Context, event model.Event, msg string, args ...any) {
	if emoji, ok := eventEmoji[event]; ok {
		msg = emoji + " " + msg
	}
	l.Logger.InfoContext(ctx, msg, append(args, "event", string(event))...)

	fn, _ := l.notifyFn.Load().(NotifyFunc)
	if fn == nil {
		return
	}
	fn(ctx, formatEventText(msg, args), event)
}

// SetNotifyFunc sets the notification callback function. Thread-safe.
func (l *Logger) SetNotifyFunc(fn NotifyFunc) {
	l.notifyFn.Store(fn)
}

// ParseLevel converts a string log level to slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func formatEventText(msg string, args []any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	return b.String()
}

type colorHandler struct {
	mu          *sync.Mutex
	writer      io.Writer
	level       slog.Level
	colored     bool
	accountName string
	attrs       []slog.Attr
}

func newColorHandler(w io.Writer, level slog.Level, colored bool, accountName string) *colorHandler {
	return &colorHandler{
		mu:          &sync.Mutex{},
		writer:      w,
		level:       level,
		colored:     colored,
		accountName: accountName,
	}
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, record slog.Record) error {
	var b strings.Builder

	timeStr := record.Time.Format("02/01/06 15:04:05")
	prefix := ""
	if h.accountName != "" {
		prefix = "[" + h.accountName + "] "
	}

	if h.colored {
		fmt.Fprintf(&b, "%s%s - %s%s%s - %s%s",
			colorGray, timeStr, levelColor(record.Level), record.Level, colorReset, prefix, record.Message)
	} else {
		fmt.Fprintf(&b, "%s - %s - %s%s", timeStr, record.Level, prefix, record.Message)
	}

	for _, a := range h.attrs {
		h.writeAttr(&b, a)
	}
	record.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&b, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, b.String())
	return err
}

func (h *colorHandler) writeAttr(b *strings.Builder, a slog.Attr) {
	if h.colored {
		if color, ok := coloredAttrKeys[a.Key]; ok {
			fmt.Fprintf(b, " %s=%s%v%s", a.Key, color, a.Value, colorReset)
			return
		}
	}
	fmt.Fprintf(b, " %s=%v", a.Key, a.Value)
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *colorHandler) WithGroup(string) slog.Handler {
	clone := *h
	clone.attrs = append([]slog.Attr(nil), h.attrs...)
	return &clone
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return colorRed
	case level >= slog.LevelWarn:
		return colorYellow
	case level >= slog.LevelInfo:
		return colorGreen
	default:
		return colorCyan
	}
}

type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: out}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: out}
}
