// Package obslog is the logging contract every other package in this module
// talks to. It follows the teacher's habit of wiring rs/zerolog straight to a
// ConsoleWriter (see the original cmd/boxed-server bootstrap and
// internal/cli/root.go's PersistentPreRun), but adds a fourth, non-standard
// level - OK - to recreate the original Python logger's four-color palette
// (cyan info, green ok, yellow warn, red error).
package obslog

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiCyan   = "\033[96m"
	ansiGreen  = "\033[92m"
	ansiYellow = "\033[93m"
	ansiRed    = "\033[91m"
)

// Level gates which calls actually reach the sink. It mirrors the original
// logger's INFO < OK < WARN < ERROR ordering.
type Level int

const (
	LevelInfo Level = iota
	LevelOK
	LevelWarn
	LevelError
)

// ParseLevel accepts the four level names case-insensitively, defaulting to
// LevelInfo for anything else.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OK":
		return LevelOK
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is the contract the rest of the module depends on. Error returns a
// non-nil error carrying the logged message, matching the original logger's
// habit of raising in place at the error call site.
type Logger interface {
	Info(msg string)
	OK(msg string)
	Warn(msg string)
	Error(msg string) error
}

// Zero is the default zerolog-backed implementation.
type Zero struct {
	lg    zerolog.Logger
	level Level
}

// New builds a Zero logger writing colorized console output to stdout, and,
// when filePath is non-empty, mirroring every record into that file as well
// (best-effort: a file that can't be opened is silently skipped, console
// output still works).
func New(filePath string) *Zero {
	w := io.Writer(consoleWriter(os.Stdout))
	if filePath != "" {
		if f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
			w = zerolog.MultiLevelWriter(consoleWriter(os.Stdout), f)
		}
	}
	return NewWithWriter(w)
}

// NewWithWriter builds a Zero logger against an arbitrary writer, mainly for
// tests that need to inspect output.
func NewWithWriter(w io.Writer) *Zero {
	return &Zero{lg: zerolog.New(w).With().Timestamp().Logger(), level: LevelInfo}
}

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	cw := zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	cw.FormatLevel = formatLevel
	return cw
}

// SetLevel changes the minimum level that reaches the sink.
func (z *Zero) SetLevel(l Level) { z.level = l }

func (z *Zero) Info(msg string) {
	if z.level <= LevelInfo {
		z.lg.Info().Msg(msg)
	}
}

// OK has no zerolog-native equivalent, so it is emitted through .Log(), which
// omits the "level" field entirely; formatLevel treats that absence as OK.
func (z *Zero) OK(msg string) {
	if z.level <= LevelOK {
		z.lg.Log().Msg(msg)
	}
}

func (z *Zero) Warn(msg string) {
	if z.level <= LevelWarn {
		z.lg.Warn().Msg(msg)
	}
}

func (z *Zero) Error(msg string) error {
	z.lg.Error().Msg(msg)
	return errorString(msg)
}

type errorString string

func (e errorString) Error() string { return string(e) }

func formatLevel(i any) string {
	if i == nil {
		return colorize(ansiGreen, "OK")
	}
	s, _ := i.(string)
	switch s {
	case "info":
		return colorize(ansiCyan, "INFO")
	case "warn":
		return colorize(ansiYellow, "WARN")
	case "error":
		return colorize(ansiRed, "ERROR")
	default:
		return colorize(ansiBold, strings.ToUpper(s))
	}
}

func colorize(color, text string) string {
	return ansiBold + color + text + ansiReset
}
