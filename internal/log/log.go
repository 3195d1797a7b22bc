package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

// Options configures the process-wide logger.
type Options struct {
	// Level is one of debug, info, error (case-insensitive). Defaults to info.
	Level string
	// Format is "console" (default) or "json".
	Format string
	// Writer defaults to stderr.
	Writer io.Writer
}

var (
	mu     sync.RWMutex
	logger zerolog.Logger
	inited bool
)

// Init (re)configures the global logger. It is safe to call more than once;
// the last call wins.
func Init(opt Options) {
	var w io.Writer = os.Stderr
	if opt.Writer != nil {
		w = opt.Writer
	}
	if !strings.EqualFold(opt.Format, "json") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: opt.Writer != nil}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	l := zerolog.New(w).With().Timestamp().Logger().Level(parseLevel(opt.Level))

	mu.Lock()
	logger = l
	inited = true
	mu.Unlock()
}

func get() zerolog.Logger {
	mu.RLock()
	if inited {
		l := logger
		mu.RUnlock()
		return l
	}
	mu.RUnlock()
	Init(Options{})
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func SetLevel(l Level) {
	cur := get()
	mu.Lock()
	logger = cur.Level(parseLevel(string(l)))
	mu.Unlock()
}

func Debug(msg string, kv ...any) {
	l := get()
	withKVs(l.Debug(), kv...).Msg(msg)
}

func Info(msg string, kv ...any) {
	l := get()
	withKVs(l.Info(), kv...).Msg(msg)
}

func Error(msg string, err error, kv ...any) {
	l := get()
	withKVs(l.Error().Err(err), kv...).Msg(msg)
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(LevelDebug):
		return zerolog.DebugLevel
	case string(LevelError):
		return zerolog.ErrorLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

// withKVs attaches key/value pairs: key, value, key, value, ...
// Non-string keys are skipped; a trailing odd value is ignored.
func withKVs(ev *zerolog.Event, kv ...any) *zerolog.Event {
	if ev == nil {
		return ev
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		switch v := kv[i+1].(type) {
		case string:
			ev = ev.Str(key, v)
		case int:
			ev = ev.Int(key, v)
		case int64:
			ev = ev.Int64(key, v)
		case bool:
			ev = ev.Bool(key, v)
		case time.Duration:
			ev = ev.Dur(key, v)
		case time.Time:
			ev = ev.Time(key, v)
		case error:
			ev = ev.AnErr(key, v)
		case fmt.Stringer:
			ev = ev.Str(key, v.String())
		default:
			ev = ev.Interface(key, v)
		}
	}
	return ev
}
