// logging.go is component C14: the structured logging interface
// consumed by the scheduler, its default implementation, and a
// logiface adapter, so a caller can plug kthread's log entries into
// whatever sink their own process already uses.

package kthread

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
)

// LogLevel represents the severity of a log message.
type LogLevel int32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) String() string {
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
		return fmt.Sprintf("UNKNOWN(%d)", l)
	}
}

// LogEntry is a single structured log record. Category names the
// subsystem that produced it: "schedule", "timer", "donate", "mlfqs",
// or "lifecycle".
type LogEntry struct {
	Level    LogLevel
	Category string
	TID      TID
	Message  string
	Context  map[string]interface{}
	Err      error

	Timestamp time.Time
}

// Logger is the structured logging interface the scheduler logs
// through.
type Logger interface {
	Log(entry LogEntry)
	IsEnabled(level LogLevel) bool
}

// noOpLogger discards everything; IsEnabled always false so callers
// can skip building a LogEntry at all.
type noOpLogger struct{}

// NewNoOpLogger returns the default Logger, used unless WithLogger
// overrides it.
func NewNoOpLogger() Logger { return noOpLogger{} }

func (noOpLogger) Log(LogEntry)          {}
func (noOpLogger) IsEnabled(LogLevel) bool { return false }

// DefaultLogger writes entries to an io.Writer: pretty-printed on a
// terminal, one-line-JSON otherwise, matching the corpus's terminal
// detection convention.
type DefaultLogger struct {
	level atomic.Int32
	mu    sync.Mutex
	out   *os.File
}

// NewDefaultLogger creates a Logger writing to os.Stdout at the given
// minimum level.
func NewDefaultLogger(level LogLevel) *DefaultLogger {
	l := &DefaultLogger{out: os.Stdout}
	l.level.Store(int32(level))
	return l
}

// SetLevel dynamically changes the minimum level logged.
func (l *DefaultLogger) SetLevel(level LogLevel) { l.level.Store(int32(level)) }

func (l *DefaultLogger) IsEnabled(level LogLevel) bool {
	return level >= LogLevel(l.level.Load())
}

func (l *DefaultLogger) Log(entry LogEntry) {
	if !l.IsEnabled(entry.Level) {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if isTerminal(l.out) {
		l.logPretty(entry)
	} else {
		l.logJSON(entry)
	}
}

func (l *DefaultLogger) logPretty(entry LogEntry) {
	const (
		colorReset = "\033[0m"
		colorError = "\033[31m"
		colorWarn  = "\033[33m"
		colorInfo  = "\033[36m"
		colorDebug = "\033[90m"
		colorDim   = "\033[2m"
	)
	var color string
	switch entry.Level {
	case LevelDebug:
		color = colorDebug
	case LevelInfo:
		color = colorInfo
	case LevelWarn:
		color = colorWarn
	case LevelError:
		color = colorError
	}
	fmt.Fprintf(l.out, "%s%s%s %s [%-10s] %s",
		color, entry.Level.String(), colorReset,
		entry.Timestamp.Format("15:04:05.000"),
		entry.Category,
		entry.Message,
	)
	if entry.TID != 0 || len(entry.Context) > 0 {
		fmt.Fprint(l.out, colorDim)
		if entry.TID != 0 {
			fmt.Fprintf(l.out, " tid=%d", entry.TID)
		}
		for k, v := range entry.Context {
			fmt.Fprintf(l.out, " %s=%v", k, v)
		}
		fmt.Fprint(l.out, colorReset)
	}
	if entry.Err != nil {
		fmt.Fprintf(l.out, " %s%v%s\n", colorError, entry.Err, colorReset)
	} else {
		fmt.Fprintln(l.out)
	}
}

func (l *DefaultLogger) logJSON(entry LogEntry) {
	fmt.Fprintf(l.out, "{\"timestamp\":\"%s\",\"level\":\"%s\",\"category\":\"%s\",\"message\":\"%s\"",
		entry.Timestamp.Format(time.RFC3339Nano),
		entry.Level,
		entry.Category,
		escapeJSON(entry.Message),
	)
	if entry.TID != 0 {
		fmt.Fprintf(l.out, ",\"tid\":%d", entry.TID)
	}
	for k, v := range entry.Context {
		fmt.Fprintf(l.out, ",\"%s\":%v", k, v)
	}
	if entry.Err != nil {
		fmt.Fprintf(l.out, ",\"error\":\"%s\"", escapeJSON(entry.Err.Error()))
	}
	fmt.Fprintln(l.out, "}")
}

func escapeJSON(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\', '"':
			b = append(b, '\\', c)
		case '\n':
			b = append(b, '\\', 'n')
		case '\t':
			b = append(b, '\\', 't')
		default:
			b = append(b, c)
		}
	}
	return string(b)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// logifaceLogger adapts a github.com/joeycumines/logiface logger into
// this package's Logger interface, so kthread's log entries can flow
// into whatever sink (zerolog, logrus, stumpy, slog) the caller's own
// logiface pipeline already targets.
type logifaceLogger struct {
	l *logiface.Logger[logiface.Event]
}

// NewLogifaceLogger wraps l, mapping kthread's four LogLevels onto
// logiface's RFC-5424 levels (Debug/Informational/Warning/Error).
func NewLogifaceLogger(l *logiface.Logger[logiface.Event]) Logger {
	return &logifaceLogger{l: l}
}

func (a *logifaceLogger) IsEnabled(level LogLevel) bool {
	return a.l.Level() >= toLogifaceLevel(level)
}

func (a *logifaceLogger) Log(entry LogEntry) {
	b := a.l.Build(toLogifaceLevel(entry.Level))
	if b == nil {
		return
	}
	if entry.TID != 0 {
		b = b.Int("tid", int(entry.TID))
	}
	b = b.Str("category", entry.Category)
	for k, v := range entry.Context {
		b = b.Any(k, v)
	}
	if entry.Err != nil {
		b = b.Err(entry.Err)
	}
	b.Log(entry.Message)
}

func toLogifaceLevel(level LogLevel) logiface.Level {
	switch level {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}
