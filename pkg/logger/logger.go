// Package logger provides leveled, component-tagged logging for the whole bot.
// Output is plain aligned text on stderr, one line per record.
package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level controls which records are written.
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
		return "?????"
	}
}

// ParseLevel converts a level name ("debug", "info", ...) to a Level.
// Unknown names fall back to LevelInfo.
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

var (
	mu       sync.Mutex
	out      io.Writer = os.Stderr
	minLevel           = LevelInfo
)

// SetLevel sets the minimum level that will be written.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	minLevel = l
}

// SetOutput redirects log output (used by tests).
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

func write(level Level, component, msg string, fields map[string]interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if level < minLevel {
		return
	}

	var b strings.Builder
	b.WriteString(time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, " %-5s", level.String())
	if component != "" {
		fmt.Fprintf(&b, " [%s]", component)
	}
	b.WriteByte(' ')
	b.WriteString(msg)

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, fields[k])
		}
	}
	b.WriteByte('\n')

	io.WriteString(out, b.String())
}

// Debug logs an uncomponented debug message.
func Debug(msg string) { write(LevelDebug, "", msg, nil) }

// Info logs an uncomponented info message.
func Info(msg string) { write(LevelInfo, "", msg, nil) }

// Warn logs an uncomponented warning.
func Warn(msg string) { write(LevelWarn, "", msg, nil) }

// Error logs an uncomponented error.
func Error(msg string) { write(LevelError, "", msg, nil) }

// DebugC logs a debug message tagged with a component name.
func DebugC(component, msg string) { write(LevelDebug, component, msg, nil) }

// InfoC logs an info message tagged with a component name.
func InfoC(component, msg string) { write(LevelInfo, component, msg, nil) }

// WarnC logs a warning tagged with a component name.
func WarnC(component, msg string) { write(LevelWarn, component, msg, nil) }

// ErrorC logs an error tagged with a component name.
func ErrorC(component, msg string) { write(LevelError, component, msg, nil) }

// DebugCF logs a debug message with a component and structured fields.
func DebugCF(component, msg string, fields map[string]interface{}) {
	write(LevelDebug, component, msg, fields)
}

// InfoCF logs an info message with a component and structured fields.
func InfoCF(component, msg string, fields map[string]interface{}) {
	write(LevelInfo, component, msg, fields)
}

// WarnCF logs a warning with a component and structured fields.
func WarnCF(component, msg string, fields map[string]interface{}) {
	write(LevelWarn, component, msg, fields)
}

// ErrorCF logs an error with a component and structured fields.
func ErrorCF(component, msg string, fields map[string]interface{}) {
	write(LevelError, component, msg, fields)
}
