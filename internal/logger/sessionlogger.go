package logger

import (
	"fmt"
	"strings"
	"time"

	"github.com/nlowe/acpctl/internal/config"
)

// SessionLogger provides per-session logging with isolated indentation.
// Each Session gets its own SessionLogger so concurrent sessions' log lines
// do not interleave their indent levels.
type SessionLogger struct {
	baseLogger  *Logger
	sessionID   string
	indentLevel int
}

// NewSessionLogger creates a new SessionLogger wrapping a base Logger, tagged
// with the session's correlation ID.
func NewSessionLogger(baseLogger *Logger, sessionID string) *SessionLogger {
	return &SessionLogger{
		baseLogger: baseLogger,
		sessionID:  sessionID,
	}
}

func (t *SessionLogger) getTimestampAndIndent() (string, string) {
	now := time.Now()
	timestamp := now.Format("2006-01-02 15:04:05")
	milliseconds := fmt.Sprintf(".%03d", now.Nanosecond()/1e6)
	indent := strings.Repeat("  │ ", t.indentLevel)
	return timestamp + milliseconds, indent
}

func (t *SessionLogger) formatMessage(message, level, colorCode string) string {
	timestamp, indent := t.getTimestampAndIndent()
	noColorMessage := stripAnsiCodes(message)

	sessionPrefix := ""
	if t.sessionID != "" {
		sessionPrefix = "[" + t.sessionID + "] "
	}

	if t.baseLogger.config.NoColor() {
		return fmt.Sprintf("[%s] [%s] %s%s%s", timestamp, level, sessionPrefix, indent, noColorMessage)
	}

	if colorCode != "" {
		return fmt.Sprintf("[%s] [%s%s\x1b[0m] %s%s%s", timestamp, colorCode, level, sessionPrefix, indent, message)
	}
	return fmt.Sprintf("[%s] [%s] %s%s%s", timestamp, level, sessionPrefix, indent, message)
}

// Print prints a message to stdout and log file.
func (t *SessionLogger) Print(message string) {
	t.PrintWithEnd(message, "\n")
}

// PrintWithEnd prints a message with a custom line ending.
func (t *SessionLogger) PrintWithEnd(message string, end string) {
	formatted := t.formatMessage(message, "-----", "")
	fmt.Print(formatted + end)
	t.baseLogger.writeToLogFile(formatted, end)
}

// Info logs a message at the INFO level.
func (t *SessionLogger) Info(message string) {
	formatted := t.formatMessage(message, "info-", "\x1b[1;92m")
	fmt.Println(formatted)
	t.baseLogger.writeToLogFile(formatted, "\n")
}

// Debug logs a message at the DEBUG level if debugging is enabled.
func (t *SessionLogger) Debug(message string) {
	if !t.baseLogger.config.Debug() {
		return
	}
	formatted := t.formatMessage(message, "debug", "\x1b[1;93m")
	fmt.Println(formatted)
	t.baseLogger.writeToLogFile(formatted, "\n")
}

// Warning logs a message at the WARNING level.
func (t *SessionLogger) Warning(message string) {
	formatted := t.formatMessage(message, "warn-", "\x1b[1;95m")
	fmt.Println(formatted)
	t.baseLogger.writeToLogFile(formatted, "\n")
}

// Error logs a message at the ERROR level.
func (t *SessionLogger) Error(message string) {
	formatted := t.formatMessage(message, "error", "\x1b[1;91m")
	fmt.Println(formatted)
	t.baseLogger.writeToLogFile(formatted, "\n")
}

// Critical logs a message at the CRITICAL level.
func (t *SessionLogger) Critical(message string) {
	formatted := t.formatMessage(message, "crit-", "\x1b[1;91m")
	fmt.Println(formatted)
	t.baseLogger.writeToLogFile(formatted, "\n")
}

// IncrementIndent increases the indentation level for this session's log lines.
func (t *SessionLogger) IncrementIndent() {
	t.indentLevel++
}

// DecrementIndent decreases the indentation level for this session's log lines.
func (t *SessionLogger) DecrementIndent() {
	if t.indentLevel > 0 {
		t.indentLevel--
	}
}

// Config returns the underlying logger's config.
func (t *SessionLogger) Config() *config.Config {
	return t.baseLogger.config
}

// Interface defines the common logging surface shared by Logger and SessionLogger.
type Interface interface {
	Print(message string)
	PrintWithEnd(message string, end string)
	Info(message string)
	Debug(message string)
	Warning(message string)
	Error(message string)
	Critical(message string)
	IncrementIndent()
	DecrementIndent()
	Config() *config.Config
}

var _ Interface = (*Logger)(nil)
var _ Interface = (*SessionLogger)(nil)
