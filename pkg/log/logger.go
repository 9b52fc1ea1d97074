package log

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is the minimal sink the reader pipeline reports progress to.
// Implementations must be safe for concurrent use.
type Logger interface {
	Info(string)
	Error(string)
}

// EntryLogger adapts a logrus entry to Logger
type EntryLogger struct {
	entry *logrus.Entry
}

// NewLogger wraps entry as a Logger
func NewLogger(entry *logrus.Entry) *EntryLogger {
	return &EntryLogger{entry: entry}
}

func (l *EntryLogger) Info(msg string)  { l.entry.Info(msg) }
func (l *EntryLogger) Error(msg string) { l.entry.Error(msg) }

// Entry exposes the underlying logrus entry for structured fields
func (l *EntryLogger) Entry() *logrus.Entry { return l.entry }

// stdLogger writes info to stdout and errors to stderr, tagged with severity
type stdLogger struct {
	info *logrus.Entry
	err  *logrus.Entry
}

// Default returns a Logger writing plain severity-tagged lines to stdout and stderr
func Default() Logger {
	return &stdLogger{
		info: newStreamEntry(os.Stdout),
		err:  newStreamEntry(os.Stderr),
	}
}

func newStreamEntry(w io.Writer) *logrus.Entry {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		DisableQuote:     true,
	})
	return l.WithField("component", "readerview")
}

func (l *stdLogger) Info(msg string)  { l.info.Info(msg) }
func (l *stdLogger) Error(msg string) { l.err.Error(msg) }

// Discard returns a Logger that drops everything
func Discard() Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return NewLogger(logrus.NewEntry(l))
}

var (
	currentMu sync.RWMutex
	current   Logger = Default()
)

// SetLogger replaces the process-wide sink. A nil logger restores the default.
func SetLogger(l Logger) {
	if l == nil {
		l = Default()
	}
	currentMu.Lock()
	current = l
	currentMu.Unlock()
}

// Current returns the process-wide sink
func Current() Logger {
	currentMu.RLock()
	defer currentMu.RUnlock()
	return current
}
