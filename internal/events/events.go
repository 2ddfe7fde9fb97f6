// Package events carries non-fatal diagnostics from node functions to the
// build's output. Delivery is fire-and-forget: a listener never
// acknowledges, and ordering is preserved within one invocation only.
package events

import (
	"fmt"
	"log/slog"
	"sync"
)

// Severity ranks an event for display purposes.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Event is one structured diagnostic. Location names where the message
// originates (a file position, a target label) and may be empty.
type Event struct {
	Severity Severity
	Location string
	Message  string
}

// Errorf builds an error-severity event.
func Errorf(location, format string, args ...any) Event {
	return Event{Severity: Error, Location: location, Message: fmt.Sprintf(format, args...)}
}

// Warningf builds a warning-severity event.
func Warningf(location, format string, args ...any) Event {
	return Event{Severity: Warning, Location: location, Message: fmt.Sprintf(format, args...)}
}

// Listener accepts diagnostic events. Implementations must be safe for
// concurrent use; many node computations report at once.
type Listener interface {
	Handle(ev Event)
}

// LogListener forwards events to a slog.Logger.
type LogListener struct {
	logger *slog.Logger
}

// NewLogListener wraps logger as an event sink.
func NewLogListener(logger *slog.Logger) *LogListener {
	return &LogListener{logger: logger}
}

func (l *LogListener) Handle(ev Event) {
	attrs := []any{"location", ev.Location}
	switch ev.Severity {
	case Error:
		l.logger.Error(ev.Message, attrs...)
	case Warning:
		l.logger.Warn(ev.Message, attrs...)
	default:
		l.logger.Info(ev.Message, attrs...)
	}
}

// Capture collects events in order for inspection, mainly in tests.
type Capture struct {
	mu     sync.Mutex
	events []Event
}

func (c *Capture) Handle(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

// Events returns a copy of everything handled so far.
func (c *Capture) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}
