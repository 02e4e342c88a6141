// Package notify shows short messages to the user
package notify

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/ytkinroman/trans-app/internal/logger"
)

// Level classifies a message
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Notifier shows a titled message
type Notifier interface {
	Notify(level Level, title, message string)
}

var styles = struct {
	Info    lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Body    lipgloss.Style
}{
	Info:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
	Success: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
	Warning: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
	Error:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
	Body:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
}

var symbols = map[Level]string{
	LevelInfo:    "ℹ",
	LevelSuccess: "✓",
	LevelWarning: "⚠",
	LevelError:   "✗",
}

// Terminal writes messages to a stream, styled when the stream is a terminal,
// and records them in the log
type Terminal struct {
	mu     sync.Mutex
	out    io.Writer
	styled bool
	log    *logger.Logger
}

// NewTerminal writes to out. Styling is enabled only when out is a terminal.
func NewTerminal(out io.Writer) *Terminal {
	styled := false
	if f, ok := out.(*os.File); ok {
		styled = term.IsTerminal(int(f.Fd()))
	}
	return &Terminal{
		out:    out,
		styled: styled,
		log:    logger.Global().WithPrefix("notify"),
	}
}

// Notify implements Notifier
func (t *Terminal) Notify(level Level, title, message string) {
	switch level {
	case LevelError:
		t.log.Error("%s: %s", title, message)
	case LevelWarning:
		t.log.Warn("%s: %s", title, message)
	default:
		t.log.Info("%s: %s", title, message)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, t.render(level, title, message))
}

func (t *Terminal) render(level Level, title, message string) string {
	head := fmt.Sprintf("%s %s", symbols[level], title)
	if !t.styled {
		if message == "" {
			return head
		}
		return head + ": " + message
	}

	var style lipgloss.Style
	switch level {
	case LevelSuccess:
		style = styles.Success
	case LevelWarning:
		style = styles.Warning
	case LevelError:
		style = styles.Error
	default:
		style = styles.Info
	}
	if message == "" {
		return style.Render(head)
	}
	return style.Render(head+":") + " " + styles.Body.Render(message)
}

// Message is one recorded notification
type Message struct {
	Level   Level
	Title   string
	Message string
}

// Recorder keeps notifications in memory
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

// Notify implements Notifier
func (r *Recorder) Notify(level Level, title, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Level: level, Title: title, Message: message})
}

// Messages returns the recorded notifications
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}
