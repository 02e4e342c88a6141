// Package clipboard reads and writes the system text clipboard
package clipboard

import (
	"fmt"
	"sync"

	"golang.design/x/clipboard"
)

// Clipboard holds text
type Clipboard interface {
	ReadText() (string, error)
	WriteText(text string) error
}

// System is the operating system clipboard
type System struct {
	once    sync.Once
	initErr error
}

// NewSystem returns the system clipboard. Initialization is deferred to
// first use.
func NewSystem() *System {
	return &System{}
}

func (s *System) init() error {
	s.once.Do(func() {
		if err := clipboard.Init(); err != nil {
			s.initErr = fmt.Errorf("failed to initialize clipboard: %w", err)
		}
	})
	return s.initErr
}

// ReadText returns the clipboard's text, or "" when it holds none
func (s *System) ReadText() (string, error) {
	if err := s.init(); err != nil {
		return "", err
	}
	return string(clipboard.Read(clipboard.FmtText)), nil
}

// WriteText replaces the clipboard contents with text
func (s *System) WriteText(text string) error {
	if err := s.init(); err != nil {
		return err
	}
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

// Memory is an in-process clipboard
type Memory struct {
	mu     sync.Mutex
	text   string
	writes int
}

// NewMemory returns a clipboard holding text
func NewMemory(text string) *Memory {
	return &Memory{text: text}
}

// ReadText implements Clipboard
func (m *Memory) ReadText() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text, nil
}

// WriteText implements Clipboard
func (m *Memory) WriteText(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
	m.writes++
	return nil
}

// Writes returns how many times WriteText was called
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
