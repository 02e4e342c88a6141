package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ytkinroman/trans-app/internal/logger"
)

const reloadDebounce = 100 * time.Millisecond

// Store is the concurrency-safe accessor for the running configuration. It
// keeps the file contents apart from environment overrides so that saving a
// setting never persists an override.
type Store struct {
	path string
	log  *logger.Logger

	mu        sync.RWMutex
	file      *Config
	effective *Config
	listeners []func(Config)

	watcher     *fsnotify.Watcher
	stopWatch   chan struct{}
	wg          sync.WaitGroup
	reloadTimer *time.Timer
}

// OpenStore loads path and applies environment overrides. A missing file
// yields the defaults.
func OpenStore(path string) (*Store, error) {
	file, err := Load(path)
	if err != nil {
		return nil, err
	}
	s := &Store{
		path: path,
		log:  logger.Global().WithPrefix("config"),
	}
	if err := s.install(file); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStore wraps an already loaded configuration
func NewStore(path string, cfg *Config) *Store {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	effective := *cfg
	return &Store{
		path:      path,
		log:       logger.Global().WithPrefix("config"),
		file:      cfg,
		effective: &effective,
	}
}

// install makes file the current file contents and recomputes the
// effective configuration
func (s *Store) install(file *Config) error {
	effective := *file
	if err := effective.ApplyEnv(); err != nil {
		return err
	}
	s.sanitize(&effective)

	s.mu.Lock()
	s.file = file
	s.effective = &effective
	s.mu.Unlock()
	return nil
}

// sanitize replaces selections the catalog does not know with defaults
func (s *Store) sanitize(c *Config) {
	defaults := DefaultConfig()
	if _, ok := LookupLanguage(c.User.SelectedLanguage); !ok {
		s.log.Warn("Unknown language %q, using %q", c.User.SelectedLanguage, defaults.User.SelectedLanguage)
		c.User.SelectedLanguage = defaults.User.SelectedLanguage
	}
	if _, ok := LookupTranslator(c.User.SelectedTranslator); !ok {
		s.log.Warn("Unknown translator %q, using %q", c.User.SelectedTranslator, defaults.User.SelectedTranslator)
		c.User.SelectedTranslator = defaults.User.SelectedTranslator
	}
}

// SetLogger replaces the store's logger. Call it before Watch.
func (s *Store) SetLogger(l *logger.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = l
}

// Path returns the file backing the store
func (s *Store) Path() string {
	return s.path
}

// Config returns a copy of the effective configuration
func (s *Store) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.effective
}

// TranslatorCode returns the selected translator
func (s *Store) TranslatorCode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.effective.User.SelectedTranslator
}

// TargetLanguage returns the selected target language
func (s *Store) TargetLanguage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.effective.User.SelectedLanguage
}

// Hotkey returns the configured translate combination
func (s *Store) Hotkey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.effective.User.TranslateKeyboard
}

// CopyToClipboard reports whether results replace the clipboard contents
func (s *Store) CopyToClipboard() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.effective.User.CopyToClipboard
}

// SetLanguage selects and persists the target language
func (s *Store) SetLanguage(code string) error {
	if _, ok := LookupLanguage(code); !ok {
		return fmt.Errorf("unknown language %q", code)
	}
	return s.update(func(c *Config) { c.User.SelectedLanguage = code })
}

// SetTranslator selects and persists the translator
func (s *Store) SetTranslator(code string) error {
	if _, ok := LookupTranslator(code); !ok {
		return fmt.Errorf("unknown translator %q", code)
	}
	return s.update(func(c *Config) { c.User.SelectedTranslator = code })
}

// SetHotkey persists the translate combination. The caller validates the
// combination's syntax.
func (s *Store) SetHotkey(combo string) error {
	combo = strings.TrimSpace(combo)
	if combo == "" {
		return errors.New("hotkey must not be empty")
	}
	return s.update(func(c *Config) { c.User.TranslateKeyboard = combo })
}

// SetCopyToClipboard persists the clipboard preference
func (s *Store) SetCopyToClipboard(enabled bool) error {
	return s.update(func(c *Config) { c.User.CopyToClipboard = enabled })
}

// OnChange registers fn to run after every change, with the new
// effective configuration
func (s *Store) OnChange(fn func(Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// update applies fn to both the file and the effective configuration, then saves
func (s *Store) update(fn func(*Config)) error {
	s.mu.Lock()
	file := *s.file
	fn(&file)
	if err := file.Save(s.path); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("save config: %w", err)
	}
	effective := *s.effective
	fn(&effective)
	s.file = &file
	s.effective = &effective
	listeners := append(([]func(Config))(nil), s.listeners...)
	s.mu.Unlock()

	s.log.Info("Configuration saved to %s", s.path)
	for _, l := range listeners {
		l(effective)
	}
	return nil
}

// Reload rereads the file and notifies listeners
func (s *Store) Reload() error {
	file, err := Load(s.path)
	if err != nil {
		return err
	}
	if err := s.install(file); err != nil {
		return err
	}

	s.mu.RLock()
	effective := *s.effective
	listeners := append(([]func(Config))(nil), s.listeners...)
	s.mu.RUnlock()

	s.log.Info("Configuration reloaded from %s", s.path)
	for _, l := range listeners {
		l(effective)
	}
	return nil
}

// Watch reloads the configuration whenever the file changes on disk
func (s *Store) Watch() error {
	s.mu.Lock()
	if s.watcher != nil {
		s.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	// Watch the directory; editors replace the file rather than write it
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		s.mu.Unlock()
		watcher.Close()
		return err
	}
	if err := watcher.Add(dir); err != nil {
		s.mu.Unlock()
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	s.watcher = watcher
	s.stopWatch = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.watchLoop(watcher, s.stopWatch)
	s.log.Debug("Watching %s", s.path)
	return nil
}

func (s *Store) watchLoop(watcher *fsnotify.Watcher, stop chan struct{}) {
	defer s.wg.Done()

	name := filepath.Clean(s.path)
	for {
		select {
		case <-stop:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				s.scheduleReload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.Error("config watcher error: %v", err)
		}
	}
}

// scheduleReload coalesces bursts of events into one reload
func (s *Store) scheduleReload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher == nil {
		return
	}
	if s.reloadTimer != nil {
		s.reloadTimer.Stop()
	}
	s.reloadTimer = time.AfterFunc(reloadDebounce, func() {
		if err := s.Reload(); err != nil {
			s.log.Warn("Failed to reload configuration: %v", err)
		}
	})
}

// Close stops watching
func (s *Store) Close() error {
	s.mu.Lock()
	watcher, stop := s.watcher, s.stopWatch
	s.watcher = nil
	if s.reloadTimer != nil {
		s.reloadTimer.Stop()
		s.reloadTimer = nil
	}
	s.mu.Unlock()

	if watcher == nil {
		return nil
	}
	close(stop)
	s.wg.Wait()
	return watcher.Close()
}
