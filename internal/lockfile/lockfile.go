// Package lockfile keeps a second copy of the translator from grabbing the
// same hotkey
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrAlreadyRunning is returned when a live process holds the lock
var ErrAlreadyRunning = errors.New("another instance is already running")

// Holder describes the process recorded in a lockfile
type Holder struct {
	PID     int
	Started time.Time
}

// Lock is a held lockfile
type Lock struct {
	path   string
	file   *os.File
	holder Holder
}

// Acquire creates the lockfile at path. A lockfile left behind by a process
// that is no longer running is replaced.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lockfile directory: %w", err)
	}

	file, err := create(path)
	if errors.Is(err, os.ErrExist) {
		holder, readErr := ReadHolder(path)
		if readErr == nil && holder.PID != os.Getpid() && processAlive(holder.PID) {
			return nil, fmt.Errorf("%w (pid %d since %s)", ErrAlreadyRunning, holder.PID, holder.Started.Format(time.RFC3339))
		}
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			return nil, fmt.Errorf("failed to remove stale lockfile: %w", rmErr)
		}
		file, err = create(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create lockfile: %w", err)
	}

	l := &Lock{
		path:   path,
		file:   file,
		holder: Holder{PID: os.Getpid(), Started: time.Now().UTC().Truncate(time.Second)},
	}
	content := fmt.Sprintf("%d\n%s\n", l.holder.PID, l.holder.Started.Format(time.RFC3339))
	if _, err := file.WriteString(content); err != nil {
		l.Release()
		return nil, fmt.Errorf("failed to write lockfile: %w", err)
	}
	if err := file.Sync(); err != nil {
		l.Release()
		return nil, fmt.Errorf("failed to sync lockfile: %w", err)
	}
	return l, nil
}

func create(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
}

// ReadHolder parses the lockfile at path
func ReadHolder(path string) (Holder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Holder{}, err
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil || pid <= 0 {
		return Holder{}, fmt.Errorf("invalid pid in %s", path)
	}
	h := Holder{PID: pid}
	if len(lines) > 1 {
		h.Started, _ = time.Parse(time.RFC3339, strings.TrimSpace(lines[1]))
	}
	return h, nil
}

// Holder returns the process that owns l
func (l *Lock) Holder() Holder {
	return l.holder
}

// Path returns the lockfile path
func (l *Lock) Path() string {
	return l.path
}

// Release closes and removes the lockfile. Releasing twice is harmless.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	if rmErr := os.Remove(l.path); rmErr != nil && !os.IsNotExist(rmErr) {
		return errors.Join(err, fmt.Errorf("failed to remove lockfile: %w", rmErr))
	}
	return err
}
