package hotkey

import (
	"errors"
	"fmt"
	"sync"

	"golang.design/x/hotkey"

	"github.com/ytkinroman/trans-app/internal/logger"
)

// Registrar binds one combination to one callback
type Registrar interface {
	Register(combo Combo, fn func()) error
	Unregister() error
}

// Listener is the system-wide Registrar. On macOS it only works when the
// program's main goroutine runs mainthread.Init.
type Listener struct {
	log *logger.Logger

	mu      sync.Mutex
	hk      *hotkey.Hotkey
	combo   Combo
	trigger *Trigger
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewListener creates an unregistered listener
func NewListener() *Listener {
	return &Listener{log: logger.Global().WithPrefix("hotkey")}
}

// Register grabs combo system-wide. Every key press fires fn on a dedicated
// goroutine, never on the event loop. A previous registration is replaced.
func (l *Listener) Register(combo Combo, fn func()) error {
	if fn == nil {
		return errors.New("hotkey callback is required")
	}
	key, ok := systemKey(combo.Key)
	if !ok {
		return fmt.Errorf("key %q is not supported on this platform", combo.Key)
	}
	mods := make([]hotkey.Modifier, 0, len(combo.Mods))
	for _, m := range combo.Mods {
		sm, ok := systemModifier(m)
		if !ok {
			return fmt.Errorf("modifier %q is not supported on this platform", modifierNames[m])
		}
		mods = append(mods, sm)
	}

	if err := l.Unregister(); err != nil {
		l.log.Warn("Failed to release previous hotkey: %v", err)
	}

	hk := hotkey.New(mods, key)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("register hotkey %s: %w", combo, err)
	}

	l.mu.Lock()
	l.hk = hk
	l.combo = combo
	l.trigger = NewTrigger(fn, l.log)
	l.stop = make(chan struct{})
	l.wg.Add(1)
	go l.listen(hk, l.trigger, l.stop)
	l.mu.Unlock()

	l.log.Info("Hotkey %s registered", combo)
	return nil
}

// Unregister releases the combination and waits for a running handler to
// return. It is safe to call when nothing is registered, but not from the
// callback itself.
func (l *Listener) Unregister() error {
	l.mu.Lock()
	hk, trigger, stop, combo := l.hk, l.trigger, l.stop, l.combo
	l.hk, l.trigger, l.stop = nil, nil, nil
	l.mu.Unlock()

	if hk == nil {
		return nil
	}
	close(stop)
	l.wg.Wait()
	trigger.Close()

	if err := hk.Unregister(); err != nil {
		return fmt.Errorf("unregister hotkey %s: %w", combo, err)
	}
	l.log.Info("Hotkey %s unregistered", combo)
	return nil
}

func (l *Listener) listen(hk *hotkey.Hotkey, trigger *Trigger, stop chan struct{}) {
	defer l.wg.Done()
	for {
		select {
		case <-stop:
			return
		case _, ok := <-hk.Keydown():
			if !ok {
				return
			}
			l.log.Debug("Hotkey pressed")
			trigger.Fire()
		}
	}
}

func systemKey(name string) (hotkey.Key, bool) {
	if len(name) == 1 {
		c := name[0]
		switch {
		case c >= 'a' && c <= 'z':
			return letterKeys[c-'a'], true
		case c >= '0' && c <= '9':
			return digitKeys[c-'0'], true
		}
		return 0, false
	}
	var n int
	if _, err := fmt.Sscanf(name, "f%d", &n); err == nil && n >= 1 && n <= len(functionKeys) {
		return functionKeys[n-1], true
	}
	k, ok := namedKeys[name]
	return k, ok
}

var letterKeys = [...]hotkey.Key{
	hotkey.KeyA, hotkey.KeyB, hotkey.KeyC, hotkey.KeyD, hotkey.KeyE, hotkey.KeyF, hotkey.KeyG,
	hotkey.KeyH, hotkey.KeyI, hotkey.KeyJ, hotkey.KeyK, hotkey.KeyL, hotkey.KeyM, hotkey.KeyN,
	hotkey.KeyO, hotkey.KeyP, hotkey.KeyQ, hotkey.KeyR, hotkey.KeyS, hotkey.KeyT, hotkey.KeyU,
	hotkey.KeyV, hotkey.KeyW, hotkey.KeyX, hotkey.KeyY, hotkey.KeyZ,
}

var digitKeys = [...]hotkey.Key{
	hotkey.Key0, hotkey.Key1, hotkey.Key2, hotkey.Key3, hotkey.Key4,
	hotkey.Key5, hotkey.Key6, hotkey.Key7, hotkey.Key8, hotkey.Key9,
}

var functionKeys = [...]hotkey.Key{
	hotkey.KeyF1, hotkey.KeyF2, hotkey.KeyF3, hotkey.KeyF4, hotkey.KeyF5,
	hotkey.KeyF6, hotkey.KeyF7, hotkey.KeyF8, hotkey.KeyF9, hotkey.KeyF10,
	hotkey.KeyF11, hotkey.KeyF12, hotkey.KeyF13, hotkey.KeyF14, hotkey.KeyF15,
	hotkey.KeyF16, hotkey.KeyF17, hotkey.KeyF18, hotkey.KeyF19, hotkey.KeyF20,
}

var namedKeys = map[string]hotkey.Key{
	"space":  hotkey.KeySpace,
	"enter":  hotkey.KeyReturn,
	"escape": hotkey.KeyEscape,
	"tab":    hotkey.KeyTab,
	"delete": hotkey.KeyDelete,
	"up":     hotkey.KeyUp,
	"down":   hotkey.KeyDown,
	"left":   hotkey.KeyLeft,
	"right":  hotkey.KeyRight,
}
