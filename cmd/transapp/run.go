package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ytkinroman/trans-app/internal/app"
	"github.com/ytkinroman/trans-app/internal/clipboard"
	"github.com/ytkinroman/trans-app/internal/config"
	"github.com/ytkinroman/trans-app/internal/hotkey"
	"github.com/ytkinroman/trans-app/internal/lockfile"
	"github.com/ytkinroman/trans-app/internal/logger"
	"github.com/ytkinroman/trans-app/internal/notify"
	"github.com/ytkinroman/trans-app/internal/session"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Listen for the translate hotkey",
	Long: `Connect to the translation gateway and translate the clipboard every time
the configured key combination is pressed. The connection is checked in the
background and restored when it drops. Stop with Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runListener(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runListener(parent context.Context) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	defer logger.Global().Close()

	cfg := store.Config()
	lock, err := lockfile.Acquire(cfg.LockPath)
	if err != nil {
		if errors.Is(err, lockfile.ErrAlreadyRunning) {
			return fmt.Errorf("transapp is already running: %w", err)
		}
		return err
	}
	defer lock.Release()

	combo, err := hotkey.Parse(store.Hotkey())
	if err != nil {
		return fmt.Errorf("invalid hotkey in %s: %w", store.Path(), err)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.Global().WithPrefix("main")
	notifier := notify.NewTerminal(os.Stderr)

	client, err := newSessionClient(cfg, session.WithLogger(logger.Global().WithPrefix("session")),
		session.WithStateCallback(func(s session.State, err error) {
			if err != nil {
				log.Debug("Connection state: %s (%v)", s, err)
				return
			}
			log.Debug("Connection state: %s", s)
		}))
	if err != nil {
		return err
	}
	defer client.Disconnect()

	dispatcher, err := newDispatcher(cfg, client, store)
	if err != nil {
		return err
	}

	handler := app.NewHandler(dispatcher, clipboard.NewSystem(), notifier, store)
	listener := hotkey.NewListener()
	if err := listener.Register(combo, handler.Callback(ctx)); err != nil {
		return err
	}
	defer listener.Unregister()

	monitor := session.NewMonitor(client, config.Seconds(cfg.Timeouts.MonitorInterval), config.Seconds(cfg.Timeouts.ReconnectDelay))
	monitor.SetLogger(logger.Global().WithPrefix("monitor"))
	defer monitor.Stop()

	// hot reload: the hotkey and log level apply immediately, translator and
	// language are read per request
	var reloadMu sync.Mutex
	current := combo
	store.OnChange(func(c config.Config) {
		reloadMu.Lock()
		defer reloadMu.Unlock()

		logger.Global().SetLevel(logger.ParseLevel(c.LogLevel))
		next, err := hotkey.Parse(c.User.TranslateKeyboard)
		if err != nil {
			log.Warn("Ignoring invalid hotkey %q: %v", c.User.TranslateKeyboard, err)
			return
		}
		if next.String() == current.String() || ctx.Err() != nil {
			return
		}
		if err := listener.Register(next, handler.Callback(ctx)); err != nil {
			log.Error("Failed to switch hotkey to %s: %v", next, err)
			notifier.Notify(notify.LevelError, "Hotkey error", fmt.Sprintf("Could not register %s", next))
			return
		}
		current = next
		notifier.Notify(notify.LevelInfo, "Hotkey changed", next.String())
	})
	if err := store.Watch(); err != nil {
		log.Warn("Configuration changes will not be picked up: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := client.Connect(gctx); err != nil {
			if gctx.Err() != nil {
				return nil
			}
			notifier.Notify(notify.LevelWarning, "Connection error",
				fmt.Sprintf("Could not reach %s, retrying in the background", cfg.ServerAddress()))
		}
		monitor.Start(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	notifier.Notify(notify.LevelInfo, "Ready",
		fmt.Sprintf("Press %s to translate the clipboard to %s", combo, store.TargetLanguage()))
	log.Info("transapp started (gateway %s, hotkey %s)", cfg.ServerAddress(), combo)

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Shutting down")
	return nil
}
