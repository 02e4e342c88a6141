package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ytkinroman/trans-app/internal/config"
	"github.com/ytkinroman/trans-app/internal/dispatch"
	"github.com/ytkinroman/trans-app/internal/logger"
	"github.com/ytkinroman/trans-app/internal/session"
	"github.com/ytkinroman/trans-app/internal/transport"
)

var (
	configPath string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "transapp",
	Short: "Translate the clipboard with a global hotkey",
	Long: `transapp listens for a system-wide key combination. When it is pressed the
text on the clipboard is sent to the translation gateway and the clipboard is
replaced with the translation.

Run 'transapp run' to start listening, or 'transapp translate <text>' for a
one-off translation from the terminal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (default: "+config.GetConfigPath()+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Mirror the log to stderr")
}

// openStore loads the configuration and starts the global logger
func openStore() (*config.Store, error) {
	path := configPath
	if path == "" {
		path = config.GetConfigPath()
	}

	store, err := config.OpenStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg := store.Config()
	opts := logger.Options{Level: logger.ParseLevel(cfg.LogLevel), Path: cfg.LogPath}
	if verbose {
		opts.Mirror = os.Stderr
		if opts.Level > logger.LevelDebug {
			opts.Level = logger.LevelDebug
		}
	}
	if err := logger.Init(opts); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	store.SetLogger(logger.Global().WithPrefix("config"))

	logger.Debug("Configuration loaded from %s: gateway=%s log_level=%s", path, cfg.ServerAddress(), cfg.LogLevel)
	return store, nil
}

// newSessionClient builds a gateway client from cfg
func newSessionClient(cfg config.Config, opts ...session.Option) (*session.Client, error) {
	t := cfg.Timeouts
	dialer := transport.NewWebSocketDialer(config.Seconds(t.Connect), config.Seconds(t.PingInterval))
	return session.NewClient(session.Config{
		URL:                  cfg.WebSocketURL(),
		ConnectTimeout:       config.Seconds(t.Connect),
		HelloTimeout:         config.Seconds(t.Hello),
		MaxReconnectAttempts: t.MaxReconnectAttempts,
	}, dialer, opts...)
}

// newDispatcher builds a dispatcher bound to client
func newDispatcher(cfg config.Config, client dispatch.SessionClient, settings dispatch.Settings) (*dispatch.Dispatcher, error) {
	t := cfg.Timeouts
	return dispatch.New(dispatch.Config{
		APIURL:         cfg.APIURL(),
		RequestTimeout: config.Seconds(t.Request),
		ResultTimeout:  config.Seconds(t.Result),
		OnDemandDelay:  time.Second,
	}, client, settings)
}
