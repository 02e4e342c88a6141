package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ytkinroman/trans-app/internal/gateway/gatewaytest"
	"github.com/ytkinroman/trans-app/internal/logger"
)

var (
	devGatewayAddr  string
	devGatewayDelay time.Duration
)

var devGatewayCmd = &cobra.Command{
	Use:   "dev-gateway",
	Short: "Run a local stand-in for the translation gateway",
	Long: `Serve the gateway protocol on a local port for development. Every job is
answered with the text prefixed by its target language, e.g. "[en] bonjour".

Point the client at it with TRANSAPP_SERVER_HOST=127.0.0.1.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveDevGateway(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(devGatewayCmd)
	devGatewayCmd.Flags().StringVar(&devGatewayAddr, "addr", "127.0.0.1:8080", "Listen address")
	devGatewayCmd.Flags().DurationVar(&devGatewayDelay, "delay", 0, "Delay before each result is pushed")
}

func serveDevGateway(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, err := logger.New(logger.Options{Level: logger.LevelInfo, Mirror: os.Stderr, Prefix: "dev-gateway"})
	if err != nil {
		return err
	}

	gw := gatewaytest.New(gatewaytest.WithPushDelay(devGatewayDelay))
	server := &http.Server{
		Addr:              devGatewayAddr,
		Handler:           gw,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          logger.StdLogger(log, logger.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	log.Info("Listening on ws://%s%s and http://%s%s",
		devGatewayAddr, gatewaytest.WebSocketPath, devGatewayAddr, gatewaytest.APIPrefix)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Info("Shutting down")
	gw.DropConnections()
	return server.Shutdown(shutdownCtx)
}
