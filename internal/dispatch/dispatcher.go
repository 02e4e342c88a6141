// Package dispatch turns a piece of text into a translation: it makes sure a
// gateway session exists, submits the job over HTTP and waits for the result
// to arrive on the session's socket.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ytkinroman/trans-app/internal/gateway"
	"github.com/ytkinroman/trans-app/internal/logger"
)

// Settings supplies the user's current translator and target language
type Settings interface {
	TranslatorCode() string
	TargetLanguage() string
}

// SessionClient is the part of session.Client the dispatcher needs
type SessionClient interface {
	IsAlive() bool
	SessionID() string
	Reconnect(ctx context.Context, delay time.Duration) error
	ReceiveNext(ctx context.Context) (gateway.Result, error)
	Disconnect() error
}

// HTTPDoer sends the translate call
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds dispatcher configuration
type Config struct {
	// APIURL is the gateway API base, with trailing slash
	APIURL string
	// RequestTimeout bounds the translate call
	RequestTimeout time.Duration
	// ResultTimeout bounds the wait for the pushed result
	ResultTimeout time.Duration
	// OnDemandDelay is the reconnect delay used when a request finds no session
	OnDemandDelay time.Duration
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		RequestTimeout: 10 * time.Second,
		ResultTimeout:  20 * time.Second,
		OnDemandDelay:  time.Second,
	}
}

const maxResponseBody = 64 << 10

// errUnconfirmed marks a translate call that may have reached the gateway
// without a definite answer. A result for it can still arrive on the session.
var errUnconfirmed = errors.New("gateway answer lost")

// Dispatcher runs one translation at a time against a gateway session
type Dispatcher struct {
	cfg      Config
	sessions SessionClient
	settings Settings
	http     HTTPDoer
	log      *logger.Logger

	// busy is held for the duration of a Translate call
	busy sync.Mutex
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithHTTPClient replaces the HTTP client used for the translate call
func WithHTTPClient(doer HTTPDoer) Option {
	return func(d *Dispatcher) {
		d.http = doer
	}
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(d *Dispatcher) {
		d.log = l
	}
}

// New creates a Dispatcher
func New(cfg Config, sessions SessionClient, settings Settings, opts ...Option) (*Dispatcher, error) {
	if strings.TrimSpace(cfg.APIURL) == "" {
		return nil, errors.New("gateway api url is required")
	}
	if sessions == nil {
		return nil, errors.New("session client is required")
	}
	if settings == nil {
		return nil, errors.New("settings are required")
	}
	if !strings.HasSuffix(cfg.APIURL, "/") {
		cfg.APIURL += "/"
	}

	defaults := DefaultConfig()
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}
	if cfg.ResultTimeout <= 0 {
		cfg.ResultTimeout = defaults.ResultTimeout
	}
	if cfg.OnDemandDelay < 0 {
		cfg.OnDemandDelay = 0
	}

	d := &Dispatcher{
		cfg:      cfg,
		sessions: sessions,
		settings: settings,
		http:     &http.Client{},
		log:      logger.Global().WithPrefix("dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Translate translates text with the user's current settings. Text longer
// than gateway.MaxTextLength characters is truncated. A call made while
// another is in flight fails with gateway.ErrBusy.
func (d *Dispatcher) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", gateway.NewError(gateway.KindEmptyInput, "translate", errors.New("nothing to translate"))
	}
	if !d.busy.TryLock() {
		return "", gateway.NewError(gateway.KindBusy, "translate", errors.New("a translation is already in progress"))
	}
	defer d.busy.Unlock()

	trace := uuid.NewString()
	log := d.log.WithPrefix(trace[:8])
	start := time.Now()

	result, err := d.translate(ctx, log, text)
	if err != nil {
		log.Warn("Translation failed after %v: %v", time.Since(start), err)
		return "", err
	}
	log.Info("Translation done in %v (%d chars)", time.Since(start), len([]rune(result)))
	return result, nil
}

func (d *Dispatcher) translate(ctx context.Context, log *logger.Logger, text string) (string, error) {
	if !d.sessions.IsAlive() {
		log.Info("No live session, reconnecting")
		if err := d.sessions.Reconnect(ctx, d.cfg.OnDemandDelay); err != nil {
			return "", asKind(gateway.KindConnectionUnavailable, "reconnect", err)
		}
	}

	sessionID := d.sessions.SessionID()
	if sessionID == "" {
		return "", gateway.NewError(gateway.KindConnectionUnavailable, "translate", errors.New("no session"))
	}

	req := gateway.NewTranslateRequest(text, d.settings.TranslatorCode(), d.settings.TargetLanguage(), sessionID)
	log.Debug("Submitting %d chars via %s to %s for session %s",
		len([]rune(req.Text)), req.TranslatorCode, req.TargetLanguage, sessionID)

	if err := d.submit(ctx, req); err != nil {
		if errors.Is(err, errUnconfirmed) {
			log.Warn("Dropping session %s, a result for the lost call may still arrive", sessionID)
			_ = d.sessions.Disconnect()
		}
		return "", err
	}

	// A result pushed to another session must not be taken for ours
	if current := d.sessions.SessionID(); current != sessionID {
		return "", gateway.NewError(gateway.KindConnectionUnavailable, "receive",
			fmt.Errorf("session changed from %q to %q", sessionID, current))
	}

	recvCtx, cancel := context.WithTimeout(ctx, d.cfg.ResultTimeout)
	defer cancel()

	res, err := d.sessions.ReceiveNext(recvCtx)
	if err != nil {
		return "", asKind(gateway.KindConnectionUnavailable, "receive", err)
	}
	return res.Text, nil
}

// submit posts the job. It never reads the stream. Only a non-200 status or
// a decoded refusal counts as a rejection; any other failure after the
// request went out is wrapped in errUnconfirmed.
func (d *Dispatcher) submit(ctx context.Context, req gateway.TranslateRequest) error {
	body, err := req.Marshal()
	if err != nil {
		return gateway.NewError(gateway.KindRequestFailed, "encode", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
	defer cancel()

	url := d.cfg.APIURL + gateway.TranslatePath
	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return gateway.NewError(gateway.KindRequestFailed, "submit", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := d.http.Do(httpReq)
	if err != nil {
		return gateway.NewError(gateway.KindRequestFailed, "submit", fmt.Errorf("%w: %w", errUnconfirmed, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if resp.StatusCode != http.StatusOK {
		return gateway.NewError(gateway.KindRequestFailed, "submit",
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}
	if err != nil {
		return gateway.NewError(gateway.KindRequestFailed, "submit", fmt.Errorf("%w: read response: %w", errUnconfirmed, err))
	}

	var out gateway.CallResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return gateway.NewError(gateway.KindRequestFailed, "submit", fmt.Errorf("%w: decode response: %w", errUnconfirmed, err))
	}
	if !out.Accepted() {
		return gateway.NewError(gateway.KindRequestFailed, "submit",
			fmt.Errorf("gateway answered status %q: %s", out.Status, out.Message))
	}
	return nil
}

// asKind keeps a gateway error as is and wraps anything else
func asKind(kind gateway.Kind, op string, err error) error {
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		return err
	}
	return gateway.NewError(kind, op, err)
}
