// Package app connects the hotkey to the translation pipeline: clipboard in,
// translation out, one notification per outcome.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/ytkinroman/trans-app/internal/clipboard"
	"github.com/ytkinroman/trans-app/internal/gateway"
	"github.com/ytkinroman/trans-app/internal/logger"
	"github.com/ytkinroman/trans-app/internal/notify"
)

// Translator is satisfied by dispatch.Dispatcher
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Preferences decides what happens to a result
type Preferences interface {
	CopyToClipboard() bool
}

type alwaysCopy struct{}

func (alwaysCopy) CopyToClipboard() bool { return true }

// Handler runs one translation per hotkey press
type Handler struct {
	translator Translator
	clipboard  clipboard.Clipboard
	notifier   notify.Notifier
	prefs      Preferences
	log        *logger.Logger
}

// NewHandler creates a Handler. A nil prefs copies every result to the clipboard.
func NewHandler(translator Translator, clip clipboard.Clipboard, notifier notify.Notifier, prefs Preferences) *Handler {
	if prefs == nil {
		prefs = alwaysCopy{}
	}
	return &Handler{
		translator: translator,
		clipboard:  clip,
		notifier:   notifier,
		prefs:      prefs,
		log:        logger.Global().WithPrefix("app"),
	}
}

// Callback adapts Handle to a hotkey callback bound to ctx
func (h *Handler) Callback(ctx context.Context) func() {
	return func() {
		if err := h.Handle(ctx); err != nil {
			h.log.Debug("Hotkey handling ended with: %v", err)
		}
	}
}

// Handle translates the clipboard text. The outcome, success or failure, is
// reported through the notifier; the error is returned for logging.
func (h *Handler) Handle(ctx context.Context) error {
	text, err := h.clipboard.ReadText()
	if err != nil {
		h.notifier.Notify(notify.LevelError, "Clipboard error", "Could not read the clipboard")
		return fmt.Errorf("read clipboard: %w", err)
	}

	result, err := h.translator.Translate(ctx, text)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return err
		}
		level, title, message := describe(err)
		h.notifier.Notify(level, title, message)
		return err
	}

	if !h.prefs.CopyToClipboard() {
		h.notifier.Notify(notify.LevelSuccess, "Translation", result)
		return nil
	}
	if err := h.clipboard.WriteText(result); err != nil {
		h.notifier.Notify(notify.LevelError, "Clipboard error", "Could not write the translation to the clipboard")
		return fmt.Errorf("write clipboard: %w", err)
	}
	h.notifier.Notify(notify.LevelSuccess, "Translated", "Result copied to the clipboard")
	return nil
}

// describe maps an error to the message shown to the user
func describe(err error) (notify.Level, string, string) {
	switch gateway.KindOf(err) {
	case gateway.KindEmptyInput:
		return notify.LevelWarning, "Nothing to translate", "Copy some text first"
	case gateway.KindBusy:
		return notify.LevelInfo, "Translation in progress", "Wait for the current translation to finish"
	case gateway.KindConnectionUnavailable:
		return notify.LevelError, "Connection error", "Could not reach the translation server"
	case gateway.KindRequestFailed:
		return notify.LevelError, "Request failed", "The server rejected the translation request"
	case gateway.KindResultUnavailable:
		return notify.LevelWarning, "Translation unavailable", "The translator could not translate this text"
	case gateway.KindTimeout:
		return notify.LevelError, "Timed out", "The server did not answer in time"
	case gateway.KindMalformedMessage:
		return notify.LevelError, "Unexpected response", "The server sent a message that could not be read"
	default:
		return notify.LevelError, "Translation failed", err.Error()
	}
}
