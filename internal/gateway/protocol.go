package gateway

import (
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

const (
	// MaxTextLength is the maximum number of characters sent per request
	MaxTextLength = 900

	// MethodTranslate is the only method the translate endpoint accepts
	MethodTranslate = "translate"

	// StatusSuccess is the value of the "status" field on an accepted call
	StatusSuccess = "success"

	// TranslatePath is appended to the API base URL
	TranslatePath = "translate"

	roomPrefix = "room_"
)

// TranslateRequest is one translation job bound to a session
type TranslateRequest struct {
	Text           string
	TranslatorCode string
	TargetLanguage string
	SessionID      string
}

// NewTranslateRequest builds a request, truncating text to MaxTextLength
func NewTranslateRequest(text, translatorCode, targetLanguage, sessionID string) TranslateRequest {
	return TranslateRequest{
		Text:           Truncate(text, MaxTextLength),
		TranslatorCode: translatorCode,
		TargetLanguage: targetLanguage,
		SessionID:      sessionID,
	}
}

// Truncate cuts s to at most max characters without splitting a rune
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// CallBody is the JSON body of the stateless translate call
type CallBody struct {
	Method      string      `json:"method"`
	WSSessionID string      `json:"ws_session_id"`
	Payload     CallPayload `json:"payload"`
}

// CallPayload carries the text and provider selection
type CallPayload struct {
	Text           string `json:"text"`
	TranslatorCode string `json:"translator_code"`
	TargetLang     string `json:"target_lang"`
}

// Body returns the wire body for r
func (r TranslateRequest) Body() CallBody {
	return CallBody{
		Method:      MethodTranslate,
		WSSessionID: r.SessionID,
		Payload: CallPayload{
			Text:           r.Text,
			TranslatorCode: r.TranslatorCode,
			TargetLang:     r.TargetLanguage,
		},
	}
}

// Marshal encodes the wire body for r
func (r TranslateRequest) Marshal() ([]byte, error) {
	return json.Marshal(r.Body())
}

// CallResponse is the body returned by the translate endpoint
type CallResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Accepted reports whether the gateway queued the job
func (r CallResponse) Accepted() bool {
	return r.Status == StatusSuccess
}

// ParseSessionID extracts the session identifier from the first message of a
// connection. The gateway sends {"room_id":"room_<id>"}; every "room_" is
// removed. Older gateways send {"session_id":"<id>"} instead.
func ParseSessionID(data []byte) (string, error) {
	if !gjson.ValidBytes(data) {
		return "", NewError(KindMalformedMessage, "parse hello", errors.New("invalid json"))
	}
	room := gjson.GetBytes(data, "room_id")
	if room.Type == gjson.String {
		if id := strings.ReplaceAll(room.String(), roomPrefix, ""); id != "" {
			return id, nil
		}
	}
	legacy := gjson.GetBytes(data, "session_id")
	if legacy.Type == gjson.String && legacy.String() != "" {
		return legacy.String(), nil
	}
	return "", NewError(KindMalformedMessage, "parse hello", errors.New("missing session id"))
}

// Result is a translation pushed by the gateway over the socket
type Result struct {
	Text string
}

// ParseResult decodes a result message. A message with a non-empty "error"
// field yields KindResultUnavailable; one without result.result.text yields
// KindMalformedMessage.
func ParseResult(data []byte) (Result, error) {
	if !gjson.ValidBytes(data) {
		return Result{}, NewError(KindMalformedMessage, "parse result", errors.New("invalid json"))
	}
	if e := gjson.GetBytes(data, "error"); e.Exists() && e.Type != gjson.Null && e.Type != gjson.False && e.String() != "" {
		return Result{}, NewError(KindResultUnavailable, "parse result", errors.New(e.String()))
	}
	text := gjson.GetBytes(data, "result.result.text")
	if text.Type != gjson.String {
		return Result{}, NewError(KindMalformedMessage, "parse result", errors.New("missing result.result.text"))
	}
	return Result{Text: text.String()}, nil
}
