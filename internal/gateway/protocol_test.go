package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSessionID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"room prefix stripped", `{"room_id":"room_abc123"}`, "abc123", false},
		{"every occurrence removed", `{"room_id":"room_abroom_c"}`, "abc", false},
		{"no prefix", `{"room_id":"xyz"}`, "xyz", false},
		{"legacy session field", `{"session_id":"legacy1"}`, "legacy1", false},
		{"room wins over legacy", `{"room_id":"room_a","session_id":"b"}`, "a", false},
		{"prefix only falls back", `{"room_id":"room_","session_id":"b"}`, "b", false},
		{"prefix only", `{"room_id":"room_"}`, "", true},
		{"empty", `{"room_id":""}`, "", true},
		{"missing", `{"hello":"world"}`, "", true},
		{"number", `{"room_id":42}`, "", true},
		{"not json", `room_abc`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSessionID([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformedMessage))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseResult(t *testing.T) {
	res, err := ParseResult([]byte(`{"result":{"result":{"text":"hello"}}}`))
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Text)

	res, err = ParseResult([]byte(`{"result":{"result":{"text":""}},"error":null}`))
	require.NoError(t, err)
	assert.Equal(t, "", res.Text)

	_, err = ParseResult([]byte(`{"error":"language not supported"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResultUnavailable))
	assert.Contains(t, err.Error(), "language not supported")

	_, err = ParseResult([]byte(`{"error":true}`))
	assert.True(t, errors.Is(err, ErrResultUnavailable))

	_, err = ParseResult([]byte(`{"result":{"text":"flat"}}`))
	assert.True(t, errors.Is(err, ErrMalformedMessage))

	_, err = ParseResult([]byte(`{{`))
	assert.True(t, errors.Is(err, ErrMalformedMessage))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "", Truncate("abc", 0))
	assert.Equal(t, "при", Truncate("привет", 3))

	long := strings.Repeat("я", MaxTextLength+50)
	req := NewTranslateRequest(long, "yandex", "en", "s1")
	assert.Equal(t, MaxTextLength, len([]rune(req.Text)))
}

func TestTranslateRequestMarshal(t *testing.T) {
	req := NewTranslateRequest("bonjour", "yandex", "en", "abc123")
	data, err := req.Marshal()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "translate", decoded["method"])
	assert.Equal(t, "abc123", decoded["ws_session_id"])

	payload, ok := decoded["payload"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "bonjour", payload["text"])
	assert.Equal(t, "yandex", payload["translator_code"])
	assert.Equal(t, "en", payload["target_lang"])
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := fmt.Errorf("reconnect: %w", NewError(KindConnectionUnavailable, "connect", cause))

	assert.True(t, errors.Is(err, ErrConnectionUnavailable))
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, KindConnectionUnavailable, KindOf(err))
	assert.Equal(t, KindUnknown, KindOf(cause))
	assert.Equal(t, "[connection_unavailable] connect: dial tcp: refused", NewError(KindConnectionUnavailable, "connect", cause).Error())
}
