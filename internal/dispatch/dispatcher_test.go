package dispatch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytkinroman/trans-app/internal/gateway"
	"github.com/ytkinroman/trans-app/internal/gateway/gatewaytest"
	"github.com/ytkinroman/trans-app/internal/session"
	"github.com/ytkinroman/trans-app/internal/transport"
)

type staticSettings struct {
	translator string
	language   string
}

func (s staticSettings) TranslatorCode() string { return s.translator }
func (s staticSettings) TargetLanguage() string { return s.language }

var yandexToEnglish = staticSettings{translator: "yandex", language: "en"}

// fakeSession is a scripted SessionClient
type fakeSession struct {
	mu         sync.Mutex
	alive      bool
	ids        []string
	reconnects  int
	receives    int
	disconnects int

	reconnectErr error
	receive      func(ctx context.Context) (gateway.Result, error)
}

func (f *fakeSession) IsAlive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive
}

// SessionID pops scripted ids; the last one sticks
func (f *fakeSession) SessionID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.alive || len(f.ids) == 0 {
		return ""
	}
	id := f.ids[0]
	if len(f.ids) > 1 {
		f.ids = f.ids[1:]
	}
	return id
}

func (f *fakeSession) Reconnect(_ context.Context, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnects++
	if f.reconnectErr != nil {
		return f.reconnectErr
	}
	f.alive = true
	return nil
}

func (f *fakeSession) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.alive = false
	return nil
}

func (f *fakeSession) ReceiveNext(ctx context.Context) (gateway.Result, error) {
	f.mu.Lock()
	f.receives++
	receive := f.receive
	f.mu.Unlock()
	if receive == nil {
		return gateway.Result{Text: "hello"}, nil
	}
	return receive(ctx)
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }

func respond(code int, body string) doerFunc {
	return func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: code,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     make(http.Header),
		}, nil
	}
}

func newFakeDispatcher(t *testing.T, fs *fakeSession, doer HTTPDoer) *Dispatcher {
	t.Helper()
	d, err := New(Config{APIURL: "http://gateway.test/api/v1", ResultTimeout: time.Second}, fs, yandexToEnglish, WithHTTPClient(doer))
	require.NoError(t, err)
	return d
}

func newLiveDispatcher(t *testing.T, srv *gatewaytest.Server, resultTimeout time.Duration) (*Dispatcher, *session.Client) {
	t.Helper()
	client, err := session.NewClient(session.Config{URL: srv.WebSocketURL(), MaxReconnectAttempts: 2},
		transport.NewWebSocketDialer(time.Second, 0))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect() })

	d, err := New(Config{APIURL: srv.APIURL(), ResultTimeout: resultTimeout, OnDemandDelay: 10 * time.Millisecond},
		client, yandexToEnglish)
	require.NoError(t, err)
	return d, client
}

func TestNewValidation(t *testing.T) {
	fs := &fakeSession{}
	_, err := New(Config{}, fs, yandexToEnglish)
	assert.Error(t, err)
	_, err = New(Config{APIURL: "http://x/"}, nil, yandexToEnglish)
	assert.Error(t, err)
	_, err = New(Config{APIURL: "http://x/"}, fs, nil)
	assert.Error(t, err)

	d, err := New(Config{APIURL: "http://x/api/v1"}, fs, yandexToEnglish)
	require.NoError(t, err)
	assert.Equal(t, "http://x/api/v1/", d.cfg.APIURL)
	assert.Equal(t, 20*time.Second, d.cfg.ResultTimeout)
}

func TestTranslateRoundTrip(t *testing.T) {
	srv := gatewaytest.NewServer(
		gatewaytest.WithSessionIDs("abc123"),
		gatewaytest.WithTranslator(func(text, _, _ string) (string, error) { return "hello", nil }),
	)
	defer srv.Close()

	d, client := newLiveDispatcher(t, srv, 2*time.Second)
	require.NoError(t, client.Connect(context.Background()))

	out, err := d.Translate(context.Background(), "bonjour")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	calls := srv.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, gateway.MethodTranslate, calls[0].Method)
	assert.Equal(t, "abc123", calls[0].WSSessionID)
	assert.Equal(t, "bonjour", calls[0].Payload.Text)
	assert.Equal(t, "yandex", calls[0].Payload.TranslatorCode)
	assert.Equal(t, "en", calls[0].Payload.TargetLang)
}

func TestTranslateSequentialResultsStayInOrder(t *testing.T) {
	srv := gatewaytest.NewServer(gatewaytest.WithPushDelay(20 * time.Millisecond))
	defer srv.Close()

	d, client := newLiveDispatcher(t, srv, 2*time.Second)
	require.NoError(t, client.Connect(context.Background()))

	for _, word := range []string{"un", "deux", "trois"} {
		out, err := d.Translate(context.Background(), word)
		require.NoError(t, err)
		assert.Equal(t, "[en] "+word, out)
	}
}

func TestTranslateTruncatesLongText(t *testing.T) {
	srv := gatewaytest.NewServer()
	defer srv.Close()

	d, client := newLiveDispatcher(t, srv, 2*time.Second)
	require.NoError(t, client.Connect(context.Background()))

	_, err := d.Translate(context.Background(), strings.Repeat("é", 1000))
	require.NoError(t, err)

	calls := srv.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, gateway.MaxTextLength, utf8.RuneCountInString(calls[0].Payload.Text))
}

func TestTranslateEmptyInput(t *testing.T) {
	fs := &fakeSession{alive: true, ids: []string{"abc123"}}
	var posts atomic.Int64
	d := newFakeDispatcher(t, fs, doerFunc(func(*http.Request) (*http.Response, error) {
		posts.Add(1)
		return nil, errors.New("unexpected call")
	}))

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := d.Translate(context.Background(), text)
		assert.True(t, errors.Is(err, gateway.ErrEmptyInput))
	}
	assert.Equal(t, int64(0), posts.Load())
	assert.Equal(t, 0, fs.reconnects)
}

type failingBody struct{}

func (failingBody) Read([]byte) (int, error) { return 0, errors.New("connection reset by peer") }
func (failingBody) Close() error { return nil }

func TestTranslateHTTPFailureSkipsReceive(t *testing.T) {
	// a failure that leaves the gateway's answer unknown drops the session
	tests := []struct {
		name  string
		doer  HTTPDoer
		drops int
	}{
		{"status 500", respond(http.StatusInternalServerError, `{"status":"error"}`), 0},
		{"status not success", respond(http.StatusOK, `{"status":"error","message":"unknown session"}`), 0},
		{"invalid body", respond(http.StatusOK, `<html>`), 1},
		{"transport error", doerFunc(func(*http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		}), 1},
		{"body read error", doerFunc(func(*http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusOK, Body: failingBody{}, Header: make(http.Header)}, nil
		}), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &fakeSession{alive: true, ids: []string{"abc123"}}
			d := newFakeDispatcher(t, fs, tt.doer)

			_, err := d.Translate(context.Background(), "bonjour")
			require.Error(t, err)
			assert.True(t, errors.Is(err, gateway.ErrRequestFailed), "got %v", err)
			assert.Equal(t, 0, fs.receives)
			assert.Equal(t, tt.drops, fs.disconnects)
		})
	}
}

func TestTranslateLostAnswerDoesNotLeakIntoNextCall(t *testing.T) {
	srv := gatewaytest.NewServer(gatewaytest.WithSessionIDs("first", "second"))
	defer srv.Close()

	client, err := session.NewClient(session.Config{URL: srv.WebSocketURL(), MaxReconnectAttempts: 2},
		transport.NewWebSocketDialer(time.Second, 0))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect() })

	// the first call reaches the gateway but its answer never comes back
	var posts atomic.Int64
	lossy := doerFunc(func(r *http.Request) (*http.Response, error) {
		resp, err := http.DefaultClient.Do(r)
		if err != nil {
			return nil, err
		}
		if posts.Add(1) == 1 {
			resp.Body.Close()
			return nil, errors.New("context deadline exceeded (Client.Timeout exceeded while awaiting headers)")
		}
		return resp, nil
	})
	d, err := New(Config{APIURL: srv.APIURL(), ResultTimeout: 2 * time.Second, OnDemandDelay: 10 * time.Millisecond},
		client, yandexToEnglish, WithHTTPClient(lossy))
	require.NoError(t, err)
	require.NoError(t, client.Connect(context.Background()))

	_, err = d.Translate(context.Background(), "un")
	require.Error(t, err)
	assert.True(t, errors.Is(err, gateway.ErrRequestFailed), "got %v", err)
	assert.False(t, client.IsAlive())
	assert.Equal(t, "", client.SessionID())

	out, err := d.Translate(context.Background(), "deux")
	require.NoError(t, err)
	assert.Equal(t, "[en] deux", out)

	calls := srv.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "first", calls[0].WSSessionID)
	assert.Equal(t, "second", calls[1].WSSessionID)
}

func TestTranslateHTTP500AgainstGateway(t *testing.T) {
	srv := gatewaytest.NewServer()
	defer srv.Close()
	srv.SetTranslateStatus(http.StatusInternalServerError)

	d, client := newLiveDispatcher(t, srv, 2*time.Second)
	require.NoError(t, client.Connect(context.Background()))

	_, err := d.Translate(context.Background(), "bonjour")
	assert.True(t, errors.Is(err, gateway.ErrRequestFailed))
	// the session is untouched by a refused call
	assert.True(t, client.IsAlive())
}

func TestTranslateReconnectsOnceWhenNotLive(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		fs := &fakeSession{ids: []string{"abc123"}}
		d := newFakeDispatcher(t, fs, respond(http.StatusOK, `{"status":"success"}`))

		out, err := d.Translate(context.Background(), "bonjour")
		require.NoError(t, err)
		assert.Equal(t, "hello", out)
		assert.Equal(t, 1, fs.reconnects)
	})

	t.Run("failure", func(t *testing.T) {
		fs := &fakeSession{reconnectErr: errors.New("dial refused")}
		var posts atomic.Int64
		d := newFakeDispatcher(t, fs, doerFunc(func(*http.Request) (*http.Response, error) {
			posts.Add(1)
			return nil, errors.New("unexpected call")
		}))

		_, err := d.Translate(context.Background(), "bonjour")
		assert.True(t, errors.Is(err, gateway.ErrConnectionUnavailable))
		assert.Equal(t, 1, fs.reconnects)
		assert.Equal(t, int64(0), posts.Load())
		assert.Equal(t, 0, fs.receives)
	})

	t.Run("live session skips reconnect", func(t *testing.T) {
		fs := &fakeSession{alive: true, ids: []string{"abc123"}}
		d := newFakeDispatcher(t, fs, respond(http.StatusOK, `{"status":"success"}`))

		_, err := d.Translate(context.Background(), "bonjour")
		require.NoError(t, err)
		assert.Equal(t, 0, fs.reconnects)
	})
}

func TestTranslateReconnectsAgainstGateway(t *testing.T) {
	srv := gatewaytest.NewServer(gatewaytest.WithSessionIDs("abc123"))
	defer srv.Close()

	d, client := newLiveDispatcher(t, srv, 2*time.Second)

	out, err := d.Translate(context.Background(), "bonjour")
	require.NoError(t, err)
	assert.Equal(t, "[en] bonjour", out)
	assert.Equal(t, int64(1), client.Stats().ReconnectSequences)
	assert.Equal(t, 1, srv.ConnectCount())
}

func TestTranslateRejectsConcurrentCall(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	fs := &fakeSession{alive: true, ids: []string{"abc123"}}
	fs.receive = func(ctx context.Context) (gateway.Result, error) {
		close(entered)
		<-release
		return gateway.Result{Text: "first"}, nil
	}
	d := newFakeDispatcher(t, fs, respond(http.StatusOK, `{"status":"success"}`))

	firstDone := make(chan error, 1)
	var first string
	go func() {
		var err error
		first, err = d.Translate(context.Background(), "one")
		firstDone <- err
	}()

	<-entered
	_, err := d.Translate(context.Background(), "two")
	assert.True(t, errors.Is(err, gateway.ErrBusy))

	close(release)
	require.NoError(t, <-firstDone)
	assert.Equal(t, "first", first)
	assert.Equal(t, 1, fs.receives)

	// the dispatcher is free again
	fs.receive = nil
	out, err := d.Translate(context.Background(), "three")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestTranslateTimeoutDropsSession(t *testing.T) {
	srv := gatewaytest.NewServer()
	defer srv.Close()
	srv.SetDropResults(true)

	d, client := newLiveDispatcher(t, srv, 100*time.Millisecond)
	require.NoError(t, client.Connect(context.Background()))

	start := time.Now()
	_, err := d.Translate(context.Background(), "bonjour")
	require.Error(t, err)
	assert.True(t, errors.Is(err, gateway.ErrTimeout), "got %v", err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, session.StateDisconnected, client.State())
	assert.Equal(t, "", client.SessionID())
}

func TestTranslateSocketClosedMidReceive(t *testing.T) {
	srv := gatewaytest.NewServer()
	defer srv.Close()
	srv.SetCloseOnRequest(true)

	d, client := newLiveDispatcher(t, srv, 2*time.Second)
	require.NoError(t, client.Connect(context.Background()))

	_, err := d.Translate(context.Background(), "bonjour")
	require.Error(t, err)
	kind := gateway.KindOf(err)
	assert.Contains(t, []gateway.Kind{gateway.KindConnectionUnavailable, gateway.KindTimeout}, kind)
	assert.Equal(t, session.StateDisconnected, client.State())
}

func TestTranslateResultUnavailable(t *testing.T) {
	srv := gatewaytest.NewServer(gatewaytest.WithTranslator(func(string, string, string) (string, error) {
		return "", errors.New("translator does not support target language")
	}))
	defer srv.Close()

	d, client := newLiveDispatcher(t, srv, 2*time.Second)
	require.NoError(t, client.Connect(context.Background()))

	_, err := d.Translate(context.Background(), "bonjour")
	assert.True(t, errors.Is(err, gateway.ErrResultUnavailable))
	assert.Len(t, srv.Calls(), 1)
	// an error result is an answer, the session stays up
	assert.True(t, client.IsAlive())
}

func TestTranslateSessionChangedBeforeReceive(t *testing.T) {
	fs := &fakeSession{alive: true, ids: []string{"abc123", "def456"}}
	d := newFakeDispatcher(t, fs, respond(http.StatusOK, `{"status":"success"}`))

	_, err := d.Translate(context.Background(), "bonjour")
	assert.True(t, errors.Is(err, gateway.ErrConnectionUnavailable))
	assert.Equal(t, 0, fs.receives)
}

func TestTranslatePostsJSONToTranslateEndpoint(t *testing.T) {
	fs := &fakeSession{alive: true, ids: []string{"abc123"}}
	var seen *http.Request
	var body string
	d := newFakeDispatcher(t, fs, doerFunc(func(r *http.Request) (*http.Response, error) {
		seen = r
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		return respond(http.StatusOK, `{"status":"success"}`)(r)
	}))

	_, err := d.Translate(context.Background(), "bonjour")
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, http.MethodPost, seen.Method)
	assert.Equal(t, "http://gateway.test/api/v1/translate", seen.URL.String())
	assert.Equal(t, "application/json", seen.Header.Get("Content-Type"))
	assert.JSONEq(t,
		`{"method":"translate","ws_session_id":"abc123","payload":{"text":"bonjour","translator_code":"yandex","target_lang":"en"}}`,
		body)
}
