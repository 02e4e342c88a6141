package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytkinroman/trans-app/internal/gateway/gatewaytest"
)

type fakeTarget struct {
	alive      atomic.Bool
	reconnects atomic.Int64
	fail       atomic.Bool
	block      chan struct{}
}

func (f *fakeTarget) IsAlive() bool {
	return f.alive.Load()
}

func (f *fakeTarget) Reconnect(ctx context.Context, _ time.Duration) error {
	f.reconnects.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.fail.Load() {
		return errors.New("gateway unreachable")
	}
	f.alive.Store(true)
	return nil
}

func TestMonitorReconnectsDeadTarget(t *testing.T) {
	target := &fakeTarget{}
	m := NewMonitor(target, 20*time.Millisecond, 0)
	m.Start(context.Background())
	defer m.Stop()

	assert.Eventually(t, target.IsAlive, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), m.Reconnects())

	// a live target is only checked
	checks := m.Checks()
	assert.Eventually(t, func() bool { return m.Checks() > checks+2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), target.reconnects.Load())
}

func TestMonitorKeepsTryingAfterFailure(t *testing.T) {
	target := &fakeTarget{}
	target.fail.Store(true)

	m := NewMonitor(target, 10*time.Millisecond, 0)
	m.Start(context.Background())
	defer m.Stop()

	assert.Eventually(t, func() bool { return target.reconnects.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.False(t, target.IsAlive())

	target.fail.Store(false)
	assert.Eventually(t, target.IsAlive, time.Second, 5*time.Millisecond)
}

func TestMonitorStartIsIdempotent(t *testing.T) {
	target := &fakeTarget{}
	target.alive.Store(true)

	m := NewMonitor(target, time.Hour, 0)
	m.Start(context.Background())
	m.Start(context.Background())
	assert.True(t, m.Running())

	assert.Eventually(t, func() bool { return m.Checks() == 1 }, time.Second, 5*time.Millisecond)

	m.Stop()
	m.Stop()
	assert.False(t, m.Running())
	assert.Equal(t, int64(1), m.Checks())
}

func TestMonitorStopInterruptsReconnect(t *testing.T) {
	target := &fakeTarget{block: make(chan struct{})}

	m := NewMonitor(target, time.Hour, 0)
	m.Start(context.Background())
	require.Eventually(t, func() bool { return target.reconnects.Load() == 1 }, time.Second, 5*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while a reconnect was in flight")
	}
}

func TestMonitorStopsWithParentContext(t *testing.T) {
	target := &fakeTarget{}
	target.alive.Store(true)

	ctx, cancel := context.WithCancel(context.Background())
	m := NewMonitor(target, 10*time.Millisecond, 0)
	m.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop hung after parent context was cancelled")
	}
}

func TestMonitorRestoresDroppedSession(t *testing.T) {
	srv := gatewaytest.NewServer(gatewaytest.WithSessionIDs("first", "second"))
	defer srv.Close()

	client, _ := newTestClient(t, srv)
	require.NoError(t, client.Connect(context.Background()))

	m := NewMonitor(client, 20*time.Millisecond, 10*time.Millisecond)
	m.Start(context.Background())
	defer m.Stop()

	srv.DropConnections()

	// the drop surfaces on the next read
	_, err := client.ReceiveNext(context.Background())
	require.Error(t, err)

	assert.Eventually(t, func() bool { return client.SessionID() == "second" }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, srv.ConnectCount())
}
