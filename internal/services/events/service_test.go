package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/oxbowlabs/vantage/internal/interfaces"
)

func TestPublish_DeliversToAllSubscribers(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	var mu sync.Mutex
	received := 0

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Subscribe(interfaces.EventLoginSucceeded, func(_ context.Context, _ interfaces.Event) error {
			mu.Lock()
			received++
			mu.Unlock()
			return nil
		}))
	}

	require.NoError(t, svc.Publish(context.Background(), interfaces.Event{Type: interfaces.EventLoginSucceeded}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return received == 3
	}, time.Second, 5*time.Millisecond)
}

func TestPublish_NoSubscribers(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	assert.NoError(t, svc.Publish(context.Background(), interfaces.Event{Type: interfaces.EventSessionClosed}))
}

func TestPublish_TypeIsolation(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	var mu sync.Mutex
	var got []interfaces.EventType

	require.NoError(t, svc.Subscribe(interfaces.EventLoginFailed, func(_ context.Context, event interfaces.Event) error {
		mu.Lock()
		got = append(got, event.Type)
		mu.Unlock()
		return nil
	}))

	require.NoError(t, svc.Publish(context.Background(), interfaces.Event{Type: interfaces.EventLoginSucceeded}))
	require.NoError(t, svc.Publish(context.Background(), interfaces.Event{Type: interfaces.EventLoginFailed}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0] == interfaces.EventLoginFailed
	}, time.Second, 5*time.Millisecond)
}

func TestPublishSync_WaitsForHandlers(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	done := false
	require.NoError(t, svc.Subscribe(interfaces.EventLoginQRReady, func(_ context.Context, _ interfaces.Event) error {
		time.Sleep(20 * time.Millisecond)
		done = true
		return nil
	}))

	require.NoError(t, svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventLoginQRReady}))
	assert.True(t, done)
}

func TestPublishSync_AggregatesErrors(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	require.NoError(t, svc.Subscribe(interfaces.EventLoginQRReady, func(_ context.Context, _ interfaces.Event) error {
		return errors.New("handler broke")
	}))

	assert.Error(t, svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventLoginQRReady}))
}

func TestSubscribe_NilHandler(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	assert.Error(t, svc.Subscribe(interfaces.EventLoginQRReady, nil))
}

func TestSubscribe_AfterClose(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	require.NoError(t, svc.Close())

	err := svc.Subscribe(interfaces.EventLoginQRReady, func(_ context.Context, _ interfaces.Event) error {
		return nil
	})
	assert.Error(t, err)
}
