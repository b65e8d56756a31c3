package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestInMemoryDeliversInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	require.NoError(t, q.Publish(ctx, Message{Type: TypeInsightsStale, Reason: "member.created"}))
	require.NoError(t, q.Publish(ctx, Message{Type: TypeInsightsStale, Reason: "member.deleted"}))

	ch, err := q.Consume(ctx)
	require.NoError(t, err)

	assert.Equal(t, "member.created", (<-ch).Reason)
	assert.Equal(t, "member.deleted", (<-ch).Reason)
}

func TestInMemoryConsumerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := NewInMemory(1)
	ch, err := q.Consume(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Publish(ctx, Message{Type: TypeInsightsStale}))
	cancel()

	select {
	case <-drain(ch):
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestInMemoryPublishHonoursContext(t *testing.T) {
	q := NewInMemory(1)
	require.NoError(t, q.Publish(context.Background(), Message{Type: TypeInsightsStale}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Publish(ctx, Message{Type: TypeInsightsStale}), context.DeadlineExceeded)
}

func TestMessageWireFormat(t *testing.T) {
	at := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	b, err := json.Marshal(Message{Type: TypeInsightsStale, Reason: "attendance.changed", At: at})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"insights.stale","reason":"attendance.changed","at":"2024-03-10T09:00:00Z"}`, string(b))
}

func drain(ch <-chan Message) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range ch {
		}
	}()
	return done
}
