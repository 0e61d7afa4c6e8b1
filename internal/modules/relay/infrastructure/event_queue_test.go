package infrastructure

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sglre6355/covenbot/internal/modules/relay/application"
	"github.com/sglre6355/covenbot/internal/modules/relay/application/ports"
	"github.com/sglre6355/covenbot/internal/modules/relay/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commandEnvelope(name string) ports.Envelope {
	return ports.Envelope{Event: domain.NewCommandInvocation(name, domain.Actor{UserID: "1"}, nil)}
}

func TestChannelEventQueue_HandlesEveryEnvelope(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	q := NewChannelEventQueue(10, 2, func(_ context.Context, env ports.Envelope) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, env.Event.Command())
	})

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, q.Publish(context.Background(), commandEnvelope(name)))
	}
	q.Close()

	assert.ElementsMatch(t, []string{"a", "b", "c"}, seen)
}

func TestChannelEventQueue_FullBufferRejects(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{}, 1)
	q := NewChannelEventQueue(1, 1, func(context.Context, ports.Envelope) {
		started <- struct{}{}
		<-block
	})
	defer q.Close()
	defer close(block)

	require.NoError(t, q.Publish(context.Background(), commandEnvelope("held")))
	<-started
	require.NoError(t, q.Publish(context.Background(), commandEnvelope("buffered")))

	err := q.Publish(context.Background(), commandEnvelope("dropped"))

	assert.ErrorIs(t, err, ports.ErrQueueFull)
}

func TestChannelEventQueue_SlowEventDoesNotBlockOthers(t *testing.T) {
	block := make(chan struct{})
	fast := make(chan string, 1)
	q := NewChannelEventQueue(10, 2, func(_ context.Context, env ports.Envelope) {
		if env.Event.Command() == "slow" {
			<-block
			return
		}
		fast <- env.Event.Command()
	})
	defer q.Close()
	defer close(block)

	require.NoError(t, q.Publish(context.Background(), commandEnvelope("slow")))
	require.NoError(t, q.Publish(context.Background(), commandEnvelope("fast")))

	select {
	case got := <-fast:
		assert.Equal(t, "fast", got)
	case <-time.After(time.Second):
		t.Fatal("fast event was blocked by slow event")
	}
}

func TestChannelEventQueue_PublishAfterClose(t *testing.T) {
	q := NewChannelEventQueue(0, 0, func(context.Context, ports.Envelope) {})
	q.Close()
	q.Close()

	err := q.Publish(context.Background(), commandEnvelope("late"))

	assert.ErrorIs(t, err, ports.ErrQueueClosed)
}

func TestChannelEventQueue_RecoversFromPanic(t *testing.T) {
	handled := make(chan string, 2)
	q := NewChannelEventQueue(10, 1, func(_ context.Context, env ports.Envelope) {
		if env.Event.Command() == "boom" {
			panic("boom")
		}
		handled <- env.Event.Command()
	})
	defer q.Close()

	require.NoError(t, q.Publish(context.Background(), commandEnvelope("boom")))
	require.NoError(t, q.Publish(context.Background(), commandEnvelope("after")))

	select {
	case got := <-handled:
		assert.Equal(t, "after", got)
	case <-time.After(time.Second):
		t.Fatal("worker did not survive panic")
	}
}

func TestChannelEventQueue_TimedOutSubmitLeavesNoMark(t *testing.T) {
	registry, err := domain.NewRegistry([]domain.CommandDescriptor{{
		Name:       "welcome",
		Reply:      domain.TextReply("Coven Zero — Initiation", true),
		Once:       true,
		RepeatText: "You have already crossed the threshold.",
	}})
	require.NoError(t, err)
	dedup := NewMemoryDedupStore()
	dispatcher := application.NewDispatcher(registry, NewWebhookRelay(time.Second), dedup, nil, nil, application.DispatcherConfig{})

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	q := NewChannelEventQueue(10, 1, func(ctx context.Context, env ports.Envelope) {
		if env.Event.Command() == "held" {
			started <- struct{}{}
			<-block
			return
		}
		dispatcher.Handle(ctx, env)
	})
	defer q.Close()

	require.NoError(t, q.Publish(context.Background(), commandEnvelope("held")))
	<-started

	welcome := domain.NewCommandInvocation("welcome", domain.Actor{UserID: "5"}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = application.Submit(ctx, q, welcome)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(block)
	outcome, err := application.Submit(context.Background(), q, welcome)
	require.NoError(t, err)

	assert.Equal(t, "Coven Zero — Initiation", outcome.Reply.Text)
}
