package outbox

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	m      sync.Mutex
	events []Event
	sent   []int64
	failed []int64
}

func (s *fakeStore) LockBatch(context.Context, string, int, time.Duration) ([]Event, error) {
	s.m.Lock()
	defer s.m.Unlock()
	out := s.events
	s.events = nil
	return out, nil
}

func (s *fakeStore) MarkSent(_ context.Context, ids []int64) error {
	s.m.Lock()
	defer s.m.Unlock()
	s.sent = append(s.sent, ids...)
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id int64, _ string) error {
	s.m.Lock()
	defer s.m.Unlock()
	s.failed = append(s.failed, id)
	return nil
}

type fakeProducer struct {
	m    sync.Mutex
	msgs []kafka.Message
	err  error
}

func (p *fakeProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	p.m.Lock()
	defer p.m.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func TestDispatchSetsHeadersAndKey(t *testing.T) {
	p := &fakeProducer{}
	d := NewDispatcher(slog.Default(), p, "cart.events")

	err := d.Dispatch(context.Background(), Event{
		ID:          1,
		AggregateID: "cart-1",
		Type:        "CartRepriced",
		Payload:     []byte(`{}`),
		Traceparent: "00-abc-def-01",
	})

	require.NoError(t, err)
	require.Len(t, p.msgs, 1)
	msg := p.msgs[0]
	assert.Equal(t, "cart.events", msg.Topic)
	assert.Equal(t, []byte("cart-1"), msg.Key)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte("CartRepriced"), msg.Headers[0].Value)
	assert.Equal(t, "traceparent", msg.Headers[1].Key)
}

func TestRelayMarksSentAndFailed(t *testing.T) {
	store := &fakeStore{events: []Event{
		{ID: 1, AggregateID: "cart-1", Type: "CartRepriced"},
		{ID: 2, AggregateID: "cart-2", Type: "CartRepriced"},
	}}
	p := &fakeProducer{}
	relay := NewRelay(slog.Default(), store, NewDispatcher(slog.Default(), p, "cart.events"), "test-relay")
	relay.interval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, relay.Run(ctx))

	store.m.Lock()
	defer store.m.Unlock()
	assert.ElementsMatch(t, []int64{1, 2}, store.sent)
	assert.Empty(t, store.failed)
}

func TestRelayRecordsDispatchFailures(t *testing.T) {
	store := &fakeStore{events: []Event{{ID: 7, AggregateID: "cart-1"}}}
	p := &fakeProducer{err: errors.New("broker down")}
	relay := NewRelay(slog.Default(), store, NewDispatcher(slog.Default(), p, "cart.events"), "test-relay")
	relay.interval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, relay.Run(ctx))

	store.m.Lock()
	defer store.m.Unlock()
	assert.Empty(t, store.sent)
	assert.Equal(t, []int64{7}, store.failed)
}
