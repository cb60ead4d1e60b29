package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/events"
	"github.com/ariefcatur/storefront-orders/internal/logging"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
	err    error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestProducer_FlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "order.placed", 16, logging.Nop())
	p.Start()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Publish(ctx, []byte("7"), []byte("v")))
	}
	p.Close()
	p.Close()
	p.WaitClosed()

	assert.Len(t, w.msgs, 5)
	assert.True(t, w.closed)
	assert.ErrorIs(t, p.Publish(ctx, nil, nil), ErrProducerClosed)
}

func TestProducer_WriteErrorDoesNotStopLoop(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newProducer(w, "t", 4, logging.Nop())
	p.Start()

	require.NoError(t, p.Publish(context.Background(), nil, []byte("a")))
	require.NoError(t, p.Publish(context.Background(), nil, []byte("b")))
	p.Close()
	p.WaitClosed()

	assert.Len(t, w.msgs, 2)
}

func TestProducer_PublishHonorsContext(t *testing.T) {
	p := newProducer(&fakeWriter{}, "t", 1, logging.Nop())
	// not started, so the second message cannot be queued
	require.NoError(t, p.Publish(context.Background(), nil, []byte("a")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Publish(ctx, nil, []byte("b")), context.DeadlineExceeded)
}

type sinkCall struct {
	key, value []byte
	headers    []kafka.Header
}

type fakeSink struct{ calls []sinkCall }

func (s *fakeSink) Publish(_ context.Context, key, value []byte, headers ...kafka.Header) error {
	s.calls = append(s.calls, sinkCall{key: key, value: value, headers: headers})
	return nil
}

func TestEventPublisher_RoutesByEventType(t *testing.T) {
	accts, ords := &fakeSink{}, &fakeSink{}
	p := &EventPublisher{sinks: map[string]sink{
		events.TopicAccountRegistered: accts,
		events.TopicOrderPlaced:       ords,
	}}

	env, err := events.NewEnvelope(events.EventOrderPlaced, "storefront-api", "", events.PartitionKey(42), "9",
		events.OrderPlacedPayload{OrderID: 9, AccountID: 42})
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), env))

	assert.Empty(t, accts.calls)
	require.Len(t, ords.calls, 1)
	call := ords.calls[0]
	assert.Equal(t, []byte("42"), call.key)

	got, err := DecodeEnvelope(kafka.Message{Key: call.key, Value: call.value, Headers: call.headers})
	require.NoError(t, err)
	assert.Equal(t, env.EventID, got.EventID)
	assert.Equal(t, []byte("42"), got.Key)

	typ, ok := HeaderValue(kafka.Message{Headers: call.headers}, HeaderEventType)
	require.True(t, ok)
	assert.Equal(t, events.EventOrderPlaced, typ)
	ver, _ := HeaderValue(kafka.Message{Headers: call.headers}, HeaderEventVersion)
	assert.Equal(t, "1", ver)
}

func TestEventPublisher_UnknownType(t *testing.T) {
	p := &EventPublisher{sinks: map[string]sink{}}
	err := p.Publish(context.Background(), events.Envelope{EventType: "Nope"})
	require.Error(t, err)
}

func TestDecodeEnvelope_Garbage(t *testing.T) {
	_, err := DecodeEnvelope(kafka.Message{Value: []byte("{")})
	require.Error(t, err)
}

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func runConsumer(t *testing.T, r *fakeReader, workers int, h Handler) (cancel func() error) {
	t.Helper()
	c := newConsumer(r, workers, logging.Nop())
	c.backoff = time.Millisecond

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx, h) }()
	return func() error {
		stop()
		return <-done
	}
}

func TestConsumer_RetriesBeforeCommittingLaterOffsets(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{
		{Partition: 0, Offset: 1},
		{Partition: 0, Offset: 2},
		{Partition: 0, Offset: 3},
	}}

	var (
		mu       sync.Mutex
		attempts = map[int64]int{}
		handled  sync.WaitGroup
	)
	handled.Add(3)
	h := func(_ context.Context, m kafka.Message) error {
		mu.Lock()
		attempts[m.Offset]++
		n := attempts[m.Offset]
		mu.Unlock()
		if m.Offset == 2 && n < 3 {
			return errors.New("boom")
		}
		handled.Done()
		return nil
	}

	stop := runConsumer(t, r, 2, h)
	handled.Wait()
	require.NoError(t, stop())

	assert.Equal(t, []int64{1, 2, 3}, r.committed)
	assert.Equal(t, 3, attempts[2])
	assert.True(t, r.closed)
}

func TestConsumer_NoCommitPastFailingOffset(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{
		{Partition: 0, Offset: 1},
		{Partition: 0, Offset: 2},
		{Partition: 0, Offset: 3},
	}}

	failing := make(chan struct{}, 16)
	h := func(_ context.Context, m kafka.Message) error {
		if m.Offset == 2 {
			select {
			case failing <- struct{}{}:
			default:
			}
			return errors.New("boom")
		}
		return nil
	}

	stop := runConsumer(t, r, 2, h)
	for i := 0; i < 3; i++ {
		<-failing
	}
	require.NoError(t, stop())

	assert.Equal(t, []int64{1}, r.committed)
}

func TestConsumer_PartitionsProgressIndependently(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{
		{Partition: 0, Offset: 10},
		{Partition: 1, Offset: 20},
		{Partition: 1, Offset: 21},
	}}

	var handled sync.WaitGroup
	handled.Add(2)
	h := func(_ context.Context, m kafka.Message) error {
		if m.Partition == 0 {
			return errors.New("stuck")
		}
		handled.Done()
		return nil
	}

	stop := runConsumer(t, r, 2, h)
	handled.Wait()
	require.NoError(t, stop())

	assert.Equal(t, []int64{20, 21}, r.committed)
}
