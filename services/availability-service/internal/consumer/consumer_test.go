package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memInbox struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (m *memInbox) Record(ctx context.Context, eventID, eventType string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[eventID] {
		return false, nil
	}
	m.seen[eventID] = true
	return true, nil
}

func (m *memInbox) Forget(ctx context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, eventID)
	return nil
}

// partitionReader behaves like a group reader on one partition: fetch advances a local
// position, and only CommitMessages moves the committed offset. A fetch never hands out the
// same offset twice.
type partitionReader struct {
	msgs      []kafka.Message
	next      int
	committed []int64
	cancel    context.CancelFunc
	closed    bool
}

func (p *partitionReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if p.next >= len(p.msgs) {
		p.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := p.msgs[p.next]
	p.next++
	return msg, nil
}

func (p *partitionReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		p.committed = append(p.committed, m.Offset)
	}
	return nil
}

func (p *partitionReader) Close() error {
	p.closed = true
	return nil
}

func messages(ids ...string) []kafka.Message {
	out := make([]kafka.Message, 0, len(ids))
	for i, id := range ids {
		out = append(out, kafka.Message{
			Topic:   "booking.confirmed.v1",
			Offset:  int64(i),
			Headers: []kafka.Header{{Key: "event_id", Value: []byte(id)}},
		})
	}
	return out
}

func newTestConsumer(reader MessageReader, handler Handler) *Consumer {
	c := NewWithReader(slog.New(slog.NewTextHandler(io.Discard, nil)), &memInbox{seen: map[string]bool{}}, reader, handler)
	c.backoff = time.Millisecond
	c.maxBackoff = 4 * time.Millisecond
	return c
}

func TestConsumer_DeduplicatesByEventID(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &partitionReader{msgs: messages("e1", "e1", "e2"), cancel: cancel}
	var handled []string
	c := newTestConsumer(reader, func(ctx context.Context, msg kafka.Message) error {
		handled = append(handled, string(msg.Headers[0].Value))
		return nil
	})

	c.Run(ctx)

	assert.Equal(t, []string{"e1", "e2"}, handled)
	assert.Equal(t, []int64{0, 1, 2}, reader.committed, "duplicates are committed too")
	assert.True(t, reader.closed)
}

func TestConsumer_RetriesFailedEventBeforeCommitting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &partitionReader{msgs: messages("e1", "e2"), cancel: cancel}
	var (
		attempts int
		handled  []string
	)
	c := newTestConsumer(reader, func(ctx context.Context, msg kafka.Message) error {
		id := string(msg.Headers[0].Value)
		if id == "e1" {
			attempts++
			if attempts < 3 {
				// Nothing may be committed while e1 is still failing.
				assert.Empty(t, reader.committed)
				return errors.New("db unavailable")
			}
		}
		handled = append(handled, id)
		return nil
	})

	c.Run(ctx)

	assert.Equal(t, 3, attempts)
	assert.Equal(t, []string{"e1", "e2"}, handled, "later offsets wait behind the failing one")
	assert.Equal(t, []int64{0, 1}, reader.committed)
}

func TestConsumer_ShutdownLeavesFailingEventUncommitted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &partitionReader{msgs: messages("e1"), cancel: cancel}
	attempts := 0
	c := newTestConsumer(reader, func(ctx context.Context, msg kafka.Message) error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("db unavailable")
	})

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "consumer did not stop")
	}
	assert.Empty(t, reader.committed)
	assert.GreaterOrEqual(t, attempts, 2)
}
