package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryPublishConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	require.NoError(t, q.Publish(ctx, Message{Type: "session.scheduled", Body: []byte("sess-1")}))
	require.NoError(t, q.Publish(ctx, Message{Type: "session.completed", Body: []byte("sess-2")}))

	messages, err := q.Consume(ctx)
	require.NoError(t, err)

	first := <-messages
	assert.Equal(t, "session.scheduled", first.Type)
	assert.Equal(t, "sess-1", string(first.Body))

	second := <-messages
	assert.Equal(t, "session.completed", second.Type)
}

func TestInMemoryPublishHonorsContext(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, q.Publish(ctx, Message{Type: "a"}))
	// Queue is full and nobody consumes; the second publish must give up.
	err := q.Publish(ctx, Message{Type: "b"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSerializeRoundTrip(t *testing.T) {
	msg := Message{Type: "session.scheduled", Body: []byte("sess-42")}

	got, err := deserialize(serialize(msg))
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestDeserializeBodyWithSeparator(t *testing.T) {
	got, err := deserialize("session.scheduled|id|with|pipes")
	require.NoError(t, err)
	assert.Equal(t, "session.scheduled", got.Type)
	assert.Equal(t, "id|with|pipes", string(got.Body))
}

func TestDeserializeWithoutSeparator(t *testing.T) {
	got, err := deserialize("plain")
	require.NoError(t, err)
	assert.Equal(t, "", got.Type)
	assert.Equal(t, "plain", string(got.Body))
}
