package messages

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deltaChannel(deltas ...Delta) <-chan Delta {
	ch := make(chan Delta, len(deltas))
	for _, d := range deltas {
		ch <- d
	}
	close(ch)
	return ch
}

func TestStreamingTextMessageAccumulates(t *testing.T) {
	msg := NewStreamingTextMessage(RoleAssistant, deltaChannel(
		Delta{Text: "Hello"},
		Delta{Text: ", "},
		Delta{Text: "world"},
	))

	var seen []string
	err := msg.Drain(context.Background(), func(delta, accumulated string) {
		seen = append(seen, delta)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Hello", ", ", "world"}, seen)
	assert.Equal(t, "Hello, world", msg.Content())
	assert.True(t, msg.Finished())
	assert.NoError(t, msg.Err())
}

func TestStreamingTextMessageKeepsPartialContentOnFailure(t *testing.T) {
	streamErr := errors.New("connection reset")
	msg := NewStreamingTextMessage(RoleAssistant, deltaChannel(
		Delta{Text: "partial "},
		Delta{Text: "answer"},
		Delta{Err: streamErr},
	))

	err := msg.Drain(context.Background(), nil)
	require.Error(t, err)
	require.Equal(t, streamErr, errors.Cause(err))

	assert.Equal(t, "partial answer", msg.Content())
	assert.True(t, msg.Finished())
}

func TestStreamingTextMessageMaterialize(t *testing.T) {
	msg := NewStreamingTextMessage(RoleAssistant, deltaChannel(Delta{Text: "done"}))

	_, err := msg.Materialize()
	require.Error(t, err)

	require.NoError(t, msg.Drain(context.Background(), nil))
	text, err := msg.Materialize()
	require.NoError(t, err)
	assert.Equal(t, "done", text.Content())
	assert.Equal(t, RoleAssistant, text.Role())
}

func TestStreamingTextMessageSerializeAfterDrain(t *testing.T) {
	msg := NewStreamingTextMessage(RoleAssistant, deltaChannel(
		Delta{Text: "streamed "},
		Delta{Text: "reply"},
	))
	require.NoError(t, msg.Drain(context.Background(), nil))

	serialized, err := msg.Serialize()
	require.NoError(t, err)

	decoded, err := Decode(serialized)
	require.NoError(t, err)

	streaming, ok := decoded.(*StreamingTextMessage)
	require.True(t, ok)
	assert.True(t, streaming.Finished())
	assert.Equal(t, "streamed reply", streaming.Content())
	assert.Equal(t, RoleAssistant, streaming.Role())
}

func TestStreamingTextMessageConsumeStepsThroughDeltas(t *testing.T) {
	msg := NewStreamingTextMessage(RoleAssistant, deltaChannel(Delta{Text: "a"}, Delta{Text: "b"}))

	delta, ok, err := msg.Consume(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", delta)
	assert.Equal(t, "a", msg.Content())

	delta, ok, err = msg.Consume(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", delta)

	_, ok, err = msg.Consume(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, msg.Finished())
}
