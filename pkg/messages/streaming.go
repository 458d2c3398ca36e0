package messages

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const TypeStreamingText = "streamingText"

// Delta is one increment of a streaming completion. A non-nil Err terminates
// the stream; the text accumulated so far stays valid.
type Delta struct {
	Text string
	Err  error
}

// StreamingTextMessage wraps a lazy, single-pass sequence of text deltas
// produced by a backend. Consuming is destructive: the underlying channel
// can only be drained once. Content() is the accumulation of the deltas
// consumed so far; the message must be fully drained (or the stream must
// have failed) before it is persisted.
//
// Abandonment is the only cancellation: a consumer that stops pulling leaves
// the producer to finish or fail on its own, which must not crash anything.
type StreamingTextMessage struct {
	role   Role
	deltas <-chan Delta

	mu       sync.Mutex
	content  strings.Builder
	finished bool
	err      error
}

func NewStreamingTextMessage(role Role, deltas <-chan Delta) *StreamingTextMessage {
	return &StreamingTextMessage{
		role:   role,
		deltas: deltas,
	}
}

func (m *StreamingTextMessage) Type() string                   { return TypeStreamingText }
func (m *StreamingTextMessage) Role() Role                     { return m.role }
func (m *StreamingTextMessage) DisplayToUser() bool            { return true }
func (m *StreamingTextMessage) IncludedInChatCompletion() bool { return true }

func (m *StreamingTextMessage) Content() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.content.String()
}

func (m *StreamingTextMessage) IsEmpty() bool {
	return strings.TrimSpace(m.Content()) == ""
}

// Finished reports whether the stream has been fully drained or has failed.
func (m *StreamingTextMessage) Finished() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finished
}

// Err returns the error that ended the stream early, if any.
func (m *StreamingTextMessage) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Consume pulls the next delta, appending it to the accumulated content.
// ok is false once the stream is exhausted. A failed stream finishes with
// ok false and the error recorded; the partial content is kept.
func (m *StreamingTextMessage) Consume(ctx context.Context) (delta string, ok bool, err error) {
	if m.Finished() {
		return "", false, m.Err()
	}

	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case d, chanOpen := <-m.deltas:
		m.mu.Lock()
		defer m.mu.Unlock()
		if !chanOpen {
			m.finished = true
			return "", false, nil
		}
		if d.Err != nil {
			m.finished = true
			m.err = d.Err
			return "", false, d.Err
		}
		m.content.WriteString(d.Text)
		return d.Text, true, nil
	}
}

// Drain consumes the stream to exhaustion, invoking onDelta (if non-nil)
// once per delta. On stream failure the accumulated partial content is kept
// and the error returned; callers persist what was accumulated since a
// destructive stream cannot be replayed.
func (m *StreamingTextMessage) Drain(ctx context.Context, onDelta func(delta string, accumulated string)) error {
	for {
		delta, ok, err := m.Consume(ctx)
		if err != nil {
			log.Debug().Err(err).Msg("streaming message ended early")
			return err
		}
		if !ok {
			return nil
		}
		if onDelta != nil {
			onDelta(delta, m.Content())
		}
	}
}

// Materialize converts a finished stream into a plain TextMessage carrying
// the accumulated content. It is an error to materialize an unfinished
// stream.
func (m *StreamingTextMessage) Materialize() (*TextMessage, error) {
	if !m.Finished() {
		return nil, errors.New("cannot materialize an unfinished streaming message")
	}
	return NewTextMessage(m.role, m.Content()), nil
}

// Serialize persists the accumulated content. Persistence only happens once
// the stream is drained (or failed with partial content); deserializing
// yields an already-finished stream.
func (m *StreamingTextMessage) Serialize() (string, error) {
	b, err := json.Marshal(map[string]string{
		"type":    TypeStreamingText,
		"role":    string(m.role),
		"content": m.Content(),
	})
	if err != nil {
		return "", errors.Wrap(err, "could not serialize streaming text message")
	}
	return string(b), nil
}

func (m *StreamingTextMessage) ToCompletionForm() Turn {
	return Turn{Role: string(m.role), Content: m.Content()}
}

func deserializeStreamingTextMessage(payload []byte) (Message, error) {
	var p struct {
		Role    Role   `json:"role"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, errors.Wrap(err, "could not deserialize streaming text message")
	}

	deltas := make(chan Delta, 1)
	deltas <- Delta{Text: p.Content}
	close(deltas)

	ret := NewStreamingTextMessage(p.Role, deltas)
	// replay the single delta so the message comes back finished
	_ = ret.Drain(context.Background(), nil)
	return ret, nil
}

var (
	_ Message           = (*StreamingTextMessage)(nil)
	_ CompletionMessage = (*StreamingTextMessage)(nil)
)

func init() {
	defaultRegistry.MustRegister(TypeStreamingText, deserializeStreamingTextMessage)
}
