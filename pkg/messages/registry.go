package messages

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// UnknownMessageTypeError is returned when a persisted message carries a type
// tag no decoder was registered for. This is a data-integrity fault
// (corrupted or version-skewed storage) and is propagated as a hard failure:
// silently dropping the message would shift the indices used for
// update-by-position.
type UnknownMessageTypeError struct {
	Tag string
}

func (e *UnknownMessageTypeError) Error() string {
	return fmt.Sprintf("unknown message type: %s", e.Tag)
}

// DecoderFunc reconstructs a message from its serialized JSON form. The
// payload still contains the type tag.
type DecoderFunc func(payload []byte) (Message, error)

// Registry maps type tags to decoders. Registration of a duplicate tag fails
// fast instead of silently overwriting.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]DecoderFunc
}

func NewRegistry() *Registry {
	return &Registry{
		decoders: map[string]DecoderFunc{},
	}
}

func (r *Registry) Register(tag string, decoder DecoderFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.decoders[tag]; ok {
		return errors.Errorf("message type %s already registered", tag)
	}
	r.decoders[tag] = decoder
	return nil
}

func (r *Registry) MustRegister(tag string, decoder DecoderFunc) {
	if err := r.Register(tag, decoder); err != nil {
		panic(err)
	}
}

// Decode parses the type tag out of a serialized message and dispatches to
// the registered decoder.
func (r *Registry) Decode(serialized string) (Message, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(serialized), &envelope); err != nil {
		return nil, errors.Wrap(err, "could not parse message envelope")
	}

	r.mu.RLock()
	decoder, ok := r.decoders[envelope.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownMessageTypeError{Tag: envelope.Type}
	}

	return decoder([]byte(serialized))
}

// DecodeAll decodes a list of serialized messages, failing on the first
// undecodable entry.
func (r *Registry) DecodeAll(serialized []string) ([]Message, error) {
	msgs := make([]Message, 0, len(serialized))
	for i, s := range serialized {
		msg, err := r.Decode(s)
		if err != nil {
			return nil, errors.Wrapf(err, "message at index %d", i)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry that all built-in
// variants register themselves with at init time.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Decode dispatches through the default registry.
func Decode(serialized string) (Message, error) {
	return defaultRegistry.Decode(serialized)
}

// DecodeAll dispatches through the default registry.
func DecodeAll(serialized []string) ([]Message, error) {
	return defaultRegistry.DecodeAll(serialized)
}
