package intelligence

// Package intelligence normalizes different LLM provider APIs into one
// streaming-completion contract. A ChatIntelligence takes the active level's
// message list and produces one or more new messages to append, either fully
// populated or as a lazily streamed assistant reply. Backends are selected
// through settings records and reconstructed through a type registry, in the
// same tagged style as the message model.

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"

	"github.com/go-go-golems/babelduck/pkg/messages"
)

// ChatIntelligence turns a message history into new assistant message(s).
// The history is the full current level; backends filter it down to the
// completion-eligible turns themselves (the free-trial backend also needs
// the ineligible marker messages to decide whether to inject its
// disclaimer).
type ChatIntelligence interface {
	Type() string
	Name() string
	CompleteChat(ctx context.Context, history []messages.Message) ([]messages.Message, error)
	Serialize() (string, error)
}

// DeserializerFunc reconstructs a backend from its serialized settings.
type DeserializerFunc func(payload []byte) (ChatIntelligence, error)

// Registry maps intelligence type tags to deserializers. Duplicate
// registration fails fast.
type Registry struct {
	mu            sync.RWMutex
	deserializers map[string]DeserializerFunc
}

func NewRegistry() *Registry {
	return &Registry{
		deserializers: map[string]DeserializerFunc{},
	}
}

func (r *Registry) Register(tag string, deserializer DeserializerFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.deserializers[tag]; ok {
		return errors.Errorf("chat intelligence type %s already registered", tag)
	}
	r.deserializers[tag] = deserializer
	return nil
}

func (r *Registry) MustRegister(tag string, deserializer DeserializerFunc) {
	if err := r.Register(tag, deserializer); err != nil {
		panic(err)
	}
}

func (r *Registry) Deserialize(serialized string) (ChatIntelligence, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(serialized), &envelope); err != nil {
		return nil, errors.Wrap(err, "could not parse intelligence envelope")
	}

	r.mu.RLock()
	deserializer, ok := r.deserializers[envelope.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownIntelligenceTypeError{Tag: envelope.Type}
	}

	return deserializer([]byte(serialized))
}

var defaultRegistry = NewRegistry()

func DefaultRegistry() *Registry {
	return defaultRegistry
}

func Deserialize(serialized string) (ChatIntelligence, error) {
	return defaultRegistry.Deserialize(serialized)
}
