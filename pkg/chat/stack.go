package chat

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/babelduck/pkg/messages"
)

// MessageStore is the persistence collaborator for level-0 messages. The
// stack assumes writes land in order and are never dropped.
type MessageStore interface {
	LoadMessages(chatID string) ([]messages.Message, error)
	AppendMessages(chatID string, msgs ...messages.Message) error
	ReplaceMessageAt(chatID string, index int, msg messages.Message) error
}

// AddedOptions is the options bag passed through the message-added
// callback chain.
type AddedOptions struct {
	GenerateAssistantMsg bool
}

// AddedOption mutates the default options (assistant generation on).
type AddedOption func(*AddedOptions)

// WithoutAssistantGeneration appends the message without triggering a
// completion. Bound to Ctrl+Enter in the UI.
func WithoutAssistantGeneration() AddedOption {
	return func(o *AddedOptions) {
		o.GenerateAssistantMsg = false
	}
}

// MessageAddedCallback is one side-effect handler run after a message is
// appended to the active level.
type MessageAddedCallback func(ctx context.Context, stack *Stack, options AddedOptions) error

// Stack is the nested conversation: an ordered pile of message-list levels.
// Level 0 is the real chat and the only level whose mutations reach the
// store; levels above it are ephemeral follow-up discussions that vanish
// on pop. Whether a mutation persists is purely a function of depth.
//
// A stack belongs to a single chat view and is not safe for concurrent use.
type Stack struct {
	chatID    string
	store     MessageStore
	levels    [][]messages.Message
	callbacks []MessageAddedCallback
}

func NewStack(store MessageStore) *Stack {
	return &Stack{
		store:  store,
		levels: [][]messages.Message{{}},
	}
}

// OnMessageAdded appends a callback to the chain. Callbacks run in
// registration order after every append.
func (s *Stack) OnMessageAdded(callback MessageAddedCallback) {
	s.callbacks = append(s.callbacks, callback)
}

// SwitchChat resets the stack to a single level loaded from the store.
func (s *Stack) SwitchChat(chatID string) error {
	loaded, err := s.store.LoadMessages(chatID)
	if err != nil {
		return errors.Wrapf(err, "could not load chat %s", chatID)
	}
	s.chatID = chatID
	s.levels = [][]messages.Message{loaded}
	return nil
}

func (s *Stack) ChatID() string { return s.chatID }

func (s *Stack) Depth() int { return len(s.levels) }

func (s *Stack) IsTopLevel() bool { return len(s.levels) <= 1 }

// CurrentLevel returns the active level's message list. The slice is shared
// with the stack; callers must not append to it directly.
func (s *Stack) CurrentLevel() []messages.Message {
	return s.levels[len(s.levels)-1]
}

// Push opens a new ephemeral discussion level seeded with the given
// messages. Nothing is persisted for it, now or later.
func (s *Stack) Push(seed []messages.Message) {
	level := make([]messages.Message, len(seed))
	copy(level, seed)
	s.levels = append(s.levels, level)
}

// Pop discards the active follow-up level. Popping the bottom level is an
// error; the real chat is never discarded.
func (s *Stack) Pop() error {
	if s.IsTopLevel() {
		return errors.New("cannot pop the top-level chat")
	}
	s.levels = s.levels[:len(s.levels)-1]
	return nil
}

// AddMessage appends to the active level, persists when that level is the
// real chat, and runs the callback chain. The append and persist happen
// before any callback sees the list, so in-memory state is never behind
// the store.
func (s *Stack) AddMessage(ctx context.Context, msg messages.Message, options ...AddedOption) error {
	if err := s.Append(msg); err != nil {
		return err
	}

	opts := AddedOptions{GenerateAssistantMsg: true}
	for _, option := range options {
		option(&opts)
	}

	for _, callback := range s.callbacks {
		if err := callback(ctx, s, opts); err != nil {
			return err
		}
	}
	return nil
}

// Append adds a message without running the callback chain. Callbacks use
// it to append their own results without re-triggering themselves.
func (s *Stack) Append(msg messages.Message) error {
	s.levels[len(s.levels)-1] = append(s.levels[len(s.levels)-1], msg)
	if !s.IsTopLevel() {
		return nil
	}
	if err := s.store.AppendMessages(s.chatID, msg); err != nil {
		return errors.Wrap(err, "could not persist message")
	}
	return nil
}

// UpdateMessage replaces the message at index in the active level.
// Position is identity here: the index is the message's ID for the
// lifetime of the level.
func (s *Stack) UpdateMessage(index int, msg messages.Message) error {
	level := s.levels[len(s.levels)-1]
	if index < 0 || index >= len(level) {
		return errors.Errorf("message index %d out of range (level has %d messages)", index, len(level))
	}
	level[index] = msg
	if !s.IsTopLevel() {
		return nil
	}
	if err := s.store.ReplaceMessageAt(s.chatID, index, msg); err != nil {
		return errors.Wrapf(err, "could not persist message update at index %d", index)
	}
	return nil
}

// Intelligence is the slice of the backend contract the stack and input
// machinery need.
type Intelligence interface {
	CompleteChat(ctx context.Context, history []messages.Message) ([]messages.Message, error)
}

// CompletionCallback builds the built-in message-added callback: when the
// freshly appended message is user-authored (and generation was not
// suppressed), it asks the backend for a reply and appends the result(s).
// Streaming replies are appended immediately, then drained; onDelta (if
// non-nil) fires once per delta for live rendering. A stream that fails
// midway keeps its accumulated partial content in place and in the store.
func CompletionCallback(intel Intelligence, onDelta func(delta, accumulated string)) MessageAddedCallback {
	return func(ctx context.Context, stack *Stack, options AddedOptions) error {
		if !options.GenerateAssistantMsg {
			return nil
		}
		level := stack.CurrentLevel()
		if len(level) == 0 || level[len(level)-1].Role() != messages.RoleUser {
			return nil
		}

		replies, err := intel.CompleteChat(ctx, level)
		if err != nil {
			return err
		}

		for _, reply := range replies {
			if err := stack.Append(reply); err != nil {
				return err
			}
			streaming, ok := reply.(*messages.StreamingTextMessage)
			if !ok {
				continue
			}
			index := len(stack.CurrentLevel()) - 1
			drainErr := streaming.Drain(ctx, onDelta)
			if err := stack.UpdateMessage(index, streaming); err != nil {
				log.Warn().Err(err).Msg("could not persist drained streaming message")
			}
			if drainErr != nil {
				return errors.Wrap(drainErr, "streaming reply ended early")
			}
		}
		return nil
	}
}
