package messages

import (
	"encoding/json"

	"github.com/pkg/errors"
)

const (
	TypeFreeTrial = "freeTrial"
	TypeBabelDuck = "babelDuck"
)

// FreeTrialMessage is the one-time disclaimer the free-trial backend injects
// ahead of its first reply. It doubles as the marker the backend scans the
// history for to decide whether the disclaimer was already shown. It carries
// no content of its own and never reaches the model.
type FreeTrialMessage struct{}

func NewFreeTrialMessage() *FreeTrialMessage { return &FreeTrialMessage{} }

func (m *FreeTrialMessage) Type() string                   { return TypeFreeTrial }
func (m *FreeTrialMessage) Role() Role                     { return RoleAssistant }
func (m *FreeTrialMessage) DisplayToUser() bool            { return true }
func (m *FreeTrialMessage) IncludedInChatCompletion() bool { return false }
func (m *FreeTrialMessage) IsEmpty() bool                  { return false }

func (m *FreeTrialMessage) Serialize() (string, error) {
	b, err := json.Marshal(map[string]string{"type": TypeFreeTrial})
	if err != nil {
		return "", errors.Wrap(err, "could not serialize free trial message")
	}
	return string(b), nil
}

func deserializeFreeTrialMessage(_ []byte) (Message, error) {
	return NewFreeTrialMessage(), nil
}

// ContainsFreeTrialMessage scans a message list for the disclaimer marker.
// A linear scan per completion call is fine for the history sizes involved.
func ContainsFreeTrialMessage(msgs []Message) bool {
	for _, msg := range msgs {
		if _, ok := msg.(*FreeTrialMessage); ok {
			return true
		}
	}
	return false
}

const babelDuckReply = "Quack quack quack, quack... Quack!"

// BabelDuckMessage is the fixed reply of the joke backend.
type BabelDuckMessage struct {
	TextMessage
}

func NewBabelDuckMessage(role Role) *BabelDuckMessage {
	return &BabelDuckMessage{
		TextMessage: *NewTextMessage(role, babelDuckReply),
	}
}

func (m *BabelDuckMessage) Type() string { return TypeBabelDuck }

func (m *BabelDuckMessage) Serialize() (string, error) {
	b, err := json.Marshal(map[string]string{
		"type": TypeBabelDuck,
		"role": string(m.role),
	})
	if err != nil {
		return "", errors.Wrap(err, "could not serialize babel duck message")
	}
	return string(b), nil
}

func deserializeBabelDuckMessage(payload []byte) (Message, error) {
	var p struct {
		Role Role `json:"role"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, errors.Wrap(err, "could not deserialize babel duck message")
	}
	return NewBabelDuckMessage(p.Role), nil
}

var _ CompletionMessage = (*BabelDuckMessage)(nil)

func init() {
	defaultRegistry.MustRegister(TypeFreeTrial, deserializeFreeTrialMessage)
	defaultRegistry.MustRegister(TypeBabelDuck, deserializeBabelDuckMessage)
}
