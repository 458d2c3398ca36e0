package messages

import (
	"encoding/json"

	"github.com/pkg/errors"
)

const (
	TypeNonInteractiveTutorial = "non-interactive-tutorial"
	TypeNextStepTutorial       = "next-step-tutorial"
)

// TutorialStateID names one step of the scripted onboarding flow.
type TutorialStateID string

const (
	TutorialStateIntroduction                TutorialStateID = "introduction"
	TutorialStateQuickTranslationInstruction TutorialStateID = "introduceQuickTranslationInstructions"
	TutorialStateStartFollowUpDiscussion     TutorialStateID = "startFollowUpDiscussion"
	TutorialStateClickNextForGrammarCheck    TutorialStateID = "clickNextToIllustrateGrammarCheck"
	TutorialStateIllustrateGrammarCheck      TutorialStateID = "illustrateGrammarCheck"
)

// TutorialMessageIDUsersTranslatedMsg is the identified-message ID the
// tutorial intelligence keys its scripted reply off.
const TutorialMessageIDUsersTranslatedMsg = "users-translated-msg"

// TutorialMessageIDAIRespOnTranslatedMsg identifies the scripted reply
// itself.
const TutorialMessageIDAIRespOnTranslatedMsg = "ai-resp-on-users-translated-msg"

// NonInteractiveTutorialMessage renders fixed tutorial copy. Tutorial
// messages are displayed but never participate in completion.
type NonInteractiveTutorialMessage struct {
	Content string
}

func NewNonInteractiveTutorialMessage(content string) *NonInteractiveTutorialMessage {
	return &NonInteractiveTutorialMessage{Content: content}
}

func (m *NonInteractiveTutorialMessage) Type() string                   { return TypeNonInteractiveTutorial }
func (m *NonInteractiveTutorialMessage) Role() Role                     { return RoleTutorial }
func (m *NonInteractiveTutorialMessage) DisplayToUser() bool            { return true }
func (m *NonInteractiveTutorialMessage) IncludedInChatCompletion() bool { return false }
func (m *NonInteractiveTutorialMessage) IsEmpty() bool                  { return false }

func (m *NonInteractiveTutorialMessage) Serialize() (string, error) {
	b, err := json.Marshal(map[string]string{
		"type":    TypeNonInteractiveTutorial,
		"content": m.Content,
	})
	if err != nil {
		return "", errors.Wrap(err, "could not serialize tutorial message")
	}
	return string(b), nil
}

func deserializeNonInteractiveTutorialMessage(payload []byte) (Message, error) {
	var p struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, errors.Wrap(err, "could not deserialize tutorial message")
	}
	return NewNonInteractiveTutorialMessage(p.Content), nil
}

// NextStepTutorialMessage advances the tutorial script from one state to the
// next when the user acknowledges it.
type NextStepTutorialMessage struct {
	CurrentStateID TutorialStateID
	NextStateID    TutorialStateID
}

func NewNextStepTutorialMessage(current, next TutorialStateID) *NextStepTutorialMessage {
	return &NextStepTutorialMessage{CurrentStateID: current, NextStateID: next}
}

func (m *NextStepTutorialMessage) Type() string                   { return TypeNextStepTutorial }
func (m *NextStepTutorialMessage) Role() Role                     { return RoleTutorial }
func (m *NextStepTutorialMessage) DisplayToUser() bool            { return true }
func (m *NextStepTutorialMessage) IncludedInChatCompletion() bool { return false }
func (m *NextStepTutorialMessage) IsEmpty() bool                  { return false }

func (m *NextStepTutorialMessage) Serialize() (string, error) {
	b, err := json.Marshal(map[string]string{
		"type":           TypeNextStepTutorial,
		"currentStateID": string(m.CurrentStateID),
		"nextStateID":    string(m.NextStateID),
	})
	if err != nil {
		return "", errors.Wrap(err, "could not serialize next step tutorial message")
	}
	return string(b), nil
}

func deserializeNextStepTutorialMessage(payload []byte) (Message, error) {
	var p struct {
		CurrentStateID TutorialStateID `json:"currentStateID"`
		NextStateID    TutorialStateID `json:"nextStateID"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, errors.Wrap(err, "could not deserialize next step tutorial message")
	}
	return NewNextStepTutorialMessage(p.CurrentStateID, p.NextStateID), nil
}

func init() {
	defaultRegistry.MustRegister(TypeNonInteractiveTutorial, deserializeNonInteractiveTutorialMessage)
	defaultRegistry.MustRegister(TypeNextStepTutorial, deserializeNextStepTutorialMessage)
}
