package intelligence

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/go-go-golems/babelduck/pkg/messages"
)

// BabelDuckIntelligence is the offline practice backend. It never calls
// out anywhere and always answers with a single quack message, which lets
// users rehearse the revision workflow without any credentials.
type BabelDuckIntelligence struct{}

func NewBabelDuckIntelligence() *BabelDuckIntelligence { return &BabelDuckIntelligence{} }

func (i *BabelDuckIntelligence) Type() string { return IDBabelDuck }
func (i *BabelDuckIntelligence) Name() string { return "Babel Duck" }

func (i *BabelDuckIntelligence) CompleteChat(_ context.Context, _ []messages.Message) ([]messages.Message, error) {
	return []messages.Message{messages.NewBabelDuckMessage(messages.RoleAssistant)}, nil
}

func (i *BabelDuckIntelligence) Serialize() (string, error) {
	return serializeBareType(IDBabelDuck)
}

// TutorialIntelligence drives the scripted onboarding chat. It only reacts
// to the identified message the tutorial plants when the user sends their
// translated draft; anything else gets no reply, since the tutorial UI
// advances through its own step messages.
type TutorialIntelligence struct{}

func NewTutorialIntelligence() *TutorialIntelligence { return &TutorialIntelligence{} }

func (i *TutorialIntelligence) Type() string { return IDTutorial }
func (i *TutorialIntelligence) Name() string { return "Tutorial Model" }

func (i *TutorialIntelligence) CompleteChat(_ context.Context, history []messages.Message) ([]messages.Message, error) {
	if len(history) == 0 {
		return nil, nil
	}
	last, ok := history[len(history)-1].(*messages.IdentifiedTextMessage)
	if !ok || last.ID != messages.TutorialMessageIDUsersTranslatedMsg {
		return nil, nil
	}
	return []messages.Message{
		messages.NewIdentifiedTextMessage(
			messages.TutorialMessageIDAIRespOnTranslatedMsg,
			messages.RoleAssistant,
			"Sure, take your time! There's no rush.",
		),
		messages.NewNextStepTutorialMessage(
			messages.TutorialStateClickNextForGrammarCheck,
			messages.TutorialStateIllustrateGrammarCheck,
		),
	}, nil
}

func (i *TutorialIntelligence) Serialize() (string, error) {
	return serializeBareType(IDTutorial)
}

func serializeBareType(tag string) (string, error) {
	b, err := json.Marshal(map[string]string{"type": tag})
	if err != nil {
		return "", errors.Wrapf(err, "could not serialize %s intelligence", tag)
	}
	return string(b), nil
}

var (
	_ ChatIntelligence = (*BabelDuckIntelligence)(nil)
	_ ChatIntelligence = (*TutorialIntelligence)(nil)
)

func init() {
	defaultRegistry.MustRegister(IDBabelDuck, func(_ []byte) (ChatIntelligence, error) {
		return NewBabelDuckIntelligence(), nil
	})
	defaultRegistry.MustRegister(IDTutorial, func(_ []byte) (ChatIntelligence, error) {
		return NewTutorialIntelligence(), nil
	})
}
