package intelligence

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/go-go-golems/babelduck/pkg/events"
)

// Collaborators holds the external dependencies backends cannot carry
// through serialization: the service registry, the trial token source, the
// event bus completions publish on, and the prompt token budget.
type Collaborators struct {
	Services ServiceSource
	Tokens   TokenSource
	Events   *events.PublisherManager
	Metadata events.EventMetadata

	// TokenBudget caps the prompt size sent to completion backends; zero
	// means unbounded.
	TokenBudget int
}

// Bind attaches collaborators to a backend, typically right after
// deserializing it from a chat record.
func Bind(intel ChatIntelligence, collab Collaborators) {
	switch backend := intel.(type) {
	case *OpenAIIntelligence:
		backend.BindServices(collab.Services)
		backend.BindEvents(collab.Events, collab.Metadata)
		backend.tokenBudget = collab.TokenBudget
	case *FreeTrialIntelligence:
		backend.BindTokenSource(collab.Tokens)
		backend.BindEvents(collab.Events, collab.Metadata)
		backend.tokenBudget = collab.TokenBudget
	}
}

// FromSettingsRecord builds a ready-to-use backend from a settings record.
func FromSettingsRecord(record *SettingsRecord, collab Collaborators) (ChatIntelligence, error) {
	var intel ChatIntelligence
	switch record.Type {
	case IDFreeTrial:
		intel = NewFreeTrialIntelligence(collab.Tokens)
	case IDTutorial:
		intel = NewTutorialIntelligence()
	case IDBabelDuck:
		intel = NewBabelDuckIntelligence()
	case IDOpenAI, TypeCustomLLMSvc:
		payload, err := json.Marshal(openAIEnvelope(record))
		if err != nil {
			return nil, errors.Wrap(err, "could not build intelligence payload")
		}
		intel, err = deserializeOpenAIIntelligence(payload)
		if err != nil {
			return nil, err
		}
	default:
		return nil, &UnknownIntelligenceTypeError{Tag: record.Type}
	}

	Bind(intel, collab)
	return intel, nil
}

func openAIEnvelope(record *SettingsRecord) map[string]json.RawMessage {
	envelope := map[string]json.RawMessage{}
	if len(record.Settings) > 0 {
		_ = json.Unmarshal(record.Settings, &envelope)
	}
	typeTag, _ := json.Marshal(record.Type)
	envelope["type"] = typeTag
	if _, ok := envelope["svcID"]; !ok && record.Type == TypeCustomLLMSvc {
		svcID, _ := json.Marshal(record.ID)
		envelope["svcID"] = svcID
	}
	return envelope
}
