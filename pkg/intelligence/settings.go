package intelligence

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Built-in intelligence IDs. For the built-in backends the ID doubles as the
// type tag.
const (
	IDFreeTrial = "free_trial"
	IDOpenAI    = "openai"
	IDTutorial  = "tutorial"
	IDBabelDuck = "babel_duck"
)

// TypeCustomLLMSvc tags backends that reference a user-defined
// OpenAI-compatible service record by ID.
const TypeCustomLLMSvc = "customLLMSvc"

// SettingsRecord identifies a backend implementation plus its
// backend-specific settings blob. Records are resolved by ID from the
// settings store at chat-load time.
type SettingsRecord struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	Settings json.RawMessage `json:"settings,omitempty"`
}

// ServiceSettings configures one OpenAI-compatible chat completion service.
type ServiceSettings struct {
	Name        string   `json:"name"`
	BaseURL     string   `json:"baseURL"`
	APIKey      string   `json:"apiKey"`
	Model       string   `json:"model"`
	Temperature *float32 `json:"temperature,omitempty"`
}

// ServiceRecord is a stored ServiceSettings with its ID.
type ServiceRecord struct {
	ID string `json:"id"`
	ServiceSettings
}

// ServiceSource resolves named LLM service records. The settings store
// implements it.
type ServiceSource interface {
	GetLLMService(id string) (*ServiceRecord, bool, error)
	ListLLMServices() ([]ServiceRecord, error)
}

// BuiltinSettings lists the backend records that ship with the application.
func BuiltinSettings() []SettingsRecord {
	return []SettingsRecord{
		{ID: IDFreeTrial, Name: "Free Trial", Type: IDFreeTrial},
		{ID: IDOpenAI, Name: "OpenAI", Type: IDOpenAI},
	}
}

func customServiceSettings(services ServiceSource) ([]SettingsRecord, error) {
	if services == nil {
		return nil, nil
	}
	records, err := services.ListLLMServices()
	if err != nil {
		return nil, errors.Wrap(err, "could not list custom LLM services")
	}
	ret := make([]SettingsRecord, 0, len(records))
	for _, record := range records {
		settings, err := json.Marshal(map[string]string{
			"settingsType": "link",
			"svcID":        record.ID,
		})
		if err != nil {
			return nil, err
		}
		ret = append(ret, SettingsRecord{
			ID:       record.ID,
			Name:     record.Name,
			Type:     TypeCustomLLMSvc,
			Settings: settings,
		})
	}
	return ret, nil
}

// SelectableSettings lists the records a user can pick in the UI: built-ins,
// custom services, and the joke backend.
func SelectableSettings(services ServiceSource) ([]SettingsRecord, error) {
	custom, err := customServiceSettings(services)
	if err != nil {
		return nil, err
	}
	ret := append(BuiltinSettings(), custom...)
	ret = append(ret, SettingsRecord{ID: IDBabelDuck, Name: "BabelDuck", Type: IDBabelDuck})
	return ret, nil
}

// AvailableSettings additionally includes records that exist but are not
// user-selectable, like the tutorial backend.
func AvailableSettings(services ServiceSource) ([]SettingsRecord, error) {
	custom, err := customServiceSettings(services)
	if err != nil {
		return nil, err
	}
	ret := append(BuiltinSettings(), custom...)
	ret = append(ret,
		SettingsRecord{ID: IDTutorial, Name: "Tutorial Model", Type: IDTutorial},
		SettingsRecord{ID: IDBabelDuck, Name: "BabelDuck", Type: IDBabelDuck},
	)
	return ret, nil
}

// SettingsByID resolves one record from the available set.
func SettingsByID(services ServiceSource, id string) (*SettingsRecord, error) {
	available, err := AvailableSettings(services)
	if err != nil {
		return nil, err
	}
	for i := range available {
		if available[i].ID == id {
			return &available[i], nil
		}
	}
	return nil, errors.Errorf("intelligence with id %s not found", id)
}
