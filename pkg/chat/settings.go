package chat

import (
	_ "embed"
	"encoding/json"

	clone "github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/babelduck/pkg/intelligence"
)

// HandlerEntry pairs an input handler with its visibility in the input bar.
type HandlerEntry struct {
	Handler InputHandler
	Display bool
}

// Settings is the resolved per-chat configuration: which backend answers,
// which input handlers are offered, and playback behavior. It is resolved
// through a two-tier override — chat-local settings when the chat has them,
// global defaults otherwise.
type Settings struct {
	UsingGlobalSettings bool
	Intelligence        intelligence.SettingsRecord
	InputHandlers       []HandlerEntry
	AutoPlayAudio       bool
}

// Clone returns a deep copy. Callers mutate the copy and write it back
// through the settings store rather than editing shared state in place.
func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}

// SettingsSource is the settings-storage collaborator contract.
type SettingsSource interface {
	// ResolveChatSettings applies the two-tier override for one chat.
	ResolveChatSettings(chatID string) (*Settings, error)
	// GlobalSettings returns the global defaults.
	GlobalSettings() (*Settings, error)
	// SetChatSettings marks the chat as locally configured and stores its
	// settings.
	SetChatSettings(chatID string, settings *Settings) error
	// SetGlobalSettings replaces the global defaults.
	SetGlobalSettings(settings *Settings) error
	// AppendChatHandlers persists extra handlers authored for one chat.
	AppendChatHandlers(chatID string, handlers ...InputHandler) error
	// SwitchToGlobal drops the chat's local override so it follows the
	// global defaults again.
	SwitchToGlobal(chatID string) error
	// SwitchToLocal forks the currently resolved settings into a chat-local
	// override.
	SwitchToLocal(chatID string) error
}

//go:embed "defaults.yaml"
var defaultSettingsYAML []byte

type defaultSettingsFile struct {
	IntelligenceID string `yaml:"intelligenceID"`
	AutoPlayAudio  bool   `yaml:"autoPlayAudio"`
	InputHandlers  []struct {
		ImplType       string `yaml:"implType"`
		TargetLanguage string `yaml:"targetLanguage"`
		Instruction    string `yaml:"instruction"`
		Tooltip        string `yaml:"tooltip"`
		IconChar       string `yaml:"iconChar"`
		Display        bool   `yaml:"display"`
	} `yaml:"inputHandlers"`
}

// DefaultSettings builds the factory global settings from the embedded
// defaults file.
func DefaultSettings() (*Settings, error) {
	var file defaultSettingsFile
	if err := yaml.Unmarshal(defaultSettingsYAML, &file); err != nil {
		return nil, errors.Wrap(err, "could not parse default settings")
	}

	record, err := intelligence.SettingsByID(nil, file.IntelligenceID)
	if err != nil {
		return nil, err
	}

	entries := make([]HandlerEntry, 0, len(file.InputHandlers))
	for _, spec := range file.InputHandlers {
		var handler InputHandler
		switch spec.ImplType {
		case ImplTypeTranslation:
			handler = NewTranslationHandler(spec.TargetLanguage)
		case ImplTypeRespGeneration:
			handler = NewRespGenerationHandler()
		case ImplTypeGrammarChecking:
			handler = NewGrammarCheckingHandler()
		case ImplTypeCommonGeneration:
			handler = NewCommonGenerationHandler(spec.Instruction, spec.Tooltip, spec.IconChar)
		case ImplTypeCommonRevision:
			handler = NewCommonRevisionHandler(spec.Instruction, spec.Tooltip, spec.IconChar)
		default:
			return nil, &UnknownInputHandlerTypeError{Tag: spec.ImplType}
		}
		entries = append(entries, HandlerEntry{Handler: handler, Display: spec.Display})
	}

	return &Settings{
		UsingGlobalSettings: true,
		Intelligence:        *record,
		InputHandlers:       entries,
		AutoPlayAudio:       file.AutoPlayAudio,
	}, nil
}

// serializedSettings is the storage form of Settings; handlers go through
// their registry encoding.
type serializedSettings struct {
	Intelligence  intelligence.SettingsRecord `json:"intelligence"`
	AutoPlayAudio bool                        `json:"autoPlayAudio"`
	InputHandlers []serializedHandlerEntry    `json:"inputHandlers"`
}

type serializedHandlerEntry struct {
	Payload string `json:"payload"`
	Display bool   `json:"display"`
}

// EncodeSettings flattens settings for storage.
func EncodeSettings(settings *Settings) ([]byte, error) {
	entries := make([]serializedHandlerEntry, 0, len(settings.InputHandlers))
	for _, entry := range settings.InputHandlers {
		payload, err := entry.Handler.Serialize()
		if err != nil {
			return nil, err
		}
		entries = append(entries, serializedHandlerEntry{Payload: payload, Display: entry.Display})
	}
	return json.Marshal(serializedSettings{
		Intelligence:  settings.Intelligence,
		AutoPlayAudio: settings.AutoPlayAudio,
		InputHandlers: entries,
	})
}

// DecodeSettings reconstructs settings from storage, failing hard on an
// unknown handler type.
func DecodeSettings(data []byte) (*Settings, error) {
	var stored serializedSettings
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, errors.Wrap(err, "could not parse stored settings")
	}

	entries := make([]HandlerEntry, 0, len(stored.InputHandlers))
	for _, entry := range stored.InputHandlers {
		handler, err := DeserializeHandler(entry.Payload)
		if err != nil {
			return nil, err
		}
		entries = append(entries, HandlerEntry{Handler: handler, Display: entry.Display})
	}

	return &Settings{
		Intelligence:  stored.Intelligence,
		AutoPlayAudio: stored.AutoPlayAudio,
		InputHandlers: entries,
	}, nil
}

// DisplayedHandlers filters the handler list to the ones shown in the
// input bar, in order.
func DisplayedHandlers(settings *Settings) []InputHandler {
	ret := make([]InputHandler, 0, len(settings.InputHandlers))
	for _, entry := range settings.InputHandlers {
		if entry.Display {
			ret = append(ret, entry.Handler)
		}
	}
	return ret
}
