package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/go-go-golems/babelduck/pkg/chat"
	"github.com/go-go-golems/babelduck/pkg/intelligence"
	"github.com/go-go-golems/babelduck/pkg/messages"
)

// MemoryStore is the in-memory Store used by tests. Messages go through the
// same serialize/decode round trip as the SQLite store, so registry faults
// surface the same way.
type MemoryStore struct {
	mu sync.Mutex

	titles       map[string]string
	order        []string
	messages     map[string][]string
	chatSettings map[string][]byte
	usingGlobal  map[string]bool
	global       []byte
	services     map[string]string
	chatCounter  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		titles:       map[string]string{},
		messages:     map[string][]string{},
		chatSettings: map[string][]byte{},
		usingGlobal:  map[string]bool{},
		services:     map[string]string{},
	}
}

func (s *MemoryStore) CreateChat(title string, seed []messages.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chatID := uuid.New().String()
	if title == "" {
		s.chatCounter++
		title = fmt.Sprintf("Chat %d", s.chatCounter)
	}
	s.titles[chatID] = title
	s.order = append(s.order, chatID)
	for _, msg := range seed {
		payload, err := msg.Serialize()
		if err != nil {
			return "", err
		}
		s.messages[chatID] = append(s.messages[chatID], payload)
	}
	return chatID, nil
}

func (s *MemoryStore) DeleteChat(chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.titles, chatID)
	delete(s.messages, chatID)
	delete(s.chatSettings, chatID)
	delete(s.usingGlobal, chatID)
	for i, id := range s.order {
		if id == chatID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) RenameChat(chatID string, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.titles[chatID]; !ok {
		return errors.Errorf("chat %s not found", chatID)
	}
	s.titles[chatID] = title
	return nil
}

func (s *MemoryStore) ListChats() ([]ChatSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ret := make([]ChatSummary, 0, len(s.order))
	for _, id := range s.order {
		ret = append(ret, ChatSummary{ID: id, Title: s.titles[id]})
	}
	return ret, nil
}

func (s *MemoryStore) LoadMessages(chatID string) ([]messages.Message, error) {
	s.mu.Lock()
	payloads := make([]string, len(s.messages[chatID]))
	copy(payloads, s.messages[chatID])
	s.mu.Unlock()

	return messages.DecodeAll(payloads)
}

func (s *MemoryStore) AppendMessages(chatID string, msgs ...messages.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msg := range msgs {
		payload, err := msg.Serialize()
		if err != nil {
			return err
		}
		s.messages[chatID] = append(s.messages[chatID], payload)
	}
	return nil
}

func (s *MemoryStore) ReplaceMessageAt(chatID string, index int, msg messages.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.messages[chatID]
	if index < 0 || index >= len(stored) {
		return errors.Errorf("no message at index %d in chat %s", index, chatID)
	}
	payload, err := msg.Serialize()
	if err != nil {
		return err
	}
	stored[index] = payload
	return nil
}

func (s *MemoryStore) GlobalSettings() (*chat.Settings, error) {
	s.mu.Lock()
	payload := s.global
	s.mu.Unlock()

	if payload == nil {
		settings, err := chat.DefaultSettings()
		if err != nil {
			return nil, err
		}
		if err := s.SetGlobalSettings(settings); err != nil {
			return nil, err
		}
		return settings, nil
	}

	settings, err := chat.DecodeSettings(payload)
	if err != nil {
		return nil, err
	}
	settings.UsingGlobalSettings = true
	return settings, nil
}

func (s *MemoryStore) SetGlobalSettings(settings *chat.Settings) error {
	payload, err := chat.EncodeSettings(settings)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.global = payload
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ResolveChatSettings(chatID string) (*chat.Settings, error) {
	s.mu.Lock()
	payload, hasLocal := s.chatSettings[chatID]
	usingGlobal, configured := s.usingGlobal[chatID]
	s.mu.Unlock()

	if !hasLocal || (configured && usingGlobal) {
		return s.GlobalSettings()
	}

	settings, err := chat.DecodeSettings(payload)
	if err != nil {
		return nil, err
	}
	settings.UsingGlobalSettings = false
	return settings, nil
}

func (s *MemoryStore) SetChatSettings(chatID string, settings *chat.Settings) error {
	payload, err := chat.EncodeSettings(settings)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.chatSettings[chatID] = payload
	s.usingGlobal[chatID] = false
	s.mu.Unlock()
	return nil
}

// SwitchToGlobal keeps the stored local payload so switching back later
// restores it.
func (s *MemoryStore) SwitchToGlobal(chatID string) error {
	s.mu.Lock()
	s.usingGlobal[chatID] = true
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) SwitchToLocal(chatID string) error {
	s.mu.Lock()
	_, hasLocal := s.chatSettings[chatID]
	if hasLocal {
		s.usingGlobal[chatID] = false
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	settings, err := s.GlobalSettings()
	if err != nil {
		return err
	}
	forked := settings.Clone()
	forked.UsingGlobalSettings = false
	return s.SetChatSettings(chatID, forked)
}

func (s *MemoryStore) AppendChatHandlers(chatID string, handlers ...chat.InputHandler) error {
	settings, err := s.ResolveChatSettings(chatID)
	if err != nil {
		return err
	}
	if settings.UsingGlobalSettings {
		settings = settings.Clone()
		settings.UsingGlobalSettings = false
	}
	for _, handler := range handlers {
		settings.InputHandlers = append(settings.InputHandlers, chat.HandlerEntry{
			Handler: handler,
			Display: true,
		})
	}
	return s.SetChatSettings(chatID, settings)
}

func (s *MemoryStore) GetLLMService(id string) (*intelligence.ServiceRecord, bool, error) {
	s.mu.Lock()
	payload, ok := s.services[id]
	s.mu.Unlock()
	if !ok {
		return nil, false, nil
	}

	record, err := decodeServiceRecord(id, payload)
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

func (s *MemoryStore) ListLLMServices() ([]intelligence.ServiceRecord, error) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.services))
	for id := range s.services {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Strings(ids)

	ret := make([]intelligence.ServiceRecord, 0, len(ids))
	for _, id := range ids {
		record, ok, err := s.GetLLMService(id)
		if err != nil {
			return nil, err
		}
		if ok {
			ret = append(ret, *record)
		}
	}
	return ret, nil
}

func (s *MemoryStore) SetLLMService(record intelligence.ServiceRecord) error {
	payload, err := encodeServiceRecord(&record)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.services[record.ID] = payload
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) DeleteLLMService(id string) error {
	s.mu.Lock()
	delete(s.services, id)
	s.mu.Unlock()
	return nil
}

var _ Store = (*MemoryStore)(nil)
