package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/go-go-golems/babelduck/pkg/chat"
	"github.com/go-go-golems/babelduck/pkg/intelligence"
	"github.com/go-go-golems/babelduck/pkg/messages"
)

const schema = `
CREATE TABLE IF NOT EXISTS chats (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_messages (
    chat_id TEXT NOT NULL,
    idx INTEGER NOT NULL,
    payload TEXT NOT NULL,
    PRIMARY KEY (chat_id, idx),
    FOREIGN KEY (chat_id) REFERENCES chats(id)
);

CREATE TABLE IF NOT EXISTS chat_settings (
    chat_id TEXT PRIMARY KEY,
    using_global INTEGER NOT NULL DEFAULT 1,
    payload TEXT
);

CREATE TABLE IF NOT EXISTS global_settings (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    payload TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS llm_services (
    id TEXT PRIMARY KEY,
    payload TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS counters (
    name TEXT PRIMARY KEY,
    value INTEGER NOT NULL
);
`

// SQLiteStore keeps everything in a single SQLite file. It is a local
// single-writer store with last-writer-wins semantics; concurrent writers
// from multiple processes are not a supported configuration.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "could not create store directory")
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, errors.Wrap(err, "could not open store")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "could not initialize store schema")
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateChat stores a new chat with its seed messages. An empty title gets
// a numbered default from a counter that never reuses numbers, even after
// chats are deleted.
func (s *SQLiteStore) CreateChat(title string, seed []messages.Message) (string, error) {
	chatID := uuid.New().String()

	tx, err := s.db.Begin()
	if err != nil {
		return "", errors.Wrap(err, "could not begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if title == "" {
		if _, err := tx.Exec(
			`INSERT INTO counters (name, value) VALUES ('chat', 1)
			 ON CONFLICT(name) DO UPDATE SET value = value + 1`,
		); err != nil {
			return "", errors.Wrap(err, "could not advance chat counter")
		}
		var n int
		if err := tx.QueryRow("SELECT value FROM counters WHERE name = 'chat'").Scan(&n); err != nil {
			return "", errors.Wrap(err, "could not read chat counter")
		}
		title = fmt.Sprintf("Chat %d", n)
	}

	if _, err := tx.Exec(
		"INSERT INTO chats (id, title, created_at) VALUES (?, ?, ?)",
		chatID, title, time.Now().Unix(),
	); err != nil {
		return "", errors.Wrap(err, "could not create chat")
	}
	for idx, msg := range seed {
		payload, err := msg.Serialize()
		if err != nil {
			return "", err
		}
		if _, err := tx.Exec(
			"INSERT INTO chat_messages (chat_id, idx, payload) VALUES (?, ?, ?)",
			chatID, idx, payload,
		); err != nil {
			return "", errors.Wrap(err, "could not store seed message")
		}
	}

	if err := tx.Commit(); err != nil {
		return "", errors.Wrap(err, "could not commit chat")
	}
	return chatID, nil
}

func (s *SQLiteStore) DeleteChat(chatID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "could not begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		"DELETE FROM chat_messages WHERE chat_id = ?",
		"DELETE FROM chat_settings WHERE chat_id = ?",
		"DELETE FROM chats WHERE id = ?",
	} {
		if _, err := tx.Exec(stmt, chatID); err != nil {
			return errors.Wrapf(err, "could not delete chat %s", chatID)
		}
	}
	return errors.Wrap(tx.Commit(), "could not commit chat deletion")
}

func (s *SQLiteStore) RenameChat(chatID string, title string) error {
	_, err := s.db.Exec("UPDATE chats SET title = ? WHERE id = ?", title, chatID)
	return errors.Wrapf(err, "could not rename chat %s", chatID)
}

func (s *SQLiteStore) ListChats() ([]ChatSummary, error) {
	rows, err := s.db.Query("SELECT id, title FROM chats ORDER BY created_at, rowid")
	if err != nil {
		return nil, errors.Wrap(err, "could not list chats")
	}
	defer func() { _ = rows.Close() }()

	var ret []ChatSummary
	for rows.Next() {
		var summary ChatSummary
		if err := rows.Scan(&summary.ID, &summary.Title); err != nil {
			return nil, errors.Wrap(err, "could not scan chat row")
		}
		ret = append(ret, summary)
	}
	return ret, rows.Err()
}

// LoadMessages decodes the full message list of a chat, in index order. An
// unknown message type fails the whole load; dropping a message would shift
// the indices the rest of the system updates by.
func (s *SQLiteStore) LoadMessages(chatID string) ([]messages.Message, error) {
	rows, err := s.db.Query(
		"SELECT payload FROM chat_messages WHERE chat_id = ? ORDER BY idx",
		chatID,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "could not load messages for chat %s", chatID)
	}
	defer func() { _ = rows.Close() }()

	var payloads []string
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.Wrap(err, "could not scan message row")
		}
		payloads = append(payloads, payload)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages.DecodeAll(payloads)
}

func (s *SQLiteStore) AppendMessages(chatID string, msgs ...messages.Message) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "could not begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var next int
	if err := tx.QueryRow(
		"SELECT COALESCE(MAX(idx) + 1, 0) FROM chat_messages WHERE chat_id = ?",
		chatID,
	).Scan(&next); err != nil {
		return errors.Wrap(err, "could not determine next message index")
	}

	for i, msg := range msgs {
		payload, err := msg.Serialize()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			"INSERT INTO chat_messages (chat_id, idx, payload) VALUES (?, ?, ?)",
			chatID, next+i, payload,
		); err != nil {
			return errors.Wrap(err, "could not store message")
		}
	}
	return errors.Wrap(tx.Commit(), "could not commit messages")
}

func (s *SQLiteStore) ReplaceMessageAt(chatID string, index int, msg messages.Message) error {
	payload, err := msg.Serialize()
	if err != nil {
		return err
	}

	result, err := s.db.Exec(
		"UPDATE chat_messages SET payload = ? WHERE chat_id = ? AND idx = ?",
		payload, chatID, index,
	)
	if err != nil {
		return errors.Wrapf(err, "could not replace message %d in chat %s", index, chatID)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.Errorf("no message at index %d in chat %s", index, chatID)
	}
	return nil
}

// GlobalSettings returns the global defaults, seeding them from the
// embedded factory settings on first use.
func (s *SQLiteStore) GlobalSettings() (*chat.Settings, error) {
	var payload string
	err := s.db.QueryRow("SELECT payload FROM global_settings WHERE id = 1").Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		settings, err := chat.DefaultSettings()
		if err != nil {
			return nil, err
		}
		if err := s.SetGlobalSettings(settings); err != nil {
			return nil, err
		}
		return settings, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not load global settings")
	}

	settings, err := chat.DecodeSettings([]byte(payload))
	if err != nil {
		return nil, err
	}
	settings.UsingGlobalSettings = true
	return settings, nil
}

func (s *SQLiteStore) SetGlobalSettings(settings *chat.Settings) error {
	payload, err := chat.EncodeSettings(settings)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		"INSERT INTO global_settings (id, payload) VALUES (1, ?) ON CONFLICT(id) DO UPDATE SET payload = excluded.payload",
		string(payload),
	)
	return errors.Wrap(err, "could not store global settings")
}

// ResolveChatSettings applies the two-tier override: chats marked as using
// global settings (or never configured) get the globals, chats with local
// settings get those.
func (s *SQLiteStore) ResolveChatSettings(chatID string) (*chat.Settings, error) {
	var usingGlobal bool
	var payload sql.NullString
	err := s.db.QueryRow(
		"SELECT using_global, payload FROM chat_settings WHERE chat_id = ?",
		chatID,
	).Scan(&usingGlobal, &payload)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && usingGlobal) {
		return s.GlobalSettings()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not load settings for chat %s", chatID)
	}
	if !payload.Valid {
		return s.GlobalSettings()
	}

	settings, err := chat.DecodeSettings([]byte(payload.String))
	if err != nil {
		return nil, err
	}
	settings.UsingGlobalSettings = false
	return settings, nil
}

func (s *SQLiteStore) SetChatSettings(chatID string, settings *chat.Settings) error {
	payload, err := chat.EncodeSettings(settings)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO chat_settings (chat_id, using_global, payload) VALUES (?, 0, ?)
		 ON CONFLICT(chat_id) DO UPDATE SET using_global = 0, payload = excluded.payload`,
		chatID, string(payload),
	)
	return errors.Wrapf(err, "could not store settings for chat %s", chatID)
}

// SwitchToGlobal drops the chat's local override; the stored payload is
// kept so switching back restores it.
func (s *SQLiteStore) SwitchToGlobal(chatID string) error {
	_, err := s.db.Exec(
		`INSERT INTO chat_settings (chat_id, using_global) VALUES (?, 1)
		 ON CONFLICT(chat_id) DO UPDATE SET using_global = 1`,
		chatID,
	)
	return errors.Wrapf(err, "could not switch chat %s to global settings", chatID)
}

// SwitchToLocal forks the chat's resolved settings into a local override.
// A previously stored local payload is reused; otherwise the globals are
// copied.
func (s *SQLiteStore) SwitchToLocal(chatID string) error {
	var payload sql.NullString
	err := s.db.QueryRow(
		"SELECT payload FROM chat_settings WHERE chat_id = ?",
		chatID,
	).Scan(&payload)
	if err == nil && payload.Valid {
		_, err = s.db.Exec("UPDATE chat_settings SET using_global = 0 WHERE chat_id = ?", chatID)
		return errors.Wrapf(err, "could not switch chat %s to local settings", chatID)
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return errors.Wrapf(err, "could not load settings for chat %s", chatID)
	}

	settings, err := s.GlobalSettings()
	if err != nil {
		return err
	}
	forked := settings.Clone()
	forked.UsingGlobalSettings = false
	return s.SetChatSettings(chatID, forked)
}

// AppendChatHandlers adds handlers to a chat's settings, forking the
// globals into local settings first when the chat still follows them.
func (s *SQLiteStore) AppendChatHandlers(chatID string, handlers ...chat.InputHandler) error {
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

func (s *SQLiteStore) GetLLMService(id string) (*intelligence.ServiceRecord, bool, error) {
	var payload string
	err := s.db.QueryRow("SELECT payload FROM llm_services WHERE id = ?", id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "could not load LLM service %s", id)
	}

	record, err := decodeServiceRecord(id, payload)
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

func (s *SQLiteStore) ListLLMServices() ([]intelligence.ServiceRecord, error) {
	rows, err := s.db.Query("SELECT id, payload FROM llm_services ORDER BY id")
	if err != nil {
		return nil, errors.Wrap(err, "could not list LLM services")
	}
	defer func() { _ = rows.Close() }()

	var ret []intelligence.ServiceRecord
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, errors.Wrap(err, "could not scan LLM service row")
		}
		record, err := decodeServiceRecord(id, payload)
		if err != nil {
			return nil, err
		}
		ret = append(ret, *record)
	}
	return ret, rows.Err()
}

func (s *SQLiteStore) SetLLMService(record intelligence.ServiceRecord) error {
	payload, err := encodeServiceRecord(&record)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO llm_services (id, payload) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload`,
		record.ID, payload,
	)
	return errors.Wrapf(err, "could not store LLM service %s", record.ID)
}

func (s *SQLiteStore) DeleteLLMService(id string) error {
	_, err := s.db.Exec("DELETE FROM llm_services WHERE id = ?", id)
	return errors.Wrapf(err, "could not delete LLM service %s", id)
}

var _ Store = (*SQLiteStore)(nil)
