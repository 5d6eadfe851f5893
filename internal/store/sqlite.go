package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("forbidden")
	ErrUsernameTaken = errors.New("username already taken")
)

// WelcomeMessage is seeded into every new chat thread.
const WelcomeMessage = "Hello! Pick up where you left off, or ask me anything."

// seedModels is the model catalog inserted at schema init. The table
// is treated as externally seeded reference data and never written
// afterwards.
var seedModels = []Model{
	{ID: 1, Name: "gpt-3.5-turbo"},
	{ID: 2, Name: "gpt-4"},
	{ID: 3, Name: "gemini-1.5-flash-latest"},
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        username TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS models (
        id INTEGER PRIMARY KEY,
        name TEXT UNIQUE NOT NULL
    );

    CREATE TABLE IF NOT EXISTS chats (
        id TEXT PRIMARY KEY, -- UUID
        user_id INTEGER NOT NULL,
        model_id INTEGER NOT NULL,
        model_name TEXT NOT NULL,
        title TEXT NOT NULL,
        chat TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (user_id) REFERENCES users (id),
        FOREIGN KEY (model_id) REFERENCES models (id)
    );

    CREATE TABLE IF NOT EXISTS messages (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        chat_id TEXT NOT NULL,
        sender TEXT NOT NULL,
        content TEXT NOT NULL,
        timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (chat_id) REFERENCES chats (id)
    );
    `
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	for _, m := range seedModels {
		if _, err := s.db.Exec("INSERT OR IGNORE INTO models (id, name) VALUES (?, ?)", m.ID, m.Name); err != nil {
			return fmt.Errorf("failed to seed model %q: %w", m.Name, err)
		}
	}
	return nil
}

// User methods

func (s *SQLiteStore) GetUserByUsername(username string) (*User, error) {
	var user User
	err := s.db.QueryRow("SELECT id, username, password_hash, created_at FROM users WHERE username = ?", username).
		Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// CreateUser inserts a new user. Registering a username that already
// exists fails with ErrUsernameTaken rather than the source system's
// insert-or-ignore (see DESIGN.md).
func (s *SQLiteStore) CreateUser(username, passwordHash string) (*User, error) {
	res, err := s.db.Exec("INSERT INTO users (username, password_hash) VALUES (?, ?)", username, passwordHash)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.getUserByID(id)
}

func (s *SQLiteStore) getUserByID(id int64) (*User, error) {
	var user User
	err := s.db.QueryRow("SELECT id, username, password_hash, created_at FROM users WHERE id = ?", id).
		Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &user, nil
}

// Model methods

func (s *SQLiteStore) ListModels() ([]Model, error) {
	rows, err := s.db.Query("SELECT id, name FROM models ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query models: %w", err)
	}
	defer rows.Close()

	var models []Model
	for rows.Next() {
		var m Model
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, fmt.Errorf("failed to scan model row: %w", err)
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

func (s *SQLiteStore) GetModelByID(id int64) (*Model, error) {
	var m Model
	err := s.db.QueryRow("SELECT id, name FROM models WHERE id = ?", id).Scan(&m.ID, &m.Name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query model: %w", err)
	}
	return &m, nil
}

// Chat methods

// CreateChat creates a thread bound to modelID, resolving the model
// name at creation time, and seeds the welcome message. Fails with
// ErrNotFound (persisting nothing) if modelID does not resolve.
func (s *SQLiteStore) CreateChat(userID, modelID int64, title string) (*Chat, error) {
	model, err := s.GetModelByID(modelID)
	if err != nil {
		return nil, err
	}

	chat := &Chat{
		ID:        uuid.NewString(),
		UserID:    userID,
		ModelID:   model.ID,
		ModelName: model.Name,
		Title:     title,
		Intro:     WelcomeMessage,
		CreatedAt: time.Now(),
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec("INSERT INTO chats (id, user_id, model_id, model_name, title, chat, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		chat.ID, chat.UserID, chat.ModelID, chat.ModelName, chat.Title, chat.Intro, chat.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert chat: %w", err)
	}

	_, err = tx.Exec("INSERT INTO messages (chat_id, sender, content, timestamp) VALUES (?, ?, ?, ?)",
		chat.ID, SenderBot, WelcomeMessage, chat.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to seed welcome message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit chat creation: %w", err)
	}
	return chat, nil
}

func (s *SQLiteStore) GetChatByID(chatID string) (*Chat, error) {
	var chat Chat
	err := s.db.QueryRow("SELECT id, user_id, model_id, model_name, title, chat, created_at FROM chats WHERE id = ?", chatID).
		Scan(&chat.ID, &chat.UserID, &chat.ModelID, &chat.ModelName, &chat.Title, &chat.Intro, &chat.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	return &chat, nil
}

func (s *SQLiteStore) ListChatsByUserID(userID int64) ([]Chat, error) {
	rows, err := s.db.Query("SELECT id, user_id, model_id, model_name, title, chat, created_at FROM chats WHERE user_id = ? ORDER BY created_at ASC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		var chat Chat
		if err := rows.Scan(&chat.ID, &chat.UserID, &chat.ModelID, &chat.ModelName, &chat.Title, &chat.Intro, &chat.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat row: %w", err)
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

// DeleteChat removes the thread and all of its messages as one unit.
// Returns ErrForbidden when the thread is owned by a different user
// and leaves all rows intact.
func (s *SQLiteStore) DeleteChat(chatID string, userID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var ownerID int64
	err = tx.QueryRow("SELECT user_id FROM chats WHERE id = ?", chatID).Scan(&ownerID)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("failed to look up chat owner: %w", err)
	}
	if ownerID != userID {
		return ErrForbidden
	}

	if _, err = tx.Exec("DELETE FROM messages WHERE chat_id = ?", chatID); err != nil {
		return fmt.Errorf("failed to delete chat messages: %w", err)
	}
	if _, err = tx.Exec("DELETE FROM chats WHERE id = ?", chatID); err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	return tx.Commit()
}

// Message methods

func (s *SQLiteStore) AppendMessage(msg *Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	res, err := s.db.Exec("INSERT INTO messages (chat_id, sender, content, timestamp) VALUES (?, ?, ?, ?)",
		msg.ChatID, msg.Sender, msg.Content, msg.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	msg.ID, _ = res.LastInsertId()
	return nil
}

// GetRecentMessages returns the most recent n messages of a thread in
// chronological (oldest-first) order: fetched descending by timestamp,
// then reversed. This is the read pattern for both the detail view and
// context assembly.
func (s *SQLiteStore) GetRecentMessages(chatID string, n int) ([]Message, error) {
	query := `
        SELECT id, chat_id, sender, content, timestamp
        FROM messages
        WHERE chat_id = ?
        ORDER BY timestamp DESC, id DESC
        LIMIT ?
    `

	rows, err := s.db.Query(query, chatID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.Sender, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
