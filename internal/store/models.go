package store

import "time"

// Message sender identities as they appear in rendered history.
const (
	SenderUser = "You"
	SenderBot  = "Bot"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Do not expose this in JSON responses
	CreatedAt    time.Time `json:"created_at"`
}

// Model is a row of the externally seeded model catalog; read-only
// from the application's perspective.
type Model struct {
	ID   int64  `json:"model_id"`
	Name string `json:"model_name"`
}

type Chat struct {
	ID        string    `json:"id"` // Using UUID for external ID
	UserID    int64     `json:"user_id"`
	ModelID   int64     `json:"model_id"`
	ModelName string    `json:"model_name"` // fixed at creation, used for every completion on this thread
	Title     string    `json:"title"`
	Intro     string    `json:"chat"` // seeded welcome text
	CreatedAt time.Time `json:"created_at"`
}

type Message struct {
	ID        int64     `json:"id"`
	ChatID    string    `json:"chat_id"`
	Sender    string    `json:"sender"` // SenderUser or SenderBot
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
