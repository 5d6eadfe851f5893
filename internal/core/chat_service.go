package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/sgginc/learningchat/internal/store"
)

// ContextWindowSize is the number of recent messages (3 user/bot
// round-trips) concatenated into the prompt sent to the completion
// provider. A fixed count-based window; no token budgeting.
const ContextWindowSize = 6

type ChatService struct {
	dbStore *store.SQLiteStore
	llm     CompletionClient
}

func NewChatService(db *store.SQLiteStore, llm CompletionClient) *ChatService {
	return &ChatService{
		dbStore: db,
		llm:     llm,
	}
}

func (s *ChatService) GetUserByUsername(username string) (*store.User, error) {
	return s.dbStore.GetUserByUsername(username)
}

func (s *ChatService) CreateUser(username, passwordHash string) (*store.User, error) {
	return s.dbStore.CreateUser(username, passwordHash)
}

func (s *ChatService) CreateChat(userID, modelID int64, title string) (*store.Chat, error) {
	return s.dbStore.CreateChat(userID, modelID, title)
}

func (s *ChatService) GetChats(userID int64) ([]store.Chat, error) {
	return s.dbStore.ListChatsByUserID(userID)
}

func (s *ChatService) ListModels() ([]store.Model, error) {
	return s.dbStore.ListModels()
}

func (s *ChatService) DeleteChat(chatID string, userID int64) error {
	return s.dbStore.DeleteChat(chatID, userID)
}

// GetChatDetails returns the thread and its most recent limit messages
// oldest-first. Only the owning user may read a thread.
func (s *ChatService) GetChatDetails(chatID string, userID int64, limit int) (*store.Chat, []store.Message, error) {
	chat, err := s.dbStore.GetChatByID(chatID)
	if err != nil {
		return nil, nil, err
	}
	if chat.UserID != userID {
		return nil, nil, store.ErrForbidden
	}

	messages, err := s.dbStore.GetRecentMessages(chatID, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get messages for chat: %w", err)
	}
	return chat, messages, nil
}

// BuildContext assembles the conversation context for a new prompt:
// the thread's last ContextWindowSize messages rendered oldest-first
// as "<sender>: <content>" lines, then the prompt as a final "You:"
// line.
func (s *ChatService) BuildContext(chatID, prompt string) (string, error) {
	history, err := s.dbStore.GetRecentMessages(chatID, ContextWindowSize)
	if err != nil {
		return "", fmt.Errorf("failed to get chat history: %w", err)
	}

	var b strings.Builder
	for _, msg := range history {
		b.WriteString(msg.Sender)
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	b.WriteString(store.SenderUser)
	b.WriteString(": ")
	b.WriteString(prompt)
	return b.String(), nil
}

// SendMessage persists the user's prompt, calls the completion
// provider with the assembled context and the thread's stored model
// name, and persists the reply. The three steps are deliberately not
// wrapped in a transaction: a gateway failure after the user message
// is stored leaves that message in place and returns the error.
func (s *ChatService) SendMessage(ctx context.Context, chatID string, userID int64, prompt string) (*store.Message, error) {
	chat, err := s.dbStore.GetChatByID(chatID)
	if err != nil {
		return nil, err
	}
	if chat.UserID != userID {
		return nil, store.ErrForbidden
	}

	// Context is assembled before the prompt is persisted so the new
	// message does not show up in its own history window.
	promptContext, err := s.BuildContext(chatID, prompt)
	if err != nil {
		return nil, err
	}

	userMsg := store.Message{
		ChatID:  chatID,
		Sender:  store.SenderUser,
		Content: prompt,
	}
	if err := s.dbStore.AppendMessage(&userMsg); err != nil {
		return nil, fmt.Errorf("failed to store user message: %w", err)
	}

	reply, err := s.llm.Complete(ctx, promptContext, chat.ModelName)
	if err != nil {
		return nil, err
	}

	botMsg := store.Message{
		ChatID:  chatID,
		Sender:  store.SenderBot,
		Content: reply,
	}
	if err := s.dbStore.AppendMessage(&botMsg); err != nil {
		return nil, fmt.Errorf("failed to store bot message: %w", err)
	}
	return &botMsg, nil
}
