package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sgginc/learningchat/internal/auth"
	"github.com/sgginc/learningchat/internal/core"
	"github.com/sgginc/learningchat/internal/store"
)

// DetailWindowSize is the number of recent messages shown on the
// thread detail page.
const DetailWindowSize = 10

type APIHandler struct {
	chatService *core.ChatService
}

func NewAPIHandler(cs *core.ChatService) *APIHandler {
	return &APIHandler{chatService: cs}
}

func requestUserID(r *http.Request) int64 {
	return r.Context().Value("userID").(int64)
}

// RequireSession gates page routes: anonymous callers get a notice
// and a redirect to the login page, without touching the store.
func (h *APIHandler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.SessionUserID(r)
		if !ok {
			auth.Flash(w, "You need to login first.")
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		ctx := context.WithValue(r.Context(), "userID", userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSessionJSON gates JSON routes with a 401 payload instead of
// a redirect.
func (h *APIHandler) RequireSessionJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.SessionUserID(r)
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		ctx := context.WithValue(r.Context(), "userID", userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// Page routes

func (h *APIHandler) IndexHandler(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, "Home", appData.Description)
}

func (h *APIHandler) AboutHandler(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, "About", "A small chat application by "+appData.Author+".")
}

func (h *APIHandler) LoginPageHandler(w http.ResponseWriter, r *http.Request) {
	renderLoginPage(w, r, "")
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	password := r.FormValue("password")

	user, err := h.chatService.GetUserByUsername(username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("Error looking up user %q: %v", username, err)
		}
		renderLoginPage(w, r, "Invalid Credentials. Please try again.")
		return
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		renderLoginPage(w, r, "Invalid Credentials. Please try again.")
		return
	}

	if err := auth.SetSession(w, user.ID); err != nil {
		log.Printf("Error setting session for user %q: %v", username, err)
		http.Error(w, "Failed to start session", http.StatusInternalServerError)
		return
	}
	auth.Flash(w, "You were logged in.")
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *APIHandler) RegisterPageHandler(w http.ResponseWriter, r *http.Request) {
	renderRegisterPage(w, r, "")
}

func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	password := r.FormValue("password")
	if username == "" || password == "" {
		renderRegisterPage(w, r, "Username and password are required.")
		return
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		log.Printf("Error hashing password for user %q: %v", username, err)
		http.Error(w, "Failed to process password", http.StatusInternalServerError)
		return
	}

	user, err := h.chatService.CreateUser(username, hashedPassword)
	if err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			renderRegisterPage(w, r, "That username is already taken.")
			return
		}
		log.Printf("Error creating user %q: %v", username, err)
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	if err := auth.SetSession(w, user.ID); err != nil {
		log.Printf("Error setting session for user %q: %v", username, err)
		http.Error(w, "Failed to start session", http.StatusInternalServerError)
		return
	}
	auth.Flash(w, "You were logged in.")
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	auth.ClearSession(w)
	auth.Flash(w, "You were logged out.")
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *APIHandler) ChatListHandler(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)

	chats, err := h.chatService.GetChats(userID)
	if err != nil {
		log.Printf("Error listing chats for user %d: %v", userID, err)
		http.Error(w, "Failed to list chats", http.StatusInternalServerError)
		return
	}
	models, err := h.chatService.ListModels()
	if err != nil {
		log.Printf("Error listing models: %v", err)
		http.Error(w, "Failed to list models", http.StatusInternalServerError)
		return
	}
	renderChatListPage(w, r, chats, models)
}

// ChatPostHandler posts a message to the thread selected in the form.
func (h *APIHandler) ChatPostHandler(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	chatID := r.FormValue("chat_id")
	prompt := r.FormValue("chat")
	if chatID == "" || prompt == "" {
		auth.Flash(w, "Select a chat and type a message first.")
		http.Redirect(w, r, "/chat", http.StatusFound)
		return
	}

	h.postAndRedirect(w, r, chatID, userID, prompt)
}

func (h *APIHandler) ChatDetailHandler(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	chatID := chi.URLParam(r, "chatID")

	chat, messages, err := h.chatService.GetChatDetails(chatID, userID, DetailWindowSize)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrForbidden):
			auth.Flash(w, "Chat not found.")
			http.Redirect(w, r, "/chat", http.StatusFound)
		default:
			log.Printf("Error getting chat details for user %d, chat %s: %v", userID, chatID, err)
			http.Error(w, "Failed to get chat details", http.StatusInternalServerError)
		}
		return
	}
	renderChatDetailPage(w, r, chat, messages)
}

func (h *APIHandler) ChatMessageHandler(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	chatID := chi.URLParam(r, "chatID")
	prompt := r.FormValue("chat")
	if prompt == "" {
		auth.Flash(w, "Type a message first.")
		http.Redirect(w, r, "/chat/"+chatID, http.StatusFound)
		return
	}

	h.postAndRedirect(w, r, chatID, userID, prompt)
}

func (h *APIHandler) postAndRedirect(w http.ResponseWriter, r *http.Request, chatID string, userID int64, prompt string) {
	_, err := h.chatService.SendMessage(r.Context(), chatID, userID, prompt)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrForbidden):
		auth.Flash(w, "Chat not found.")
		http.Redirect(w, r, "/chat", http.StatusFound)
		return
	case errors.Is(err, core.ErrGateway):
		log.Printf("Completion provider error for chat %s: %v", chatID, err)
		auth.Flash(w, "The assistant is unavailable right now. Your message was saved.")
	default:
		log.Printf("Error posting message for user %d, chat %s: %v", userID, chatID, err)
		auth.Flash(w, "Something went wrong posting your message.")
	}
	http.Redirect(w, r, "/chat/"+chatID, http.StatusFound)
}

// JSON routes

type GetResponseRequest struct {
	Prompt string `json:"prompt"`
	ChatID string `json:"chat_id"`
}

func (h *APIHandler) GetResponseHandler(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)

	var req GetResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Prompt == "" || req.ChatID == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt and chat_id are required")
		return
	}

	botMsg, err := h.chatService.SendMessage(r.Context(), req.ChatID, userID, req.Prompt)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"response": botMsg.Content})
	case errors.Is(err, store.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "chat not found")
	case errors.Is(err, store.ErrForbidden):
		writeJSONError(w, http.StatusForbidden, "chat does not belong to you")
	case errors.Is(err, core.ErrGateway):
		log.Printf("Completion provider error for chat %s: %v", req.ChatID, err)
		writeJSONError(w, http.StatusBadGateway, err.Error())
	default:
		log.Printf("Error getting response for user %d, chat %s: %v", userID, req.ChatID, err)
		writeJSONError(w, http.StatusInternalServerError, "failed to get response")
	}
}

type CreateChatRequest struct {
	ModelID int64  `json:"model_id"`
	Title   string `json:"title"`
}

func (h *APIHandler) CreateChatHandler(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)

	var req CreateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ModelID == 0 || req.Title == "" {
		writeJSONError(w, http.StatusBadRequest, "model_id and title are required")
		return
	}

	chat, err := h.chatService.CreateChat(userID, req.ModelID, req.Title)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, map[string]any{"message": "Chat created successfully", "chat": chat})
	case errors.Is(err, store.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "model not found")
	default:
		log.Printf("Error creating chat for user %d: %v", userID, err)
		writeJSONError(w, http.StatusInternalServerError, "failed to create chat")
	}
}

func (h *APIHandler) DeleteChatHandler(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	chatID := chi.URLParam(r, "chatID")

	err := h.chatService.DeleteChat(chatID, userID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"message": "Chat deleted successfully"})
	case errors.Is(err, store.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "chat not found")
	case errors.Is(err, store.ErrForbidden):
		writeJSONError(w, http.StatusForbidden, "chat does not belong to you")
	default:
		log.Printf("Error deleting chat %s for user %d: %v", chatID, userID, err)
		writeJSONError(w, http.StatusInternalServerError, "failed to delete chat")
	}
}
