package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	// Public routes
	r.Get("/", apiHandler.IndexHandler)
	r.Get("/about", apiHandler.AboutHandler)
	r.Get("/login", apiHandler.LoginPageHandler)
	r.Post("/login", apiHandler.LoginHandler)
	r.Get("/register", apiHandler.RegisterPageHandler)
	r.Post("/register", apiHandler.RegisterHandler)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Authenticated page routes
	r.Group(func(r chi.Router) {
		r.Use(apiHandler.RequireSession)

		r.Get("/logout", apiHandler.LogoutHandler)
		r.Get("/chat", apiHandler.ChatListHandler)
		r.Post("/chat", apiHandler.ChatPostHandler)
		r.Get("/chat/{chatID}", apiHandler.ChatDetailHandler)
		r.Post("/chat/{chatID}", apiHandler.ChatMessageHandler)
	})

	// Authenticated JSON routes
	r.Group(func(r chi.Router) {
		r.Use(apiHandler.RequireSessionJSON)

		r.Post("/get_response", apiHandler.GetResponseHandler)
		r.Post("/create_chat", apiHandler.CreateChatHandler)
		r.Delete("/delete_chat/{chatID}", apiHandler.DeleteChatHandler)
	})

	return r
}
