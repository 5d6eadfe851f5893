package api

import (
	"fmt"
	"html"
	"net/http"

	"github.com/sgginc/learningchat/internal/auth"
	"github.com/sgginc/learningchat/internal/store"
)

// appData mirrors the static page metadata of the original site.
var appData = struct {
	Name        string
	Description string
	Author      string
}{
	Name:        "The Learning Chat",
	Description: "Making life easier since 2018!",
	Author:      "SGG Inc.",
}

// Page rendering is an external-collaborator boundary: no template
// engine, just minimal well-formed pages so the route contracts
// (redirects, notices, listed content) are observable.

func writePageHeader(w http.ResponseWriter, r *http.Request, title string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!DOCTYPE html><html><head><title>%s - %s</title></head><body>",
		html.EscapeString(title), html.EscapeString(appData.Name))
	if notice, ok := auth.PopFlash(w, r); ok {
		fmt.Fprintf(w, `<p class="notice">%s</p>`, html.EscapeString(notice))
	}
	fmt.Fprintf(w, "<h1>%s</h1>", html.EscapeString(title))
}

func writePageFooter(w http.ResponseWriter) {
	fmt.Fprint(w, "</body></html>")
}

func renderPage(w http.ResponseWriter, r *http.Request, title, body string) {
	writePageHeader(w, r, title)
	fmt.Fprintf(w, "<p>%s</p>", html.EscapeString(body))
	writePageFooter(w)
}

func renderLoginPage(w http.ResponseWriter, r *http.Request, errorMessage string) {
	writePageHeader(w, r, "Login")
	if errorMessage != "" {
		fmt.Fprintf(w, `<p class="error">%s</p>`, html.EscapeString(errorMessage))
	}
	fmt.Fprint(w, `<form method="post" action="/login">`+
		`<input name="username" placeholder="Username">`+
		`<input name="password" type="password" placeholder="Password">`+
		`<button type="submit">Login</button></form>`)
	writePageFooter(w)
}

func renderRegisterPage(w http.ResponseWriter, r *http.Request, errorMessage string) {
	writePageHeader(w, r, "Register")
	if errorMessage != "" {
		fmt.Fprintf(w, `<p class="error">%s</p>`, html.EscapeString(errorMessage))
	}
	fmt.Fprint(w, `<form method="post" action="/register">`+
		`<input name="username" placeholder="Username">`+
		`<input name="password" type="password" placeholder="Password">`+
		`<button type="submit">Register</button></form>`)
	writePageFooter(w)
}

func renderChatListPage(w http.ResponseWriter, r *http.Request, chats []store.Chat, models []store.Model) {
	writePageHeader(w, r, "Your Chats")
	fmt.Fprint(w, "<ul>")
	for _, chat := range chats {
		fmt.Fprintf(w, `<li><a href="/chat/%s">%s</a> (%s)</li>`,
			html.EscapeString(chat.ID), html.EscapeString(chat.Title), html.EscapeString(chat.ModelName))
	}
	fmt.Fprint(w, "</ul><h2>Models</h2><ul>")
	for _, model := range models {
		fmt.Fprintf(w, "<li>%d: %s</li>", model.ID, html.EscapeString(model.Name))
	}
	fmt.Fprint(w, "</ul>")
	fmt.Fprint(w, `<form method="post" action="/chat">`+
		`<input name="chat_id" placeholder="Chat ID">`+
		`<input name="chat" placeholder="Message">`+
		`<button type="submit">Send</button></form>`)
	writePageFooter(w)
}

func renderChatDetailPage(w http.ResponseWriter, r *http.Request, chat *store.Chat, messages []store.Message) {
	writePageHeader(w, r, chat.Title)
	fmt.Fprintf(w, "<p>Model: %s</p><ul>", html.EscapeString(chat.ModelName))
	for _, msg := range messages {
		fmt.Fprintf(w, "<li><b>%s:</b> %s</li>",
			html.EscapeString(msg.Sender), html.EscapeString(msg.Content))
	}
	fmt.Fprint(w, "</ul>")
	fmt.Fprintf(w, `<form method="post" action="/chat/%s">`+
		`<input name="chat" placeholder="Message">`+
		`<button type="submit">Send</button></form>`, html.EscapeString(chat.ID))
	writePageFooter(w)
}
