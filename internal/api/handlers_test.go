package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgginc/learningchat/internal/auth"
	"github.com/sgginc/learningchat/internal/config"
	"github.com/sgginc/learningchat/internal/core"
	"github.com/sgginc/learningchat/internal/store"
)

func init() {
	config.AppConfig.SessionSecret = "test-secret"
}

type stubCompletionClient struct {
	reply   string
	fail    bool
	calls   int
	prompts []string
}

func (c *stubCompletionClient) Complete(_ context.Context, prompt, _ string) (string, error) {
	c.calls++
	c.prompts = append(c.prompts, prompt)
	if c.fail {
		return "", fmt.Errorf("%w: stubbed provider failure", core.ErrGateway)
	}
	return c.reply, nil
}

func (c *stubCompletionClient) Close() error { return nil }

type testApp struct {
	router  http.Handler
	dbStore *store.SQLiteStore
	llm     *stubCompletionClient
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	dbStore, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dbStore.Close() })

	llm := &stubCompletionClient{reply: "Stub reply."}
	chatService := core.NewChatService(dbStore, llm)
	return &testApp{
		router:  NewRouter(NewAPIHandler(chatService)),
		dbStore: dbStore,
		llm:     llm,
	}
}

func (app *testApp) sessionCookie(t *testing.T, username string) (*http.Cookie, *store.User) {
	t.Helper()
	hash, err := auth.HashPassword("password")
	require.NoError(t, err)
	user, err := app.dbStore.CreateUser(username, hash)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, auth.SetSession(rec, user.ID))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0], user
}

func (app *testApp) doJSON(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	return rec
}

func TestUnauthenticatedChatRedirectsToLogin(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	// The gate fires before any repository access: no user exists and
	// nothing was created.
	_, err := app.dbStore.GetUserByUsername("anyone")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUnauthenticatedJSONRouteGets401(t *testing.T) {
	app := newTestApp(t)

	rec := app.doJSON(t, http.MethodPost, "/create_chat", map[string]any{"model_id": 1, "title": "x"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.NotEmpty(t, payload["error"])
}

func TestRegisterLoginFlow(t *testing.T) {
	app := newTestApp(t)

	form := url.Values{"username": {"alice"}, "password": {"hunter2"}}
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie, "registration should log the caller in")

	// The session is accepted on an authenticated route.
	req = httptest.NewRequest(http.MethodGet, "/chat", nil)
	req.AddCookie(sessionCookie)
	rec = httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Logging in again with the right password works.
	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)

	// The wrong password re-renders the form with an error.
	bad := url.Values{"username": {"alice"}, "password": {"wrong"}}
	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(bad.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid Credentials")
}

func TestRegisterDuplicateUsernameRejected(t *testing.T) {
	app := newTestApp(t)
	_, _ = app.sessionCookie(t, "alice")

	form := url.Values{"username": {"alice"}, "password": {"other"}}
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "already taken")
	for _, c := range rec.Result().Cookies() {
		assert.NotEqual(t, auth.SessionCookieName, c.Name, "failed registration must not log the caller in")
	}
}

func TestCreateChatEndpoint(t *testing.T) {
	app := newTestApp(t)
	cookie, user := app.sessionCookie(t, "alice")

	rec := app.doJSON(t, http.MethodPost, "/create_chat", map[string]any{"model_id": 1, "title": "trip planning"}, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)

	var payload struct {
		Message string     `json:"message"`
		Chat    store.Chat `json:"chat"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "Chat created successfully", payload.Message)
	assert.Equal(t, "trip planning", payload.Chat.Title)
	assert.Equal(t, "gpt-3.5-turbo", payload.Chat.ModelName)

	chats, err := app.dbStore.ListChatsByUserID(user.ID)
	require.NoError(t, err)
	assert.Len(t, chats, 1)
}

func TestCreateChatValidation(t *testing.T) {
	app := newTestApp(t)
	cookie, _ := app.sessionCookie(t, "alice")

	rec := app.doJSON(t, http.MethodPost, "/create_chat", map[string]any{"title": "no model"}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.doJSON(t, http.MethodPost, "/create_chat", map[string]any{"model_id": 999, "title": "ghost"}, cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetResponseEndpoint(t *testing.T) {
	app := newTestApp(t)
	cookie, user := app.sessionCookie(t, "alice")

	chat, err := app.dbStore.CreateChat(user.ID, 1, "trip planning")
	require.NoError(t, err)

	rec := app.doJSON(t, http.MethodPost, "/get_response",
		map[string]string{"prompt": "Where should I go?", "chat_id": chat.ID}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "Stub reply.", payload["response"])

	require.Equal(t, 1, app.llm.calls)
	assert.True(t, strings.HasSuffix(app.llm.prompts[0], "You: Where should I go?"))

	messages, err := app.dbStore.GetRecentMessages(chat.ID, 10)
	require.NoError(t, err)
	assert.Len(t, messages, 3) // welcome + user turn + bot turn
}

func TestGetResponseValidationAndGatewayError(t *testing.T) {
	app := newTestApp(t)
	cookie, user := app.sessionCookie(t, "alice")

	rec := app.doJSON(t, http.MethodPost, "/get_response", map[string]string{"prompt": ""}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	chat, err := app.dbStore.CreateChat(user.ID, 1, "flaky")
	require.NoError(t, err)

	app.llm.fail = true
	rec = app.doJSON(t, http.MethodPost, "/get_response",
		map[string]string{"prompt": "hello?", "chat_id": chat.ID}, cookie)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.NotEmpty(t, payload["error"])

	// The user message was persisted before the gateway failed.
	messages, err := app.dbStore.GetRecentMessages(chat.ID, 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "hello?", messages[1].Content)
}

func TestDeleteChatEndpoint(t *testing.T) {
	app := newTestApp(t)
	aliceCookie, alice := app.sessionCookie(t, "alice")
	malloryCookie, _ := app.sessionCookie(t, "mallory")

	chat, err := app.dbStore.CreateChat(alice.ID, 1, "private")
	require.NoError(t, err)

	rec := app.doJSON(t, http.MethodDelete, "/delete_chat/"+chat.ID, nil, malloryCookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.doJSON(t, http.MethodDelete, "/delete_chat/"+chat.ID, nil, aliceCookie)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.doJSON(t, http.MethodDelete, "/delete_chat/"+chat.ID, nil, aliceCookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatDetailPageShowsMessages(t *testing.T) {
	app := newTestApp(t)
	cookie, user := app.sessionCookie(t, "alice")

	chat, err := app.dbStore.CreateChat(user.ID, 1, "trip planning")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/chat/"+chat.ID, nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "trip planning")
	assert.Contains(t, rec.Body.String(), store.WelcomeMessage)
}

func TestChatDetailPageOtherUsersThread(t *testing.T) {
	app := newTestApp(t)
	_, alice := app.sessionCookie(t, "alice")
	malloryCookie, _ := app.sessionCookie(t, "mallory")

	chat, err := app.dbStore.CreateChat(alice.ID, 1, "private")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/chat/"+chat.ID, nil)
	req.AddCookie(malloryCookie)
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/chat", rec.Header().Get("Location"))
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
