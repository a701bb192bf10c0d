package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"bhabo/internal/config"
	"bhabo/internal/repository"
	"bhabo/internal/repository/filedb"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The Prometheus middleware registers its collectors once per process, so
// every test shares one app over one in-memory store.
var testEnv struct {
	sync.Once
	app    *fiber.App
	store  *repository.Store
	mailer *recordingMailer
	err    error
}

type recordingMailer struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *recordingMailer) SendCode(ctx context.Context, to, subject, intro, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[to] = code
	return nil
}

func (m *recordingMailer) codeFor(t *testing.T, to string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.codes[to]
	require.True(t, ok, "no code mailed to %s", to)
	return code
}

func testApp(t *testing.T) (*fiber.App, *repository.Store, *recordingMailer) {
	t.Helper()
	testEnv.Do(func() {
		cfg := &config.Config{
			Port:      "0",
			Env:       "test",
			JWTSecret: "test-secret",
			DBBackend: config.BackendFile,
			DataDir:   "/data",
			UploadDir: "/uploads",
		}
		fs := afero.NewMemMapFs()
		store, err := filedb.Open(fs, cfg.DataDir)
		if err != nil {
			testEnv.err = err
			return
		}
		mailer := &recordingMailer{codes: map[string]string{}}
		srv, err := NewServerWithDeps(cfg, store, nil, mailer, fs)
		if err != nil {
			testEnv.err = err
			return
		}
		app := fiber.New()
		srv.SetupMiddleware(app)
		srv.SetupRoutes(app)
		testEnv.app = app
		testEnv.store = store
		testEnv.mailer = mailer
	})
	require.NoError(t, testEnv.err)
	return testEnv.app, testEnv.store, testEnv.mailer
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp, decoded
}

// registerVerified walks a fresh account through signup and verification and
// returns its token.
func registerVerified(t *testing.T, handle string) string {
	t.Helper()
	app, _, mailer := testApp(t)

	resp, _ := doJSON(t, app, fiber.MethodPost, "/auth/signup", "", fiber.Map{
		"username":  handle,
		"firstName": "Test",
		"lastName":  "User",
		"email":     handle + "@example.com",
		"password":  "password123",
		"gender":    "Female",
		"birthday":  "1995-03-14",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	code := mailer.codeFor(t, handle+"@example.com")
	resp, body := doJSON(t, app, fiber.MethodPost, "/auth/verify", "", fiber.Map{
		"identifier": handle,
		"code":       code,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestHealthEndpoints(t *testing.T) {
	app, _, _ := testApp(t)

	resp, body := doJSON(t, app, fiber.MethodGet, "/health/live", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "up", body["status"])

	resp, _ = doJSON(t, app, fiber.MethodGet, "/health/ready", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestSignupLoginVerifyOverHTTP(t *testing.T) {
	app, _, mailer := testApp(t)

	resp, body := doJSON(t, app, fiber.MethodPost, "/auth/signup", "", fiber.Map{
		"username":  "http_ada",
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"email":     "http_ada@example.com",
		"password":  "password123",
		"gender":    "Female",
		"birthday":  "1995-03-14",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	user, _ := body["user"].(map[string]any)
	require.NotNil(t, user)
	assert.Equal(t, "Ada Lovelace", user["displayName"])

	// Login before verification is a 403 carrying a fresh code.
	resp, body = doJSON(t, app, fiber.MethodPost, "/auth/login", "", fiber.Map{
		"identifier": "http_ada",
		"password":   "password123",
	})
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "NEEDS_VERIFICATION", body["code"])

	code := mailer.codeFor(t, "http_ada@example.com")
	resp, body = doJSON(t, app, fiber.MethodPost, "/auth/verify", "", fiber.Map{
		"identifier": "http_ada",
		"code":       code,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["token"])

	resp, body = doJSON(t, app, fiber.MethodPost, "/auth/login", "", fiber.Map{
		"identifier": "http_ada@example.com",
		"password":   "password123",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["token"])

	resp, _ = doJSON(t, app, fiber.MethodPost, "/auth/login", "", fiber.Map{
		"identifier": "http_ada",
		"password":   "wrong-password",
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestForgotPasswordConcealsUnknownAccounts(t *testing.T) {
	app, _, _ := testApp(t)

	// Known and unknown identifiers get the same neutral 200.
	resp, body := doJSON(t, app, fiber.MethodPost, "/auth/forgot-password", "", fiber.Map{
		"identifier": "nobody-here@example.com",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body["message"], "If an account with that identifier exists")
}

func TestAuthRequiredOnAPIRoutes(t *testing.T) {
	app, _, _ := testApp(t)

	resp, _ := doJSON(t, app, fiber.MethodGet, "/api/profile/me", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, app, fiber.MethodGet, "/api/profile/me", "not-a-token", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestProfileOverHTTP(t *testing.T) {
	app, _, _ := testApp(t)
	token := registerVerified(t, "http_profile")

	resp, body := doJSON(t, app, fiber.MethodGet, "/api/profile/me", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	user, _ := body["user"].(map[string]any)
	require.NotNil(t, user)
	assert.Equal(t, "http_profile", user["username"])

	resp, _ = doJSON(t, app, fiber.MethodGet, "/api/profile/no_such_user", token, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestPostLifecycleOverHTTP(t *testing.T) {
	app, _, _ := testApp(t)
	author := registerVerified(t, "http_poster")
	fan := registerVerified(t, "http_fan")

	resp, body := doJSON(t, app, fiber.MethodPost, "/api/post/create", author, nil)
	// Posts are multipart forms; a JSON body with no content is rejected.
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	req := httptest.NewRequest(fiber.MethodPost, "/api/post/create",
		bytes.NewBufferString("content=hello+over+http"))
	req.Header.Set("Authorization", "Bearer "+author)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp2, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp2.StatusCode)
	var created map[string]any
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&created))
	post, _ := created["post"].(map[string]any)
	require.NotNil(t, post)
	postID, _ := post["_id"].(string)
	require.NotEmpty(t, postID)

	resp, body = doJSON(t, app, fiber.MethodPost, fmt.Sprintf("/api/post/%s/like", postID), fan, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["liked"])

	resp, body = doJSON(t, app, fiber.MethodPost, fmt.Sprintf("/api/post/%s/comment", postID), fan, fiber.Map{
		"text": "nice post",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, body = doJSON(t, app, fiber.MethodGet, fmt.Sprintf("/api/post/%s/comments", postID), fan, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	comments, _ := body["comments"].([]any)
	require.Len(t, comments, 1)

	// Only the owner may delete.
	resp, _ = doJSON(t, app, fiber.MethodDelete, "/api/post/"+postID, fan, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	resp, _ = doJSON(t, app, fiber.MethodDelete, "/api/post/"+postID, author, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestChatOverHTTP(t *testing.T) {
	app, _, _ := testApp(t)
	alice := registerVerified(t, "http_chat_alice")
	_ = registerVerified(t, "http_chat_bob")

	resp, body := doJSON(t, app, fiber.MethodPost, "/api/chat/start-chat", alice, fiber.Map{
		"username": "http_chat_bob",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	chat, _ := body["chat"].(map[string]any)
	require.NotNil(t, chat)
	chatID, _ := chat["_id"].(string)
	require.NotEmpty(t, chatID)

	resp, body = doJSON(t, app, fiber.MethodPost, fmt.Sprintf("/api/chat/%s/send", chatID), alice, fiber.Map{
		"content": "hello bob",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, body = doJSON(t, app, fiber.MethodGet, fmt.Sprintf("/api/chat/%s/messages", chatID), alice, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	msgs, _ := body["messages"].([]any)
	require.Len(t, msgs, 1)

	resp, body = doJSON(t, app, fiber.MethodGet, "/api/chat/list", alice, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	chats, _ := body["chats"].([]any)
	require.NotEmpty(t, chats)
}

func TestSearchOverHTTP(t *testing.T) {
	app, _, _ := testApp(t)
	token := registerVerified(t, "http_searcher")

	resp, _ := doJSON(t, app, fiber.MethodGet, "/api/search/?q=", token, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, body := doJSON(t, app, fiber.MethodGet, "/api/search/?q=http_searcher", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	users, _ := body["users"].([]any)
	require.NotEmpty(t, users)

	resp, body = doJSON(t, app, fiber.MethodGet, "/api/search/find-friends", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	_, hasOnline := body["online"]
	assert.True(t, hasOnline)
}
