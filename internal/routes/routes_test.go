package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/postboard/internal/config"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/docstore"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/identity"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/session"
	"github.com/go-playground/assert/v2"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "routes-test-secret"

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	provider := identity.NewLocal(identity.NewMemoryAccounts(), testSecret, time.Hour)
	provider.Cost = bcrypt.MinCost

	sess, err := session.Open(context.Background(), provider, docstore.NewMemoryStore())
	assert.Equal(t, nil, err)
	t.Cleanup(sess.Close)

	stream := handlers.NewStreamHandler(sess)
	t.Cleanup(stream.Close)

	app := fiber.New()
	Setup(app,
		&config.Config{JWTSecret: testSecret, CORSOrigins: "*"},
		middleware.SignedIn(sess.Auth, provider.Verify),
		handlers.NewAuthHandler(sess, provider),
		handlers.NewPostHandler(sess),
		stream,
		handlers.NewHealthHandler(sess, config.BackendMemory),
	)
	return app
}

func do(t *testing.T, app *fiber.App, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		assert.Equal(t, nil, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	assert.Equal(t, nil, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	assert.Equal(t, nil, err)
	out := map[string]any{}
	if len(raw) > 0 {
		assert.Equal(t, nil, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func login(t *testing.T, app *fiber.App, email, password string) (string, string) {
	t.Helper()
	status, body := do(t, app, "POST", "/api/auth/login", "", map[string]string{"email": email, "password": password})
	assert.Equal(t, fiber.StatusOK, status)
	user := body["user"].(map[string]any)
	return body["token"].(string), user["uid"].(string)
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)

	status, body := do(t, app, "GET", "/api/health", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "disabled", body["db"])
	assert.Equal(t, "memory", body["backend"])
	assert.Equal(t, "succeeded", body["feed"])
}

func TestResubscribeRoute(t *testing.T) {
	app := newTestApp(t)

	status, body := do(t, app, "POST", "/api/posts/subscribe", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "succeeded", body["status"])
	assert.Equal(t, 0, len(body["posts"].([]any)))
}

func TestRegisterAndLogin(t *testing.T) {
	app := newTestApp(t)

	status, body := do(t, app, "POST", "/api/auth/register", "", map[string]string{
		"email": "ann@example.com", "password": "password-ann", "displayName": "Ann",
	})
	assert.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "Ann", body["user"].(map[string]any)["displayName"])

	status, _ = do(t, app, "POST", "/api/auth/register", "", map[string]string{
		"email": "ANN@example.com", "password": "another-password",
	})
	assert.Equal(t, fiber.StatusConflict, status)

	status, _ = do(t, app, "POST", "/api/auth/register", "", map[string]string{
		"email": "short@example.com", "password": "short",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = do(t, app, "POST", "/api/auth/login", "", map[string]string{
		"email": "ann@example.com", "password": "wrong-password",
	})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	_, body = do(t, app, "GET", "/api/auth/state", "", nil)
	assert.Equal(t, "failed", body["status"])
	assert.Equal(t, nil, body["user"])

	token, uid := login(t, app, "ann@example.com", "password-ann")
	assert.NotEqual(t, "", token)

	_, body = do(t, app, "GET", "/api/auth/state", "", nil)
	assert.Equal(t, "succeeded", body["status"])
	assert.Equal(t, uid, body["user"].(map[string]any)["uid"])

	status, _ = do(t, app, "POST", "/api/auth/logout", token, nil)
	assert.Equal(t, fiber.StatusOK, status)

	_, body = do(t, app, "GET", "/api/auth/state", "", nil)
	assert.Equal(t, nil, body["user"])

	// the revoked token no longer works
	status, _ = do(t, app, "POST", "/api/posts", token, map[string]string{"content": "late"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestPostRoutes(t *testing.T) {
	app := newTestApp(t)
	for _, reg := range []map[string]string{
		{"email": "ann@example.com", "password": "password-ann", "displayName": "Ann"},
		{"email": "bob@example.com", "password": "password-bob", "displayName": "Bob"},
	} {
		status, _ := do(t, app, "POST", "/api/auth/register", "", reg)
		assert.Equal(t, fiber.StatusCreated, status)
	}

	status, _ := do(t, app, "POST", "/api/posts", "", map[string]string{"content": "anonymous"})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	annToken, annUID := login(t, app, "ann@example.com", "password-ann")

	status, body := do(t, app, "POST", "/api/posts", annToken, map[string]string{"content": "hello"})
	assert.Equal(t, fiber.StatusCreated, status)
	postID := body["id"].(string)

	status, _ = do(t, app, "POST", "/api/posts", annToken, map[string]string{"content": "   "})
	assert.Equal(t, fiber.StatusBadRequest, status)

	_, body = do(t, app, "GET", "/api/posts", "", nil)
	list := body["posts"].([]any)
	assert.Equal(t, 1, len(list))
	post := list[0].(map[string]any)
	assert.Equal(t, "hello", post["content"])
	assert.Equal(t, annUID, post["authorId"])
	assert.Equal(t, "Ann", post["authorName"])

	status, body = do(t, app, "POST", "/api/posts/"+postID+"/like", annToken, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["liked"])
	_, body = do(t, app, "POST", "/api/posts/"+postID+"/like", annToken, nil)
	assert.Equal(t, false, body["liked"])

	status, _ = do(t, app, "POST", "/api/posts/missing/like", annToken, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	do(t, app, "POST", "/api/auth/logout", annToken, nil)
	bobToken, _ := login(t, app, "bob@example.com", "password-bob")

	status, _ = do(t, app, "DELETE", "/api/posts/"+postID, bobToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body = do(t, app, "POST", "/api/posts/"+postID+"/comments", bobToken, map[string]string{"content": "hi ann"})
	assert.Equal(t, fiber.StatusCreated, status)
	commentID := body["comment"].(map[string]any)["id"].(string)

	status, body = do(t, app, "POST", "/api/posts/"+postID+"/comments/"+commentID+"/like", bobToken, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["liked"])

	do(t, app, "POST", "/api/auth/logout", bobToken, nil)
	annToken, _ = login(t, app, "ann@example.com", "password-ann")

	status, _ = do(t, app, "DELETE", "/api/posts/"+postID+"/comments/"+commentID, annToken, nil)
	assert.Equal(t, fiber.StatusNoContent, status)
	status, _ = do(t, app, "DELETE", "/api/posts/"+postID+"/comments/"+commentID, annToken, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = do(t, app, "DELETE", "/api/posts/"+postID, annToken, nil)
	assert.Equal(t, fiber.StatusNoContent, status)

	_, body = do(t, app, "GET", "/api/posts", "", nil)
	assert.Equal(t, 0, len(body["posts"].([]any)))
}
