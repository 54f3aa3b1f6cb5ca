package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anjiri1684/private_messages/database"
	"github.com/anjiri1684/private_messages/handlers"
	"github.com/anjiri1684/private_messages/models"
	"github.com/anjiri1684/private_messages/routes"
	"github.com/anjiri1684/private_messages/services"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type testEnv struct {
	app   *fiber.App
	db    *gorm.DB
	alice models.User
	bob   models.User
	carol models.User
	admin models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	prev := database.DB
	database.DB = db
	t.Cleanup(func() { database.DB = prev })

	env := &testEnv{db: db}
	env.alice = env.createUser(t, "alice", "user", true)
	env.bob = env.createUser(t, "bob", "user", true)
	env.carol = env.createUser(t, "carol", "user", false)
	env.admin = env.createUser(t, "root", "admin", true)

	svc := services.NewMessageService(db, services.WithRecipientFilter(services.ActiveRecipients))
	h := handlers.NewMessageHandler(svc, 30*24*time.Hour)

	env.app = routes.NewApp()
	routes.AuthRoutes(env.app)
	routes.ProfileRoutes(env.app)
	routes.MessagingRoutes(env.app, h)
	routes.AdminRoutes(env.app, h)
	return env
}

func (e *testEnv) createUser(t *testing.T, username, role string, active bool) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: string(hash),
		Role:     role,
		IsActive: true,
	}
	if err := e.db.Create(&u).Error; err != nil {
		t.Fatalf("create %s: %v", username, err)
	}
	if !active {
		if err := e.db.Model(&u).Update("is_active", false).Error; err != nil {
			t.Fatalf("deactivate %s: %v", username, err)
		}
	}
	return u
}

func (e *testEnv) token(t *testing.T, u models.User) string {
	t.Helper()
	tok, err := handlers.IssueToken(u, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return tok
}

func (e *testEnv) do(t *testing.T, method, path string, as *models.User, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+e.token(t, *as))
	}
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, out
}

func (e *testEnv) compose(t *testing.T, from models.User, to, subject string) uint {
	t.Helper()
	status, out := e.do(t, http.MethodPost, "/api/v1/messages/compose", &from, fiber.Map{
		"recipient": to,
		"subject":   subject,
		"body":      "hello",
	})
	if status != fiber.StatusCreated {
		t.Fatalf("compose status = %d, body %v", status, out)
	}
	data := out["data"].(map[string]interface{})
	return uint(data["id"].(float64))
}

func conversationCount(t *testing.T, out map[string]interface{}) int {
	t.Helper()
	list, ok := out["conversations"].([]interface{})
	if !ok {
		t.Fatalf("no conversations in %v", out)
	}
	return len(list)
}

func TestMessagesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodGet, "/api/v1/messages/inbox", nil, nil)
	if status != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for missing JWT", status)
	}
}

func TestComposeAndInbox(t *testing.T) {
	env := newTestEnv(t)
	id := env.compose(t, env.alice, "bob", "Hi")

	status, out := env.do(t, http.MethodGet, "/api/v1/messages/inbox", &env.bob, nil)
	if status != fiber.StatusOK {
		t.Fatalf("inbox status = %d", status)
	}
	if got := conversationCount(t, out); got != 1 {
		t.Fatalf("bob inbox has %d conversations", got)
	}
	first := out["conversations"].([]interface{})[0].(map[string]interface{})
	if uint(first["id"].(float64)) != id {
		t.Fatalf("inbox entry = %v, want message %d", first["id"], id)
	}

	_, out = env.do(t, http.MethodGet, "/api/v1/messages/inbox", &env.alice, nil)
	if got := conversationCount(t, out); got != 0 {
		t.Fatalf("alice inbox has %d conversations", got)
	}
	_, out = env.do(t, http.MethodGet, "/api/v1/messages/outbox", &env.alice, nil)
	if got := conversationCount(t, out); got != 1 {
		t.Fatalf("alice outbox has %d conversations", got)
	}

	_, out = env.do(t, http.MethodGet, "/api/v1/messages/unread-count", &env.bob, nil)
	if out["unread"].(float64) != 1 {
		t.Fatalf("unread = %v", out["unread"])
	}
}

func TestComposeRejectsBadRecipients(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		recipient string
		code      string
	}{
		{"nobody", "unknown_recipient"},
		{"carol", "recipient_rejected"},
	}
	for _, tc := range cases {
		status, out := env.do(t, http.MethodPost, "/api/v1/messages/compose", &env.alice, fiber.Map{
			"recipient": tc.recipient,
			"subject":   "Hi",
			"body":      "hello",
		})
		if status != fiber.StatusBadRequest {
			t.Fatalf("%s: status = %d", tc.recipient, status)
		}
		if out["code"] != tc.code || out["field"] != "recipient" {
			t.Fatalf("%s: body = %v", tc.recipient, out)
		}
	}

	status, out := env.do(t, http.MethodPost, "/api/v1/messages/compose", &env.alice, fiber.Map{
		"recipient": "bob",
		"body":      "no subject",
	})
	if status != fiber.StatusBadRequest || out["field"] != "subject" {
		t.Fatalf("missing subject: status %d body %v", status, out)
	}
}

func TestViewReplyAndAccess(t *testing.T) {
	env := newTestEnv(t)
	id := env.compose(t, env.alice, "bob", "Hi")

	status, _ := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/messages/view/%d", id), &env.admin, nil)
	if status != fiber.StatusNotFound {
		t.Fatalf("outsider view status = %d", status)
	}

	status, out := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/messages/view/%d", id), &env.bob, nil)
	if status != fiber.StatusOK {
		t.Fatalf("view status = %d", status)
	}
	if msgs := out["messages"].([]interface{}); len(msgs) != 1 {
		t.Fatalf("view has %d messages", len(msgs))
	}
	reply := out["reply"].(map[string]interface{})
	if reply["subject"] != "Re: Hi" {
		t.Fatalf("reply subject = %v", reply["subject"])
	}

	_, out = env.do(t, http.MethodGet, "/api/v1/messages/unread-count", &env.bob, nil)
	if out["unread"].(float64) != 0 {
		t.Fatalf("unread after view = %v", out["unread"])
	}

	status, out = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/messages/reply/%d", id), &env.bob, fiber.Map{
		"body": "hi back",
	})
	if status != fiber.StatusCreated {
		t.Fatalf("reply status = %d body %v", status, out)
	}
	data := out["data"].(map[string]interface{})
	if uint(data["conversation_id"].(float64)) != id {
		t.Fatalf("reply conversation = %v, want %d", data["conversation_id"], id)
	}

	status, _ = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/messages/reply/%d", id), &env.admin, fiber.Map{
		"body": "butting in",
	})
	if status != fiber.StatusNotFound {
		t.Fatalf("outsider reply status = %d", status)
	}

	status, _ = env.do(t, http.MethodGet, "/api/v1/messages/view/abc", &env.bob, nil)
	if status != fiber.StatusNotFound {
		t.Fatalf("non-numeric view status = %d", status)
	}
}

func TestDeleteAndUndelete(t *testing.T) {
	env := newTestEnv(t)
	id := env.compose(t, env.alice, "bob", "Hi")

	status, out := env.do(t, http.MethodPost, "/api/v1/messages/delete", &env.bob, fiber.Map{"ids": []uint{id}})
	if status != fiber.StatusOK || out["affected"].(float64) != 1 {
		t.Fatalf("delete: status %d body %v", status, out)
	}

	_, out = env.do(t, http.MethodGet, "/api/v1/messages/inbox", &env.bob, nil)
	if got := conversationCount(t, out); got != 0 {
		t.Fatalf("inbox after delete has %d", got)
	}
	_, out = env.do(t, http.MethodGet, "/api/v1/messages/trash", &env.bob, nil)
	if got := conversationCount(t, out); got != 1 {
		t.Fatalf("trash after delete has %d", got)
	}

	status, out = env.do(t, http.MethodPost, "/api/v1/messages/delete", &env.admin, fiber.Map{"ids": []uint{id}})
	if status != fiber.StatusOK || out["affected"].(float64) != 0 {
		t.Fatalf("outsider delete: status %d body %v", status, out)
	}

	status, out = env.do(t, http.MethodPost, "/api/v1/messages/undelete", &env.bob, fiber.Map{"ids": []uint{id}})
	if status != fiber.StatusOK || out["affected"].(float64) != 1 {
		t.Fatalf("undelete: status %d body %v", status, out)
	}
	_, out = env.do(t, http.MethodGet, "/api/v1/messages/inbox", &env.bob, nil)
	if got := conversationCount(t, out); got != 1 {
		t.Fatalf("inbox after undelete has %d", got)
	}

	status, _ = env.do(t, http.MethodPost, "/api/v1/messages/delete", &env.bob, fiber.Map{"ids": []uint{}})
	if status != fiber.StatusBadRequest {
		t.Fatalf("empty ids status = %d", status)
	}
}

func TestAdminPurge(t *testing.T) {
	env := newTestEnv(t)
	id := env.compose(t, env.alice, "bob", "Hi")
	env.do(t, http.MethodPost, "/api/v1/messages/delete", &env.alice, fiber.Map{"ids": []uint{id}})
	env.do(t, http.MethodPost, "/api/v1/messages/delete", &env.bob, fiber.Map{"ids": []uint{id}})

	status, _ := env.do(t, http.MethodPost, "/api/v1/admin/messages/purge?max_age=0s", &env.bob, nil)
	if status != fiber.StatusForbidden {
		t.Fatalf("non-admin purge status = %d", status)
	}

	status, out := env.do(t, http.MethodPost, "/api/v1/admin/messages/purge?max_age=0s&dry_run=true", &env.admin, nil)
	if status != fiber.StatusOK || out["count"].(float64) != 1 {
		t.Fatalf("dry run: status %d body %v", status, out)
	}

	status, out = env.do(t, http.MethodPost, "/api/v1/admin/messages/purge?max_age=0s", &env.admin, nil)
	if status != fiber.StatusOK || out["count"].(float64) != 1 {
		t.Fatalf("purge: status %d body %v", status, out)
	}
	var left int64
	env.db.Model(&models.Message{}).Count(&left)
	if left != 0 {
		t.Fatalf("%d messages left after purge", left)
	}

	status, _ = env.do(t, http.MethodPost, "/api/v1/admin/messages/purge?max_age=soon", &env.admin, nil)
	if status != fiber.StatusBadRequest {
		t.Fatalf("bad max_age status = %d", status)
	}
}
