package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sahilchouksey/agent-chat-api/database"
	"github.com/sahilchouksey/agent-chat-api/model"
	"github.com/sahilchouksey/agent-chat-api/services"
)

func newTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	app := fiber.New()
	handler := NewSessionHandler(db, nil)

	// Stand-in for the JWT middleware: pin the caller identity directly.
	identity := func(c *fiber.Ctx) error {
		c.Locals("user_id", "user-1")
		return c.Next()
	}
	app.Patch("/api/v1/sessions/:id", identity, handler.Update)

	return app, db
}

func patchJSON(t *testing.T, app *fiber.App, path, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPatch, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request %s: %v", path, err)
	}
	return resp
}

func TestUpdateHandlerStatusCodes(t *testing.T) {
	app, db := newTestApp(t)

	svc := services.NewSessionService(db, "user-1")
	title := "before"
	sess, err := svc.Create(services.CreateSessionParams{
		Session: model.Session{Title: &title},
		Config:  model.Agent{Model: "gpt-4o-mini"},
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	// A patch with no recognized fields is a bad request, not a missing
	// session.
	resp := patchJSON(t, app, "/api/v1/sessions/"+sess.ID, `{}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("empty patch: expected 400, got %d", resp.StatusCode)
	}

	resp = patchJSON(t, app, "/api/v1/sessions/"+sess.ID, `{"title":"after"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("valid patch: expected 200, got %d", resp.StatusCode)
	}
	updated, _ := svc.FindByIDOrSlug(sess.ID)
	if updated.Title == nil || *updated.Title != "after" {
		t.Fatalf("patch not applied: %+v", updated.Title)
	}

	resp = patchJSON(t, app, "/api/v1/sessions/no-such-session", `{"title":"x"}`)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("missing session: expected 404, got %d", resp.StatusCode)
	}
}
