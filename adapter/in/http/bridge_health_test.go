package http

import (
	"io"
	"net/http/httptest"
	"testing"

	"exchange_bridge/core/port/in"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

func newHealthApp(svc in.CalendarService) *fiber.App {
	app := fiber.New(fiber.Config{
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
	})
	NewHealthHandler(nil, nil, svc).Register(app)
	return app
}

func getJSON(t *testing.T, app *fiber.App, path string) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", path, nil), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("failed to decode body %q: %v", raw, err)
	}
	return resp.StatusCode, decoded
}

func TestHealth(t *testing.T) {
	app := newHealthApp(&fakeCalendarService{})
	status, body := getJSON(t, app, "/health")
	if status != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if got := body["status"].(string); got != "ok" {
		t.Errorf("status field = %q, want ok", got)
	}
}

func TestReady(t *testing.T) {
	t.Run("pending first refresh", func(t *testing.T) {
		app := newHealthApp(&fakeCalendarService{})
		status, body := getJSON(t, app, "/ready")
		if status != fiber.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", status)
		}
		checks := body["checks"].(map[string]any)
		if got := checks["postgres"].(string); got != "not configured" {
			t.Errorf("postgres check = %q", got)
		}
		if got := checks["redis"].(string); got != "not configured" {
			t.Errorf("redis check = %q", got)
		}
		if got := checks["exchange"].(string); got != "pending first refresh" {
			t.Errorf("exchange check = %q", got)
		}
		// Pool stats only appear when a database pool is configured.
		if _, ok := body["database_pool"]; ok {
			t.Error("database_pool should be absent without postgres")
		}
	})

	t.Run("healthy coordinator", func(t *testing.T) {
		app := newHealthApp(&fakeCalendarService{
			status: &in.CalendarStatus{Healthy: true, EventCount: 3},
		})
		status, body := getJSON(t, app, "/ready")
		if status != fiber.StatusOK {
			t.Fatalf("status = %d, want 200", status)
		}
		checks := body["checks"].(map[string]any)
		if got := checks["exchange"].(string); got != "healthy" {
			t.Errorf("exchange check = %q", got)
		}
	})

	t.Run("unhealthy coordinator", func(t *testing.T) {
		app := newHealthApp(&fakeCalendarService{
			status: &in.CalendarStatus{Healthy: false, LastError: "connection error: HTTP 503"},
		})
		status, body := getJSON(t, app, "/ready")
		if status != fiber.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", status)
		}
		checks := body["checks"].(map[string]any)
		if got := checks["exchange"].(string); got != "unhealthy: connection error: HTTP 503" {
			t.Errorf("exchange check = %q", got)
		}
	})
}
