package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"studium/internal/database"
	"studium/internal/logger"
)

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())

	app.Get("/test", func(c *fiber.Ctx) error {
		assert.Equal(t, c.Locals(RequestIDLocalKey), RequestIDFromContext(c.UserContext()))
		return c.SendString(RequestIDFromLocals(c))
	})

	t.Run("should generate new request id if not present", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		ridHeader := resp.Header.Get(RequestIDHeader)
		assert.NotEmpty(t, ridHeader)

		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, ridHeader, string(body))
	})

	t.Run("should preserve existing request id", func(t *testing.T) {
		existingID := "test-id-123"
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(RequestIDHeader, existingID)

		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, existingID, resp.Header.Get(RequestIDHeader))
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, existingID, string(body))
	})
}

func TestLogger(t *testing.T) {
	tests := []struct {
		name      string
		handler   fiber.Handler
		wantCode  int
		wantLevel string
		wantError bool
	}{
		{
			name:      "success",
			handler:   func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusAccepted) },
			wantCode:  fiber.StatusAccepted,
			wantLevel: "INFO",
		},
		{
			name:      "client error",
			handler:   func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNotFound) },
			wantCode:  fiber.StatusNotFound,
			wantLevel: "WARN",
		},
		{
			name:      "returned error",
			handler:   func(c *fiber.Ctx) error { return errors.New("db down") },
			wantCode:  fiber.StatusInternalServerError,
			wantLevel: "ERROR",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			app := fiber.New()
			app.Use(RequestID())
			app.Use(Logger(logger.NewWithWriter(&buf, "info", "json")))
			app.Get("/test", tt.handler)

			resp, err := app.Test(httptest.NewRequest("GET", "/test", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, resp.StatusCode)

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

			assert.Equal(t, "http_request", entry["msg"])
			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.Equal(t, resp.Header.Get(RequestIDHeader), entry["request_id"])
			assert.Equal(t, "GET", entry["method"])
			assert.Equal(t, "/test", entry["path"])
			assert.Equal(t, float64(tt.wantCode), entry["status"])
			assert.NotNil(t, entry["latency"])
			assert.NotEmpty(t, entry["time"])
			if tt.wantError {
				assert.Equal(t, "db down", entry["error"])
			}
			assert.NotContains(t, entry, "trace_id")
		})
	}
}

func TestLoggerTraceID(t *testing.T) {
	traceID := trace.TraceID{0x4b, 0xf9, 0x2f, 0x35, 0x77, 0xb3, 0x4d, 0xa6, 0xa3, 0xce, 0x92, 0x9d, 0x0e, 0x0e, 0x47, 0x36}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     trace.SpanID{0x00, 0xf0, 0x67, 0xaa, 0x0b, 0xa9, 0x02, 0xb7},
		TraceFlags: trace.FlagsSampled,
	})

	var buf bytes.Buffer
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.SetUserContext(trace.ContextWithSpanContext(c.UserContext(), sc))
		return c.Next()
	})
	app.Use(Logger(logger.NewWithWriter(&buf, "info", "json")))
	app.Get("/test", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	_, err := app.Test(httptest.NewRequest("GET", "/test", nil))
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
}

func newSessionApp(t *testing.T, handler fiber.Handler) (*fiber.App, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	app := fiber.New()
	app.Use(Session(sqlx.NewDb(db, database.DriverName), logger.Discard()))
	app.Post("/test", handler)
	return app, mock
}

func TestSession(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		app, mock := newSessionApp(t, func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true})
		})
		mock.ExpectBegin()
		mock.ExpectCommit()

		resp, err := app.Test(httptest.NewRequest("POST", "/test", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on client error status", func(t *testing.T) {
		app, mock := newSessionApp(t, func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusBadRequest)
		})
		mock.ExpectBegin()
		mock.ExpectRollback()

		resp, err := app.Test(httptest.NewRequest("POST", "/test", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error and runs hooks", func(t *testing.T) {
		hookRan := false
		app, mock := newSessionApp(t, func(c *fiber.Ctx) error {
			database.OnRollback(c.UserContext(), func(context.Context) { hookRan = true })
			return errors.New("insert failed")
		})
		mock.ExpectBegin()
		mock.ExpectRollback()

		resp, err := app.Test(httptest.NewRequest("POST", "/test", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
		assert.True(t, hookRan)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit failure becomes the request error", func(t *testing.T) {
		hookRan := false
		app, mock := newSessionApp(t, func(c *fiber.Ctx) error {
			database.OnRollback(c.UserContext(), func(context.Context) { hookRan = true })
			return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true})
		})
		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

		resp, err := app.Test(httptest.NewRequest("POST", "/test", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
		assert.True(t, hookRan)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		called := false
		app, mock := newSessionApp(t, func(c *fiber.Ctx) error {
			called = true
			return nil
		})
		mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

		resp, err := app.Test(httptest.NewRequest("POST", "/test", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
		assert.False(t, called)
	})
}

func TestCORS(t *testing.T) {
	app := fiber.New()
	app.Use(CORS([]string{"http://localhost:3000"}))
	app.Get("/test", func(c *fiber.Ctx) error { return c.SendString("ok") })

	t.Run("preflight from allowed origin", func(t *testing.T) {
		req := httptest.NewRequest("OPTIONS", "/test", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", "POST")
		req.Header.Set("Access-Control-Request-Headers", "X-Custom")

		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
		assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
		assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
		assert.Equal(t, "X-Custom", resp.Header.Get("Access-Control-Allow-Headers"))
	})

	t.Run("other origin", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Origin", "http://evil.test")

		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard disables credentials", func(t *testing.T) {
		app := fiber.New()
		app.Use(CORS([]string{"*"}))
		app.Get("/test", func(c *fiber.Ctx) error { return c.SendString("ok") })

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Origin", "http://anything.test")
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
		assert.Empty(t, resp.Header.Get("Access-Control-Allow-Credentials"))
	})
}
