package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecker_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("all checks pass", func(t *testing.T) {
		c := NewChecker(time.Second).
			Add("postgres", func(context.Context) error { return nil }).
			Add("redis", func(context.Context) error { return nil })

		r := c.Run(ctx)

		assert.True(t, r.Ready())
		assert.Equal(t, map[string]string{"postgres": StatusOK, "redis": StatusOK}, r.Checks)
		assert.Equal(t, []string{"postgres", "redis"}, c.Names())
	})

	t.Run("one failing check", func(t *testing.T) {
		r := NewChecker(time.Second).
			Add("postgres", func(context.Context) error { return nil }).
			Add("redis", func(context.Context) error { return errors.New("connection refused") }).
			Run(ctx)

		assert.False(t, r.Ready())
		assert.Equal(t, StatusNotReady, r.Status)
		assert.Equal(t, StatusOK, r.Checks["postgres"])
		assert.Equal(t, "connection refused", r.Checks["redis"])
	})

	t.Run("slow check times out", func(t *testing.T) {
		r := NewChecker(20 * time.Millisecond).
			Add("ollama", func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			}).
			Run(ctx)

		assert.False(t, r.Ready())
		assert.Equal(t, context.DeadlineExceeded.Error(), r.Checks["ollama"])
	})

	t.Run("no checks", func(t *testing.T) {
		r := NewChecker(time.Second).Run(ctx)
		assert.True(t, r.Ready())
		assert.Empty(t, r.Checks)
	})
}

func TestDatabase(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	assert.NoError(t, Database(db)(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("db down"))
	assert.EqualError(t, Database(db)(context.Background()), "db down")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	assert.Error(t, Redis(client)(context.Background()))
}

func TestOllama(t *testing.T) {
	t.Run("reachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/tags", r.URL.Path)
			w.Write([]byte(`{"models":[]}`))
		}))
		defer srv.Close()

		assert.NoError(t, Ollama(NewHTTPClient(time.Second), srv.URL+"/")(context.Background()))
	})

	t.Run("bad status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		err := Ollama(NewHTTPClient(time.Second), srv.URL)(context.Background())
		assert.EqualError(t, err, "unexpected status 502")
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		assert.Error(t, Ollama(NewHTTPClient(time.Second), url)(context.Background()))
	})
}
