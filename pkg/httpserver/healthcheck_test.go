package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/hrnotify/pkg/httpserver"
	"github.com/dmitrymomot/hrnotify/pkg/logger"
)

type health struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func probe(t *testing.T, h http.HandlerFunc) (int, health) {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	var body health
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return rec.Code, body
}

func TestLivenessHandler(t *testing.T) {
	t.Parallel()
	code, body := probe(t, httpserver.LivenessHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alive", body.Status)
}

func TestReadinessHandler(t *testing.T) {
	t.Parallel()

	ok := httpserver.Check{Name: "postgres", Fn: func(context.Context) error { return nil }}
	down := httpserver.Check{Name: "redis", Fn: func(context.Context) error { return errors.New("connection refused") }}

	t.Run("all checks pass", func(t *testing.T) {
		t.Parallel()
		code, body := probe(t, httpserver.ReadinessHandler(logger.Nop(), ok))
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ready", body.Status)
		assert.Equal(t, map[string]string{"postgres": "ok"}, body.Checks)
	})

	t.Run("failing check", func(t *testing.T) {
		t.Parallel()
		code, body := probe(t, httpserver.ReadinessHandler(nil, ok, down))
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "not_ready", body.Status)
		assert.Equal(t, map[string]string{"postgres": "ok", "redis": "failed"}, body.Checks)
	})

	t.Run("checks get a deadline", func(t *testing.T) {
		t.Parallel()
		var deadline time.Time
		check := httpserver.Check{Name: "deadline", Fn: func(ctx context.Context) error {
			deadline, _ = ctx.Deadline()
			return nil
		}}
		code, _ := probe(t, httpserver.ReadinessHandler(nil, check))
		assert.Equal(t, http.StatusOK, code)
		assert.False(t, deadline.IsZero())
	})
}
