package binder_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/hrnotify/pkg/binder"
)

type enqueueBody struct {
	UserID       int64          `json:"user_id"`
	TemplateName string         `json:"template_name"`
	Payload      map[string]any `json:"payload"`
}

func jsonRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/queue", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	return req
}

func TestJSON(t *testing.T) {
	t.Parallel()

	t.Run("decodes body", func(t *testing.T) {
		t.Parallel()
		var got enqueueBody
		err := binder.JSON()(jsonRequest(`{"user_id":42,"template_name":"leave_approved","payload":{"days":3}}`), &got)
		require.NoError(t, err)
		assert.Equal(t, int64(42), got.UserID)
		assert.Equal(t, "leave_approved", got.TemplateName)
		assert.Equal(t, json.Number("3"), got.Payload["days"])
	})

	t.Run("missing content type", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/queue", strings.NewReader(`{}`))
		var got enqueueBody
		assert.ErrorIs(t, binder.JSON()(req, &got), binder.ErrMissingContentType)
	})

	t.Run("wrong content type", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/queue", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "text/plain")
		var got enqueueBody
		assert.ErrorIs(t, binder.JSON()(req, &got), binder.ErrUnsupportedMediaType)
	})

	for name, body := range map[string]string{
		"empty body":     ``,
		"malformed":      `{"user_id":`,
		"unknown field":  `{"user":42}`,
		"wrong type":     `{"user_id":"abc"}`,
		"trailing data":  `{"user_id":1}{"user_id":2}`,
		"oversized body": `{"template_name":"` + strings.Repeat("a", binder.DefaultMaxJSONSize) + `"}`,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			var got enqueueBody
			assert.ErrorIs(t, binder.JSON()(jsonRequest(body), &got), binder.ErrFailedToParseJSON)
		})
	}
}

func TestPath(t *testing.T) {
	t.Parallel()

	type request struct {
		UserID int64  `path:"userID"`
		Type   string `path:"type"`
		Body   string `json:"body"`
	}

	params := map[string]string{"userID": "42", "type": "leave_approved", "body": "ignored"}
	extractor := func(_ *http.Request, name string) string { return params[name] }

	t.Run("binds tagged fields only", func(t *testing.T) {
		t.Parallel()
		var got request
		require.NoError(t, binder.Path(extractor)(httptest.NewRequest(http.MethodGet, "/", nil), &got))
		assert.Equal(t, int64(42), got.UserID)
		assert.Equal(t, "leave_approved", got.Type)
		assert.Empty(t, got.Body)
	})

	t.Run("invalid number", func(t *testing.T) {
		t.Parallel()
		bad := func(_ *http.Request, name string) string {
			if name == "userID" {
				return "abc"
			}
			return ""
		}
		var got request
		err := binder.Path(bad)(httptest.NewRequest(http.MethodGet, "/", nil), &got)
		assert.ErrorIs(t, err, binder.ErrFailedToParsePath)
	})

	t.Run("nil extractor", func(t *testing.T) {
		t.Parallel()
		var got request
		err := binder.Path(nil)(httptest.NewRequest(http.MethodGet, "/", nil), &got)
		assert.ErrorIs(t, err, binder.ErrFailedToParsePath)
	})

	t.Run("non pointer target", func(t *testing.T) {
		t.Parallel()
		err := binder.Path(extractor)(httptest.NewRequest(http.MethodGet, "/", nil), request{})
		assert.ErrorIs(t, err, binder.ErrFailedToParsePath)
	})
}

func TestQuery(t *testing.T) {
	t.Parallel()

	type request struct {
		Limit      int        `query:"limit"`
		OnlyUnread bool       `query:"only_unread"`
		Types      []string   `query:"types"`
		Since      *time.Time `query:"since"`
		IDs        []uuid.UUID `query:"ids"`
		Untagged   string
	}

	t.Run("binds values", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet,
			"/?limit=10&only_unread=true&types=leave_approved,payslip_ready&types=reminder&since=2026-01-02T03:04:05Z&untagged=x", nil)
		var got request
		require.NoError(t, binder.Query()(req, &got))
		assert.Equal(t, 10, got.Limit)
		assert.True(t, got.OnlyUnread)
		assert.Equal(t, []string{"leave_approved", "payslip_ready", "reminder"}, got.Types)
		require.NotNil(t, got.Since)
		assert.True(t, got.Since.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))
		assert.Empty(t, got.Untagged)
	})

	t.Run("text unmarshaler elements", func(t *testing.T) {
		t.Parallel()
		a, b := uuid.New(), uuid.New()
		req := httptest.NewRequest(http.MethodGet, "/?ids="+a.String()+","+b.String(), nil)
		var got request
		require.NoError(t, binder.Query()(req, &got))
		assert.Equal(t, []uuid.UUID{a, b}, got.IDs)
	})

	t.Run("absent values stay zero", func(t *testing.T) {
		t.Parallel()
		var got request
		require.NoError(t, binder.Query()(httptest.NewRequest(http.MethodGet, "/", nil), &got))
		assert.Zero(t, got.Limit)
		assert.Nil(t, got.Since)
		assert.Nil(t, got.Types)
	})

	for name, query := range map[string]string{
		"bad int":  "limit=ten",
		"bad bool": "only_unread=maybe",
		"bad time": "since=yesterday",
		"bad uuid": "ids=not-a-uuid",
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			var got request
			err := binder.Query()(httptest.NewRequest(http.MethodGet, "/?"+query, nil), &got)
			assert.ErrorIs(t, err, binder.ErrFailedToParseQuery)
		})
	}
}
