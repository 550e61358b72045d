package restclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/notifications", r.URL.Path)
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"ok"}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", time.Second, func() string { return "tok" })
	var out struct {
		Name string `json:"name"`
	}
	err := c.GetJSON(context.Background(), "/notifications", url.Values{"limit": {"20"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Name)
}

func TestGetJSONStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, 0, nil)
	var out map[string]any
	err := c.GetJSON(context.Background(), "/x", nil, &out)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.Code)
	assert.Contains(t, statusErr.Body, "nope")
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"name":"second"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, nil)
	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, c.GetJSON(context.Background(), "/x", nil, &out))
	assert.Equal(t, "second", out.Name)
	assert.Equal(t, 2, calls)
}
