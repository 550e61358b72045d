package repository

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"thesis_realtime/internal/chat/domain"
	"thesis_realtime/pkg/restclient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/groups/g1/messages", r.URL.Path)
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"data":[{"id":"m1","groupId":"g1","senderId":"u2","content":"hi","createdAt":"2024-05-01T10:00:00Z","status":"seen"}]}`))
	}))
	defer srv.Close()

	repo := NewHistoryRepository(restclient.New(srv.URL, time.Second, nil), 50)
	msgs, err := repo.FetchHistory(context.Background(), "g1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, domain.StatusSeen, msgs[0].Status)
}

func TestFetchHistoryError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	repo := NewHistoryRepository(restclient.New(srv.URL, time.Second, nil), 0)
	_, err := repo.FetchHistory(context.Background(), "g1")
	assert.Error(t, err)
}
