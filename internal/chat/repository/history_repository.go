package repository

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"thesis_realtime/internal/chat/domain"
	"thesis_realtime/pkg/restclient"
)

// HistoryRepository reads group history from the portal REST backend
type HistoryRepository struct {
	client *restclient.Client
	limit  int
}

type historyPage struct {
	Data []domain.ChatMessage `json:"data"`
}

// NewHistoryRepository limit is the number of most recent messages fetched
func NewHistoryRepository(client *restclient.Client, limit int) *HistoryRepository {
	return &HistoryRepository{client: client, limit: limit}
}

// FetchHistory GET /chat/groups/{groupId}/messages, oldest first
func (r *HistoryRepository) FetchHistory(ctx context.Context, groupID string) ([]domain.ChatMessage, error) {
	q := url.Values{}
	if r.limit > 0 {
		q.Set("limit", strconv.Itoa(r.limit))
	}

	var page historyPage
	path := fmt.Sprintf("/chat/groups/%s/messages", url.PathEscape(groupID))
	if err := r.client.GetJSON(ctx, path, q, &page); err != nil {
		return nil, fmt.Errorf("fetch history of %s: %w", groupID, err)
	}
	return page.Data, nil
}
