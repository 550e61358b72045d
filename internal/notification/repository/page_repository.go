package repository

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"thesis_realtime/internal/notification/domain"
	"thesis_realtime/pkg/restclient"
)

// PageRepository GET {base}/notifications?cursor=&limit=&type=&unread=
type PageRepository struct {
	client *restclient.Client
}

// NewPageRepository create PageRepository
func NewPageRepository(client *restclient.Client) *PageRepository {
	return &PageRepository{client: client}
}

// FetchPage one page, newest first
func (r *PageRepository) FetchPage(ctx context.Context, q domain.PageQuery) (domain.Page, error) {
	values := url.Values{}
	if q.Cursor != "" {
		values.Set("cursor", q.Cursor)
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Filter.Type != "" {
		values.Set("type", string(q.Filter.Type))
	}
	if q.Filter.UnreadOnly {
		values.Set("unread", "true")
	}

	var page domain.Page
	if err := r.client.GetJSON(ctx, "/notifications", values, &page); err != nil {
		return domain.Page{}, fmt.Errorf("fetch notifications: %w", err)
	}
	return page, nil
}
