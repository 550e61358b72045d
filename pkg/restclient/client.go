package restclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"thesis_realtime/pkg/logger"

	"github.com/go-resty/resty/v2"
)

// Client bearer-authenticated JSON GET client for the portal REST backend
type Client struct {
	credential func() string
	http       *resty.Client
}

// New create Client, credential is read on every request so a refreshed token is picked up
func New(baseURL string, timeout time.Duration, credential func() string) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if credential == nil {
		credential = func() string { return "" }
	}

	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetLogger(restyLogger{}).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	c.JSONMarshal = json.Marshal
	c.JSONUnmarshal = json.Unmarshal

	return &Client{credential: credential, http: c}
}

// StatusError non-2xx response
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// GetJSON GET baseURL+path?query and decode the body into out
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	req := c.http.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParamsFromValues(query)
	}
	if token := c.credential(); token != "" {
		req.SetAuthToken(token)
	}

	resp, err := req.Get(path)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	if !resp.IsSuccess() {
		body := resp.Body()
		if len(body) > 1024 {
			body = body[:1024]
		}
		return &StatusError{Method: http.MethodGet, URL: resp.Request.URL, Code: resp.StatusCode(), Body: string(body)}
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// restyLogger routes resty's retry chatter to the service logger
type restyLogger struct{}

func (restyLogger) Errorf(format string, v ...interface{}) {
	logger.Log.Error(fmt.Sprintf(format, v...))
}

func (restyLogger) Warnf(format string, v ...interface{}) {
	logger.Log.Warn(fmt.Sprintf(format, v...))
}

func (restyLogger) Debugf(format string, v ...interface{}) {
	logger.Log.Debug(fmt.Sprintf(format, v...))
}
