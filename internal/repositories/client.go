// Package repositories implements data access against the remote course
// marketplace API. The API is the source of truth for courses and progress;
// the engine holds no storage of its own.
package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	http_request "github.com/xhd2015/go-http-request"
)

// apiResponse is the envelope every course API endpoint responds with
type apiResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// Client is a thin JSON client for the course API
type Client struct {
	baseURL string
	token   string
}

// NewClient creates a course API client. token may be empty for
// unauthenticated deployments (local development against a seeded API).
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
	}
}

// post performs a request and unwraps the response envelope into respData
func (c *Client) post(ctx context.Context, path string, reqData any, respData any) error {
	req := http_request.New()
	if c.token != "" {
		req = req.Header("Authorization", "Bearer "+c.token)
	}

	var env apiResponse
	if err := req.PostJSON(ctx, c.baseURL+path, reqData, &env); err != nil {
		return fmt.Errorf("course api request %s failed: %w", path, err)
	}

	if env.Code != 0 {
		return fmt.Errorf("course api error on %s (code %d): %s", path, env.Code, env.Msg)
	}

	if respData != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, respData); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", path, err)
		}
	}

	return nil
}
