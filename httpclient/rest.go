package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// GetJSON performs a GET and decodes the JSON body into T.
func GetJSON[T any](ctx context.Context, c *Client, url string, query map[string]string) (T, error) {
	return doJSON[T](ctx, c, Request{Method: http.MethodGet, URL: url, Query: query})
}

// PostJSON performs a POST with a JSON body and decodes the JSON response into T.
func PostJSON[T any](ctx context.Context, c *Client, url string, body any) (T, error) {
	if body == nil {
		body = struct{}{}
	}
	return doJSON[T](ctx, c, Request{Method: http.MethodPost, URL: url, Body: body})
}

func doJSON[T any](ctx context.Context, c *Client, req Request) (T, error) {
	var out T
	req.Headers = append(req.Headers, Header{Name: "Accept", Value: "application/json"})
	resp, err := c.Do(ctx, req)
	if err != nil {
		return out, err
	}
	if len(resp.Body) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return out, fmt.Errorf("httpclient: decode %s response: %w", req.URL, err)
	}
	return out, nil
}
