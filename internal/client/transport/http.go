package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/closetapp/closet-sync/internal/shared"
	"github.com/closetapp/closet-sync/internal/syncwire"
)

// HTTPClient talks to the sync endpoint. Every call carries the bearer
// token and an explicit wall-clock timeout.
type HTTPClient struct {
	baseURL string
	token   string
	hc      *http.Client
}

func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		hc:      &http.Client{Timeout: timeout},
	}
}

// SetToken replaces the bearer credential (after a re-login).
func (c *HTTPClient) SetToken(token string) { c.token = token }

func (c *HTTPClient) Pull(ctx context.Context, since int64) (*syncwire.PullResponse, error) {
	var resp syncwire.PullResponse
	path := "/sync?since=" + strconv.FormatInt(since, 10)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Push(ctx context.Context, req *syncwire.PushRequest) (*syncwire.PushResponse, error) {
	var resp syncwire.PushResponse
	if err := c.doJSON(ctx, http.MethodPost, "/sync", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) PresignUpload(ctx context.Context, req *syncwire.PresignUploadRequest) (*syncwire.PresignUploadResponse, error) {
	var resp syncwire.PresignUploadResponse
	if err := c.doJSON(ctx, http.MethodPost, "/images/presign-upload", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) UploadImage(ctx context.Context, hash string, data []byte, contentType string) (*syncwire.UploadResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.baseURL+"/images/upload/"+hash, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	c.authorize(req)

	var resp syncwire.UploadResponse
	if err := c.send(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) UploadPresigned(ctx context.Context, url string, data []byte, contentType string) error {
	// Presigned URLs carry their own auth; no bearer header.
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("presigned upload failed: status %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) CheckImage(ctx context.Context, hash string) (bool, error) {
	var resp syncwire.CheckResponse
	if err := c.doJSON(ctx, http.MethodGet, "/images/check/"+hash, nil, &resp); err != nil {
		return false, err
	}
	return resp.Exists, nil
}

func (c *HTTPClient) DownloadImage(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/images/"+ref, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUnavailable, err)
	}
	return data, nil
}

func (c *HTTPClient) DeleteImage(ctx context.Context, hash string) error {
	var resp syncwire.DeleteResponse
	return c.doJSON(ctx, http.MethodDelete, "/images/"+hash, nil, &resp)
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	return c.send(req, out)
}

func (c *HTTPClient) send(req *http.Request, out any) error {
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *HTTPClient) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// errorBody is the structured error envelope the server sends.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// statusError maps HTTP failures onto the shared sentinels so the engine
// can react uniformly regardless of endpoint.
func (c *HTTPClient) statusError(resp *http.Response) error {
	var eb errorBody
	msg := ""
	if err := json.NewDecoder(resp.Body).Decode(&eb); err == nil {
		msg = eb.Error.Message
	}

	var base error
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		base = shared.ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		base = shared.ErrForbidden
	case resp.StatusCode == http.StatusNotFound:
		base = shared.ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		base = shared.ErrRateLimited
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		base = shared.ErrImageTooLarge
	case resp.StatusCode >= 500:
		base = shared.ErrUnavailable
	default:
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("request failed: %s", msg)
	}
	if msg != "" {
		return fmt.Errorf("%w: %s", base, msg)
	}
	return base
}
