// Package objectstore is the HTTP client for the platform's object storage
// API. All operations act on a single bucket and are authorized with the
// platform API key plus the current session's bearer token.
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/akozyreva/cloudkeep/internal/models"
)

// TokenSource supplies the bearer token for each call. The session gate
// implements it.
type TokenSource interface {
	Session() (*models.Session, error)
}

// ObjectInfo is one entry of a bucket listing.
type ObjectInfo struct {
	// Name is the object's path relative to the listed prefix.
	Name string `json:"name"`
	// Size is the object size in bytes.
	Size int64 `json:"size"`
	// CreatedAt is when the object was stored.
	CreatedAt time.Time `json:"created_at"`
}

// listEntry matches the storage API's listing payload, which nests size
// under metadata.
type listEntry struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Metadata  struct {
		Size int64 `json:"size"`
	} `json:"metadata"`
}

// Client talks to the storage API for one bucket.
type Client struct {
	baseURL string
	bucket  string
	apiKey  string
	tokens  TokenSource
	client  *http.Client
}

// New creates a Client for the given storage API base URL and bucket.
func New(baseURL, bucket, apiKey string, tokens TokenSource) *Client {
	return &Client{
		baseURL: baseURL,
		bucket:  bucket,
		apiKey:  apiKey,
		tokens:  tokens,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Put stores the object under key. Overwrites are rejected by the platform;
// key uniqueness is the caller's concern.
func (c *Client) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	req, err := c.request(ctx, http.MethodPost, c.objectURL(key), r)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Cache-Control", "max-age=3600")
	req.Header.Set("x-upsert", "false")
	if size > 0 {
		req.ContentLength = size
	}
	return c.do(req, nil)
}

// List returns the objects under prefix ordered by creation time descending.
func (c *Client) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	body, err := json.Marshal(map[string]any{
		"prefix": prefix,
		"limit":  1000,
		"offset": 0,
		"sortBy": map[string]string{"column": "created_at", "order": "desc"},
	})
	if err != nil {
		return nil, err
	}
	req, err := c.request(ctx, http.MethodPost, fmt.Sprintf("%s/object/list/%s", c.baseURL, c.bucket), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var entries []listEntry
	if err := c.do(req, &entries); err != nil {
		return nil, err
	}
	infos := make([]ObjectInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, ObjectInfo{Name: e.Name, Size: e.Metadata.Size, CreatedAt: e.CreatedAt})
	}
	return infos, nil
}

// SignedURL issues a pre-authorized download link valid for ttl seconds.
func (c *Client) SignedURL(ctx context.Context, key string, ttl int) (string, error) {
	body, err := json.Marshal(map[string]int{"expiresIn": ttl})
	if err != nil {
		return "", err
	}
	u := fmt.Sprintf("%s/object/sign/%s/%s", c.baseURL, c.bucket, escapeKey(key))
	req, err := c.request(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		SignedURL string `json:"signedURL"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return c.baseURL + out.SignedURL, nil
}

// Download streams the object's bytes. The caller must close the reader.
func (c *Client) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	req, err := c.request(ctx, http.MethodGet, c.objectURL(key), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("object store: %w", err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	return resp.Body, nil
}

// Remove deletes the given objects.
func (c *Client) Remove(ctx context.Context, keys []string) error {
	body, err := json.Marshal(map[string][]string{"prefixes": keys})
	if err != nil {
		return err
	}
	req, err := c.request(ctx, http.MethodDelete, fmt.Sprintf("%s/object/%s", c.baseURL, c.bucket), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

// request builds an authorized request for the storage API.
func (c *Client) request(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	s, err := c.tokens.Session()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.AccessToken)
	return req, nil
}

// do executes req and decodes a JSON response into out when out is non-nil.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("object store: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil {
		_, err := io.Copy(io.Discard, resp.Body)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("object store: decode: %w", err)
	}
	return nil
}

func (c *Client) objectURL(key string) string {
	return fmt.Sprintf("%s/object/%s/%s", c.baseURL, c.bucket, escapeKey(key))
}

// escapeKey escapes each path segment of a key while keeping the separators.
func escapeKey(key string) string {
	u := url.URL{Path: key}
	return u.EscapedPath()
}

func statusError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if len(bytes.TrimSpace(msg)) == 0 {
		return fmt.Errorf("object store: unexpected status %s", resp.Status)
	}
	return fmt.Errorf("object store: %s: %s", resp.Status, bytes.TrimSpace(msg))
}
