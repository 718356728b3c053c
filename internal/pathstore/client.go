// Package pathstore is a client for a remote path-keyed KV service. The
// ingest pipeline uses it as a second sink for chunk records.
package pathstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/docchunk/internal/docmodel"
	"github.com/dgallion1/docchunk/internal/sanitize"
)

// DefaultRoot is the key prefix every document is written under.
const DefaultRoot = "docchunk"

// RetryableError is returned for responses worth retrying (429 and 5xx).
type RetryableError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Client communicates with the pathstore HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	root       string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		root:    DefaultRoot,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NodeRequest is the body for PUT /kv/{key}.
type NodeRequest struct {
	Value     any    `json:"value"`
	Source    string `json:"source,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// NodeResponse is the response from GET /kv/{key}.
type NodeResponse struct {
	Key   string          `json:"key_path"`
	Value json.RawMessage `json:"value"`
}

// ListChildrenResponse is a single node from a prefix scan.
type ListChildrenResponse struct {
	Key   string          `json:"key_path"`
	Value json.RawMessage `json:"value"`
}

// do sends a request and returns the response when its status is one of ok.
// The caller closes the body.
func (c *Client) do(ctx context.Context, op, method, u string, body any, ok ...int) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal: %w", op, err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, code := range ok {
		if resp.StatusCode == code {
			return resp, nil
		}
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &RetryableError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil, fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, string(respBody))
}

// PutNode stores or updates a node at the given path.
func (c *Client) PutNode(ctx context.Context, key string, req NodeRequest) error {
	resp, err := c.do(ctx, "put node "+key, http.MethodPut, c.baseURL+"/kv/"+key, req,
		http.StatusOK, http.StatusCreated)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// GetNode retrieves a node by key. A missing node is (nil, nil).
func (c *Client) GetNode(ctx context.Context, key string) (*NodeResponse, error) {
	resp, err := c.do(ctx, "get node "+key, http.MethodGet, c.baseURL+"/kv/"+key, nil,
		http.StatusOK, http.StatusNotFound)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	var node NodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&node); err != nil {
		return nil, fmt.Errorf("decode node: %w", err)
	}
	return &node, nil
}

// DeleteNode deletes a node and optionally its children.
func (c *Client) DeleteNode(ctx context.Context, key string, recursive bool) error {
	u := c.baseURL + "/kv/" + key
	if recursive {
		u += "?children=true"
	}
	resp, err := c.do(ctx, "delete node "+key, http.MethodDelete, u, nil,
		http.StatusOK, http.StatusNoContent)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// ListChildren does a prefix scan under the given key.
func (c *Client) ListChildren(ctx context.Context, key string, limit int) ([]ListChildrenResponse, error) {
	u := c.baseURL + "/kv/" + key + "/*"
	if limit > 0 {
		u += "?limit=" + url.QueryEscape(strconv.Itoa(limit))
	}
	resp, err := c.do(ctx, "list children "+key, http.MethodGet, u, nil, http.StatusOK)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		Nodes []ListChildrenResponse `json:"nodes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode children: %w", err)
	}
	return result.Nodes, nil
}

func (c *Client) documentKey(docID string) string {
	return c.root + "/documents/" + docID
}

func (c *Client) hashKey(hash string) string {
	return c.root + "/documents/by_hash/" + hash
}

// PutDocument writes a document's meta node and its content hash index entry.
func (c *Client) PutDocument(ctx context.Context, doc docmodel.Document) error {
	source := "docchunk:" + doc.ID
	if err := c.PutNode(ctx, c.documentKey(doc.ID)+"/meta", NodeRequest{Value: doc, Source: source}); err != nil {
		return err
	}
	return c.PutNode(ctx, c.hashKey(doc.ContentHash)+"/"+doc.ID, NodeRequest{
		Value: map[string]any{
			"filename":   doc.Name,
			"created_at": doc.CreatedAt.Format(time.RFC3339),
		},
		Source: source,
	})
}

// PutChunk writes one chunk record under its document.
func (c *Client) PutChunk(ctx context.Context, docID string, rec sanitize.Record) error {
	key := c.documentKey(docID) + "/chunks/" + rec.ChunkID
	return c.PutNode(ctx, key, NodeRequest{Value: rec, Source: "docchunk:" + docID})
}

// FindByHash looks up a document with the given content hash.
func (c *Client) FindByHash(ctx context.Context, hash string) (string, bool, error) {
	children, err := c.ListChildren(ctx, c.hashKey(hash), 1)
	if err != nil {
		return "", false, err
	}
	if len(children) == 0 {
		return "", false, nil
	}
	// Keys come back with either "/" or "." separators.
	key := children[0].Key
	if i := strings.LastIndexAny(key, "/."); i >= 0 {
		key = key[i+1:]
	}
	return key, true, nil
}

// ClearChunks removes every chunk node of a document. A document without
// chunks is not an error.
func (c *Client) ClearChunks(ctx context.Context, docID string) error {
	key := c.documentKey(docID) + "/chunks"
	resp, err := c.do(ctx, "clear chunks "+docID, http.MethodDelete, c.baseURL+"/kv/"+key+"?children=true", nil,
		http.StatusOK, http.StatusNoContent, http.StatusNotFound)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// DeleteDocument removes a document subtree. Its content hash index entry is
// not removed.
func (c *Client) DeleteDocument(ctx context.Context, docID string) error {
	return c.DeleteNode(ctx, c.documentKey(docID), true)
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
