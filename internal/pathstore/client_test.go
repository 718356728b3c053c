package pathstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/docchunk/internal/docmodel"
	"github.com/dgallion1/docchunk/internal/sanitize"
)

type recorded struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

func newServer(t *testing.T, status int, reply string) (*httptest.Server, *[]recorded) {
	t.Helper()
	var (
		mu  sync.Mutex
		got []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization")}
		if r.Body != nil {
			json.NewDecoder(r.Body).Decode(&rec.body)
		}
		mu.Lock()
		got = append(got, rec)
		mu.Unlock()
		w.WriteHeader(status)
		if reply != "" {
			w.Write([]byte(reply))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestPutChunk(t *testing.T) {
	srv, got := newServer(t, http.StatusCreated, "")
	c := NewClient(srv.URL+"/", "secret")

	rec := sanitize.Record{ChunkID: "3", DocumentID: "doc1", Text: "hello"}
	if err := c.PutChunk(context.Background(), "doc1", rec); err != nil {
		t.Fatalf("put chunk: %v", err)
	}

	if len(*got) != 1 {
		t.Fatalf("expected 1 request, got %d", len(*got))
	}
	r := (*got)[0]
	if r.method != http.MethodPut || r.path != "/kv/docchunk/documents/doc1/chunks/3" {
		t.Errorf("request = %s %s", r.method, r.path)
	}
	if r.auth != "Bearer secret" {
		t.Errorf("auth = %q", r.auth)
	}
	value, _ := r.body["value"].(map[string]any)
	if value["text"] != "hello" || r.body["source"] != "docchunk:doc1" {
		t.Errorf("body = %v", r.body)
	}
}

func TestPutDocument_WritesMetaAndHashIndex(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, "")
	c := NewClient(srv.URL, "k")

	orphans := `[{"file_name":"orphan.png"}]`
	doc := docmodel.Document{ID: "doc1", Name: "a.docx", ContentHash: "abc", UnassignedImages: orphans, CreatedAt: time.Unix(0, 0)}
	if err := c.PutDocument(context.Background(), doc); err != nil {
		t.Fatalf("put document: %v", err)
	}
	if len(*got) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(*got))
	}
	if p := (*got)[0].path; p != "/kv/docchunk/documents/doc1/meta" {
		t.Errorf("meta path = %q", p)
	}
	meta, _ := (*got)[0].body["value"].(map[string]any)
	if meta["unassigned_images"] != orphans {
		t.Errorf("meta value = %v", meta)
	}
	if p := (*got)[1].path; p != "/kv/docchunk/documents/by_hash/abc/doc1" {
		t.Errorf("hash path = %q", p)
	}
}

func TestRetryableStatuses(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError} {
		srv, _ := newServer(t, status, "busy")
		err := NewClient(srv.URL, "k").PutNode(context.Background(), "x", NodeRequest{Value: 1})
		var re *RetryableError
		if !errors.As(err, &re) {
			t.Fatalf("status %d: expected RetryableError, got %v", status, err)
		}
		if re.StatusCode != status || re.Body != "busy" {
			t.Errorf("retryable error = %+v", re)
		}
	}
}

func TestNonRetryableStatus(t *testing.T) {
	srv, _ := newServer(t, http.StatusBadRequest, "bad")
	err := NewClient(srv.URL, "k").PutNode(context.Background(), "x", NodeRequest{Value: 1})
	if err == nil {
		t.Fatal("expected error")
	}
	var re *RetryableError
	if errors.As(err, &re) {
		t.Errorf("400 should not be retryable: %v", err)
	}
	if !strings.Contains(err.Error(), "status 400") {
		t.Errorf("error = %v", err)
	}
}

func TestGetNode_NotFound(t *testing.T) {
	srv, _ := newServer(t, http.StatusNotFound, "")
	node, err := NewClient(srv.URL, "k").GetNode(context.Background(), "missing")
	if err != nil || node != nil {
		t.Fatalf("node=%v err=%v", node, err)
	}
}

func TestGetNode(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"key_path":"a/b","value":{"n":1}}`)
	node, err := NewClient(srv.URL, "k").GetNode(context.Background(), "a/b")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if node.Key != "a/b" || string(node.Value) != `{"n":1}` {
		t.Errorf("node = %+v", node)
	}
}

func TestFindByHash(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, `{"nodes":[{"key_path":"docchunk.documents.by_hash.abc.doc7","value":{}}]}`)
	c := NewClient(srv.URL, "k")

	id, found, err := c.FindByHash(context.Background(), "abc")
	if err != nil || !found || id != "doc7" {
		t.Fatalf("FindByHash = %q, %v, %v", id, found, err)
	}
	if p := (*got)[0].path; p != "/kv/docchunk/documents/by_hash/abc/*" {
		t.Errorf("path = %q", p)
	}
}

func TestFindByHash_None(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"nodes":[]}`)
	_, found, err := NewClient(srv.URL, "k").FindByHash(context.Background(), "abc")
	if err != nil || found {
		t.Fatalf("found=%v err=%v", found, err)
	}
}

func TestDeleteDocument(t *testing.T) {
	srv, got := newServer(t, http.StatusNoContent, "")
	if err := NewClient(srv.URL, "k").DeleteDocument(context.Background(), "doc1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if r := (*got)[0]; r.method != http.MethodDelete || r.path != "/kv/docchunk/documents/doc1" {
		t.Errorf("request = %s %s", r.method, r.path)
	}
}

func TestClearChunks_MissingIsFine(t *testing.T) {
	srv, got := newServer(t, http.StatusNotFound, "")
	if err := NewClient(srv.URL, "k").ClearChunks(context.Background(), "doc1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if r := (*got)[0]; r.method != http.MethodDelete || r.path != "/kv/docchunk/documents/doc1/chunks" {
		t.Errorf("request = %s %s", r.method, r.path)
	}
}
