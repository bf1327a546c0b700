package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	meili "github.com/meilisearch/meilisearch-go"
)

const enqueuedTask = `{"taskUid":1,"indexUid":"mojocode_conversations","status":"enqueued","type":"settingsUpdate","enqueuedAt":"2025-01-01T00:00:00Z"}`

type meiliStub struct {
	mu         sync.Mutex
	searchBody map[string]any
	added      []map[string]any
}

func newMeiliServer(t *testing.T, stub *meiliStub) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/health":
			_, _ = w.Write([]byte(`{"status":"available"}`))
		case strings.HasSuffix(r.URL.Path, "/search"):
			stub.mu.Lock()
			_ = json.NewDecoder(r.Body).Decode(&stub.searchBody)
			stub.mu.Unlock()
			_, _ = w.Write([]byte(`{
				"hits":[{"id":"c1","userId":"user-1","title":"Fix login bug","selectedRepository":"octo/app",
					"_formatted":{"title":"Fix <mark>login</mark> bug"}}],
				"estimatedTotalHits":1,"limit":20,"offset":0,"processingTimeMs":1,"query":"login"}`))
		case strings.HasSuffix(r.URL.Path, "/documents") && r.Method == http.MethodPost:
			var docs []map[string]any
			_ = json.NewDecoder(r.Body).Decode(&docs)
			stub.mu.Lock()
			stub.added = append(stub.added, docs...)
			stub.mu.Unlock()
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(enqueuedTask))
		default:
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(enqueuedTask))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestMeiliSearchScopesToUser(t *testing.T) {
	stub := &meiliStub{}
	server := newMeiliServer(t, stub)
	m := NewMeili(server.URL, "master-key")
	defer m.Close()

	if !m.Healthy() {
		t.Fatal("expected healthy client")
	}

	results, total, err := m.Search(context.Background(), Query{UserID: "user-1", Text: "login", Limit: 5})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if total != 1 || len(results) != 1 {
		t.Fatalf("expected one result, got %d/%d", len(results), total)
	}
	want := Result{ConversationID: "c1", Title: "Fix login bug", Snippet: "Fix <mark>login</mark> bug", SelectedRepository: "octo/app"}
	if results[0] != want {
		t.Fatalf("unexpected result: %+v", results[0])
	}

	stub.mu.Lock()
	defer stub.mu.Unlock()
	if stub.searchBody["filter"] != `userId = "user-1"` {
		t.Fatalf("expected user filter, got %v", stub.searchBody["filter"])
	}
	if stub.searchBody["q"] != "login" {
		t.Fatalf("expected query text, got %v", stub.searchBody["q"])
	}
}

func TestMeiliIndexConversations(t *testing.T) {
	stub := &meiliStub{}
	server := newMeiliServer(t, stub)
	m := NewMeili(server.URL, "master-key")
	defer m.Close()

	if err := m.IndexConversations(nil); err != nil {
		t.Fatalf("empty batch should be a no-op: %v", err)
	}
	err := m.IndexConversations([]ConversationRecord{{ID: "c1", UserID: "user-1", Title: "Fix login", CreatedAt: 1700000000}})
	if err != nil {
		t.Fatalf("IndexConversations() error = %v", err)
	}

	stub.mu.Lock()
	defer stub.mu.Unlock()
	if len(stub.added) != 1 || stub.added[0]["userId"] != "user-1" {
		t.Fatalf("unexpected documents: %+v", stub.added)
	}
}

func TestMeiliUnreachableIsUnhealthy(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	m := NewMeili(url, "key")
	defer m.Close()
	if m.Healthy() {
		t.Fatal("expected unhealthy client")
	}
	if _, _, err := m.Search(context.Background(), Query{UserID: "u", Text: "x"}); err == nil {
		t.Fatal("expected error from unhealthy client")
	}
}

func TestHitToResultFallsBackToRawTitle(t *testing.T) {
	hit := meili.Hit{
		"id":    json.RawMessage(`"c9"`),
		"title": json.RawMessage(`"Plain title"`),
	}
	got := hitToResult(hit)
	if got.ConversationID != "c9" || got.Snippet != "Plain title" {
		t.Fatalf("unexpected result: %+v", got)
	}
}
