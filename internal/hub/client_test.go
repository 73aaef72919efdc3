package hub

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lmmx/arxiv-explorer/internal/arxiv"
)

var testBounds = arxiv.Bounds{First: arxiv.FirstArxivMonth, Last: arxiv.YearMonth{Year: 2024, Month: 12}}

const resolvePrefix = "/datasets/test/repo/resolve/main/"

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c := NewClient(
		WithBaseURL(server.URL),
		WithRepo("test/repo"),
		WithToken(""),
		WithBounds(testBounds),
		WithRetry(4, time.Millisecond),
		WithRateLimit(1000),
	)
	return c, server
}

func TestFetch_Success(t *testing.T) {
	key := arxiv.NewPartitionKey("cs.AI", 2024, 1)
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != resolvePrefix+key.RemotePath() {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set(revisionHeader, "abc123")
		w.Write([]byte("PAR1data"))
	}))

	data, rev, err := c.Fetch(context.Background(), key)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "PAR1data" {
		t.Errorf("Fetch() data = %q", data)
	}
	if rev != "abc123" {
		t.Errorf("Fetch() revision = %q, want abc123", rev)
	}
}

func TestFetch_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))

	_, _, err := c.Fetch(context.Background(), arxiv.NewPartitionKey("cs.AI", 2024, 1))
	if !arxiv.IsNotFound(err) {
		t.Fatalf("Fetch() error = %v, want not found", err)
	}
	if calls.Load() != 1 {
		t.Errorf("server saw %d requests, want 1", calls.Load())
	}
}

func TestFetch_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))

	data, _, err := c.Fetch(context.Background(), arxiv.NewPartitionKey("cs.AI", 2024, 1))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "ok" {
		t.Errorf("Fetch() data = %q", data)
	}
	if calls.Load() != 3 {
		t.Errorf("server saw %d requests, want 3", calls.Load())
	}
}

func TestFetch_GivesUpAfterBudget(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, _, err := c.Fetch(context.Background(), arxiv.NewPartitionKey("cs.AI", 2024, 1))
	if !arxiv.IsTransient(err) {
		t.Fatalf("Fetch() error = %v, want transient", err)
	}
	if calls.Load() != 4 {
		t.Errorf("server saw %d requests, want 4", calls.Load())
	}
}

func TestFetch_ValidatesBeforeNetwork(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	keys := []arxiv.PartitionKey{
		arxiv.NewPartitionKey("not a category", 2024, 1),
		arxiv.NewPartitionKey("cs.AI", 2030, 1),
		arxiv.NewPartitionKey("cs.AI", 1985, 1),
	}
	for _, key := range keys {
		if _, _, err := c.Fetch(context.Background(), key); !arxiv.IsValidation(err) {
			t.Errorf("Fetch(%s) error = %v, want validation", key, err)
		}
	}
	if calls.Load() != 0 {
		t.Errorf("server saw %d requests, want 0", calls.Load())
	}
}

func TestDownload_AtomicReplace(t *testing.T) {
	key := arxiv.NewPartitionKey("cs.AI", 2024, 1)
	var fail atomic.Bool
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("partition-bytes"))
	}))

	dest := filepath.Join(t.TempDir(), "2024", "01", "cs_AI.parquet")
	dl, err := c.Download(context.Background(), key, dest)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if dl.Size != int64(len("partition-bytes")) {
		t.Errorf("Size = %d", dl.Size)
	}

	fail.Store(true)
	if _, err := c.Download(context.Background(), key, dest); !arxiv.IsNotFound(err) {
		t.Fatalf("Download() error = %v, want not found", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "partition-bytes" {
		t.Errorf("failed download clobbered the existing file: %q", got)
	}

	entries, _ := os.ReadDir(filepath.Dir(dest))
	if len(entries) != 1 {
		t.Errorf("found %d files in partition dir, want 1", len(entries))
	}
}

func TestDownload_CanceledContext(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dest := filepath.Join(t.TempDir(), "x.parquet")
	if _, err := c.Download(ctx, arxiv.NewPartitionKey("cs.AI", 2024, 1), dest); err == nil {
		t.Fatal("Download() with canceled context should fail")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("canceled download left a file at dest")
	}
}

func TestListSubjects_FollowsPagination(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/api/datasets/test/repo/tree/main/data", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cursor") == "" {
			w.Header().Set("Link", fmt.Sprintf(`<%s/api/datasets/test/repo/tree/main/data?cursor=2>; rel="next"`, server.URL))
			fmt.Fprint(w, `[{"type":"directory","path":"data/cs.LG"},{"type":"file","path":"data/README.md","size":10}]`)
			return
		}
		fmt.Fprint(w, `[{"type":"directory","path":"data/cs.AI"}]`)
	})
	c, s := newTestClient(t, mux)
	server = s

	subjects, err := c.ListSubjects(context.Background())
	if err != nil {
		t.Fatalf("ListSubjects: %v", err)
	}
	if len(subjects) != 2 || subjects[0] != "cs.AI" || subjects[1] != "cs.LG" {
		t.Errorf("ListSubjects() = %v, want [cs.AI cs.LG]", subjects)
	}
}

func TestListMonths(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/datasets/test/repo/tree/main/data/cs.AI/2024", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"type":"directory","path":"data/cs.AI/2024/02"},{"type":"directory","path":"data/cs.AI/2024/01"}]`)
	})
	c, _ := newTestClient(t, mux)

	months, err := c.ListMonths(context.Background(), "cs.AI", 2024)
	if err != nil {
		t.Fatalf("ListMonths: %v", err)
	}
	if len(months) != 2 || months[0].Month != 1 || months[1].Month != 2 {
		t.Errorf("ListMonths() = %v", months)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"3", 3 * time.Second},
		{"-1", 0},
		{"Wed, 21 Oct 2015 07:28:00 GMT", 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.in); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
