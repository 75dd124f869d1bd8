package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/Hansil-Chapadiya/problems-analyzer/internal/analysis"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/catalog"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/remote"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/storage"
)

// upstream is a stub of the catalog and analysis services.
type upstream struct {
	mu            sync.Mutex
	tokens        []string
	analysisCalls int
	problems      int
	archive       string // base64 zip served by the analysis endpoint
}

func (u *upstream) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/user/classify/tags", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.tokens = append(u.tokens, r.Header.Get("token"))
		n := u.problems
		u.mu.Unlock()

		list := make([]catalog.Problem, n)
		for i := range list {
			list[i] = catalog.Problem{Title: fmt.Sprintf("P%d", i+1), Difficulty: "Easy", Tags: strings.Split(r.URL.Query().Get("tags"), ",")}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":   true,
			"problems": []map[string]any{{"id": "abc123", "problems": list}},
		})
	})
	mux.HandleFunc("/user/analysis/", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.tokens = append(u.tokens, r.Header.Get("token"))
		u.analysisCalls++
		u.mu.Unlock()
		fmt.Fprintf(w, `{"status":true,"analysis":{"file":%q}}`, u.archive)
	})
	return mux
}

func (u *upstream) lastToken() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.tokens) == 0 {
		return ""
	}
	return u.tokens[len(u.tokens)-1]
}

func testArchive(t *testing.T, names ...string) string {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, n := range names {
		fw, err := w.Create(n)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(n))
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

type testEnv struct {
	up       *upstream
	catalogs *catalog.Client
	analyses *analysis.Client
	store    *storage.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	up := &upstream{problems: 12, archive: testArchive(t, "a.png", "notes.txt", "b.jpg", "c.png")}
	srv := httptest.NewServer(up.handler())
	t.Cleanup(srv.Close)

	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	rc := remote.New(srv.URL)
	return &testEnv{
		up:       up,
		catalogs: catalog.NewClient(rc, ""),
		analyses: analysis.NewClient(rc, ""),
		store:    store,
	}
}
