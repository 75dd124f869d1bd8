package workflow

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/Hansil-Chapadiya/problems-analyzer/internal/analysis"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/archive"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/catalog"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/remote"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/session"
)

type fakeCatalogs struct {
	mu      sync.Mutex
	calls   int
	queries []catalog.Query
	result  catalog.Result
	err     error
	gate    chan struct{} // when set, FetchCatalog blocks until closed
}

func (f *fakeCatalogs) FetchCatalog(ctx context.Context, q catalog.Query, token string) (catalog.Result, error) {
	f.mu.Lock()
	f.calls++
	f.queries = append(f.queries, q)
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if token == "" {
		return catalog.Result{}, remote.Unauthenticated("catalog")
	}
	return f.result, f.err
}

type fakeAnalyses struct {
	calls  int
	ids    []string
	bundle analysis.Bundle
	err    error
	gate   chan struct{}
}

func (f *fakeAnalyses) FetchAnalysis(ctx context.Context, id, token string) (analysis.Bundle, error) {
	f.calls++
	f.ids = append(f.ids, id)
	if f.gate != nil {
		<-f.gate
	}
	return f.bundle, f.err
}

type fakeHistory struct {
	catalogs []string
	analyses map[string]int
}

func (h *fakeHistory) RecordCatalog(q catalog.Query, r catalog.Result) error {
	h.catalogs = append(h.catalogs, r.ID)
	return nil
}

func (h *fakeHistory) RecordAnalysis(id string, images int) error {
	if h.analyses == nil {
		h.analyses = map[string]int{}
	}
	h.analyses[id] = images
	return nil
}

func problems(n int) []catalog.Problem {
	out := make([]catalog.Problem, n)
	for i := range out {
		out[i] = catalog.Problem{Title: fmt.Sprintf("P%02d", i+1), Difficulty: "Easy"}
	}
	return out
}

func TestSubmit_ValidationIsSynchronous(t *testing.T) {
	cat := &fakeCatalogs{}
	c := New(cat, &fakeAnalyses{}, session.Static("tok"))

	err := c.Submit(context.Background(), "  ", "Array")
	if !errors.Is(err, catalog.ErrMissingSkill) {
		t.Fatalf("err = %v, want MissingSkill", err)
	}
	if c.State() != StateIdle {
		t.Errorf("state = %v, want idle", c.State())
	}
	if cat.calls != 0 {
		t.Errorf("calls = %d, want 0", cat.calls)
	}
	if got := Message(err); got != "Please select a skill level." {
		t.Errorf("Message = %q", got)
	}
}

func TestSubmit_LoadsCatalogAndRecordsHistory(t *testing.T) {
	cat := &fakeCatalogs{result: catalog.Result{ID: "c1", Problems: problems(25)}}
	h := &fakeHistory{}
	c := New(cat, &fakeAnalyses{}, session.Static("tok"), WithHistory(h))

	if err := c.Submit(context.Background(), "beginner", "Array,Array,Stack"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	v := c.View()
	if v.State != "catalog_loaded" {
		t.Errorf("state = %q, want catalog_loaded", v.State)
	}
	if v.PageCount != 3 || v.Page != 1 || len(v.Problems) != 10 {
		t.Errorf("view page %d/%d with %d problems", v.Page, v.PageCount, len(v.Problems))
	}
	if v.Skill != "Beginner" || strings.Join(v.Tags, ",") != "Array,Stack" {
		t.Errorf("criteria = %q %v", v.Skill, v.Tags)
	}
	if len(h.catalogs) != 1 || h.catalogs[0] != "c1" {
		t.Errorf("history = %v, want [c1]", h.catalogs)
	}
}

func TestSubmit_NoTokenGoesToError(t *testing.T) {
	cat := &fakeCatalogs{}
	c := New(cat, &fakeAnalyses{}, session.Static(""))

	err := c.Submit(context.Background(), "Master", "")
	if !errors.Is(err, remote.ErrUnauthenticated) {
		t.Fatalf("err = %v, want unauthenticated", err)
	}
	if c.State() != StateError {
		t.Errorf("state = %v, want error", c.State())
	}
	if c.View().Error == "" {
		t.Error("view has no error message")
	}

	c.Back()
	if c.State() != StateIdle {
		t.Errorf("state after Back = %v, want idle", c.State())
	}
}

func TestRefresh_ResetsPage(t *testing.T) {
	cat := &fakeCatalogs{result: catalog.Result{ID: "c1", Problems: problems(25)}}
	c := New(cat, &fakeAnalyses{}, session.Static("tok"))
	ctx := context.Background()

	if err := c.Submit(ctx, "Advanced", "Greedy"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	c.NextPage()
	c.NextPage()
	if got := c.View().Page; got != 3 {
		t.Fatalf("page = %d, want 3", got)
	}

	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := c.View().Page; got != 1 {
		t.Errorf("page after refresh = %d, want 1", got)
	}
	if cat.calls != 2 {
		t.Errorf("calls = %d, want 2", cat.calls)
	}
	if cat.queries[1].Skill != catalog.Advanced || cat.queries[1].Tags.String() != "Greedy" {
		t.Errorf("refresh query = %+v, want same criteria", cat.queries[1])
	}
}

func TestRefresh_FromIdleNotAllowed(t *testing.T) {
	c := New(&fakeCatalogs{}, &fakeAnalyses{}, session.Static("tok"))
	if err := c.Refresh(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("err = %v, want ErrInvalidState", err)
	}
}

func TestRefresh_RecoversFromError(t *testing.T) {
	cat := &fakeCatalogs{err: &remote.FetchError{Kind: remote.KindService, Op: "catalog", Message: "down"}}
	c := New(cat, &fakeAnalyses{}, session.Static("tok"))
	ctx := context.Background()

	if err := c.Submit(ctx, "Beginner", ""); err == nil {
		t.Fatal("expected error")
	}
	if got := c.View().Error; got != "Failed to fetch problems. down" {
		t.Errorf("error message = %q", got)
	}

	cat.err = nil
	cat.result = catalog.Result{ID: "c2", Problems: problems(3)}
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if c.State() != StateCatalogLoaded {
		t.Errorf("state = %v, want catalog_loaded", c.State())
	}
}

func TestSubmit_FailureDropsPreviousCatalog(t *testing.T) {
	cat := &fakeCatalogs{result: catalog.Result{ID: "old", Problems: problems(3)}}
	an := &fakeAnalyses{}
	c := New(cat, an, session.Static("tok"))
	ctx := context.Background()

	if err := c.Submit(ctx, "Beginner", ""); err != nil {
		t.Fatalf("first Submit: %v", err)
	}

	cat.err = &remote.FetchError{Kind: remote.KindService, Op: "catalog", Message: "down"}
	if err := c.Submit(ctx, "Master", "Graphs"); err == nil {
		t.Fatal("expected error")
	}
	v := c.View()
	if v.Skill != "Master" || v.CatalogID != "" || len(v.Problems) != 0 {
		t.Errorf("error view = skill %q catalog %q problems %d, want Master with no catalog", v.Skill, v.CatalogID, len(v.Problems))
	}

	c.Back()
	if c.State() != StateIdle {
		t.Errorf("state after Back = %v, want idle", c.State())
	}
	v = c.View()
	if v.CatalogID != "" || len(v.Problems) != 0 {
		t.Errorf("after Back catalog %q with %d problems, want none", v.CatalogID, len(v.Problems))
	}
	if err := c.Analyze(ctx); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Analyze after failed query err = %v, want ErrInvalidState", err)
	}
	if an.calls != 0 {
		t.Errorf("analysis calls = %d, want 0", an.calls)
	}

	cat.err = nil
	cat.result = catalog.Result{ID: "new", Problems: problems(2)}
	if err := c.Refresh(ctx); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Refresh from idle err = %v, want ErrInvalidState", err)
	}
	if err := c.Submit(ctx, "Master", "Graphs"); err != nil {
		t.Fatalf("retry Submit: %v", err)
	}
	if v := c.View(); v.CatalogID != "new" || v.Skill != "Master" {
		t.Errorf("view = catalog %q skill %q, want new/Master", v.CatalogID, v.Skill)
	}
}

func TestAnalyze_WithoutCorrelationID(t *testing.T) {
	an := &fakeAnalyses{}
	c := New(&fakeCatalogs{result: catalog.Result{}}, an, session.Static("tok"))
	ctx := context.Background()

	if err := c.Analyze(ctx); !errors.Is(err, ErrInvalidState) {
		t.Errorf("idle Analyze err = %v, want ErrInvalidState", err)
	}

	if err := c.Submit(ctx, "Beginner", ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	err := c.Analyze(ctx)
	if !errors.Is(err, ErrNoCorrelationID) {
		t.Fatalf("err = %v, want ErrNoCorrelationID", err)
	}
	if an.calls != 0 {
		t.Errorf("analysis calls = %d, want 0", an.calls)
	}
	if c.State() != StateCatalogLoaded {
		t.Errorf("state = %v, want catalog_loaded", c.State())
	}
}

func TestAnalyze_FailureAndBack(t *testing.T) {
	an := &fakeAnalyses{err: &remote.FetchError{Kind: remote.KindDecode, Op: "analysis", Err: &archive.DecodeError{Reason: archive.NoImagesFound}}}
	c := New(&fakeCatalogs{result: catalog.Result{ID: "c1", Problems: problems(12)}}, an, session.Static("tok"))
	ctx := context.Background()

	c.Submit(ctx, "Beginner", "")
	c.NextPage()
	if err := c.Analyze(ctx); err == nil {
		t.Fatal("expected error")
	}
	if got := c.View().Error; got != "No images found in the analysis file." {
		t.Errorf("error message = %q", got)
	}

	c.Back()
	v := c.View()
	if v.State != "catalog_loaded" || v.Page != 2 || v.CatalogID != "c1" {
		t.Errorf("after Back: state %q page %d id %q", v.State, v.Page, v.CatalogID)
	}
}

func TestBusyGuard(t *testing.T) {
	gate := make(chan struct{})
	cat := &fakeCatalogs{result: catalog.Result{ID: "c1", Problems: problems(1)}, gate: gate}
	c := New(cat, &fakeAnalyses{}, session.Static("tok"))
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- c.Submit(ctx, "Beginner", "") }()

	// Wait until the first fetch is in flight.
	for {
		cat.mu.Lock()
		n := cat.calls
		cat.mu.Unlock()
		if n == 1 {
			break
		}
	}

	if err := c.Submit(ctx, "Master", ""); !errors.Is(err, ErrBusy) {
		t.Errorf("second Submit err = %v, want ErrBusy", err)
	}
	if !c.View().Loading {
		t.Error("view not loading while fetch in flight")
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if cat.calls != 1 {
		t.Errorf("calls = %d, want 1", cat.calls)
	}
}

func TestClose_DiscardsInFlightResult(t *testing.T) {
	gate := make(chan struct{})
	cat := &fakeCatalogs{result: catalog.Result{ID: "c1", Problems: problems(5)}, gate: gate}
	c := New(cat, &fakeAnalyses{}, session.Static("tok"))

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background(), "Beginner", "") }()
	for {
		cat.mu.Lock()
		n := cat.calls
		cat.mu.Unlock()
		if n == 1 {
			break
		}
	}

	c.Close()
	close(gate)
	if err := <-done; !errors.Is(err, ErrDiscarded) {
		t.Fatalf("err = %v, want ErrDiscarded", err)
	}
	if v := c.View(); v.CatalogID != "" || v.Total != 0 {
		t.Errorf("result applied after Close: %+v", v)
	}
	if err := c.Submit(context.Background(), "Beginner", ""); !errors.Is(err, ErrClosed) {
		t.Errorf("Submit after Close err = %v, want ErrClosed", err)
	}
}

func TestBack_AbandonsPendingAnalysis(t *testing.T) {
	gate := make(chan struct{})
	an := &fakeAnalyses{bundle: analysis.Bundle{Images: []archive.ImageAsset{{Name: "a.png"}}}, gate: gate}
	c := New(&fakeCatalogs{result: catalog.Result{ID: "c1", Problems: problems(1)}}, an, session.Static("tok"))
	ctx := context.Background()
	c.Submit(ctx, "Beginner", "")

	done := make(chan error, 1)
	go func() { done <- c.Analyze(ctx) }()
	for c.State() != StateAnalysisRequested {
	}

	c.Back()
	close(gate)
	if err := <-done; !errors.Is(err, ErrDiscarded) {
		t.Fatalf("err = %v, want ErrDiscarded", err)
	}
	if c.State() != StateCatalogLoaded {
		t.Errorf("state = %v, want catalog_loaded", c.State())
	}
	if _, ok := c.Bundle(); ok {
		t.Error("stale bundle applied")
	}
}

func zipWith(t *testing.T, names ...string) string {
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

// TestEndToEnd runs the whole flow against stub services over HTTP.
func TestEndToEnd(t *testing.T) {
	payload := zipWith(t, "one.png", "two.jpg", "summary.txt", "three.png")
	var analysisPaths []string

	mux := http.NewServeMux()
	mux.HandleFunc("/user/classify/tags", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("token") != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"problems": []map[string]any{{
				"id":       "abc123",
				"problems": problems(12),
			}},
		})
	})
	mux.HandleFunc("/user/analysis/", func(w http.ResponseWriter, r *http.Request) {
		analysisPaths = append(analysisPaths, r.URL.Path)
		fmt.Fprintf(w, `{"status":true,"analysis":{"status":true,"file":%q}}`, payload)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	rc := remote.New(srv.URL)
	c := New(catalog.NewClient(rc, ""), analysis.NewClient(rc, ""), session.Static("tok"))
	ctx := context.Background()

	if err := c.Submit(ctx, "Intermediate", "Array"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	v := c.View()
	if v.PageCount != 2 || len(v.Problems) != 10 {
		t.Fatalf("page count %d, visible %d; want 2 and 10", v.PageCount, len(v.Problems))
	}
	if !c.NextPage() {
		t.Fatal("NextPage did not move")
	}
	if got := c.Page(); len(got) != 2 || got[1].Title != "P12" {
		t.Errorf("page 2 = %+v", got)
	}

	if err := c.Analyze(ctx); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(analysisPaths) != 1 || analysisPaths[0] != "/user/analysis/abc123" {
		t.Errorf("analysis paths = %v", analysisPaths)
	}
	v = c.View()
	if v.State != "analysis_loaded" {
		t.Errorf("state = %q, want analysis_loaded", v.State)
	}
	if len(v.Images) != 3 {
		t.Fatalf("images = %d, want 3", len(v.Images))
	}
	for i, want := range []string{"one.png", "two.jpg", "three.png"} {
		if v.Images[i].Name != want {
			t.Errorf("image %d = %q, want %q", i, v.Images[i].Name, want)
		}
	}
}

func TestMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrNoCorrelationID, "Invalid analysis ID. Please go back and try again."},
		{&remote.FetchError{Kind: remote.KindMissingPayload, Op: "analysis"}, "Failed to fetch analysis data."},
		{&remote.FetchError{Kind: remote.KindDecode, Op: "analysis", Err: &archive.DecodeError{Reason: archive.InvalidBase64}}, "The analysis file could not be read."},
		{errors.New("boom"), "Something went wrong."},
	}
	for _, tc := range cases {
		if got := Message(tc.err); got != tc.want {
			t.Errorf("Message(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestRestore_AllowsAnalyzeWithoutCatalogFetch(t *testing.T) {
	cat := &fakeCatalogs{}
	an := &fakeAnalyses{bundle: analysis.Bundle{Images: []archive.ImageAsset{{Name: "a.png"}}}}
	h := &fakeHistory{}
	c := New(cat, an, session.Static("tok"), WithHistory(h))

	q, _ := catalog.Build("Beginner", "Array")
	if err := c.Restore(q, catalog.Result{ID: "old", Problems: problems(4)}); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if err := c.Analyze(context.Background()); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if cat.calls != 0 {
		t.Errorf("catalog calls = %d, want 0", cat.calls)
	}
	if len(an.ids) != 1 || an.ids[0] != "old" {
		t.Errorf("analysis ids = %v, want [old]", an.ids)
	}
	if h.analyses["old"] != 1 {
		t.Errorf("recorded images = %d, want 1", h.analyses["old"])
	}
}
