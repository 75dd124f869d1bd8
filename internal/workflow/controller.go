// Package workflow drives the discovery flow: criteria in, catalog out,
// paging through it, and requesting an analysis of the loaded catalog.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/Hansil-Chapadiya/problems-analyzer/internal/analysis"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/archive"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/catalog"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/paging"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/session"
)

var (
	ErrBusy            = errors.New("workflow: a request is already in flight")
	ErrNoCorrelationID = errors.New("workflow: no catalog id to analyze")
	ErrInvalidState    = errors.New("workflow: operation not allowed in current state")
	ErrClosed          = errors.New("workflow: controller closed")
	// ErrDiscarded is returned by a fetch whose result arrived after the
	// controller moved on (Back, Close) and was therefore not applied.
	ErrDiscarded = errors.New("workflow: result discarded")
)

type State int

const (
	StateIdle State = iota
	StateQuerying
	StateCatalogLoaded
	StateAnalysisRequested
	StateAnalysisLoaded
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateQuerying:
		return "querying"
	case StateCatalogLoaded:
		return "catalog_loaded"
	case StateAnalysisRequested:
		return "analysis_requested"
	case StateAnalysisLoaded:
		return "analysis_loaded"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// CatalogFetcher is satisfied by *catalog.Client.
type CatalogFetcher interface {
	FetchCatalog(ctx context.Context, q catalog.Query, token string) (catalog.Result, error)
}

// AnalysisFetcher is satisfied by *analysis.Client.
type AnalysisFetcher interface {
	FetchAnalysis(ctx context.Context, id, token string) (analysis.Bundle, error)
}

// History records completed fetches; *storage.Store implements it.
// Failures are logged, never surfaced.
type History interface {
	RecordCatalog(q catalog.Query, r catalog.Result) error
	RecordAnalysis(catalogID string, images int) error
}

// Option configures a Controller.
type Option func(*Controller)

func WithHistory(h History) Option {
	return func(c *Controller) { c.history = h }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithPageSize(n int) Option {
	return func(c *Controller) { c.pager = paging.New(n) }
}

// Controller owns the state of one discovery session. It is safe for
// concurrent use; the lock is never held across network calls.
type Controller struct {
	id       string
	catalogs CatalogFetcher
	analyses AnalysisFetcher
	session  session.Provider
	history  History
	logger   *slog.Logger

	mu     sync.Mutex
	state  State
	busy   bool
	closed bool
	gen    uint64

	query    catalog.Query // last submitted, reused by Refresh
	hasQuery bool
	result   catalog.Result
	loaded   bool // result holds a fetched catalog
	pager    paging.State
	bundle   *analysis.Bundle
	err      error
}

// New creates an idle Controller.
func New(catalogs CatalogFetcher, analyses AnalysisFetcher, sp session.Provider, opts ...Option) *Controller {
	c := &Controller{
		id:       uuid.NewString(),
		catalogs: catalogs,
		analyses: analyses,
		session:  sp,
		logger:   slog.Default(),
		pager:    paging.New(paging.DefaultPageSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID identifies this controller in logs.
func (c *Controller) ID() string { return c.id }

// setState must be called with mu held.
func (c *Controller) setState(to State) {
	if c.state != to {
		c.logger.Debug("workflow transition", "workflow_id", c.id, "from", c.state, "to", to)
	}
	c.state = to
}

func (c *Controller) token(ctx context.Context) string {
	return session.TokenFrom(ctx, c.session)
}

// Submit validates the criteria and fetches a new catalog. Validation errors
// are returned without touching the state or sending anything.
func (c *Controller) Submit(ctx context.Context, skill, rawTags string) error {
	q, err := catalog.Build(skill, rawTags)
	if err != nil {
		return err
	}
	return c.runQuery(ctx, q, false)
}

// Refresh re-runs the last submitted query and returns to page 1.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.runQuery(ctx, catalog.Query{}, true)
}

func (c *Controller) runQuery(ctx context.Context, q catalog.Query, refresh bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	if refresh {
		switch c.state {
		case StateCatalogLoaded, StateAnalysisLoaded, StateError:
		default:
			c.mu.Unlock()
			return ErrInvalidState
		}
		if !c.hasQuery {
			c.mu.Unlock()
			return ErrInvalidState
		}
		q = c.query
	}
	c.query, c.hasQuery = q, true
	c.busy = true
	c.gen++
	gen := c.gen
	c.setState(StateQuerying)
	c.mu.Unlock()

	res, err := c.catalogs.FetchCatalog(ctx, q, c.token(ctx))

	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		c.logger.Debug("catalog result discarded", "workflow_id", c.id)
		return ErrDiscarded
	}
	c.busy = false
	if err != nil {
		// The previous catalog no longer matches c.query.
		c.result = catalog.Result{}
		c.loaded = false
		c.bundle = nil
		c.pager.Reset()
		c.err = err
		c.setState(StateError)
		c.mu.Unlock()
		c.logger.Warn("catalog fetch failed", "workflow_id", c.id, "error", err)
		return err
	}
	c.result = res
	c.loaded = true
	c.bundle = nil
	c.err = nil
	c.pager.Reset()
	c.setState(StateCatalogLoaded)
	c.mu.Unlock()

	if c.history != nil && res.ID != "" {
		if herr := c.history.RecordCatalog(q, res); herr != nil {
			c.logger.Warn("recording catalog", "workflow_id", c.id, "error", herr)
		}
	}
	return nil
}

// Restore loads a previously fetched catalog without contacting the
// catalog service, as if Submit had just returned it.
func (c *Controller) Restore(q catalog.Query, r catalog.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.busy {
		return ErrBusy
	}
	c.query, c.hasQuery = q, true
	c.result = r
	c.loaded = true
	c.bundle = nil
	c.err = nil
	c.pager.Reset()
	c.setState(StateCatalogLoaded)
	return nil
}

// Analyze requests the analysis of the loaded catalog.
func (c *Controller) Analyze(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.state != StateCatalogLoaded && c.state != StateAnalysisLoaded {
		c.mu.Unlock()
		return ErrInvalidState
	}
	id := c.result.ID
	if id == "" {
		c.mu.Unlock()
		return ErrNoCorrelationID
	}
	c.busy = true
	c.gen++
	gen := c.gen
	c.bundle = nil
	c.setState(StateAnalysisRequested)
	c.mu.Unlock()

	b, err := c.analyses.FetchAnalysis(ctx, id, c.token(ctx))

	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		c.logger.Debug("analysis result discarded", "workflow_id", c.id, "catalog_id", id)
		return ErrDiscarded
	}
	c.busy = false
	if err != nil {
		c.err = err
		c.setState(StateError)
		c.mu.Unlock()
		c.logger.Warn("analysis fetch failed", "workflow_id", c.id, "catalog_id", id, "error", err)
		return err
	}
	c.bundle = &b
	c.err = nil
	c.setState(StateAnalysisLoaded)
	c.mu.Unlock()

	if c.history != nil {
		if herr := c.history.RecordAnalysis(id, len(b.Images)); herr != nil {
			c.logger.Warn("recording analysis", "workflow_id", c.id, "error", herr)
		}
	}
	return nil
}

// Back leaves the analysis or error view. A pending analysis is abandoned and
// its result will be discarded.
func (c *Controller) Back() {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateError, StateAnalysisLoaded, StateAnalysisRequested:
	default:
		return
	}
	if c.state == StateAnalysisRequested {
		c.gen++
		c.busy = false
	}
	c.bundle = nil
	c.err = nil
	if c.loaded {
		c.setState(StateCatalogLoaded)
	} else {
		c.setState(StateIdle)
	}
}

// NextPage advances the catalog view one page.
func (c *Controller) NextPage() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return false
	}
	return c.pager.Next(len(c.result.Problems))
}

// PreviousPage moves the catalog view back one page.
func (c *Controller) PreviousPage() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return false
	}
	return c.pager.Previous()
}

// GotoPage jumps to page p, clamped to the valid range.
func (c *Controller) GotoPage(p int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pager.Goto(p, len(c.result.Problems))
}

// Page returns the problems visible on the current page.
func (c *Controller) Page() []catalog.Problem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(paging.Slice(c.pager, c.result.Problems))
}

// Close marks the controller dead. Fetches still in flight are discarded
// when they return.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.gen++
	c.busy = false
}

// View is an immutable snapshot of a Controller.
type View struct {
	WorkflowID string               `json:"workflow_id" yaml:"workflow_id"`
	State      string               `json:"state" yaml:"state"`
	Loading    bool                 `json:"loading" yaml:"loading"`
	Skill      string               `json:"skill,omitempty" yaml:"skill,omitempty"`
	Tags       []string             `json:"tags,omitempty" yaml:"tags,omitempty"`
	CatalogID  string               `json:"catalog_id,omitempty" yaml:"catalog_id,omitempty"`
	Page       int                  `json:"page" yaml:"page"`
	PageCount  int                  `json:"page_count" yaml:"page_count"`
	Total      int                  `json:"total" yaml:"total"`
	Problems   []catalog.Problem    `json:"problems" yaml:"problems"`
	Images     []archive.ImageAsset `json:"images,omitempty" yaml:"images,omitempty"`
	Error      string               `json:"error,omitempty" yaml:"error,omitempty"`
}

// View returns a snapshot of the current state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.result.Problems)
	v := View{
		WorkflowID: c.id,
		State:      c.state.String(),
		Loading:    c.busy,
		CatalogID:  c.result.ID,
		Page:       max(1, min(c.pager.Page, c.pager.PageCount(n))),
		PageCount:  c.pager.PageCount(n),
		Total:      n,
		Problems:   slices.Clone(paging.Slice(c.pager, c.result.Problems)),
	}
	if v.Problems == nil {
		v.Problems = []catalog.Problem{}
	}
	if c.hasQuery {
		v.Skill = string(c.query.Skill)
		v.Tags = c.query.Tags.Slice()
	}
	if c.bundle != nil {
		v.Images = slices.Clone(c.bundle.Images)
	}
	if c.err != nil {
		v.Error = Message(c.err)
	}
	return v
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error that put the controller in StateError, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Result returns the loaded catalog.
func (c *Controller) Result() catalog.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return catalog.Result{ID: c.result.ID, Problems: slices.Clone(c.result.Problems)}
}

// Bundle returns the loaded analysis, if any.
func (c *Controller) Bundle() (analysis.Bundle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bundle == nil {
		return analysis.Bundle{}, false
	}
	return *c.bundle, true
}
