package catalog

import (
	"context"
	"log/slog"

	"github.com/Hansil-Chapadiya/problems-analyzer/internal/remote"
)

// DefaultPath is the catalog endpoint relative to the service base URL.
const DefaultPath = "/user/classify/tags"

// Problem is one catalog entry, passed through as the service sends it.
type Problem struct {
	Title      string   `json:"title" yaml:"title"`
	DetailsURL string   `json:"details_url" yaml:"details_url"`
	Difficulty string   `json:"difficulty" yaml:"difficulty"`
	Tags       []string `json:"tags" yaml:"tags"`
}

// Result is a fetched catalog. ID correlates the catalog with later analysis
// requests and is empty when the service returned no catalog.
type Result struct {
	ID       string    `json:"id" yaml:"id"`
	Problems []Problem `json:"problems" yaml:"problems"`
}

type catalogResponse struct {
	remote.Envelope
	Problems []struct {
		ID       string    `json:"id"`
		Problems []Problem `json:"problems"`
	} `json:"problems"`
}

// Client fetches catalogs from the catalog service.
type Client struct {
	remote *remote.Client
	path   string
	logger *slog.Logger
}

// NewClient wraps rc. An empty path selects DefaultPath.
func NewClient(rc *remote.Client, path string) *Client {
	if path == "" {
		path = DefaultPath
	}
	return &Client{remote: rc, path: path, logger: slog.Default()}
}

// FetchCatalog requests the catalog matching q. Each call issues exactly one
// request; an empty token fails before anything is sent. A successful
// response may hold zero problems.
func (c *Client) FetchCatalog(ctx context.Context, q Query, token string) (Result, error) {
	var resp catalogResponse
	if err := c.remote.GetJSON(ctx, "catalog", c.path, q.Values(), token, &resp); err != nil {
		return Result{}, err
	}
	if !resp.Status {
		msg := resp.Reason()
		if msg == "" {
			msg = "service reported failure"
		}
		return Result{}, &remote.FetchError{Kind: remote.KindService, Op: "catalog", Message: msg}
	}

	// Only the first catalog is used; the service never sends more than one.
	if len(resp.Problems) == 0 {
		c.logger.Debug("catalog empty", "skill", q.Skill, "tags", q.Tags.String())
		return Result{}, nil
	}
	first := resp.Problems[0]
	c.logger.Debug("catalog fetched", "id", first.ID, "problems", len(first.Problems))
	return Result{ID: first.ID, Problems: first.Problems}, nil
}
