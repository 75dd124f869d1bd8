// Package analysis requests analysis bundles for previously fetched catalogs
// and decodes them into images.
package analysis

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/Hansil-Chapadiya/problems-analyzer/internal/archive"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/remote"
)

// DefaultPath is the analysis endpoint prefix; the catalog id is appended.
const DefaultPath = "/user/analysis"

// ErrEmptyID is returned when no correlation id was supplied.
var ErrEmptyID = errors.New("analysis: empty catalog id")

// Bundle is a decoded analysis. It lives only as long as the view showing it.
type Bundle struct {
	Raw    []byte               `json:"-"`
	Images []archive.ImageAsset `json:"images"`
}

type analysisResponse struct {
	remote.Envelope
	Analysis *analysisPayload `json:"analysis"`
}

// analysisPayload shadows Envelope.Status so an absent flag, which the
// service omits on success, is told apart from an explicit false.
type analysisPayload struct {
	remote.Envelope
	Status *remote.Flag `json:"status"`
	File   string       `json:"file"`
}

// Client fetches analyses from the analysis service.
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
	return &Client{remote: rc, path: strings.TrimRight(path, "/"), logger: slog.Default()}
}

// FetchAnalysis requests the analysis for catalog id, then decodes and
// extracts its images. Decode failures are reported as KindDecode with the
// *archive.DecodeError kept as the cause.
func (c *Client) FetchAnalysis(ctx context.Context, id, token string) (Bundle, error) {
	h, err := c.fetch(ctx, id, token)
	if err != nil {
		return Bundle{}, err
	}
	images, err := archive.ExtractImages(h)
	if err != nil {
		return Bundle{}, &remote.FetchError{Kind: remote.KindDecode, Op: "analysis", Err: err}
	}
	c.logger.Debug("analysis decoded", "id", id, "entries", len(h.Entries()), "images", len(images))
	return Bundle{Raw: h.Raw(), Images: images}, nil
}

// FetchArchive requests the analysis for catalog id and returns the raw ZIP
// bytes without extracting anything.
func (c *Client) FetchArchive(ctx context.Context, id, token string) ([]byte, error) {
	h, err := c.fetch(ctx, id, token)
	if err != nil {
		return nil, err
	}
	return h.Raw(), nil
}

func (c *Client) fetch(ctx context.Context, id, token string) (*archive.Handle, error) {
	if token == "" {
		return nil, remote.Unauthenticated("analysis")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrEmptyID
	}

	var resp analysisResponse
	if err := c.remote.GetJSON(ctx, "analysis", c.path+"/"+url.PathEscape(id), nil, token, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, serviceError(resp.Reason())
	}
	a := resp.Analysis
	if a != nil && a.Status != nil && !bool(*a.Status) {
		return nil, serviceError(a.Reason())
	}
	if a == nil || a.File == "" {
		// The analysis object can carry its own failure report.
		if a != nil && a.Reason() != "" {
			return nil, serviceError(a.Reason())
		}
		return nil, &remote.FetchError{Kind: remote.KindMissingPayload, Op: "analysis", Message: "response has no analysis file"}
	}

	h, err := archive.Decode(a.File)
	if err != nil {
		return nil, &remote.FetchError{Kind: remote.KindDecode, Op: "analysis", Err: err}
	}
	return h, nil
}

func serviceError(reason string) error {
	if reason == "" {
		reason = "service reported failure"
	}
	return &remote.FetchError{Kind: remote.KindService, Op: "analysis", Message: reason}
}
