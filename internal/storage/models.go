package storage

import (
	"errors"
	"time"

	"github.com/Hansil-Chapadiya/problems-analyzer/internal/catalog"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

type CatalogRecord struct {
	ID           string            `json:"id" yaml:"id"`
	Skill        string            `json:"skill" yaml:"skill"`
	Tags         []string          `json:"tags" yaml:"tags"`
	Problems     []catalog.Problem `json:"problems,omitempty" yaml:"problems,omitempty"`
	ProblemCount int               `json:"problem_count" yaml:"problem_count"`
	Analyses     int               `json:"analyses" yaml:"analyses"`
	FetchedAt    time.Time         `json:"fetched_at" yaml:"fetched_at"`
}

// Result converts the record back into a catalog result.
func (r CatalogRecord) Result() catalog.Result {
	return catalog.Result{ID: r.ID, Problems: r.Problems}
}

type AnalysisRecord struct {
	ID          int64
	CatalogID   string
	Images      int
	RequestedAt time.Time
}
