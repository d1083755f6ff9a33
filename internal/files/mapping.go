package files

import (
	"net/url"

	"github.com/atelier-run/atelier/pkg/query"
	"github.com/atelier-run/atelier/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "workflow_files", "f").
	Project("id", "ID").
	Project("workflow_id", "WorkflowID").
	Project("filename", "Filename").
	Project("content_type", "ContentType").
	Project("size_bytes", "SizeBytes").
	Project("page_count", "PageCount").
	Project("storage_key", "StorageKey").
	Project("created_by", "CreatedBy").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for file queries. Nil fields
// are ignored. ContentType uses exact matching, Filename uses
// case-insensitive contains matching.
type Filters struct {
	Filename    *string `json:"filename,omitempty"`
	ContentType *string `json:"content_type,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereContains("Filename", f.Filename).
		WhereEquals("ContentType", f.ContentType)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if fn := values.Get("filename"); fn != "" {
		f.Filename = &fn
	}

	if ct := values.Get("content_type"); ct != "" {
		f.ContentType = &ct
	}

	return f
}

func scanFile(s repository.Scanner) (WorkflowFile, error) {
	var f WorkflowFile
	err := s.Scan(
		&f.ID,
		&f.WorkflowID,
		&f.Filename,
		&f.ContentType,
		&f.SizeBytes,
		&f.PageCount,
		&f.StorageKey,
		&f.CreatedBy,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	return f, err
}
