package workflows

import (
	"net/url"
	"strconv"

	"github.com/atelier-run/atelier/pkg/query"
	"github.com/atelier-run/atelier/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "workflows", "w").
	Project("id", "ID").
	Project("account_id", "AccountID").
	Project("project_id", "ProjectID").
	Project("created_by", "CreatedBy").
	Project("name", "Name").
	Project("description", "Description").
	Project("status", "Status").
	Project("master_prompt", "MasterPrompt").
	Project("is_default", "IsDefault").
	Project("image_url", "ImageURL").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for workflow queries.
// Nil fields are ignored. Status, ProjectID, CreatedBy, and IsDefault use
// exact matching. Name uses case-insensitive contains matching.
type Filters struct {
	Status    *string `json:"status,omitempty"`
	Name      *string `json:"name,omitempty"`
	ProjectID *string `json:"project_id,omitempty"`
	CreatedBy *string `json:"created_by,omitempty"`
	IsDefault *bool   `json:"is_default,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Status", f.Status).
		WhereContains("Name", f.Name).
		WhereEquals("ProjectID", f.ProjectID).
		WhereEquals("CreatedBy", f.CreatedBy).
		WhereEquals("IsDefault", f.IsDefault)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}

	if n := values.Get("name"); n != "" {
		f.Name = &n
	}

	if p := values.Get("project_id"); p != "" {
		f.ProjectID = &p
	}

	if c := values.Get("created_by"); c != "" {
		f.CreatedBy = &c
	}

	if d := values.Get("is_default"); d != "" {
		if v, err := strconv.ParseBool(d); err == nil {
			f.IsDefault = &v
		}
	}

	return f
}

func scanWorkflow(s repository.Scanner) (Workflow, error) {
	var w Workflow
	err := s.Scan(
		&w.ID,
		&w.AccountID,
		&w.ProjectID,
		&w.CreatedBy,
		&w.Name,
		&w.Description,
		&w.Status,
		&w.MasterPrompt,
		&w.IsDefault,
		&w.ImageURL,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	return w, err
}
