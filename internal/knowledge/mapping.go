package knowledge

import (
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/atelier-run/atelier/pkg/query"
	"github.com/atelier-run/atelier/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "knowledge_entries", "k").
	Project("id", "ID").
	Project("account_id", "AccountID").
	Project("thread_id", "ThreadID").
	Project("name", "Name").
	Project("description", "Description").
	Project("content", "Content").
	Project("usage_context", "Usage").
	Project("active", "Active").
	Project("token_estimate", "TokenEstimate").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for knowledge entry queries.
type Filters struct {
	AccountID *string `json:"account_id,omitempty"`
	ThreadID  *string `json:"thread_id,omitempty"`
	Usage     *string `json:"usage_context,omitempty"`
	Active    *bool   `json:"active,omitempty"`
	Name      *string `json:"name,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("AccountID", f.AccountID).
		WhereEquals("ThreadID", f.ThreadID).
		WhereEquals("Usage", f.Usage).
		WhereEquals("Active", f.Active).
		WhereContains("Name", f.Name)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if a := values.Get("account_id"); a != "" {
		f.AccountID = &a
	}

	if t := values.Get("thread_id"); t != "" {
		if _, err := uuid.Parse(t); err == nil {
			f.ThreadID = &t
		}
	}

	if u := values.Get("usage_context"); u != "" {
		f.Usage = &u
	}

	if a := values.Get("active"); a != "" {
		if v, err := strconv.ParseBool(a); err == nil {
			f.Active = &v
		}
	}

	if n := values.Get("name"); n != "" {
		f.Name = &n
	}

	return f
}

func scanEntry(s repository.Scanner) (Entry, error) {
	var e Entry
	err := s.Scan(
		&e.ID,
		&e.AccountID,
		&e.ThreadID,
		&e.Name,
		&e.Description,
		&e.Content,
		&e.Usage,
		&e.Active,
		&e.TokenEstimate,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	return e, err
}
