package credentials

import (
	"net/url"

	"github.com/atelier-run/atelier/pkg/query"
	"github.com/atelier-run/atelier/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "workflow_credentials", "c").
	Project("id", "ID").
	Project("workflow_id", "WorkflowID").
	Project("service", "Service").
	Project("username", "Username").
	Project("encrypted_secret", "Encrypted").
	Project("created_by", "CreatedBy").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "Service",
	Descending: false,
}

// Filters contains optional filtering criteria for credential queries.
type Filters struct {
	Service  *string `json:"service,omitempty"`
	Username *string `json:"username,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Service", f.Service).
		WhereContains("Username", f.Username)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("service"); s != "" {
		f.Service = &s
	}

	if u := values.Get("username"); u != "" {
		f.Username = &u
	}

	return f
}

func scanCredential(s repository.Scanner) (Credential, error) {
	var c Credential
	err := s.Scan(
		&c.ID,
		&c.WorkflowID,
		&c.Service,
		&c.Username,
		&c.Encrypted,
		&c.CreatedBy,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}
