package workflows_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/atelier-run/atelier/internal/workflows"
)

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", workflows.ErrNotFound, http.StatusNotFound},
		{"duplicate", workflows.ErrDuplicate, http.StatusConflict},
		{"access denied", workflows.ErrAccessDenied, http.StatusForbidden},
		{"not dispatchable", workflows.ErrNotDispatchable, http.StatusUnprocessableEntity},
		{"default immutable", workflows.ErrDefaultImmutable, http.StatusUnprocessableEntity},
		{"invalid status", workflows.ErrInvalidStatus, http.StatusBadRequest},
		{"missing name", workflows.ErrMissingName, http.StatusBadRequest},
		{"missing prompt", workflows.ErrMissingPrompt, http.StatusBadRequest},
		{"unknown error", errors.New("something else"), http.StatusInternalServerError},
		{"wrapped not found", fmt.Errorf("find failed: %w", workflows.ErrNotFound), http.StatusNotFound},
		{"wrapped access denied", fmt.Errorf("authorize: %w", workflows.ErrAccessDenied), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := workflows.MapHTTPStatus(tt.err)
			if got != tt.want {
				t.Errorf("MapHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestStatusValid(t *testing.T) {
	valid := []workflows.Status{
		workflows.StatusDraft,
		workflows.StatusActive,
		workflows.StatusPaused,
		workflows.StatusDisabled,
		workflows.StatusArchived,
	}

	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("Status(%q).Valid() = false, want true", s)
		}
	}

	for _, s := range []workflows.Status{"", "running", "DRAFT"} {
		if s.Valid() {
			t.Errorf("Status(%q).Valid() = true, want false", s)
		}
	}
}

func TestStatusDispatchable(t *testing.T) {
	tests := []struct {
		status workflows.Status
		want   bool
	}{
		{workflows.StatusDraft, true},
		{workflows.StatusActive, true},
		{workflows.StatusPaused, true},
		{workflows.StatusDisabled, false},
		{workflows.StatusArchived, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Dispatchable(); got != tt.want {
				t.Errorf("Status(%q).Dispatchable() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestNextAvailableName(t *testing.T) {
	tests := []struct {
		name  string
		base  string
		taken []string
		want  string
	}{
		{"unused base", "Research", nil, "Research"},
		{"base taken", "Research", []string{"Research"}, "Research 2"},
		{"base and first variant taken", "Research", []string{"Research", "Research 2"}, "Research 3"},
		{"gap in variants", "Research", []string{"Research", "Research 3"}, "Research 2"},
		{"unrelated names ignored", "Research", []string{"Analysis", "Research Notes"}, "Research"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := workflows.NextAvailableName(tt.base, tt.taken)
			if got != tt.want {
				t.Errorf("NextAvailableName(%q, %v) = %q, want %q", tt.base, tt.taken, got, tt.want)
			}
		})
	}

	t.Run("exhausted variants fall back to random suffix", func(t *testing.T) {
		taken := []string{"Research"}
		for n := 2; n <= 50; n++ {
			taken = append(taken, fmt.Sprintf("Research %d", n))
		}

		got := workflows.NextAvailableName("Research", taken)
		for _, name := range taken {
			if got == name {
				t.Fatalf("NextAvailableName returned taken name %q", got)
			}
		}
		if len(got) <= len("Research ") {
			t.Errorf("fallback name %q has no suffix", got)
		}
	})
}

func TestFiltersFromQuery(t *testing.T) {
	t.Run("all params present", func(t *testing.T) {
		values := url.Values{
			"status":     {"active"},
			"name":       {"research"},
			"project_id": {"7f6c7a2e-9f3a-4f0e-8c1d-2b9f6f1a5c3d"},
			"created_by": {"user-1"},
			"is_default": {"true"},
		}

		f := workflows.FiltersFromQuery(values)

		if f.Status == nil || *f.Status != "active" {
			t.Errorf("Status = %v, want active", f.Status)
		}
		if f.Name == nil || *f.Name != "research" {
			t.Errorf("Name = %v, want research", f.Name)
		}
		if f.ProjectID == nil || *f.ProjectID != "7f6c7a2e-9f3a-4f0e-8c1d-2b9f6f1a5c3d" {
			t.Errorf("ProjectID = %v, want uuid", f.ProjectID)
		}
		if f.CreatedBy == nil || *f.CreatedBy != "user-1" {
			t.Errorf("CreatedBy = %v, want user-1", f.CreatedBy)
		}
		if f.IsDefault == nil || !*f.IsDefault {
			t.Errorf("IsDefault = %v, want true", f.IsDefault)
		}
	})

	t.Run("empty params yield nil fields", func(t *testing.T) {
		f := workflows.FiltersFromQuery(url.Values{})

		if f.Status != nil || f.Name != nil || f.ProjectID != nil || f.CreatedBy != nil || f.IsDefault != nil {
			t.Errorf("expected all nil fields, got %+v", f)
		}
	})

	t.Run("invalid is_default ignored", func(t *testing.T) {
		f := workflows.FiltersFromQuery(url.Values{"is_default": {"maybe"}})

		if f.IsDefault != nil {
			t.Errorf("IsDefault = %v, want nil for invalid input", f.IsDefault)
		}
	})
}
