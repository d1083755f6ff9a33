package workflows_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/atelier-run/atelier/internal/workflows"
	"github.com/atelier-run/atelier/pkg/pagination"
)

type fakeSystem struct {
	flows map[uuid.UUID]workflows.Workflow
	names map[uuid.UUID][]string
}

func newFakeSystem(flows ...workflows.Workflow) *fakeSystem {
	f := &fakeSystem{
		flows: make(map[uuid.UUID]workflows.Workflow),
		names: make(map[uuid.UUID][]string),
	}
	for _, w := range flows {
		f.flows[w.ID] = w
		f.names[w.ProjectID] = append(f.names[w.ProjectID], w.Name)
	}
	return f
}

func (f *fakeSystem) Handler(*workflows.Copier) *workflows.Handler { return nil }

func (f *fakeSystem) List(context.Context, pagination.PageRequest, workflows.Filters) (*pagination.PageResult[workflows.Workflow], error) {
	return nil, errors.New("not implemented")
}

func (f *fakeSystem) Find(_ context.Context, id uuid.UUID) (*workflows.Workflow, error) {
	w, ok := f.flows[id]
	if !ok {
		return nil, workflows.ErrNotFound
	}
	return &w, nil
}

func (f *fakeSystem) FindOwned(ctx context.Context, id uuid.UUID, callerID string) (*workflows.Workflow, error) {
	w, err := f.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !w.IsDefault && w.CreatedBy != callerID {
		return nil, workflows.ErrAccessDenied
	}
	return w, nil
}

func (f *fakeSystem) Authorize(ctx context.Context, id uuid.UUID, callerID string) error {
	_, err := f.FindOwned(ctx, id, callerID)
	return err
}

func (f *fakeSystem) FindDispatchable(ctx context.Context, id uuid.UUID, callerID string) (*workflows.Workflow, error) {
	w, err := f.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.CreatedBy != callerID {
		return nil, workflows.ErrAccessDenied
	}
	if w.IsDefault || !w.Status.Dispatchable() {
		return nil, workflows.ErrNotDispatchable
	}
	return w, nil
}

func (f *fakeSystem) Create(_ context.Context, cmd workflows.CreateCommand) (*workflows.Workflow, error) {
	w := workflows.Workflow{
		ID:           uuid.New(),
		AccountID:    cmd.AccountID,
		ProjectID:    cmd.ProjectID,
		CreatedBy:    cmd.CreatedBy,
		Name:         cmd.Name,
		Description:  cmd.Description,
		Status:       workflows.StatusDraft,
		MasterPrompt: cmd.MasterPrompt,
		IsDefault:    cmd.IsDefault,
		ImageURL:     cmd.ImageURL,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	f.flows[w.ID] = w
	f.names[w.ProjectID] = append(f.names[w.ProjectID], w.Name)
	return &w, nil
}

func (f *fakeSystem) Update(context.Context, uuid.UUID, string, workflows.UpdateCommand) (*workflows.Workflow, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeSystem) Delete(_ context.Context, id uuid.UUID, callerID string) error {
	w, ok := f.flows[id]
	if !ok {
		return workflows.ErrNotFound
	}
	if w.CreatedBy != callerID {
		return workflows.ErrAccessDenied
	}
	delete(f.flows, id)
	return nil
}

func (f *fakeSystem) SetDefault(context.Context, uuid.UUID, bool) (*workflows.Workflow, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeSystem) UniqueName(_ context.Context, projectID uuid.UUID, base string) (string, error) {
	return workflows.NextAvailableName(base, f.names[projectID]), nil
}

type fakePropagator struct {
	copied  int
	err     error
	sources []uuid.UUID
	targets []uuid.UUID
}

func (f *fakePropagator) CopyAll(_ context.Context, sourceID, targetID uuid.UUID) (int, error) {
	f.sources = append(f.sources, sourceID)
	f.targets = append(f.targets, targetID)
	return f.copied, f.err
}

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestCopierCopy(t *testing.T) {
	project := uuid.New()
	desc := "standing research template"

	source := workflows.Workflow{
		ID:           uuid.New(),
		AccountID:    "acct-1",
		ProjectID:    uuid.New(),
		CreatedBy:    "system",
		Name:         "Research",
		Description:  &desc,
		Status:       workflows.StatusActive,
		MasterPrompt: "Investigate the topic thoroughly.",
		IsDefault:    true,
	}

	t.Run("copies default template into target project", func(t *testing.T) {
		sys := newFakeSystem(source)
		files := &fakePropagator{copied: 3}
		creds := &fakePropagator{copied: 2}
		copier := workflows.NewCopier(sys, files, creds, discard())

		copied, err := copier.Copy(context.Background(), workflows.CopyCommand{
			SourceID:  source.ID,
			AccountID: "acct-2",
			ProjectID: project,
			CreatedBy: "user-1",
		})
		if err != nil {
			t.Fatalf("Copy() error = %v", err)
		}

		if copied.ID == source.ID {
			t.Error("copy shares source ID")
		}
		if copied.IsDefault {
			t.Error("copy retained default flag")
		}
		if copied.Status != workflows.StatusDraft {
			t.Errorf("copy status = %q, want draft", copied.Status)
		}
		if copied.CreatedBy != "user-1" {
			t.Errorf("copy created_by = %q, want user-1", copied.CreatedBy)
		}
		if copied.MasterPrompt != source.MasterPrompt {
			t.Errorf("copy master_prompt = %q, want source prompt", copied.MasterPrompt)
		}
		if len(files.targets) != 1 || files.targets[0] != copied.ID {
			t.Errorf("file propagation target = %v, want copy ID", files.targets)
		}
		if len(creds.targets) != 1 || creds.targets[0] != copied.ID {
			t.Errorf("credential propagation target = %v, want copy ID", creds.targets)
		}
	})

	t.Run("copy is independent of source", func(t *testing.T) {
		sys := newFakeSystem(source)
		copier := workflows.NewCopier(sys, &fakePropagator{}, &fakePropagator{}, discard())

		copied, err := copier.Copy(context.Background(), workflows.CopyCommand{
			SourceID:  source.ID,
			AccountID: "acct-2",
			ProjectID: project,
			CreatedBy: "user-1",
		})
		if err != nil {
			t.Fatalf("Copy() error = %v", err)
		}

		stored := sys.flows[copied.ID]
		stored.Name = "Mutated"
		stored.MasterPrompt = "changed"
		sys.flows[copied.ID] = stored

		original := sys.flows[source.ID]
		if original.Name != "Research" || original.MasterPrompt != source.MasterPrompt {
			t.Errorf("source mutated by copy edit: %+v", original)
		}
	})

	t.Run("name collisions get numeric suffix", func(t *testing.T) {
		sys := newFakeSystem(source)
		copier := workflows.NewCopier(sys, &fakePropagator{}, &fakePropagator{}, discard())

		cmd := workflows.CopyCommand{
			SourceID:  source.ID,
			AccountID: "acct-2",
			ProjectID: project,
			CreatedBy: "user-1",
		}

		first, err := copier.Copy(context.Background(), cmd)
		if err != nil {
			t.Fatalf("first Copy() error = %v", err)
		}
		second, err := copier.Copy(context.Background(), cmd)
		if err != nil {
			t.Fatalf("second Copy() error = %v", err)
		}

		if first.Name != "Research" {
			t.Errorf("first copy name = %q, want Research", first.Name)
		}
		if second.Name != "Research 2" {
			t.Errorf("second copy name = %q, want Research 2", second.Name)
		}
	})

	t.Run("non-default owned source gets Copy suffix", func(t *testing.T) {
		owned := source
		owned.ID = uuid.New()
		owned.IsDefault = false
		owned.CreatedBy = "user-1"

		sys := newFakeSystem(owned)
		copier := workflows.NewCopier(sys, &fakePropagator{}, &fakePropagator{}, discard())

		copied, err := copier.Copy(context.Background(), workflows.CopyCommand{
			SourceID:  owned.ID,
			AccountID: "acct-1",
			ProjectID: owned.ProjectID,
			CreatedBy: "user-1",
		})
		if err != nil {
			t.Fatalf("Copy() error = %v", err)
		}

		if copied.Name != "Research (Copy)" {
			t.Errorf("copy name = %q, want Research (Copy)", copied.Name)
		}
	})

	t.Run("denied for non-default workflow owned by someone else", func(t *testing.T) {
		other := source
		other.ID = uuid.New()
		other.IsDefault = false
		other.CreatedBy = "user-2"

		sys := newFakeSystem(other)
		copier := workflows.NewCopier(sys, &fakePropagator{}, &fakePropagator{}, discard())

		_, err := copier.Copy(context.Background(), workflows.CopyCommand{
			SourceID:  other.ID,
			AccountID: "acct-1",
			ProjectID: project,
			CreatedBy: "user-1",
		})
		if !errors.Is(err, workflows.ErrAccessDenied) {
			t.Errorf("Copy() error = %v, want ErrAccessDenied", err)
		}
	})

	t.Run("file propagation failure does not fail the copy", func(t *testing.T) {
		sys := newFakeSystem(source)
		files := &fakePropagator{copied: 1, err: errors.New("blob fetch failed")}
		copier := workflows.NewCopier(sys, files, &fakePropagator{}, discard())

		copied, err := copier.Copy(context.Background(), workflows.CopyCommand{
			SourceID:  source.ID,
			AccountID: "acct-2",
			ProjectID: project,
			CreatedBy: "user-1",
		})
		if err != nil {
			t.Fatalf("Copy() error = %v", err)
		}
		if copied == nil {
			t.Fatal("Copy() returned nil workflow")
		}
	})

	t.Run("credential propagation failure fails the copy", func(t *testing.T) {
		sys := newFakeSystem(source)
		creds := &fakePropagator{err: errors.New("encrypt failed")}
		copier := workflows.NewCopier(sys, &fakePropagator{}, creds, discard())

		_, err := copier.Copy(context.Background(), workflows.CopyCommand{
			SourceID:  source.ID,
			AccountID: "acct-2",
			ProjectID: project,
			CreatedBy: "user-1",
		})
		if err == nil {
			t.Fatal("Copy() error = nil, want credential propagation error")
		}

		// The half-built copy is removed; only the source remains.
		if len(sys.flows) != 1 {
			t.Errorf("workflows after failed copy = %d, want the source only", len(sys.flows))
		}
		if _, ok := sys.flows[source.ID]; !ok {
			t.Error("source workflow missing after failed copy")
		}
	})
}
