package sandbox_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/atelier-run/atelier/internal/assembly"
	"github.com/atelier-run/atelier/internal/config"
	"github.com/atelier-run/atelier/internal/credentials"
	"github.com/atelier-run/atelier/internal/sandbox"
)

type transferRecord struct {
	path string
	data string
}

type fakeCollaborator struct {
	mu        sync.Mutex
	creates   int
	createGap time.Duration
	transfers []transferRecord
	failPaths map[string]error
	runErr    error
	prompts   []string
}

func (f *fakeCollaborator) EnsureEnvironment(_ context.Context, ownerID string) (*sandbox.Environment, error) {
	if f.createGap > 0 {
		time.Sleep(f.createGap)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	return &sandbox.Environment{ID: "env-" + ownerID, OwnerID: ownerID}, nil
}

func (f *fakeCollaborator) TransferFile(_ context.Context, _ *sandbox.Environment, relPath string, r io.Reader) error {
	if err, ok := f.failPaths[relPath]; ok {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.transfers = append(f.transfers, transferRecord{path: relPath, data: string(data)})
	return nil
}

func (f *fakeCollaborator) StartRun(_ context.Context, _ *sandbox.Environment, prompt string) (*sandbox.RunHandle, error) {
	if f.runErr != nil {
		return nil, f.runErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return &sandbox.RunHandle{ThreadID: "thread-1", RunID: "run-1"}, nil
}

func testSandboxConfig(t *testing.T) config.SandboxConfig {
	t.Helper()

	cfg := config.SandboxConfig{BaseURL: "http://sandbox.local"}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	return cfg
}

func testContext(owner string, files ...assembly.TransferFile) *assembly.ExecutionContext {
	return &assembly.ExecutionContext{
		WorkflowID: uuid.New(),
		RunID:      uuid.New(),
		OwnerID:    owner,
		Prompt:     "Step 1",
		Files:      files,
	}
}

func newDispatcher(t *testing.T, collab sandbox.Collaborator) *sandbox.Dispatcher {
	t.Helper()
	return sandbox.NewDispatcher(collab, testSandboxConfig(t), slog.New(slog.DiscardHandler))
}

func TestDispatch(t *testing.T) {
	t.Run("transfers files in assembled order under workspace", func(t *testing.T) {
		collab := &fakeCollaborator{}
		d := newDispatcher(t, collab)

		ec := testContext("user-1",
			assembly.TransferFile{Name: "a.txt", Data: []byte("alpha")},
			assembly.TransferFile{Name: "b.csv", Data: []byte("x,y")},
		)

		handle, err := d.Dispatch(context.Background(), ec)
		if err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
		if handle.ThreadID != "thread-1" || handle.RunID != "run-1" {
			t.Errorf("handle = %+v, want thread-1/run-1", handle)
		}

		if len(collab.transfers) != 2 {
			t.Fatalf("transfers = %d, want 2", len(collab.transfers))
		}
		if collab.transfers[0].path != "workspace/a.txt" || collab.transfers[1].path != "workspace/b.csv" {
			t.Errorf("transfer order = %q, %q; want workspace/a.txt then workspace/b.csv",
				collab.transfers[0].path, collab.transfers[1].path)
		}
		if collab.transfers[0].data != "alpha" {
			t.Errorf("transfer data = %q, want alpha", collab.transfers[0].data)
		}
	})

	t.Run("file names cannot escape the workspace", func(t *testing.T) {
		collab := &fakeCollaborator{}
		d := newDispatcher(t, collab)

		ec := testContext("user-1",
			assembly.TransferFile{Name: "../../etc/passwd", Data: []byte("root")},
			assembly.TransferFile{Name: "..", Data: []byte("dots")},
			assembly.TransferFile{Name: "", Data: []byte("anon")},
			assembly.TransferFile{Name: "notes.txt", Data: []byte("ok")},
		)

		if _, err := d.Dispatch(context.Background(), ec); err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}

		if len(collab.transfers) != 2 {
			t.Fatalf("transfers = %d, want 2", len(collab.transfers))
		}
		if collab.transfers[0].path != "workspace/passwd" {
			t.Errorf("traversal name staged at %q, want workspace/passwd", collab.transfers[0].path)
		}
		if collab.transfers[1].path != "workspace/notes.txt" {
			t.Errorf("transfer path = %q, want workspace/notes.txt", collab.transfers[1].path)
		}
		for _, tr := range collab.transfers {
			if !strings.HasPrefix(tr.path, "workspace/") {
				t.Errorf("transfer path %q escapes the workspace", tr.path)
			}
		}
	})

	t.Run("concurrent dispatches for one owner create one environment", func(t *testing.T) {
		collab := &fakeCollaborator{createGap: 50 * time.Millisecond}
		d := newDispatcher(t, collab)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := d.Dispatch(context.Background(), testContext("user-1")); err != nil {
					t.Errorf("Dispatch() error = %v", err)
				}
			}()
		}
		wg.Wait()

		if collab.creates != 1 {
			t.Errorf("environment creates = %d, want 1", collab.creates)
		}
	})

	t.Run("different owners get separate environments", func(t *testing.T) {
		collab := &fakeCollaborator{}
		d := newDispatcher(t, collab)

		if _, err := d.Dispatch(context.Background(), testContext("user-1")); err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
		if _, err := d.Dispatch(context.Background(), testContext("user-2")); err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}

		if collab.creates != 2 {
			t.Errorf("environment creates = %d, want 2", collab.creates)
		}
	})

	t.Run("failed transfer skips the file but dispatches the run", func(t *testing.T) {
		collab := &fakeCollaborator{
			failPaths: map[string]error{"workspace/broken.txt": errors.New("connection reset")},
		}
		d := newDispatcher(t, collab)

		ec := testContext("user-1",
			assembly.TransferFile{Name: "ok.txt", Data: []byte("fine")},
			assembly.TransferFile{Name: "broken.txt", Data: []byte("lost")},
		)

		handle, err := d.Dispatch(context.Background(), ec)
		if err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
		if handle == nil {
			t.Fatal("Dispatch() returned nil handle")
		}
		if len(collab.transfers) != 1 || collab.transfers[0].path != "workspace/ok.txt" {
			t.Errorf("transfers = %+v, want only workspace/ok.txt", collab.transfers)
		}
	})

	t.Run("credentials are staged as a workspace file", func(t *testing.T) {
		collab := &fakeCollaborator{}
		d := newDispatcher(t, collab)

		ec := testContext("user-1")
		ec.Credentials = []credentials.Decrypted{{Service: "github", Username: "octocat", Secret: "s3cret"}}

		if _, err := d.Dispatch(context.Background(), ec); err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}

		var staged *transferRecord
		for i := range collab.transfers {
			if collab.transfers[i].path == "workspace/.credentials.json" {
				staged = &collab.transfers[i]
			}
		}
		if staged == nil {
			t.Fatalf("credentials file not staged; transfers = %+v", collab.transfers)
		}
		if !strings.Contains(staged.data, `"service":"github"`) {
			t.Errorf("staged credentials = %q, missing service", staged.data)
		}
	})

	t.Run("no credentials means no credentials file", func(t *testing.T) {
		collab := &fakeCollaborator{}
		d := newDispatcher(t, collab)

		if _, err := d.Dispatch(context.Background(), testContext("user-1")); err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}

		for _, tr := range collab.transfers {
			if tr.path == "workspace/.credentials.json" {
				t.Error("credentials file staged for a context without credentials")
			}
		}
	})

	t.Run("start run failure propagates", func(t *testing.T) {
		collab := &fakeCollaborator{runErr: errors.New("sandbox rejected run")}
		d := newDispatcher(t, collab)

		if _, err := d.Dispatch(context.Background(), testContext("user-1")); err == nil {
			t.Fatal("Dispatch() error = nil, want start failure")
		}
	})

	t.Run("prompt reaches the collaborator unchanged", func(t *testing.T) {
		collab := &fakeCollaborator{}
		d := newDispatcher(t, collab)

		ec := testContext("user-1")
		ec.Prompt = "Step 1\n\n## Additional Instructions\n\nUse metric units"

		if _, err := d.Dispatch(context.Background(), ec); err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
		if len(collab.prompts) != 1 || collab.prompts[0] != ec.Prompt {
			t.Errorf("prompts = %q, want assembled prompt", collab.prompts)
		}
	})
}
