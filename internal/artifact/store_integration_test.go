package artifact_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scribehq/scribe/internal/artifact"
	"github.com/scribehq/scribe/internal/log"
	"github.com/scribehq/scribe/internal/project"
	"github.com/scribehq/scribe/internal/testutil"
)

func TestStoreSupersedeModel(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	projects, err := project.NewStore(db.Pool, log.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	p, err := project.New("docs", "1.0.0", project.KindAPI, "alice", time.Now().UTC())
	if err != nil {
		t.Fatal(err)
	}
	if err := projects.Create(ctx, p); err != nil {
		t.Fatal(err)
	}

	store, err := artifact.NewStore(db.Pool, log.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	first := &artifact.Artifact{
		ProjectID: p.ID,
		Type:      artifact.TypeOpenAPISpec,
		Language:  "csharp",
		Content:   "openapi: 3.0.0 # v1",
		ModelName: "googleai/gemini-2.5-flash",
	}
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("Save first: %v", err)
	}
	if first.ID.String() == "" || first.CreatedAt.IsZero() {
		t.Fatal("Save did not fill id/created_at")
	}

	second := &artifact.Artifact{
		ProjectID: p.ID,
		Type:      artifact.TypeOpenAPISpec,
		Language:  "csharp",
		Content:   "openapi: 3.0.0 # v2",
		ModelName: "googleai/gemini-2.5-flash",
	}
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("Save second: %v", err)
	}

	t.Run("current returns the newest version", func(t *testing.T) {
		cur, err := store.Current(ctx, p.ID, artifact.TypeOpenAPISpec, "csharp")
		if err != nil {
			t.Fatalf("Current: %v", err)
		}
		if cur.ID != second.ID {
			t.Errorf("Current = %s, want %s", cur.ID, second.ID)
		}
	})

	t.Run("history keeps superseded versions", func(t *testing.T) {
		hist, err := store.History(ctx, p.ID, artifact.TypeOpenAPISpec)
		if err != nil {
			t.Fatalf("History: %v", err)
		}
		if len(hist) != 2 {
			t.Fatalf("History has %d entries, want 2", len(hist))
		}
		var old *artifact.Artifact
		for _, a := range hist {
			if a.ID == first.ID {
				old = a
			}
		}
		if old == nil || old.SupersededBy == nil || *old.SupersededBy != second.ID {
			t.Errorf("first version not marked superseded: %+v", old)
		}
	})

	t.Run("list current is one per type and language", func(t *testing.T) {
		other := &artifact.Artifact{
			ProjectID: p.ID,
			Type:      artifact.TypeUsageGuide,
			Language:  "csharp",
			Content:   "# Usage",
		}
		if err := store.Save(ctx, other); err != nil {
			t.Fatal(err)
		}

		cur, err := store.ListCurrent(ctx, p.ID)
		if err != nil {
			t.Fatalf("ListCurrent: %v", err)
		}
		if len(cur) != 2 {
			t.Errorf("ListCurrent has %d entries, want 2", len(cur))
		}
	})

	t.Run("missing artifact is ErrNotFound", func(t *testing.T) {
		_, err := store.Current(ctx, p.ID, artifact.TypeERDiagram, "sql")
		if !errors.Is(err, artifact.ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})
}
