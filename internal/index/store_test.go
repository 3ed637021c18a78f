package index

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/docuquery/backend/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "index.duckdb"), Options{}, nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestDocumentLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	generation, err := store.ClaimGeneration(ctx, "notes.txt")
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	t.Run("claimed document is staged", func(t *testing.T) {
		state, err := store.GetDocumentState(ctx, "notes.txt")
		if err != nil {
			t.Fatalf("get state failed: %v", err)
		}
		if state.Status != models.StatusStaged {
			t.Errorf("status = %q, want %q", state.Status, models.StatusStaged)
		}
	})

	t.Run("unparsed document has no text", func(t *testing.T) {
		if _, err := store.GetText(ctx, "notes.txt"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for unparsed document, got %v", err)
		}
	})

	t.Run("parsed text round-trips", func(t *testing.T) {
		if err := store.SetParsedText(ctx, "notes.txt", generation, "hello\nworld"); err != nil {
			t.Fatalf("set parsed text failed: %v", err)
		}
		text, err := store.GetText(ctx, "notes.txt")
		if err != nil {
			t.Fatalf("get text failed: %v", err)
		}
		if text != "hello\nworld" {
			t.Errorf("text = %q, want %q", text, "hello\nworld")
		}
	})

	t.Run("status advances", func(t *testing.T) {
		if err := store.SetStatus(ctx, "notes.txt", generation, models.StatusEmbedded); err != nil {
			t.Fatalf("set status failed: %v", err)
		}
		state, err := store.GetDocumentState(ctx, "notes.txt")
		if err != nil {
			t.Fatalf("get state failed: %v", err)
		}
		if state.Status != models.StatusEmbedded {
			t.Errorf("status = %q, want %q", state.Status, models.StatusEmbedded)
		}
	})

	t.Run("unparsed claims are not listed", func(t *testing.T) {
		alphaGen, err := store.ClaimGeneration(ctx, "alpha.txt")
		if err != nil {
			t.Fatalf("claim failed: %v", err)
		}

		names, err := store.ListFileNames(ctx)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(names) != 1 || names[0] != "notes.txt" {
			t.Errorf("claim row leaked into the catalog: %v", names)
		}

		if err := store.SetParsedText(ctx, "alpha.txt", alphaGen, "alpha body"); err != nil {
			t.Fatalf("set parsed text failed: %v", err)
		}
		names, err = store.ListFileNames(ctx)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(names) != 2 || names[0] != "alpha.txt" || names[1] != "notes.txt" {
			t.Errorf("unexpected names: %v", names)
		}
	})

	t.Run("unknown document state is not found", func(t *testing.T) {
		if _, err := store.GetDocumentState(ctx, "ghost.txt"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestClaimRelease(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	t.Run("released claim leaves no row", func(t *testing.T) {
		generation, err := store.ClaimGeneration(ctx, "broken.bin")
		if err != nil {
			t.Fatalf("claim failed: %v", err)
		}
		if err := store.ReleaseClaim(ctx, "broken.bin", generation); err != nil {
			t.Fatalf("release failed: %v", err)
		}
		if _, err := store.GetDocumentState(ctx, "broken.bin"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound after release, got %v", err)
		}
	})

	t.Run("stale release keeps the newer claim", func(t *testing.T) {
		old, err := store.ClaimGeneration(ctx, "notes.txt")
		if err != nil {
			t.Fatalf("first claim failed: %v", err)
		}
		if err := store.DeleteDocument(ctx, "notes.txt"); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if _, err := store.ClaimGeneration(ctx, "notes.txt"); err != nil {
			t.Fatalf("second claim failed: %v", err)
		}

		if err := store.ReleaseClaim(ctx, "notes.txt", old); err != nil {
			t.Fatalf("stale release failed: %v", err)
		}
		if _, err := store.GetDocumentState(ctx, "notes.txt"); err != nil {
			t.Errorf("newer claim lost to a stale release: %v", err)
		}
	})

	t.Run("parsed document survives a release", func(t *testing.T) {
		generation, err := store.ClaimGeneration(ctx, "report.txt")
		if err != nil {
			t.Fatalf("claim failed: %v", err)
		}
		if err := store.SetParsedText(ctx, "report.txt", generation, "body"); err != nil {
			t.Fatalf("set parsed text failed: %v", err)
		}

		if err := store.ReleaseClaim(ctx, "report.txt", generation); err != nil {
			t.Fatalf("release failed: %v", err)
		}
		if _, err := store.GetText(ctx, "report.txt"); err != nil {
			t.Errorf("parsed document lost to a release: %v", err)
		}
	})

	t.Run("releasing an absent claim succeeds", func(t *testing.T) {
		if err := store.ReleaseClaim(ctx, "ghost.txt", 42); err != nil {
			t.Errorf("release of absent claim should be a no-op, got %v", err)
		}
	})
}

func TestGenerationFencing(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.ClaimGeneration(ctx, "notes.txt")
	if err != nil {
		t.Fatalf("first claim failed: %v", err)
	}

	// A second run rebuilds the same file: cleanup then a fresh claim.
	if err := store.DeleteDocument(ctx, "notes.txt"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	second, err := store.ClaimGeneration(ctx, "notes.txt")
	if err != nil {
		t.Fatalf("second claim failed: %v", err)
	}

	t.Run("generation advances across delete and recreate", func(t *testing.T) {
		if second <= first {
			t.Errorf("generation did not advance: %d -> %d", first, second)
		}
	})

	t.Run("stale run cannot write text", func(t *testing.T) {
		if err := store.SetParsedText(ctx, "notes.txt", first, "stale"); !errors.Is(err, ErrStaleGeneration) {
			t.Errorf("expected ErrStaleGeneration, got %v", err)
		}
	})

	t.Run("stale run cannot insert chunks", func(t *testing.T) {
		err := store.InsertChunks(ctx, "notes.txt", first, []string{"chunk"})
		if !errors.Is(err, ErrStaleGeneration) {
			t.Errorf("expected ErrStaleGeneration, got %v", err)
		}
		chunks, err := store.GetChunks(ctx, "notes.txt")
		if err != nil {
			t.Fatalf("get chunks failed: %v", err)
		}
		if len(chunks) != 0 {
			t.Errorf("rejected insert still landed %d chunks", len(chunks))
		}
	})

	t.Run("stale run cannot advance status", func(t *testing.T) {
		if err := store.SetStatus(ctx, "notes.txt", first, models.StatusChunked); !errors.Is(err, ErrStaleGeneration) {
			t.Errorf("expected ErrStaleGeneration, got %v", err)
		}
	})

	t.Run("current run still writes", func(t *testing.T) {
		if err := store.SetParsedText(ctx, "notes.txt", second, "fresh"); err != nil {
			t.Errorf("current generation write failed: %v", err)
		}
	})
}

func TestChunks(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	generation, err := store.ClaimGeneration(ctx, "notes.txt")
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	texts := []string{"first segment", "second segment", "third segment"}
	if err := store.InsertChunks(ctx, "notes.txt", generation, texts); err != nil {
		t.Fatalf("insert chunks failed: %v", err)
	}

	t.Run("ids are contiguous from one", func(t *testing.T) {
		chunks, err := store.GetChunks(ctx, "notes.txt")
		if err != nil {
			t.Fatalf("get chunks failed: %v", err)
		}
		if len(chunks) != 3 {
			t.Fatalf("expected 3 chunks, got %d", len(chunks))
		}
		for i, c := range chunks {
			if c.ChunkID != i+1 {
				t.Errorf("chunk %d has id %d", i, c.ChunkID)
			}
			if c.Text != texts[i] {
				t.Errorf("chunk %d text = %q, want %q", i, c.Text, texts[i])
			}
		}
	})

	t.Run("embedding only what is missing", func(t *testing.T) {
		missing, err := store.ChunksMissingEmbedding(ctx, "notes.txt")
		if err != nil {
			t.Fatalf("missing query failed: %v", err)
		}
		if len(missing) != 3 {
			t.Fatalf("expected 3 unembedded chunks, got %d", len(missing))
		}

		vector := []float32{0.25, -0.5, 0.75}
		if err := store.SetChunkEmbedding(ctx, "notes.txt", 2, vector); err != nil {
			t.Fatalf("set embedding failed: %v", err)
		}

		missing, err = store.ChunksMissingEmbedding(ctx, "notes.txt")
		if err != nil {
			t.Fatalf("missing query failed: %v", err)
		}
		if len(missing) != 2 {
			t.Errorf("expected 2 unembedded chunks after one embed, got %d", len(missing))
		}
		for _, c := range missing {
			if c.ChunkID == 2 {
				t.Error("embedded chunk returned as missing")
			}
		}
	})

	t.Run("embedding round-trips exactly", func(t *testing.T) {
		chunks, err := store.GetChunks(ctx, "notes.txt")
		if err != nil {
			t.Fatalf("get chunks failed: %v", err)
		}
		got := chunks[1].Embedding
		want := []float32{0.25, -0.5, 0.75}
		if len(got) != len(want) {
			t.Fatalf("embedding length = %d, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("embedding[%d] = %v, want %v", i, got[i], want[i])
			}
		}
	})

	t.Run("embedded chunk counts surface in state", func(t *testing.T) {
		state, err := store.GetDocumentState(ctx, "notes.txt")
		if err != nil {
			t.Fatalf("get state failed: %v", err)
		}
		if state.ChunkCount != 3 || state.EmbeddedCount != 1 {
			t.Errorf("counts = %d/%d, want 3/1", state.ChunkCount, state.EmbeddedCount)
		}
	})

	t.Run("retrieval sees only embedded chunks", func(t *testing.T) {
		embedded, err := store.EmbeddedChunks(ctx)
		if err != nil {
			t.Fatalf("embedded query failed: %v", err)
		}
		if len(embedded) != 1 || embedded[0].ChunkID != 2 {
			t.Errorf("unexpected embedded chunks: %+v", embedded)
		}
	})

	t.Run("embedding an unknown chunk is not found", func(t *testing.T) {
		err := store.SetChunkEmbedding(ctx, "notes.txt", 99, []float32{1})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("delete removes chunks with the document", func(t *testing.T) {
		if err := store.DeleteDocument(ctx, "notes.txt"); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		chunks, err := store.GetChunks(ctx, "notes.txt")
		if err != nil {
			t.Fatalf("get chunks failed: %v", err)
		}
		if len(chunks) != 0 {
			t.Errorf("expected 0 chunks after delete, got %d", len(chunks))
		}
	})
}

func TestInteractions(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	append5 := func(principal string) {
		for i := 0; i < 5; i++ {
			entry := &models.InteractionEntry{
				Principal: principal,
				Question:  fmt.Sprintf("question %d", i),
				AskedAt:   base.Add(time.Duration(i) * time.Minute),
				Success:   i%2 == 0,
				Response:  "answer",
			}
			if !entry.Success {
				entry.Response = ""
				entry.ErrorMessage = "boom"
			}
			if err := store.AppendInteraction(ctx, entry); err != nil {
				t.Fatalf("append failed: %v", err)
			}
			if entry.ID == 0 {
				t.Fatal("append did not assign an id")
			}
		}
	}
	append5("alice")
	append5("bob")

	t.Run("window query returns newest first", func(t *testing.T) {
		rows, err := store.QueryInteractions(ctx, "", base, base.Add(time.Hour))
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if len(rows) != 10 {
			t.Fatalf("expected 10 rows, got %d", len(rows))
		}
		for i := 1; i < len(rows); i++ {
			if rows[i].AskedAt.After(rows[i-1].AskedAt) {
				t.Errorf("rows not in descending time order at %d", i)
			}
		}
	})

	t.Run("principal filter applies", func(t *testing.T) {
		rows, err := store.QueryInteractions(ctx, "alice", base, base.Add(time.Hour))
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if len(rows) != 5 {
			t.Fatalf("expected 5 rows, got %d", len(rows))
		}
		for _, r := range rows {
			if r.Principal != "alice" {
				t.Errorf("foreign principal in filtered result: %q", r.Principal)
			}
		}
	})

	t.Run("window bounds apply", func(t *testing.T) {
		rows, err := store.QueryInteractions(ctx, "", base.Add(time.Minute), base.Add(2*time.Minute))
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if len(rows) != 4 {
			t.Errorf("expected 4 rows inside the window, got %d", len(rows))
		}
	})

	t.Run("failure rows carry the error message only", func(t *testing.T) {
		rows, err := store.QueryInteractions(ctx, "alice", base, base.Add(time.Hour))
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		for _, r := range rows {
			if r.Success && r.ErrorMessage != "" {
				t.Errorf("success row carries an error message: %+v", r)
			}
			if !r.Success && r.Response != "" {
				t.Errorf("failure row carries a response: %+v", r)
			}
		}
	})

	t.Run("result is capped at one hundred rows", func(t *testing.T) {
		for i := 0; i < 120; i++ {
			entry := &models.InteractionEntry{
				Principal: "flood",
				Question:  "again",
				AskedAt:   base.Add(time.Duration(i) * time.Second),
				Success:   true,
				Response:  "ok",
			}
			if err := store.AppendInteraction(ctx, entry); err != nil {
				t.Fatalf("append failed: %v", err)
			}
		}
		rows, err := store.QueryInteractions(ctx, "flood", base, base.Add(time.Hour))
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if len(rows) != 100 {
			t.Errorf("expected cap of 100 rows, got %d", len(rows))
		}
	})
}
