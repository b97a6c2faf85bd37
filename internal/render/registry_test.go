package render

import (
	"testing"

	"github.com/makeanavatar/api/internal/model"
)

func TestNewRegistry_SortsScenesAscending(t *testing.T) {
	scenes := []model.Scene{
		{SceneID: 3, SceneText: "c"},
		{SceneID: 1, SceneText: "a"},
		{SceneID: 2, SceneText: "b"},
	}

	reg, err := NewRegistry(scenes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snapshot := reg.Snapshot()
	for i, want := range []int{1, 2, 3} {
		if snapshot[i].SceneID != want {
			t.Errorf("position %d: expected scene %d, got %d", i, want, snapshot[i].SceneID)
		}
		if snapshot[i].Status != model.RenderStatusPending {
			t.Errorf("scene %d: expected pending, got %s", want, snapshot[i].Status)
		}
	}
}

func TestNewRegistry_RejectsEmptyAndDuplicates(t *testing.T) {
	if _, err := NewRegistry(nil); err == nil {
		t.Error("expected error for empty scene list")
	}

	dup := []model.Scene{
		{SceneID: 1, SceneText: "a"},
		{SceneID: 1, SceneText: "b"},
	}
	if _, err := NewRegistry(dup); err == nil {
		t.Error("expected error for duplicate scene ids")
	}
}

func TestRestoreRegistry_ResetsInterruptedClips(t *testing.T) {
	clips := []model.RenderClip{
		{SceneID: 2, Status: model.RenderStatusRendering, Diagnostic: "Waiting..."},
		{SceneID: 1, Status: model.RenderStatusCompleted, URL: "https://cdn.example.com/1.mp4"},
		{SceneID: 3, Status: model.RenderStatusFailed, Diagnostic: "rejected"},
	}

	reg, err := RestoreRegistry(clips)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snapshot := reg.Snapshot()
	if snapshot[0].SceneID != 1 || snapshot[0].Status != model.RenderStatusCompleted {
		t.Errorf("expected scene 1 completed first, got %+v", snapshot[0])
	}
	if snapshot[1].Status != model.RenderStatusPending {
		t.Errorf("expected interrupted scene 2 reset to pending, got %s", snapshot[1].Status)
	}
	if snapshot[1].Diagnostic != "" {
		t.Errorf("expected stale diagnostic cleared, got %q", snapshot[1].Diagnostic)
	}
	if snapshot[2].Status != model.RenderStatusFailed {
		t.Errorf("expected failed scene 3 preserved, got %s", snapshot[2].Status)
	}
}

func TestRegistry_ObserverSeesEveryMutation(t *testing.T) {
	reg, err := NewRegistry([]model.Scene{{SceneID: 1, SceneText: "a"}, {SceneID: 2, SceneText: "b"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var published [][]model.RenderClip
	reg.SetObserver(func(clips []model.RenderClip) {
		published = append(published, clips)
	})

	reg.MarkRendering(0)
	reg.SetDiagnostic(0, "Rate limit hit. Retrying in 1m0s...")
	reg.Complete(0, "https://cdn.example.com/1.mp4", 6, model.ProviderOfficial, model.TargetModelVeo)

	if len(published) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(published))
	}
	if published[0][0].Status != model.RenderStatusRendering {
		t.Errorf("first snapshot: expected rendering, got %s", published[0][0].Status)
	}
	if published[1][0].Diagnostic == "" {
		t.Error("second snapshot: expected diagnostic set")
	}
	last := published[2][0]
	if last.Status != model.RenderStatusCompleted || last.URL == "" || last.Diagnostic != "" {
		t.Errorf("final snapshot: expected clean completion, got %+v", last)
	}
}

func TestRegistry_SnapshotIsACopy(t *testing.T) {
	reg, err := NewRegistry([]model.Scene{{SceneID: 1, SceneText: "a"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snapshot := reg.Snapshot()
	snapshot[0].Status = model.RenderStatusFailed
	snapshot[0].URL = "tampered"

	if got := reg.Clip(0); got.Status != model.RenderStatusPending || got.URL != "" {
		t.Errorf("snapshot mutation leaked into registry: %+v", got)
	}
}

func TestRegistry_CompletedCountAndAllCompleted(t *testing.T) {
	reg, err := NewRegistry([]model.Scene{{SceneID: 1, SceneText: "a"}, {SceneID: 2, SceneText: "b"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reg.CompletedCount() != 0 || reg.AllCompleted() {
		t.Error("fresh registry should have no completions")
	}

	reg.Complete(0, "u1", 6, model.ProviderOfficial, model.TargetModelVeo)
	if reg.CompletedCount() != 1 || reg.AllCompleted() {
		t.Errorf("expected 1 completion, got %d", reg.CompletedCount())
	}

	reg.CompleteFallback(1, "u2", 6, model.ProviderOfficial, model.TargetModelVeo, "Quota exceeded. Used placeholder video.")
	if !reg.AllCompleted() {
		t.Error("fallback completions must count toward all-completed")
	}
}

func TestRegistry_ResetPendingAfterFailure(t *testing.T) {
	reg, err := NewRegistry([]model.Scene{{SceneID: 1, SceneText: "a"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reg.Fail(0, "provider rejected prompt")
	if got := reg.Clip(0); got.Status != model.RenderStatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}

	reg.ResetPending(0, "")
	got := reg.Clip(0)
	if got.Status != model.RenderStatusPending {
		t.Errorf("expected pending after reset, got %s", got.Status)
	}
}
