package render

import (
	"fmt"
	"sort"
	"sync"

	"github.com/makeanavatar/api/internal/model"
)

// Observer receives an immutable snapshot of the full clip list after
// every registry mutation. Snapshots are copies; observers never see a
// live reference.
type Observer func(clips []model.RenderClip)

// Registry is the single source of truth for per-scene render state.
// It is owned exclusively by the orchestrator loop for writes; everyone
// else reads published snapshots.
type Registry struct {
	mu       sync.Mutex
	clips    []model.RenderClip
	observer Observer
}

// NewRegistry seeds one pending clip per scene, in ascending scene order
func NewRegistry(scenes []model.Scene) (*Registry, error) {
	if len(scenes) == 0 {
		return nil, fmt.Errorf("no scenes to render")
	}

	sorted := make([]model.Scene, len(scenes))
	copy(sorted, scenes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SceneID < sorted[j].SceneID })

	clips := make([]model.RenderClip, 0, len(sorted))
	seen := make(map[int]bool, len(sorted))
	for _, s := range sorted {
		if seen[s.SceneID] {
			return nil, fmt.Errorf("duplicate scene id %d", s.SceneID)
		}
		seen[s.SceneID] = true
		clips = append(clips, model.RenderClip{
			SceneID: s.SceneID,
			Status:  model.RenderStatusPending,
		})
	}

	return &Registry{clips: clips}, nil
}

// RestoreRegistry rebuilds a registry from a previously published
// snapshot so a later run can resume. Completed clips keep their
// results; an interrupted "rendering" clip is reset to pending.
func RestoreRegistry(clips []model.RenderClip) (*Registry, error) {
	if len(clips) == 0 {
		return nil, fmt.Errorf("no clips to restore")
	}

	restored := make([]model.RenderClip, len(clips))
	copy(restored, clips)
	sort.Slice(restored, func(i, j int) bool { return restored[i].SceneID < restored[j].SceneID })

	seen := make(map[int]bool, len(restored))
	for i := range restored {
		if seen[restored[i].SceneID] {
			return nil, fmt.Errorf("duplicate scene id %d", restored[i].SceneID)
		}
		seen[restored[i].SceneID] = true
		if restored[i].Status == model.RenderStatusRendering {
			restored[i].Status = model.RenderStatusPending
			restored[i].Diagnostic = ""
		}
	}

	return &Registry{clips: restored}, nil
}

// SetObserver registers the snapshot publication hook
func (r *Registry) SetObserver(fn Observer) {
	r.mu.Lock()
	r.observer = fn
	r.mu.Unlock()
}

// Len returns the total clip count
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clips)
}

// Clip returns a copy of the clip at index i
func (r *Registry) Clip(i int) model.RenderClip {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clips[i]
}

// Snapshot returns an immutable copy of the full clip list
func (r *Registry) Snapshot() []model.RenderClip {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Registry) snapshotLocked() []model.RenderClip {
	out := make([]model.RenderClip, len(r.clips))
	copy(out, r.clips)
	return out
}

// CompletedCount returns how many clips are completed
func (r *Registry) CompletedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.clips {
		if c.Status == model.RenderStatusCompleted {
			n++
		}
	}
	return n
}

// AllCompleted reports whether every clip reached completed
func (r *Registry) AllCompleted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clips {
		if c.Status != model.RenderStatusCompleted {
			return false
		}
	}
	return true
}

// mutate applies fn to clip i under lock, then publishes a snapshot
func (r *Registry) mutate(i int, fn func(*model.RenderClip)) {
	r.mu.Lock()
	fn(&r.clips[i])
	snapshot := r.snapshotLocked()
	observer := r.observer
	r.mu.Unlock()

	if observer != nil {
		observer(snapshot)
	}
}

// MarkRendering transitions clip i to rendering
func (r *Registry) MarkRendering(i int) {
	r.mutate(i, func(c *model.RenderClip) {
		c.Status = model.RenderStatusRendering
		c.Diagnostic = ""
	})
}

// SetDiagnostic overwrites clip i's transient status string
func (r *Registry) SetDiagnostic(i int, msg string) {
	r.mutate(i, func(c *model.RenderClip) {
		c.Diagnostic = msg
	})
}

// Complete records a successful render result for clip i
func (r *Registry) Complete(i int, url string, duration float64, provider model.Provider, targetModel model.TargetModel) {
	r.mutate(i, func(c *model.RenderClip) {
		c.Status = model.RenderStatusCompleted
		c.URL = url
		c.Duration = duration
		c.Provider = provider
		c.Model = targetModel
		c.Fallback = false
		c.Diagnostic = ""
	})
}

// CompleteFallback records a degraded placeholder completion for clip i.
// Downstream consumers treat it identically to a real completion.
func (r *Registry) CompleteFallback(i int, url string, duration float64, provider model.Provider, targetModel model.TargetModel, diagnostic string) {
	r.mutate(i, func(c *model.RenderClip) {
		c.Status = model.RenderStatusCompleted
		c.URL = url
		c.Duration = duration
		c.Provider = provider
		c.Model = targetModel
		c.Fallback = true
		c.Diagnostic = diagnostic
	})
}

// Fail records an unrecoverable error for clip i
func (r *Registry) Fail(i int, msg string) {
	r.mutate(i, func(c *model.RenderClip) {
		c.Status = model.RenderStatusFailed
		c.Diagnostic = msg
	})
}

// ResetPending returns clip i to pending, keeping a note of why
func (r *Registry) ResetPending(i int, msg string) {
	r.mutate(i, func(c *model.RenderClip) {
		c.Status = model.RenderStatusPending
		c.Diagnostic = msg
	})
}
