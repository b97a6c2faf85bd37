package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/makeanavatar/api/internal/model"
)

// fakeConcatenator records its inputs and produces a stub output file
type fakeConcatenator struct {
	listContent string
	err         error
}

func (f *fakeConcatenator) Concat(_ context.Context, listPath, outputPath string) error {
	if f.err != nil {
		return f.err
	}
	content, err := os.ReadFile(listPath)
	if err != nil {
		return err
	}
	f.listContent = string(content)
	return os.WriteFile(outputPath, []byte("merged-video-bytes"), 0o644)
}

type fakeMergedStore struct {
	saved []byte
	err   error
}

func (f *fakeMergedStore) SaveMerged(_ context.Context, projectID string, body io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.saved = b
	return "https://storage.example.com/final/" + projectID + ".mp4", nil
}

func clipServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "clip-bytes-%s", r.URL.Path)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func completedClips(baseURL string, n int) []model.RenderClip {
	clips := make([]model.RenderClip, 0, n)
	for i := 1; i <= n; i++ {
		clips = append(clips, model.RenderClip{
			SceneID:  i,
			Status:   model.RenderStatusCompleted,
			URL:      fmt.Sprintf("%s/clips/%d.mp4", baseURL, i),
			Duration: 6,
		})
	}
	return clips
}

func TestMerge_JoinsClipsInOrder(t *testing.T) {
	srv := clipServer(t)
	concat := &fakeConcatenator{}
	store := &fakeMergedStore{}
	coord := NewMergeCoordinator(concat, store, t.TempDir())

	clips := completedClips(srv.URL, 3)
	result, err := coord.Merge(context.Background(), "project-1", clips)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	if result.ClipCount != 3 {
		t.Errorf("expected 3 clips merged, got %d", result.ClipCount)
	}
	if result.Duration != 18 {
		t.Errorf("expected summed duration 18, got %v", result.Duration)
	}
	if !strings.Contains(result.URL, "project-1") {
		t.Errorf("expected stored URL for project, got %s", result.URL)
	}

	// Playlist entries appear in clip order
	lines := strings.Split(strings.TrimSpace(concat.listContent), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 playlist entries, got %d: %q", len(lines), concat.listContent)
	}
	for i, line := range lines {
		if !strings.HasPrefix(line, "file '") {
			t.Errorf("entry %d: malformed playlist line %q", i, line)
		}
		if !strings.Contains(line, fmt.Sprintf("clip_%03d.mp4", i)) {
			t.Errorf("entry %d out of order: %q", i, line)
		}
	}

	if string(store.saved) != "merged-video-bytes" {
		t.Errorf("stored bytes do not match concat output: %q", store.saved)
	}
}

func TestMerge_RejectsIncompleteClips(t *testing.T) {
	coord := NewMergeCoordinator(&fakeConcatenator{}, &fakeMergedStore{}, t.TempDir())

	clips := []model.RenderClip{
		{SceneID: 1, Status: model.RenderStatusCompleted, URL: "https://cdn.example.com/1.mp4", Duration: 6},
		{SceneID: 2, Status: model.RenderStatusFailed},
	}

	_, err := coord.Merge(context.Background(), "project-1", clips)
	if !errors.Is(err, ErrClipsIncomplete) {
		t.Fatalf("expected ErrClipsIncomplete, got %v", err)
	}
	if !strings.Contains(err.Error(), "scene 2") {
		t.Errorf("expected offending scene named, got %v", err)
	}
}

func TestMerge_RejectsEmptyClipList(t *testing.T) {
	coord := NewMergeCoordinator(&fakeConcatenator{}, &fakeMergedStore{}, t.TempDir())

	if _, err := coord.Merge(context.Background(), "project-1", nil); err == nil {
		t.Fatal("expected error for empty clip list")
	}
}

func TestMerge_AcceptsFallbackCompletions(t *testing.T) {
	srv := clipServer(t)
	coord := NewMergeCoordinator(&fakeConcatenator{}, &fakeMergedStore{}, t.TempDir())

	clips := completedClips(srv.URL, 2)
	clips[1].Fallback = true
	clips[1].Diagnostic = "Quota exceeded. Used placeholder video."

	result, err := coord.Merge(context.Background(), "project-1", clips)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if result.ClipCount != 2 {
		t.Errorf("expected fallback clip included, got %d clips", result.ClipCount)
	}
}

func TestMerge_DownloadFailureNamesScene(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	coord := NewMergeCoordinator(&fakeConcatenator{}, &fakeMergedStore{}, t.TempDir())

	_, err := coord.Merge(context.Background(), "project-1", completedClips(srv.URL, 1))
	if err == nil {
		t.Fatal("expected download failure")
	}
	if !strings.Contains(err.Error(), "scene 1") {
		t.Errorf("expected scene named in error, got %v", err)
	}
}

func TestMerge_ConcatFailurePropagates(t *testing.T) {
	srv := clipServer(t)
	concat := &fakeConcatenator{err: fmt.Errorf("ffmpeg concat failed: exit status 1")}
	coord := NewMergeCoordinator(concat, &fakeMergedStore{}, t.TempDir())

	_, err := coord.Merge(context.Background(), "project-1", completedClips(srv.URL, 2))
	if err == nil || !strings.Contains(err.Error(), "concat failed") {
		t.Fatalf("expected concat error, got %v", err)
	}
}
