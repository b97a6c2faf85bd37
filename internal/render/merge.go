package render

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/makeanavatar/api/internal/client"
	"github.com/makeanavatar/api/internal/model"
)

// ErrClipsIncomplete rejects a merge while any clip is not completed
var ErrClipsIncomplete = fmt.Errorf("all clips must be completed before merging")

// MergedStore persists the merged video and returns a retrievable URL
type MergedStore interface {
	SaveMerged(ctx context.Context, projectID string, body io.Reader) (string, error)
}

// MergeResult describes the finished merge
type MergeResult struct {
	URL       string
	Duration  float64
	ClipCount int
}

// MergeCoordinator downloads every completed clip, concatenates them in
// scene order with the stream-copy transform, and persists the result.
type MergeCoordinator struct {
	concat  client.VideoConcatenator
	store   MergedStore
	workDir string
	http    *http.Client
}

// NewMergeCoordinator builds a coordinator writing scratch files under workDir
func NewMergeCoordinator(concat client.VideoConcatenator, store MergedStore, workDir string) *MergeCoordinator {
	return &MergeCoordinator{
		concat:  concat,
		store:   store,
		workDir: workDir,
		http:    &http.Client{},
	}
}

// Merge joins the clips for one project. Clips must all be completed;
// fallback completions count. Ordering follows the clip list, which the
// registry keeps in ascending scene order.
func (m *MergeCoordinator) Merge(ctx context.Context, projectID string, clips []model.RenderClip) (*MergeResult, error) {
	if len(clips) == 0 {
		return nil, fmt.Errorf("no clips to merge")
	}
	for _, c := range clips {
		if c.Status != model.RenderStatusCompleted {
			return nil, fmt.Errorf("%w: scene %d is %s", ErrClipsIncomplete, c.SceneID, c.Status)
		}
	}

	scratch := filepath.Join(m.workDir, "merge-"+uuid.New().String())
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	listPath := filepath.Join(scratch, "concat_list.txt")
	list, err := os.Create(listPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create concat list: %w", err)
	}

	totalDuration := 0.0
	for i, c := range clips {
		clipPath := filepath.Join(scratch, fmt.Sprintf("clip_%03d.mp4", i))
		if err := m.download(ctx, c.URL, clipPath); err != nil {
			list.Close()
			return nil, fmt.Errorf("failed to download clip for scene %d: %w", c.SceneID, err)
		}
		if _, err := fmt.Fprintf(list, "file '%s'\n", clipPath); err != nil {
			list.Close()
			return nil, fmt.Errorf("failed to write concat list: %w", err)
		}
		totalDuration += c.Duration
	}
	if err := list.Close(); err != nil {
		return nil, fmt.Errorf("failed to close concat list: %w", err)
	}

	outputPath := filepath.Join(scratch, "merged.mp4")
	if err := m.concat.Concat(ctx, listPath, outputPath); err != nil {
		return nil, err
	}

	merged, err := os.Open(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open merged output: %w", err)
	}
	defer merged.Close()

	url, err := m.store.SaveMerged(ctx, projectID, merged)
	if err != nil {
		return nil, fmt.Errorf("failed to persist merged video: %w", err)
	}

	log.Printf("Merged %d clips for project %s (%.1fs total)", len(clips), projectID, totalDuration)

	return &MergeResult{
		URL:       url,
		Duration:  totalDuration,
		ClipCount: len(clips),
	}, nil
}

func (m *MergeCoordinator) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := m.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return err
	}
	return nil
}
