package e2e

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
)

func TestMergeStart_ClipsNotCompleted(t *testing.T) {
	ta := setupApp(t)

	// Start a render; its clips are still pending
	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/render/start", validRenderStartBody())
	if err != nil {
		t.Fatalf("start request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)
	startResult := parseJSON(t, resp)
	renderJobID := startResult["jobId"].(string)

	// Merge must be rejected until every clip is completed
	resp, err = doAuthRequest(t, ta.app, http.MethodPost, "/api/merge/start/"+renderJobID, "")
	if err != nil {
		t.Fatalf("merge request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestMergeStart_RenderJobNotFound(t *testing.T) {
	ta := setupApp(t)

	fakeJobID := uuid.New().String()
	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/merge/start/"+fakeJobID, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusNotFound)
}

func TestMergeStatus_NotFound(t *testing.T) {
	ta := setupApp(t)

	fakeJobID := uuid.New().String()
	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/merge/status/"+fakeJobID, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusNotFound)

	result := parseJSON(t, resp)
	errObj := result["error"].(map[string]interface{})
	if errObj["code"] != "NOT_FOUND" {
		t.Errorf("expected error code NOT_FOUND, got %v", errObj["code"])
	}
}

func TestMergeResult_NotFound(t *testing.T) {
	ta := setupApp(t)

	fakeJobID := uuid.New().String()
	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/merge/result/"+fakeJobID, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusNotFound)
}

func TestMergeStart_NoAuth(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/merge/start/"+uuid.New().String(), "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUnauthorized)
}
