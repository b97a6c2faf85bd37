package e2e

import (
	"net/http"
	"testing"
)

func validScriptSegmentBody() string {
	return `{
		"script": "Welcome to our product tour. Today we will look at three features. First, the dashboard gives you a full overview. Second, reports can be exported in one click. Finally, everything syncs across devices.",
		"maxScenes": 4
	}`
}

func TestScriptSegment_Success(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/script/segment", validScriptSegmentBody())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	scenes, ok := result["scenes"].([]interface{})
	if !ok || len(scenes) == 0 {
		t.Fatalf("expected non-empty 'scenes' in response, got %v", result["scenes"])
	}
	if len(scenes) > 4 {
		t.Errorf("expected at most 4 scenes, got %d", len(scenes))
	}

	// Scene ids must be contiguous starting at 1
	for i, s := range scenes {
		scene := s.(map[string]interface{})
		if int(scene["sceneId"].(float64)) != i+1 {
			t.Errorf("scene %d: expected sceneId %d, got %v", i, i+1, scene["sceneId"])
		}
		if scene["sceneText"] == nil || scene["sceneText"] == "" {
			t.Errorf("scene %d has empty text", i)
		}
	}
}

func TestScriptSegment_NoAuth(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/script/segment", validScriptSegmentBody(), nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestScriptSegment_InvalidBody(t *testing.T) {
	ta := setupApp(t)

	// Script too short
	body := `{"script": "short"}`

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/script/segment", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}
