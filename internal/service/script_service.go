package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/makeanavatar/api/internal/client"
	"github.com/makeanavatar/api/internal/model"
)

const defaultMaxScenes = 8

// ScriptSegmenter defines the interface for script segmentation
type ScriptSegmenter interface {
	Segment(ctx context.Context, req *model.ScriptSegmentRequest) (*model.ScriptSegmentResponse, error)
}

// ScriptService splits a presenter script into ordered scenes using Groq AI
type ScriptService struct {
	groqClient *client.GroqClient
}

// NewScriptService creates a new script service with Groq client
func NewScriptService(groqClient *client.GroqClient) *ScriptService {
	return &ScriptService{
		groqClient: groqClient,
	}
}

// Segment splits the script into scenes with contiguous 1-based ids
func (s *ScriptService) Segment(ctx context.Context, req *model.ScriptSegmentRequest) (*model.ScriptSegmentResponse, error) {
	maxScenes := req.MaxScenes
	if maxScenes == 0 {
		maxScenes = defaultMaxScenes
	}

	// Use mock response if client is not configured
	if s.groqClient == nil || !s.groqClient.IsConfigured() {
		return s.segmentMock(req, maxScenes)
	}

	systemPrompt := s.buildSystemPrompt()
	userPrompt := s.buildSegmentPrompt(req, maxScenes)

	response, err := s.groqClient.ChatCompletion(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("AI segmentation failed: %w", err)
	}

	scenes, err := s.parseSegmentResponse(response, maxScenes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w", err)
	}

	return &model.ScriptSegmentResponse{
		Scenes: scenes,
	}, nil
}

func (s *ScriptService) buildSystemPrompt() string {
	return `You are a video production assistant that splits presenter scripts into short scenes.
Each scene should be a self-contained passage a presenter can deliver in roughly 6 seconds on camera.
Always output your response as valid JSON in the exact format requested.
Do not include any text outside the JSON structure.`
}

func (s *ScriptService) buildSegmentPrompt(req *model.ScriptSegmentRequest, maxScenes int) string {
	return fmt.Sprintf(`Split the following script into at most %d scenes.
Keep the original wording; never paraphrase or drop sentences.
Number scenes from 1 in delivery order.

Script:
%s

Output as JSON: {"scenes": [{"sceneId": 1, "sceneText": "..."}, {"sceneId": 2, "sceneText": "..."}]}`,
		maxScenes, req.Script)
}

func (s *ScriptService) parseSegmentResponse(response string, maxScenes int) ([]model.Scene, error) {
	response = extractJSON(response)

	var result struct {
		Scenes []model.Scene `json:"scenes"`
	}

	if err := json.Unmarshal([]byte(response), &result); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}

	if len(result.Scenes) == 0 {
		return nil, fmt.Errorf("no scenes in response")
	}
	if len(result.Scenes) > maxScenes {
		result.Scenes = result.Scenes[:maxScenes]
	}

	// Renumber so ids stay contiguous even if the model skipped one
	for i := range result.Scenes {
		result.Scenes[i].SceneID = i + 1
		if strings.TrimSpace(result.Scenes[i].SceneText) == "" {
			return nil, fmt.Errorf("scene %d has empty text", i+1)
		}
	}

	return result.Scenes, nil
}

// extractJSON attempts to extract JSON from a response that may contain extra text
func extractJSON(s string) string {
	// Find the first { and last }
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")

	if start != -1 && end != -1 && end > start {
		return s[start : end+1]
	}
	return s
}

// Mock implementation for development/testing: sentence-based split
func (s *ScriptService) segmentMock(req *model.ScriptSegmentRequest, maxScenes int) (*model.ScriptSegmentResponse, error) {
	sentences := splitSentences(req.Script)
	if len(sentences) == 0 {
		return nil, fmt.Errorf("script contains no sentences")
	}

	// Distribute sentences evenly across at most maxScenes scenes
	sceneCount := len(sentences)
	if sceneCount > maxScenes {
		sceneCount = maxScenes
	}

	scenes := make([]model.Scene, 0, sceneCount)
	perScene := (len(sentences) + sceneCount - 1) / sceneCount
	for i := 0; i < sceneCount; i++ {
		startIdx := i * perScene
		endIdx := startIdx + perScene
		if endIdx > len(sentences) {
			endIdx = len(sentences)
		}
		if startIdx >= endIdx {
			break
		}
		scenes = append(scenes, model.Scene{
			SceneID:   i + 1,
			SceneText: strings.Join(sentences[startIdx:endIdx], " "),
		})
	}

	return &model.ScriptSegmentResponse{
		Scenes: scenes,
	}, nil
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}
