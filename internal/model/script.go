package model

// ScriptSegmentRequest splits a presenter script into timed scenes
type ScriptSegmentRequest struct {
	Script    string `json:"script" validate:"required,min=10"`
	MaxScenes int    `json:"maxScenes,omitempty" validate:"omitempty,min=1,max=50"`
}

// ScriptSegmentResponse returns the ordered scene list
type ScriptSegmentResponse struct {
	Scenes []Scene `json:"scenes"`
}
