package model

import "time"

// UploadReferenceResponse represents the response for a reference image upload
type UploadReferenceResponse struct {
	ID          string    `json:"id"`
	FileURL     string    `json:"fileUrl"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
}
