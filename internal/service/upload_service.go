package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/makeanavatar/api/internal/client"
	"github.com/makeanavatar/api/internal/model"
)

// ReferenceUploader defines the interface for reference image uploads
type ReferenceUploader interface {
	UploadReference(ctx context.Context, projectID, contentType string, file io.Reader, fileSize int64) (*model.UploadReferenceResponse, error)
	DeleteReference(ctx context.Context, projectID, referenceID string) error
}

// UploadService handles reference image uploads to R2 storage
type UploadService struct {
	r2Client client.StorageClient
}

// NewUploadService creates a new upload service with R2 client
func NewUploadService(r2Client client.StorageClient) *UploadService {
	return &UploadService{
		r2Client: r2Client,
	}
}

// UploadReference stores an avatar reference image and returns its URL
func (s *UploadService) UploadReference(ctx context.Context, projectID, contentType string, file io.Reader, fileSize int64) (*model.UploadReferenceResponse, error) {
	referenceID := uuid.New().String()
	key := fmt.Sprintf("references/%s/%s%s", projectID, referenceID, extensionFor(contentType))

	// Use mock response if client is not configured
	if s.r2Client == nil {
		return s.uploadMock(referenceID, projectID, contentType, fileSize)
	}

	fileURL, err := s.r2Client.Upload(ctx, key, file, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to upload reference image: %w", err)
	}

	return &model.UploadReferenceResponse{
		ID:          referenceID,
		FileURL:     fileURL,
		ContentType: contentType,
		Size:        fileSize,
		CreatedAt:   time.Now(),
	}, nil
}

// DeleteReference removes a reference image from storage
func (s *UploadService) DeleteReference(ctx context.Context, projectID, referenceID string) error {
	if s.r2Client == nil {
		return nil // Mock: no-op
	}

	key := fmt.Sprintf("references/%s/%s.png", projectID, referenceID)
	return s.r2Client.Delete(ctx, key)
}

func extensionFor(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

// Mock implementation for development/testing
func (s *UploadService) uploadMock(referenceID, projectID, contentType string, fileSize int64) (*model.UploadReferenceResponse, error) {
	return &model.UploadReferenceResponse{
		ID:          referenceID,
		FileURL:     fmt.Sprintf("https://cdn.makeanavatar.com/references/%s/%s.png", projectID, referenceID),
		ContentType: contentType,
		Size:        fileSize,
		CreatedAt:   time.Now(),
	}, nil
}
