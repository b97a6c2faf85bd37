package e2e

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"testing"

	"github.com/google/uuid"
)

// createMultipartReferenceRequest builds a multipart/form-data request with a fake image file.
func createMultipartReferenceRequest(t *testing.T, token string) *http.Request {
	t.Helper()

	projectID := uuid.New().String()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	_ = writer.WriteField("projectId", projectID)

	// Create a fake PNG file with correct Content-Type
	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", `form-data; name="file"; filename="reference.png"`)
	partHeader.Set("Content-Type", "image/png")
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	// Minimal PNG signature + some data
	pngHeader := []byte("\x89PNG\r\n\x1a\n")
	fakeData := make([]byte, 1024)
	_, _ = part.Write(pngHeader)
	_, _ = part.Write(fakeData)

	writer.Close()

	req, err := http.NewRequest(http.MethodPost, "/api/upload/reference", &buf)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

func TestUploadReference_Success(t *testing.T) {
	ta := setupApp(t)

	token := generateToken(t)
	req := createMultipartReferenceRequest(t, token)

	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusCreated)

	result := parseJSON(t, resp)
	if result["id"] == nil || result["id"] == "" {
		t.Error("expected 'id' in response")
	}
	if result["fileUrl"] == nil || result["fileUrl"] == "" {
		t.Error("expected 'fileUrl' in response")
	}
}

func TestUploadReference_NoAuth(t *testing.T) {
	ta := setupApp(t)

	req := createMultipartReferenceRequest(t, "")

	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestUploadReference_MissingFile(t *testing.T) {
	ta := setupApp(t)

	token := generateToken(t)
	projectID := uuid.New().String()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("projectId", projectID)
	writer.Close()

	req, _ := http.NewRequest(http.MethodPost, "/api/upload/reference", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestUploadReference_InvalidType(t *testing.T) {
	ta := setupApp(t)

	token := generateToken(t)
	projectID := uuid.New().String()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("projectId", projectID)

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", `form-data; name="file"; filename="reference.gif"`)
	partHeader.Set("Content-Type", "image/gif")
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	_, _ = part.Write([]byte("GIF89a"))
	writer.Close()

	req, _ := http.NewRequest(http.MethodPost, "/api/upload/reference", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestDeleteReference_Success(t *testing.T) {
	ta := setupApp(t)

	path := fmt.Sprintf("/api/upload/reference/%s/%s", uuid.New().String(), uuid.New().String())

	resp, err := doAuthRequest(t, ta.app, http.MethodDelete, path, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusNoContent)
}
