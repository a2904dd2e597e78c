package httpdto

import "time"

// CreateSignedUploadRequest is used for POST /uploads/create
type CreateSignedUploadRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"contentType"`
	Origin      string `json:"origin"`
}

// CreateSignedUploadResponse is the canonical phase-1 negotiation result.
// Provider field-name variance is normalized before it reaches this shape.
type CreateSignedUploadResponse struct {
	UploadURL  string `json:"uploadUrl,omitempty"`
	URL        string `json:"url,omitempty"`
	StorageKey string `json:"storageKey"`
	Relay      bool   `json:"relay"`
}

// SaveUploadRequest is used for POST /uploads. Two shapes share it: a direct
// metadata persist (url/storageKey/size after a client PUT) and a server
// relay (contentBase64 plus an optional signed uploadUrl).
type SaveUploadRequest struct {
	JobID         string `json:"jobId"`
	Filename      string `json:"filename" binding:"required"`
	ContentType   string `json:"contentType"`
	URL           string `json:"url"`
	StorageKey    string `json:"storageKey"`
	Size          int64  `json:"size"`
	ContentBase64 string `json:"contentBase64"`
	UploadURL     string `json:"uploadUrl"`
}

// AttachmentDTO represents an attachment in API responses
type AttachmentDTO struct {
	ID          string    `json:"id"`
	JobID       string    `json:"jobId,omitempty"`
	Filename    string    `json:"filename"`
	StorageKey  string    `json:"storageKey"`
	URL         string    `json:"url,omitempty"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	CreatedAt   time.Time `json:"createdAt"`
}

// DeleteUploadResponse is returned after DELETE /uploads/:id
type DeleteUploadResponse struct {
	ID    string `json:"id"`
	JobID string `json:"jobId,omitempty"`
}

// DeleteJobUploadsResponse is returned after DELETE /jobs/:id/uploads
type DeleteJobUploadsResponse struct {
	Deleted int64 `json:"deleted"`
}
