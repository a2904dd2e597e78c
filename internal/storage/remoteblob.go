package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RemoteBlobConfig configures the hosted blob service client. The service
// issues its own signed upload URLs via a token-authenticated create call and
// then expects a raw PUT to that URL.
type RemoteBlobConfig struct {
	Token      string
	APIBase    string
	UploadURL  string // explicit upload URL override
	PublicBase string
}

type RemoteBlobClient struct {
	cfg  RemoteBlobConfig
	http *http.Client
}

func NewRemoteBlobClient(cfg RemoteBlobConfig) *RemoteBlobClient {
	return &RemoteBlobClient{
		cfg:  cfg,
		http: &http.Client{Timeout: 60 * time.Second},
	}
}

// signedUploadResponse covers the field-name variance across provider
// versions. Canonicalized before anything leaves this package.
type signedUploadResponse struct {
	UploadURLUpper string `json:"uploadURL"`
	UploadURL      string `json:"uploadUrl"`
	SignedURL      string `json:"signedUrl"`
	URL            string `json:"url"`
	DownloadURL    string `json:"downloadUrl"`
	Key            string `json:"key"`
	Pathname       string `json:"pathname"`
}

func (r signedUploadResponse) canonical() SignedUpload {
	out := SignedUpload{}
	for _, u := range []string{r.UploadURLUpper, r.UploadURL, r.SignedURL} {
		if u != "" {
			out.UploadURL = u
			break
		}
	}
	for _, u := range []string{r.URL, r.DownloadURL} {
		if u != "" {
			out.URL = u
			break
		}
	}
	for _, k := range []string{r.Key, r.Pathname} {
		if k != "" {
			out.StorageKey = strings.TrimPrefix(k, "/")
			break
		}
	}
	return out
}

// CreateSignedUpload asks the provider for a signed upload target.
func (c *RemoteBlobClient) CreateSignedUpload(ctx context.Context, filename, contentType string) (SignedUpload, error) {
	if c.cfg.Token == "" {
		return SignedUpload{}, errors.New("remote blob token is not configured")
	}
	body, err := json.Marshal(map[string]string{
		"filename":    filename,
		"contentType": contentType,
	})
	if err != nil {
		return SignedUpload{}, err
	}

	endpoint := strings.TrimSuffix(c.cfg.APIBase, "/") + "/signed-url"
	if c.cfg.UploadURL != "" {
		endpoint = c.cfg.UploadURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return SignedUpload{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return SignedUpload{}, fmt.Errorf("signed-url create failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SignedUpload{}, fmt.Errorf("signed-url create failed: status %d", resp.StatusCode)
	}

	var raw signedUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return SignedUpload{}, fmt.Errorf("signed-url create failed: %w", err)
	}

	out := raw.canonical()
	if out.UploadURL == "" {
		return SignedUpload{}, errors.New("signed-url create returned no upload url")
	}
	if out.StorageKey == "" {
		out.StorageKey = keyFromURL(out.UploadURL)
	}
	if out.URL == "" {
		out.URL = c.FileURL(out.StorageKey)
	}
	return out, nil
}

// Put transfers data to a previously issued signed upload URL.
func (c *RemoteBlobClient) Put(ctx context.Context, uploadURL string, data []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.ContentLength = int64(len(data))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("blob put failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("blob put failed: status %d", resp.StatusCode)
	}
	return nil
}

// Delete removes the blob stored under key. Returns false without error when
// the provider reports it as already gone.
func (c *RemoteBlobClient) Delete(ctx context.Context, key string) (bool, error) {
	if c.cfg.Token == "" || key == "" {
		return false, nil
	}
	endpoint := strings.TrimSuffix(c.cfg.APIBase, "/") + "/" + key
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("blob delete failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return false, fmt.Errorf("blob delete failed: status %d", resp.StatusCode)
	}
	return true, nil
}

// FileURL returns the public URL guess for key, or "" without a public base.
func (c *RemoteBlobClient) FileURL(key string) string {
	if c == nil || key == "" || c.cfg.PublicBase == "" {
		return ""
	}
	return strings.TrimSuffix(c.cfg.PublicBase, "/") + "/" + key
}

// keyFromURL derives a storage key from a signed URL's path.
func keyFromURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(parsed.Path, "/")
}
