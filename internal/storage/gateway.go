package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"jobtrail/internal/config"
	jobtrail_errors "jobtrail/pkg/errors"
	"jobtrail/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Backend identifies one of the physical attachment storage strategies.
type Backend string

const (
	BackendObjectStore Backend = "objectstore"
	BackendRemoteBlob  Backend = "remoteblob"
	BackendLocal       Backend = "local"
)

// Presigned URL expiry windows.
const (
	presignPutTTL = 15 * time.Minute
	presignGetTTL = time.Hour
)

// SaveResult describes where saved bytes ended up. URL is empty when the
// backend has no stable public URL and bytes must be served via signed GET.
type SaveResult struct {
	StorageKey string
	URL        string
	Size       int64
}

// SignedUpload is the canonical phase-1 negotiation result. UploadURL empty
// means "no signed upload; POST the bytes through the server instead".
type SignedUpload struct {
	UploadURL  string
	URL        string
	StorageKey string
}

// Outcome tags which path an operation took, so callers and tests can assert
// on fallback behavior instead of inferring it from field presence.
type Outcome struct {
	Backend  Backend
	Degraded bool
	Reason   string
}

// objectStore and remoteBlob are what the gateway needs from its backends.
// Satisfied by S3Client and RemoteBlobClient; swapped out in tests.
type objectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	PresignGet(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	FileURL(key string) string
}

type remoteBlob interface {
	CreateSignedUpload(ctx context.Context, filename, contentType string) (SignedUpload, error)
	Put(ctx context.Context, uploadURL string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) (bool, error)
	FileURL(key string) string
}

// Gateway is the single entry point hiding which backend stores bytes.
// Configuration is re-read per call so credentials can appear or change in
// the environment without a restart.
type Gateway struct {
	cfg func() config.Blob
	log *logger.Logger

	objectStoreFor func(ctx context.Context, cfg config.Blob) (objectStore, error)
	remoteFor      func(cfg config.Blob) remoteBlob
}

func NewGateway(cfg func() config.Blob, log *logger.Logger) *Gateway {
	if cfg == nil {
		cfg = config.LoadBlob
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Gateway{
		cfg: cfg,
		log: log,
		objectStoreFor: func(ctx context.Context, cfg config.Blob) (objectStore, error) {
			return NewS3Client(ctx, S3Config{
				Region:     cfg.S3Region,
				Bucket:     cfg.S3Bucket,
				AccessKey:  cfg.S3AccessKey,
				SecretKey:  cfg.S3SecretKey,
				Endpoint:   cfg.S3Endpoint,
				PublicBase: cfg.S3PublicBase,
			})
		},
		remoteFor: func(cfg config.Blob) remoteBlob {
			return NewRemoteBlobClient(RemoteBlobConfig{
				Token:      cfg.BlobToken,
				APIBase:    cfg.BlobAPIBase,
				UploadURL:  cfg.BlobUploadURL,
				PublicBase: cfg.BlobPublicBase,
			})
		},
	}
}

// selectBackend picks the backend for this call: object store when
// credentials are present, then the remote blob service, then local disk.
func (g *Gateway) selectBackend(cfg config.Blob, override Backend) Backend {
	if override != "" {
		return override
	}
	if cfg.HasObjectStore() {
		return BackendObjectStore
	}
	if cfg.HasRemoteBlob() {
		return BackendRemoteBlob
	}
	return BackendLocal
}

// Local returns the local store for the current configuration.
func (g *Gateway) Local() *LocalStore {
	return NewLocalStore(g.cfg().UploadsDir)
}

// Save writes data to the active backend. Remote failures degrade to local
// storage unless EnforceRemote is set, in which case they surface as errors.
func (g *Gateway) Save(ctx context.Context, filename string, data []byte, contentType string) (SaveResult, Outcome, error) {
	if filename == "" {
		return SaveResult{}, Outcome{}, fmt.Errorf("%w: filename is required", jobtrail_errors.ErrInvalidInput)
	}
	cfg := g.cfg()
	if cfg.MaxUploadBytes > 0 && int64(len(data)) > cfg.MaxUploadBytes {
		return SaveResult{}, Outcome{}, fmt.Errorf("%w: %d bytes exceeds limit of %d", jobtrail_errors.ErrTooLarge, len(data), cfg.MaxUploadBytes)
	}

	switch g.selectBackend(cfg, "") {
	case BackendObjectStore:
		client, err := g.objectStoreFor(ctx, cfg)
		if err == nil {
			key := remoteObjectKey(filename)
			if err = client.Put(ctx, key, data, contentType); err == nil {
				return SaveResult{
					StorageKey: key,
					URL:        client.FileURL(key),
					Size:       int64(len(data)),
				}, Outcome{Backend: BackendObjectStore}, nil
			}
		}
		return g.degradeSave(ctx, cfg, BackendObjectStore, filename, data, err)

	case BackendRemoteBlob:
		rb := g.remoteFor(cfg)
		signed, err := rb.CreateSignedUpload(ctx, filename, contentType)
		if err == nil {
			if err = rb.Put(ctx, signed.UploadURL, data, contentType); err == nil {
				publicURL := signed.URL
				if publicURL == "" {
					publicURL = rb.FileURL(signed.StorageKey)
				}
				return SaveResult{
					StorageKey: signed.StorageKey,
					URL:        publicURL,
					Size:       int64(len(data)),
				}, Outcome{Backend: BackendRemoteBlob}, nil
			}
		}
		return g.degradeSave(ctx, cfg, BackendRemoteBlob, filename, data, err)

	default:
		if cfg.EnforceRemote {
			return SaveResult{}, Outcome{}, fmt.Errorf("%w: remote uploads enforced but no remote backend is configured", jobtrail_errors.ErrNotConfigured)
		}
		res, err := NewLocalStore(cfg.UploadsDir).Save(filename, data)
		if err != nil {
			return SaveResult{}, Outcome{}, err
		}
		return res, Outcome{Backend: BackendLocal}, nil
	}
}

func (g *Gateway) degradeSave(ctx context.Context, cfg config.Blob, from Backend, filename string, data []byte, cause error) (SaveResult, Outcome, error) {
	if cfg.EnforceRemote {
		return SaveResult{}, Outcome{Backend: from}, fmt.Errorf("%w: %s save: %v", jobtrail_errors.ErrUpstream, from, cause)
	}
	fallbackTotal.WithLabelValues(string(from), "save").Inc()
	g.log.WithContext(ctx).Warn("remote save failed, falling back to local storage",
		zap.Bool("fallback", true),
		zap.String("backend", string(from)),
		zap.Error(cause),
	)

	res, err := NewLocalStore(cfg.UploadsDir).Save(filename, data)
	if err != nil {
		return SaveResult{}, Outcome{Backend: from}, err
	}
	return res, Outcome{Backend: BackendLocal, Degraded: true, Reason: reasonOf(cause)}, nil
}

// CreateSignedUploadURL negotiates a signed upload target. For the local
// backend UploadURL is empty: the caller must POST bytes to the server, which
// saves them directly.
func (g *Gateway) CreateSignedUploadURL(ctx context.Context, filename, contentType string) (SignedUpload, Outcome, error) {
	if filename == "" {
		return SignedUpload{}, Outcome{}, fmt.Errorf("%w: filename is required", jobtrail_errors.ErrInvalidInput)
	}
	cfg := g.cfg()

	switch g.selectBackend(cfg, "") {
	case BackendObjectStore:
		client, err := g.objectStoreFor(ctx, cfg)
		if err == nil {
			key := remoteObjectKey(filename)
			var uploadURL string
			if uploadURL, err = client.PresignPut(ctx, key, contentType, presignPutTTL); err == nil {
				return SignedUpload{
					UploadURL:  uploadURL,
					URL:        client.FileURL(key),
					StorageKey: key,
				}, Outcome{Backend: BackendObjectStore}, nil
			}
		}
		return g.degradeSigned(ctx, cfg, BackendObjectStore, filename, cfg.S3PublicBase, err)

	case BackendRemoteBlob:
		signed, err := g.remoteFor(cfg).CreateSignedUpload(ctx, filename, contentType)
		if err == nil {
			return signed, Outcome{Backend: BackendRemoteBlob}, nil
		}
		return g.degradeSigned(ctx, cfg, BackendRemoteBlob, filename, cfg.BlobPublicBase, err)

	default:
		if cfg.EnforceRemote {
			return SignedUpload{}, Outcome{}, fmt.Errorf("%w: remote uploads enforced but no remote backend is configured", jobtrail_errors.ErrNotConfigured)
		}
		key, localURL, err := NewLocalStore(cfg.UploadsDir).Describe(filename)
		if err != nil {
			return SignedUpload{}, Outcome{}, err
		}
		return SignedUpload{URL: localURL, StorageKey: key}, Outcome{Backend: BackendLocal}, nil
	}
}

func (g *Gateway) degradeSigned(ctx context.Context, cfg config.Blob, from Backend, filename, publicBase string, cause error) (SignedUpload, Outcome, error) {
	if cfg.EnforceRemote {
		return SignedUpload{}, Outcome{Backend: from}, fmt.Errorf("%w: %s signed upload: %v", jobtrail_errors.ErrUpstream, from, cause)
	}
	fallbackTotal.WithLabelValues(string(from), "signed_upload").Inc()
	g.log.WithContext(ctx).Warn("signed upload negotiation failed, degrading",
		zap.Bool("fallback", true),
		zap.String("backend", string(from)),
		zap.Error(cause),
	)

	// Best available alternative: a public-URL guess when a prefix is
	// configured, otherwise a full fall back to local storage.
	if publicBase != "" {
		key := remoteObjectKey(filename)
		return SignedUpload{
			URL:        strings.TrimSuffix(publicBase, "/") + "/" + key,
			StorageKey: key,
		}, Outcome{Backend: from, Degraded: true, Reason: reasonOf(cause)}, nil
	}

	key, localURL, err := NewLocalStore(cfg.UploadsDir).Describe(filename)
	if err != nil {
		return SignedUpload{}, Outcome{Backend: from}, err
	}
	return SignedUpload{URL: localURL, StorageKey: key},
		Outcome{Backend: BackendLocal, Degraded: true, Reason: reasonOf(cause)}, nil
}

// CreateSignedDownloadURL returns a time-limited GET URL for storageKey.
// Only the object store can serve signed GETs; ok is false otherwise and the
// caller should use the stored URL or stream through the proxy.
func (g *Gateway) CreateSignedDownloadURL(ctx context.Context, storageKey, contentType string) (string, bool, error) {
	cfg := g.cfg()
	if !cfg.HasObjectStore() || storageKey == "" {
		return "", false, nil
	}
	client, err := g.objectStoreFor(ctx, cfg)
	if err == nil {
		var signed string
		if signed, err = client.PresignGet(ctx, storageKey, contentType, presignGetTTL); err == nil {
			return signed, true, nil
		}
	}
	if cfg.EnforceRemote {
		return "", false, fmt.Errorf("%w: signed download: %v", jobtrail_errors.ErrUpstream, err)
	}
	g.log.WithContext(ctx).Warn("signed download negotiation failed",
		zap.Bool("fallback", true), zap.Error(err))
	return "", false, nil
}

// GetObject streams stored bytes for storageKey. Object-store keys come from
// the bucket; local keys come off disk. Used by the proxy endpoint.
func (g *Gateway) GetObject(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	cfg := g.cfg()
	local := NewLocalStore(cfg.UploadsDir)
	if local.Exists(storageKey) {
		return local.Open(storageKey)
	}
	if !cfg.HasObjectStore() {
		return nil, jobtrail_errors.ErrNotFound
	}
	client, err := g.objectStoreFor(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", jobtrail_errors.ErrUpstream, err)
	}
	body, err := client.Get(ctx, storageKey)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", jobtrail_errors.ErrUpstream, storageKey, err)
	}
	return body, nil
}

// Delete removes stored bytes, best effort. Provider-specific deletion is
// attempted first; failing that, a URL under the local namespace removes the
// local file. Returns true only if some deletion actually occurred.
func (g *Gateway) Delete(ctx context.Context, storageKey, fileURL string) (bool, error) {
	cfg := g.cfg()
	deleted := false

	if storageKey != "" {
		switch {
		case cfg.HasObjectStore():
			client, err := g.objectStoreFor(ctx, cfg)
			if err == nil {
				err = client.Delete(ctx, storageKey)
			}
			if err != nil {
				deleteFailuresTotal.Inc()
				g.log.WithContext(ctx).Warn("object store delete failed",
					zap.String("key", storageKey), zap.Error(err))
			} else {
				deleted = true
			}
		case cfg.HasRemoteBlob():
			ok, err := g.remoteFor(cfg).Delete(ctx, storageKey)
			if err != nil {
				deleteFailuresTotal.Inc()
				g.log.WithContext(ctx).Warn("remote blob delete failed",
					zap.String("key", storageKey), zap.Error(err))
			} else {
				deleted = ok
			}
		}
	}

	if !deleted {
		local := NewLocalStore(cfg.UploadsDir)
		key := storageKey
		if k, ok := local.KeyFromURL(fileURL); ok {
			key = k
		}
		if strings.HasPrefix(key, "uploads/") {
			ok, err := local.Delete(key)
			if err != nil {
				deleteFailuresTotal.Inc()
				g.log.WithContext(ctx).Warn("local delete failed",
					zap.String("key", key), zap.Error(err))
			}
			deleted = ok
		}
	}

	return deleted, nil
}

// ResolveUploadTarget derives the storage key and a best-effort public URL
// from a signed upload URL, for the server-relay path where the caller only
// supplies the URL it was told to PUT to.
func (g *Gateway) ResolveUploadTarget(uploadURL string) (storageKey, publicURL string) {
	parsed, err := url.Parse(uploadURL)
	if err != nil {
		return "", ""
	}
	key := strings.TrimPrefix(parsed.Path, "/")

	cfg := g.cfg()
	// Path-style object-store URLs carry the bucket as the first segment.
	if cfg.S3Bucket != "" && strings.HasPrefix(key, cfg.S3Bucket+"/") {
		key = strings.TrimPrefix(key, cfg.S3Bucket+"/")
	}

	switch {
	case cfg.HasObjectStore() && cfg.S3PublicBase != "":
		publicURL = strings.TrimSuffix(cfg.S3PublicBase, "/") + "/" + key
	case cfg.BlobPublicBase != "":
		publicURL = strings.TrimSuffix(cfg.BlobPublicBase, "/") + "/" + key
	}
	return key, publicURL
}

// remoteObjectKey namespaces remote keys with a fresh id segment so records
// with identical filenames never collide.
func remoteObjectKey(filename string) string {
	return "uploads/" + uuid.New().String() + "/" + path.Base(path.Clean("/"+filename))
}

func reasonOf(err error) string {
	if err == nil {
		return "not configured"
	}
	return err.Error()
}
