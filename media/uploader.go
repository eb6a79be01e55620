// Package media moves locally staged files into durable object storage.
//
// Handlers accept uploads onto local disk first, then hand the temp path to
// an Uploader. The uploader owns the temp file from that point: it is
// removed whether the transfer succeeds or fails, so callers never leak
// staged files.
package media

import "context"

// UploadResult describes a stored object.
type UploadResult struct {
	// URL is the publicly addressable location of the object.
	URL string `json:"url"`
	// Key is the storage key inside the bucket.
	Key string `json:"key"`
}

// Uploader persists a locally staged file into object storage.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (*UploadResult, error)
}

// UploaderFunc adapts a function to the Uploader interface.
type UploaderFunc func(ctx context.Context, localPath string) (*UploadResult, error)

func (f UploaderFunc) Upload(ctx context.Context, localPath string) (*UploadResult, error) {
	return f(ctx, localPath)
}
