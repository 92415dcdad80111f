// Package media defines the image-upload collaborator: it takes a local image
// and returns a durable public URL. No retries; the caller decides.
package media

import (
	"context"
	"io"
)

// Uploader pushes one image to the hosting service.
type Uploader interface {
	// Upload streams the image and returns its public URL; failures wrap
	// errs.ErrUploadFailed.
	Upload(ctx context.Context, name string, r io.Reader) (string, error)
}
