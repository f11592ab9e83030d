package credential

import (
	"context"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// qrSize is the rendered PNG edge length in pixels.
const qrSize = 256

// Uploader stores rendered QR images; pkg/storage.S3 satisfies it.
type Uploader interface {
	UploadQRImage(ctx context.Context, credential string, png []byte) (string, error)
}

// ImageStore renders credential values as QR PNGs and uploads them. Rendering
// failures never affect the credential itself; the value stays valid for gate
// scans without an image.
type ImageStore struct {
	uploader Uploader
}

// NewImageStore creates an image store over an uploader.
func NewImageStore(uploader Uploader) *ImageStore {
	return &ImageStore{uploader: uploader}
}

// Render returns the QR PNG for a credential value.
func Render(value string) ([]byte, error) {
	png, err := qrcode.Encode(value, qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// Store renders and uploads the image for a credential value, returning the
// public image URL. The object key is derived from the value, so repeated
// calls are idempotent.
func (s *ImageStore) Store(ctx context.Context, value string) (string, error) {
	png, err := Render(value)
	if err != nil {
		return "", err
	}
	return s.uploader.UploadQRImage(ctx, value, png)
}
