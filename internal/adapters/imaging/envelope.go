// Package imaging checks that a photo fits what the inference service
// accepts before it is sent anywhere.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/cp25sy5-modjot/ledger-service/internal/domain"
)

type Limits struct {
	MaxBytes     int
	MaxDimension int
}

func DefaultLimits() Limits {
	return Limits{MaxBytes: 4 << 20, MaxDimension: 2048}
}

var mimeTypes = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
}

// Check validates image bytes (PNG/JPEG) against the limits and returns the
// MIME type. Only the header is decoded.
func (l Limits) Check(img []byte) (string, error) {
	if len(img) == 0 {
		return "", fmt.Errorf("%w: empty image", domain.ErrInvalidPayload)
	}
	if l.MaxBytes > 0 && len(img) > l.MaxBytes {
		return "", fmt.Errorf("%w: image has %d bytes, limit is %d", domain.ErrInvalidPayload, len(img), l.MaxBytes)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	mime, ok := mimeTypes[format]
	if !ok {
		return "", fmt.Errorf("%w: unsupported format %s", domain.ErrInvalidPayload, format)
	}
	if l.MaxDimension > 0 && (cfg.Width > l.MaxDimension || cfg.Height > l.MaxDimension) {
		return "", fmt.Errorf("%w: image is %dx%d, limit is %d px", domain.ErrInvalidPayload, cfg.Width, cfg.Height, l.MaxDimension)
	}
	return mime, nil
}
