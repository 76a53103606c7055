// Package imageprep prepares raw user images before uploading them to the effects backend.
package imageprep

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Registers the WebP decoder.

	"github.com/slok/fxtask/internal/model"
)

// Prepare downscales the image so its longest side is at most maxDim pixels, keeping
// the aspect ratio. Images already inside the bounds (or a maxDim <= 0) are returned
// untouched. WebP images are always re-encoded. JPEG images are re-encoded as JPEG,
// anything else as PNG.
func Prepare(data []byte, maxDim int) (out []byte, contentType string, err error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("could not decode image: %s: %w", err, model.ErrValidation)
	}

	// No WebP encoder, we only decode it.
	inBounds := maxDim <= 0 || (cfg.Width <= maxDim && cfg.Height <= maxDim)
	if inBounds && format != "webp" {
		return data, ContentType(format), nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("could not decode image: %s: %w", err, model.ErrValidation)
	}
	if !inBounds {
		img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	}

	outFormat := imaging.PNG
	if format == "jpeg" {
		outFormat = imaging.JPEG
	}

	var b bytes.Buffer
	if err := imaging.Encode(&b, img, outFormat, imaging.JPEGQuality(90)); err != nil {
		return nil, "", fmt.Errorf("could not encode image: %w", err)
	}

	return b.Bytes(), ContentType(outFormat.String()), nil
}

// ContentType returns the MIME type for an image format name.
func ContentType(format string) string {
	switch format {
	case "jpeg", "JPEG", "jpg":
		return "image/jpeg"
	case "png", "PNG":
		return "image/png"
	case "gif", "GIF":
		return "image/gif"
	case "bmp", "BMP":
		return "image/bmp"
	case "tiff", "TIFF":
		return "image/tiff"
	case "webp", "WEBP":
		return "image/webp"
	}
	return "application/octet-stream"
}
