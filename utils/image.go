package utils

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/nfnt/resize"
)

// ResizeImage scales an image down so that neither dimension exceeds
// maxDim, keeping the aspect ratio. Images already within bounds are
// returned unchanged. PNG input stays PNG; everything else is re-encoded
// as JPEG at the given quality.
func ResizeImage(data []byte, maxDim uint, quality int) ([]byte, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width := uint(bounds.Dx())
	height := uint(bounds.Dy())

	if width <= maxDim && height <= maxDim {
		mimeType := "image/jpeg"
		if format == "png" {
			mimeType = "image/png"
		}
		return data, mimeType, nil
	}

	if width > height {
		img = resize.Resize(maxDim, 0, img, resize.Lanczos3)
	} else {
		img = resize.Resize(0, maxDim, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	mimeType := "image/jpeg"
	if format == "png" {
		err = png.Encode(&buf, img)
		mimeType = "image/png"
	} else {
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), mimeType, nil
}

// ImageDimensions returns the pixel dimensions of an encoded image
func ImageDimensions(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
