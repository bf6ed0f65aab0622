package viewport

import (
	"fmt"
	"image"
	"io"

	// Registered decoders for DecodeNaturalSize.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeNaturalSize reads the image header and returns its natural size and
// format name without decoding pixel data.
func DecodeNaturalSize(r io.Reader) (width, height int, format string, err error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return 0, 0, "", fmt.Errorf("failed to decode image header: %w", err)
	}
	return cfg.Width, cfg.Height, format, nil
}

// DecodeImage decodes a full image in any of the registered formats.
func DecodeImage(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}
