package blob

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	DefaultNormalizeMaxEdge = 512
	DefaultNormalizeQuality = 85

	maxSourcePixels = 40_000_000
)

var ErrInvalidImage = errors.New("invalid image")

type NormalizedImage struct {
	Data     []byte
	MimeType string
	Width    int
	Height   int
}

// NormalizeStaticImage decodes a JPEG, PNG, GIF or WebP image, scales it to
// fit maxEdge without upscaling and re-encodes it. Images with transparency
// become PNG, everything else JPEG.
func NormalizeStaticImage(src io.Reader, maxEdge int, quality int) (*NormalizedImage, error) {
	if maxEdge <= 0 {
		maxEdge = DefaultNormalizeMaxEdge
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultNormalizeQuality
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxSourcePixels {
		return nil, fmt.Errorf("%w: unsupported dimensions %dx%d", ErrInvalidImage, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	bounds := img.Bounds()
	width, height := scaleDimensions(bounds.Dx(), bounds.Dy(), maxEdge)
	buf := bytes.NewBuffer(nil)

	if hasAlpha(img) {
		dst := image.NewNRGBA(image.Rect(0, 0, width, height))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Src, nil)
		if err := png.Encode(buf, dst); err != nil {
			return nil, fmt.Errorf("encoding png: %w", err)
		}
		return &NormalizedImage{Data: buf.Bytes(), MimeType: "image/png", Width: width, Height: height}, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Src, nil)
	if err := jpeg.Encode(buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return &NormalizedImage{Data: buf.Bytes(), MimeType: "image/jpeg", Width: width, Height: height}, nil
}

func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return true
}

func scaleDimensions(width, height, maxEdge int) (int, int) {
	if width <= maxEdge && height <= maxEdge {
		return width, height
	}

	if width >= height {
		ratio := float64(maxEdge) / float64(width)
		return maxEdge, max(1, int(float64(height)*ratio+0.5))
	}

	ratio := float64(maxEdge) / float64(height)
	return max(1, int(float64(width)*ratio+0.5)), maxEdge
}
