// Package imagecodec normalizes uploaded note images to PNG.
package imagecodec

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/starford/jotter/internal/apperr"
)

// ContentType of every normalized image.
const ContentType = "image/png"

var allowedFormats = map[string]bool{
	"png":  true,
	"jpeg": true,
	"gif":  true,
	"webp": true,
}

// DefaultMaxPixels caps the decoded bitmap when Limits.MaxPixels is unset.
const DefaultMaxPixels int64 = 40_000_000

// Limits bounds the images Normalize accepts and produces.
type Limits struct {
	// MaxDimension is the longest side of the output; 0 keeps the source size.
	MaxDimension int
	// MaxPixels rejects sources whose declared width×height exceeds it,
	// before any pixel is decoded. 0 means DefaultMaxPixels.
	MaxPixels int64
}

func (l Limits) maxPixels() int64 {
	if l.MaxPixels <= 0 {
		return DefaultMaxPixels
	}
	return l.MaxPixels
}

// Info describes a normalized image.
type Info struct {
	Format        string // source format as reported by image.DecodeConfig
	Width, Height int    // dimensions after scaling
	Scaled        bool
}

// Normalize decodes data (png, jpeg, gif or webp), downscales it so neither
// side exceeds lim.MaxDimension and re-encodes it as PNG. Undecodable,
// unsupported or oversized input yields an apperr.ErrValidation error.
func Normalize(data []byte, lim Limits) ([]byte, Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, Info{}, apperr.Validation("image", "unsupported image format")
	}
	if !allowedFormats[format] {
		return nil, Info{}, apperr.Validation("image", "unsupported image format: "+format)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, Info{}, apperr.Validation("image", "empty image")
	}
	// The decoder allocates the full bitmap from the header alone.
	if int64(cfg.Width)*int64(cfg.Height) > lim.maxPixels() {
		return nil, Info{}, apperr.Validation("image", "image too large")
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, Info{}, apperr.Validation("image", "corrupt image")
	}

	info := Info{Format: format, Width: cfg.Width, Height: cfg.Height}
	if w, h := fit(cfg.Width, cfg.Height, lim.MaxDimension); w != cfg.Width || h != cfg.Height {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
		src = dst
		info.Width, info.Height, info.Scaled = w, h, true
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		return nil, Info{}, fmt.Errorf("imagecodec: encode png: %w", err)
	}
	return buf.Bytes(), info, nil
}

// fit shrinks w×h proportionally into a maxDim square. Images already inside
// it are returned unchanged.
func fit(w, h, maxDim int) (int, int) {
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return w, h
	}
	if w >= h {
		return maxDim, max(1, h*maxDim/w)
	}
	return max(1, w*maxDim/h), maxDim
}

// ETag returns a strong HTTP entity tag for image bytes.
func ETag(data []byte) string {
	sum := sha256.Sum256(data)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}
