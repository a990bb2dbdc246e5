// Package thumbnail downscales images into small JPEG data URIs for row
// previews.
package thumbnail

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DefaultMaxDimension is the longest side of a preview in pixels.
const DefaultMaxDimension = 50

// DataURIPrefix starts every generated thumbnail.
const DataURIPrefix = "data:image/jpeg;base64,"

// DefaultMaxPixels caps the declared width x height decoded for a preview.
const DefaultMaxPixels = 50_000_000

// ErrTooLarge is returned for images whose header declares more pixels than
// the budget allows. Nothing is decoded in that case.
var ErrTooLarge = errors.New("image dimensions exceed the pixel budget")

// Maker turns image bytes into a preview data URI.
type Maker interface {
	MakeThumbnail(data []byte, maxDim int) (string, error)
}

// JPEG is the default Maker: decode, fit within maxDim preserving aspect
// ratio (never upscaling), encode as JPEG.
type JPEG struct {
	Quality int
	// MaxPixels bounds width x height from the image header (default
	// DefaultMaxPixels).
	MaxPixels int
}

// MakeThumbnail implements Maker.
func (j JPEG) MakeThumbnail(data []byte, maxDim int) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty image data")
	}
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}
	budget := j.MaxPixels
	if budget <= 0 {
		budget = DefaultMaxPixels
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(budget) {
		return "", fmt.Errorf("%dx%d: %w", cfg.Width, cfg.Height, ErrTooLarge)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	w, h := Fit(src.Bounds().Dx(), src.Bounds().Dy(), maxDim)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// JPEG has no alpha; flatten transparent pixels onto white.
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	q := j.Quality
	if q <= 0 || q > 100 {
		q = 80
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: q}); err != nil {
		return "", fmt.Errorf("encode thumbnail: %w", err)
	}
	return DataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Fit returns the size of a w x h image scaled so its longest side is at
// most maxDim. Images already small enough keep their size; neither side
// drops below one pixel.
func Fit(w, h, maxDim int) (int, int) {
	if w <= 0 || h <= 0 {
		return 1, 1
	}
	if w <= maxDim && h <= maxDim {
		return w, h
	}
	if w >= h {
		return maxDim, max(1, (h*maxDim+w/2)/w)
	}
	return max(1, (w*maxDim+h/2)/h), maxDim
}
