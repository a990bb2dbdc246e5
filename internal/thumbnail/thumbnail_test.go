package thumbnail

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func decodeURI(t *testing.T, uri string) image.Image {
	t.Helper()
	if !strings.HasPrefix(uri, DataURIPrefix) {
		t.Fatalf("not a jpeg data URI: %.40s", uri)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, DataURIPrefix))
	if err != nil {
		t.Fatal(err)
	}
	img, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func TestMakeThumbnail_Landscape(t *testing.T) {
	uri, err := JPEG{}.MakeThumbnail(pngBytes(t, 200, 100), 50)
	if err != nil {
		t.Fatalf("MakeThumbnail: %v", err)
	}
	b := decodeURI(t, uri).Bounds()
	if b.Dx() != 50 || b.Dy() != 25 {
		t.Errorf("size = %dx%d, want 50x25", b.Dx(), b.Dy())
	}
}

func TestMakeThumbnail_NoUpscale(t *testing.T) {
	uri, err := JPEG{Quality: 90}.MakeThumbnail(pngBytes(t, 20, 10), 50)
	if err != nil {
		t.Fatal(err)
	}
	b := decodeURI(t, uri).Bounds()
	if b.Dx() != 20 || b.Dy() != 10 {
		t.Errorf("size = %dx%d, want 20x10", b.Dx(), b.Dy())
	}
}

func TestMakeThumbnail_NotAnImage(t *testing.T) {
	if _, err := (JPEG{}).MakeThumbnail([]byte("<html>nope</html>"), 50); err == nil {
		t.Error("expected decode error")
	}
	if _, err := (JPEG{}).MakeThumbnail(nil, 50); err == nil {
		t.Error("expected error for empty data")
	}
}

// hugePNG returns a tiny PNG whose header claims w x h pixels.
func hugePNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data := pngBytes(t, 1, 1)
	// Signature (8), IHDR length (4), "IHDR" (4), width, height, ... crc.
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestMakeThumbnail_RejectsOversizedHeader(t *testing.T) {
	_, err := JPEG{}.MakeThumbnail(hugePNG(t, 100_000, 100_000), 50)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
}

func TestMakeThumbnail_PixelBudget(t *testing.T) {
	data := pngBytes(t, 200, 100)
	if _, err := (JPEG{MaxPixels: 10_000}).MakeThumbnail(data, 50); !errors.Is(err, ErrTooLarge) {
		t.Errorf("err = %v, want ErrTooLarge", err)
	}
	if _, err := (JPEG{MaxPixels: 20_000}).MakeThumbnail(data, 50); err != nil {
		t.Errorf("within budget: %v", err)
	}
}

func TestFit(t *testing.T) {
	tests := []struct{ w, h, max, ww, wh int }{
		{200, 100, 50, 50, 25},
		{100, 200, 50, 25, 50},
		{50, 50, 50, 50, 50},
		{1000, 1, 50, 50, 1},
		{0, 10, 50, 1, 1},
	}
	for _, tt := range tests {
		w, h := Fit(tt.w, tt.h, tt.max)
		if w != tt.ww || h != tt.wh {
			t.Errorf("Fit(%d,%d,%d) = %d,%d want %d,%d", tt.w, tt.h, tt.max, w, h, tt.ww, tt.wh)
		}
	}
}
