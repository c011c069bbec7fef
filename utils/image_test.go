package utils

import (
	"bytes"
	"image"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestResizeImageShrinksLargeImages(t *testing.T) {
	data := encodePNG(t, 200, 100)

	resized, mimeType, err := ResizeImage(data, 50, 85)
	if err != nil {
		t.Fatalf("resize failed: %v", err)
	}
	if mimeType != "image/png" {
		t.Errorf("png should stay png, got %q", mimeType)
	}

	width, height, err := ImageDimensions(resized)
	if err != nil {
		t.Fatalf("failed to probe resized image: %v", err)
	}
	if width != 50 {
		t.Errorf("expected width 50, got %d", width)
	}
	if height != 25 {
		t.Errorf("expected height 25 (aspect preserved), got %d", height)
	}
}

func TestResizeImageKeepsSmallImages(t *testing.T) {
	data := encodePNG(t, 30, 20)

	resized, _, err := ResizeImage(data, 100, 85)
	if err != nil {
		t.Fatalf("resize failed: %v", err)
	}
	if !bytes.Equal(resized, data) {
		t.Error("images within bounds should be returned unchanged")
	}
}

func TestResizeImageRejectsGarbage(t *testing.T) {
	if _, _, err := ResizeImage([]byte("not an image"), 100, 85); err == nil {
		t.Error("expected error for undecodable input")
	}
}

func TestImageDimensions(t *testing.T) {
	width, height, err := ImageDimensions(encodePNG(t, 7, 9))
	if err != nil {
		t.Fatalf("failed to probe dimensions: %v", err)
	}
	if width != 7 || height != 9 {
		t.Errorf("expected 7x9, got %dx%d", width, height)
	}
}

func TestGetMimeType(t *testing.T) {
	if mime := GetMimeType("photo.PNG"); mime != "image/png" {
		t.Errorf("expected image/png, got %q", mime)
	}
	if mime := GetMimeType("notes.md"); mime != "text/markdown" {
		t.Errorf("expected text/markdown, got %q", mime)
	}
	if mime := GetMimeType("unknown.xyz"); mime != "application/octet-stream" {
		t.Errorf("expected fallback mime type, got %q", mime)
	}
}

func TestFormatFileSize(t *testing.T) {
	cases := []struct {
		bytes int64
		want  string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, c := range cases {
		if got := FormatFileSize(c.bytes); got != c.want {
			t.Errorf("FormatFileSize(%d) = %q, want %q", c.bytes, got, c.want)
		}
	}
}
