package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"testing"

	"github.com/fpang/thumbnail-backfill/internal/jobconfig"
	"github.com/fpang/thumbnail-backfill/internal/store/storetest"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: uint8(x % 256), B: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	return buf.Bytes()
}

func newTestPipeline(t *testing.T, ext string) (*Pipeline, *storetest.Memory, string) {
	t.Helper()
	cfg, err := jobconfig.New("media", "p", 100, ext)
	if err != nil {
		t.Fatalf("jobconfig.New: %v", err)
	}
	mem := storetest.NewMemory("media", 0)
	scratch := t.TempDir()
	return New(mem, cfg, scratch), mem, scratch
}

func assertScratchEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch dir not cleaned up: %d entries left", len(entries))
	}
}

func TestProcess_PNG(t *testing.T) {
	p, mem, scratch := newTestPipeline(t, "")
	mem.Set("p/1/a.png", encodePNG(t, 400, 200))

	res, err := p.Process(context.Background(), "p/1/a.png")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.ThumbnailKey != "p/1/thumb_100x100_a.png" {
		t.Errorf("ThumbnailKey = %q", res.ThumbnailKey)
	}
	if res.Width != 100 || res.Height != 50 {
		t.Errorf("dimensions = %dx%d, want 100x50", res.Width, res.Height)
	}

	obj, ok := mem.Get("p/1/thumb_100x100_a.png")
	if !ok {
		t.Fatal("thumbnail not stored")
	}
	if obj.ContentType != "image/png" {
		t.Errorf("ContentType = %q", obj.ContentType)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(obj.Data))
	if err != nil {
		t.Fatalf("stored thumbnail does not decode: %v", err)
	}
	if format != "png" || cfg.Width != 100 || cfg.Height != 50 {
		t.Errorf("stored thumbnail = %s %dx%d", format, cfg.Width, cfg.Height)
	}
	if res.Bytes != int64(len(obj.Data)) {
		t.Errorf("Bytes = %d, stored %d", res.Bytes, len(obj.Data))
	}
	assertScratchEmpty(t, scratch)
}

func TestProcess_PreservesExtensionFormat(t *testing.T) {
	// PNG content stored under a .jpg key is decoded by content and written as JPEG.
	p, mem, scratch := newTestPipeline(t, "")
	mem.Set("p/7/photo.JPG", encodePNG(t, 50, 150))

	res, err := p.Process(context.Background(), "p/7/photo.JPG")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.SourceFormat != "png" {
		t.Errorf("SourceFormat = %q, want png", res.SourceFormat)
	}
	obj, _ := mem.Get("p/7/thumb_100x100_photo.JPG")
	_, format, err := image.DecodeConfig(bytes.NewReader(obj.Data))
	if err != nil || format != "jpeg" {
		t.Errorf("stored format = %q (%v), want jpeg", format, err)
	}
	if obj.ContentType != "image/jpeg" {
		t.Errorf("ContentType = %q", obj.ContentType)
	}
	assertScratchEmpty(t, scratch)
}

func TestProcess_JPEGUpscale(t *testing.T) {
	p, mem, _ := newTestPipeline(t, "")
	mem.Set("p/2/small.jpeg", encodeJPEG(t, 20, 40))

	res, err := p.Process(context.Background(), "p/2/small.jpeg")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Width != 50 || res.Height != 100 {
		t.Errorf("dimensions = %dx%d, want 50x100", res.Width, res.Height)
	}
}

func TestProcess_Failures(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		ext       string
		setup     func(m *storetest.Memory)
		wantKind  error
		wantStage Stage
	}{
		{
			name:      "missing object",
			key:       "p/1/missing.jpg",
			wantKind:  ErrFetch,
			wantStage: StageFetch,
		},
		{
			name: "get error",
			key:  "p/1/a.jpg",
			setup: func(m *storetest.Memory) {
				m.Set("p/1/a.jpg", []byte("x"))
				m.FailGet = map[string]error{"p/1/a.jpg": errors.New("connection reset")}
			},
			wantKind:  ErrFetch,
			wantStage: StageFetch,
		},
		{
			name: "corrupt image",
			key:  "p/1/a.png",
			setup: func(m *storetest.Memory) {
				m.Set("p/1/a.png", []byte("definitely not a png"))
			},
			wantKind:  ErrDecode,
			wantStage: StageDecode,
		},
		{
			name: "empty object",
			key:  "p/1/a.png",
			setup: func(m *storetest.Memory) {
				m.Set("p/1/a.png", nil)
			},
			wantKind:  ErrDecode,
			wantStage: StageDecode,
		},
		{
			name:      "no identifier segment",
			key:       "a.jpg",
			wantKind:  ErrMalformedKey,
			wantStage: StageKey,
		},
		{
			name: "extension outside encoder set",
			key:  "p/1/a.gif",
			ext:  "gif",
			setup: func(m *storetest.Memory) {
				m.Set("p/1/a.gif", []byte("GIF89a"))
			},
			wantKind:  ErrUnsupportedFormat,
			wantStage: StageEncode,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, mem, scratch := newTestPipeline(t, tt.ext)
			if tt.setup != nil {
				tt.setup(mem)
			}

			_, err := p.Process(context.Background(), tt.key)
			if !errors.Is(err, tt.wantKind) {
				t.Fatalf("error = %v, want %v", err, tt.wantKind)
			}
			var se *StageError
			if !errors.As(err, &se) {
				t.Fatalf("error %T is not a *StageError", err)
			}
			if se.Stage != tt.wantStage || se.Key != tt.key {
				t.Errorf("StageError = {%s %s}, want {%s %s}", se.Stage, se.Key, tt.wantStage, tt.key)
			}
			if len(mem.Puts()) != 0 {
				t.Errorf("unexpected uploads: %v", mem.Puts())
			}
			assertScratchEmpty(t, scratch)
		})
	}
}

func TestProcess_StoreError(t *testing.T) {
	p, mem, scratch := newTestPipeline(t, "")
	mem.Set("p/1/a.png", encodePNG(t, 10, 10))
	mem.FailPut = map[string]error{"p/1/thumb_100x100_a.png": errors.New("throttled")}

	_, err := p.Process(context.Background(), "p/1/a.png")
	if !errors.Is(err, ErrStore) {
		t.Fatalf("error = %v, want ErrStore", err)
	}
	if IsDefect(err) {
		t.Error("store failure reported as defect")
	}
	assertScratchEmpty(t, scratch)
}

func TestIsDefect(t *testing.T) {
	p, mem, _ := newTestPipeline(t, "webp")
	mem.Set("p/1/a.webp", []byte("RIFF"))

	_, err := p.Process(context.Background(), "p/1/a.webp")
	if !IsDefect(err) {
		t.Errorf("IsDefect(%v) = false, want true", err)
	}
}
