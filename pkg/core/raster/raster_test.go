package raster

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/penplot/pkg/errors"
)

func square(w, h, x0, y0, x1, y1 int) []uint8 {
	pix := make([]uint8, w*h)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			pix[y*w+x] = 255
		}
	}
	return pix
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		w, h    int
		pix     []uint8
		wantErr bool
	}{
		{"ok", 2, 2, []uint8{0, 255, 255, 0}, false},
		{"zero width", 0, 2, nil, true},
		{"zero height", 2, 0, nil, true},
		{"short pixels", 2, 2, []uint8{1, 2, 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New("Red", tt.w, tt.h, tt.pix)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, errors.ErrCodeInput) {
					t.Errorf("New() error code = %v, want %v", errors.GetCode(err), errors.ErrCodeInput)
				}
				return
			}
			if m.Width() != tt.w || m.Height() != tt.h {
				t.Errorf("size = %dx%d, want %dx%d", m.Width(), m.Height(), tt.w, tt.h)
			}
		})
	}
}

func TestMaskAccessors(t *testing.T) {
	m, err := New("Red", 3, 2, []uint8{0, 200, 0, 127, 128, 255})
	if err != nil {
		t.Fatal(err)
	}

	if got := m.At(1, 0); got != 200 {
		t.Errorf("At(1,0) = %d, want 200", got)
	}
	if got := m.At(5, 5); got != 0 {
		t.Errorf("At(5,5) = %d, want 0", got)
	}
	if m.Foreground(0, 1, DefaultThreshold) {
		t.Error("Foreground(0,1) = true, want false for 127")
	}
	if !m.Foreground(1, 1, DefaultThreshold) {
		t.Error("Foreground(1,1) = false, want true for 128")
	}
	if got := m.Count(DefaultThreshold); got != 3 {
		t.Errorf("Count() = %d, want 3", got)
	}
	if got := m.Bytes(); !bytes.Equal(got, []uint8{0, 200, 0, 127, 128, 255}) {
		t.Errorf("Bytes() = %v", got)
	}
}

func TestValidate(t *testing.T) {
	var nilMask *Mask
	if err := nilMask.Validate(); !errors.Is(err, errors.ErrCodeInput) {
		t.Errorf("nil Validate() = %v, want input error", err)
	}
	m, _ := New("Red", 1, 1, []uint8{255})
	if err := m.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestFromImageEmpty(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 0, 0))
	if _, err := FromImage("Red", img); !errors.Is(err, errors.ErrCodeInput) {
		t.Errorf("FromImage(empty) error = %v, want input error", err)
	}
	if _, err := FromImage("Red", nil); !errors.Is(err, errors.ErrCodeInput) {
		t.Errorf("FromImage(nil) error = %v, want input error", err)
	}
}

func TestFromImageOffsetBounds(t *testing.T) {
	img := image.NewGray(image.Rect(10, 10, 12, 11))
	img.SetGray(11, 10, color.Gray{Y: 255})

	m, err := FromImage("Red", img)
	if err != nil {
		t.Fatal(err)
	}
	if m.Width() != 2 || m.Height() != 1 {
		t.Fatalf("size = %dx%d, want 2x1", m.Width(), m.Height())
	}
	if m.At(1, 0) != 255 || m.At(0, 0) != 0 {
		t.Errorf("pixels = %v, want [0 255]", m.Bytes())
	}
}

func TestChannelName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"red_mask.png", "Red"},
		{"RED.png", "Red"},
		{"Lightgrey_segment_3.bmp", "Lightgrey"},
		{"/tmp/masks/blue.jpg", "Blue"},
		{"_hidden.png", ""},
	}

	for _, tt := range tests {
		if got := ChannelName(tt.in); got != tt.want {
			t.Errorf("ChannelName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func writePNG(t *testing.T, path string, w, h int, pix []uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	copy(img.Pix, pix)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverAndLoad(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "red_mask.png"), 4, 4, square(4, 4, 1, 1, 3, 3))
	writePNG(t, filepath.Join(dir, "blue_mask.png"), 4, 4, square(4, 4, 0, 0, 4, 4))
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644)

	srcs, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if len(srcs) != 2 || srcs[0].Channel != "Blue" || srcs[1].Channel != "Red" {
		t.Fatalf("Discover() = %+v, want Blue then Red", srcs)
	}

	m, err := Load(srcs[1].Channel, srcs[1].Path, LoadOptions{})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got := m.Count(DefaultThreshold); got != 4 {
		t.Errorf("Count() = %d, want 4", got)
	}
}

func TestDiscoverDuplicateChannel(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "red_a.png"), 1, 1, []uint8{255})
	writePNG(t, filepath.Join(dir, "red_b.png"), 1, 1, []uint8{255})

	if _, err := Discover(dir); !errors.Is(err, errors.ErrCodeInput) {
		t.Errorf("Discover() error = %v, want input error", err)
	}
}

func TestDecodeScale(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 10, 20))
	var buf bytes.Buffer
	png.Encode(&buf, img)

	m, err := Decode("Red", &buf, LoadOptions{Scale: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if m.Width() != 5 || m.Height() != 10 {
		t.Errorf("size = %dx%d, want 5x10", m.Width(), m.Height())
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := Decode("Red", bytes.NewReader([]byte("not an image")), LoadOptions{}); !errors.Is(err, errors.ErrCodeInput) {
		t.Errorf("Decode() error = %v, want input error", err)
	}
}

func TestEdges(t *testing.T) {
	m, _ := New("Red", 7, 7, square(7, 7, 2, 2, 5, 5))
	e := Edges(m, DefaultThreshold)

	if e.Width() != 7 || e.Height() != 7 {
		t.Fatalf("size = %dx%d, want 7x7", e.Width(), e.Height())
	}
	if e.Foreground(3, 3, DefaultThreshold) {
		t.Error("centre of a solid square should not be an edge")
	}
	if !e.Foreground(2, 3, DefaultThreshold) {
		t.Error("left border of the square should be an edge")
	}
	if e.Foreground(0, 0, DefaultThreshold) {
		t.Error("far background should not be an edge")
	}
}
