package raster

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"

	"github.com/matzehuels/penplot/pkg/errors"
)

// Extensions lists the mask file extensions recognized by [Discover].
var Extensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp"}

// LoadOptions configures mask decoding.
type LoadOptions struct {
	// Scale resizes the mask before use. Zero or 1 keeps the original size.
	Scale float64
}

// Source is a mask file found on disk that has not been decoded yet.
type Source struct {
	Channel string `json:"channel"`
	Path    string `json:"path"`
}

// ChannelName derives a channel name from a mask file name: the part before
// the first underscore or dot, with the first letter upper-cased and the
// rest lower-cased. "red_mask.png" and "RED.png" both yield "Red".
func ChannelName(filename string) string {
	base := filepath.Base(filename)
	if i := strings.IndexAny(base, "_."); i >= 0 {
		base = base[:i]
	}
	if base == "" {
		return ""
	}
	r := []rune(strings.ToLower(base))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// Discover lists the mask files in dir, sorted by channel name.
// Two files mapping to the same channel are reported as an input error.
func Discover(dir string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInput, err, "read mask directory %s", dir)
	}

	seen := make(map[string]string)
	var out []Source
	for _, e := range entries {
		if e.IsDir() || !slices.Contains(Extensions, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		ch := ChannelName(e.Name())
		if ch == "" {
			continue
		}
		if prev, ok := seen[ch]; ok {
			return nil, errors.New(errors.ErrCodeInput, "channel %s found in both %s and %s", ch, prev, e.Name())
		}
		seen[ch] = e.Name()
		out = append(out, Source{Channel: ch, Path: filepath.Join(dir, e.Name())})
	}

	slices.SortFunc(out, func(a, b Source) int { return strings.Compare(a.Channel, b.Channel) })
	return out, nil
}

// Load decodes the mask at path.
func Load(channel, path string, opts LoadOptions) (*Mask, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInput, err, "open mask %s", path)
	}
	defer f.Close()
	return Decode(channel, f, opts)
}

// Decode reads an encoded image from r and converts it to a mask.
func Decode(channel string, r io.Reader, opts LoadOptions) (*Mask, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInput, err, "decode mask %s", channel)
	}
	img, err = rescale(img, opts.Scale)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInput, err, "scale mask %s", channel)
	}
	return FromImage(channel, imaging.Grayscale(img))
}

func rescale(img image.Image, scale float64) (image.Image, error) {
	if scale == 0 || scale == 1 {
		return img, nil
	}
	if scale < 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return nil, fmt.Errorf("invalid scale %v", scale)
	}
	b := img.Bounds()
	w := int(math.Round(float64(b.Dx()) * scale))
	h := int(math.Round(float64(b.Dy()) * scale))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("scale %v reduces %dx%d to nothing", scale, b.Dx(), b.Dy())
	}
	return imaging.Resize(img, w, h, imaging.Lanczos), nil
}
