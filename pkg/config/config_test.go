package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/penplot/pkg/core/extract"
	"github.com/matzehuels/penplot/pkg/errors"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if len(cfg.Holders) != 13 {
		t.Errorf("default holders = %d, want 13", len(cfg.Holders))
	}
	if p := cfg.ExtractParams(); p.Threshold != extract.DefaultThreshold {
		t.Errorf("threshold = %d, want %d", p.Threshold, extract.DefaultThreshold)
	}
}

func TestDecodeOverrides(t *testing.T) {
	src := `
[machine]
pen_up = 40.0
holder_y = 250.0

[extract]
strategy = "edge-points"
scale = 0.6
smooth = true

[run]
disabled = ["Green"]
`
	cfg, err := Decode(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Machine.PenUp != 40 || cfg.Machine.HolderY != 250 {
		t.Errorf("machine = %+v", cfg.Machine)
	}
	if cfg.Machine.FeedRate != 1000 {
		t.Errorf("feed_rate = %v, want default 1000", cfg.Machine.FeedRate)
	}
	if cfg.Extract.Strategy != "edge-points" || cfg.Extract.Scale != 0.6 {
		t.Errorf("extract = %+v", cfg.Extract)
	}
	if !cfg.ExtractParams().Smooth {
		t.Error("ExtractParams() dropped smooth")
	}
	if len(cfg.Run.Disabled) != 1 || cfg.Run.Disabled[0] != "Green" {
		t.Errorf("disabled = %v", cfg.Run.Disabled)
	}
	if len(cfg.Holders) != 13 {
		t.Errorf("holders = %d, want defaults kept", len(cfg.Holders))
	}
}

func TestDecodeHoldersReplaceDefaults(t *testing.T) {
	cfg, err := Decode(strings.NewReader("[holders]\nRed = 5.0\nBlue = 15.0\n"))
	if err != nil {
		t.Fatal(err)
	}
	table := cfg.ToolTable()
	if len(table) != 2 || table["Red"] != 5 || table["Blue"] != 15 {
		t.Errorf("ToolTable() = %v", table)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", "[machine\n"},
		{"unknown key", "[machine]\nspeed = 3\n"},
		{"bad strategy", "[extract]\nstrategy = \"spiral\"\n"},
		{"bad threshold", "[extract]\nthreshold = 0\n"},
		{"pen order", "[machine]\npen_up = 0.0\npen_down = 5.0\n"},
		{"negative tolerance", "[tolerances]\nmerge = -1.0\n"},
		{"bad backend", "[run]\nbackend = \"kd\"\n"},
		{"bad holder name", "[holders]\n\"9lives\" = 3.0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.src))
			if !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("Decode() error = %v, want invalid config", err)
			}
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Machine.HolderY = 12.5
	cfg.Run.Disabled = []string{"Pink"}

	var buf bytes.Buffer
	if err := cfg.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode(Encode()) = %v\n%s", err, buf.String())
	}
	if got.Machine.HolderY != 12.5 || len(got.Run.Disabled) != 1 || len(got.Holders) != 13 {
		t.Errorf("round trip = %+v", got)
	}
}

func TestResolveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "penplot.toml")
	if err := os.WriteFile(path, []byte("[tolerances]\nepsilon = 2.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv(EnvVar, path)
	got, ok := Resolve("")
	if !ok || got != path {
		t.Errorf("Resolve() = %q, %v, want env path", got, ok)
	}
	if got, _ := Resolve("explicit.toml"); got != "explicit.toml" {
		t.Errorf("Resolve(explicit) = %q", got)
	}

	cfg, loaded, err := LoadOrDefault("")
	if err != nil {
		t.Fatal(err)
	}
	if loaded != path || cfg.Tolerances.Epsilon != 2 {
		t.Errorf("LoadOrDefault() = %v from %q", cfg.Tolerances, loaded)
	}

	if _, err := Load(filepath.Join(dir, "missing.toml")); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("Load(missing) error = %v, want not found", err)
	}
}
