package io

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/penplot/pkg/errors"
	"github.com/matzehuels/penplot/pkg/gcode"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "Red_gcode.txt")

	if err := WriteFileAtomic(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "G90\n")
		return err
	}); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != "G90\n" {
		t.Fatalf("ReadFile() = %q, %v", got, err)
	}

	err = WriteFileAtomic(path, func(w io.Writer) error {
		io.WriteString(w, "partial")
		return fmt.Errorf("disk full")
	})
	if !errors.Is(err, errors.ErrCodeIO) {
		t.Errorf("failed write error = %v, want IO error", err)
	}
	got, _ = os.ReadFile(path)
	if string(got) != "G90\n" {
		t.Errorf("failed write replaced file with %q", got)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestWriteChannelAndDiscover(t *testing.T) {
	dir := t.TempDir()
	prog := gcode.Program{gcode.Absolute(), gcode.Feed(1, 2)}

	for _, name := range []string{"Red", "Blue"} {
		path, err := WriteChannel(dir, name, prog)
		if err != nil {
			t.Fatal(err)
		}
		if filepath.Base(path) != name+"_gcode.txt" {
			t.Errorf("WriteChannel() path = %s", path)
		}
	}
	if err := WriteProgram(filepath.Join(dir, CombinedFileName), prog); err != nil {
		t.Fatal(err)
	}
	if _, err := WriteChannel(dir, "../evil", prog); err == nil {
		t.Error("WriteChannel should reject an invalid channel name")
	}

	files, err := DiscoverPrograms(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[0].Channel != "Blue" || files[1].Channel != "Red" {
		t.Errorf("DiscoverPrograms() = %+v", files)
	}

	got, bad, err := ReadProgram(files[1].Path)
	if err != nil || len(bad) != 0 {
		t.Fatalf("ReadProgram() = %v, %v", bad, err)
	}
	if got.String() != prog.String() {
		t.Errorf("ReadProgram() = %q, want %q", got.String(), prog.String())
	}
}

func TestChannelFromFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Red_gcode.txt", "Red", true},
		{"/tmp/x/Lightgrey_gcode.txt", "Lightgrey", true},
		{"combined_gcode.txt", "", false},
		{"Red.txt", "", false},
		{"_gcode.txt", "", false},
	}
	for _, tt := range tests {
		got, ok := ChannelFromFileName(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ChannelFromFileName(%q) = %q, %v, want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestReadProgramErrors(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := ReadProgram(filepath.Join(dir, "missing")); !errors.Is(err, errors.ErrCodeIO) {
		t.Errorf("missing file error = %v, want IO error", err)
	}

	garbage := filepath.Join(dir, "Red_gcode.txt")
	os.WriteFile(garbage, []byte("hello\nworld\n"), 0o644)
	_, bad, err := ReadProgram(garbage)
	if !errors.Is(err, errors.ErrCodeParse) || len(bad) != 2 {
		t.Errorf("garbage file = %d bad lines, %v", len(bad), err)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	type summary struct {
		ID       string   `json:"id"`
		Channels []string `json:"channels"`
	}
	in := summary{ID: "abc", Channels: []string{"Red"}}

	var buf bytes.Buffer
	if err := WriteJSON(in, &buf); err != nil {
		t.Fatal(err)
	}
	var out summary
	if err := ReadJSON(&buf, &out); err != nil {
		t.Fatal(err)
	}
	if out.ID != "abc" || len(out.Channels) != 1 {
		t.Errorf("ReadJSON() = %+v", out)
	}

	path := filepath.Join(t.TempDir(), SummaryFileName)
	if err := ExportJSON(in, path); err != nil {
		t.Fatal(err)
	}
	out = summary{}
	if err := ImportJSON(path, &out); err != nil || out.ID != "abc" {
		t.Errorf("ImportJSON() = %+v, %v", out, err)
	}
}
