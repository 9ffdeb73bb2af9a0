package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/matzehuels/penplot/pkg/errors"
	"github.com/matzehuels/penplot/pkg/gcode"
)

// ProgramFile is a channel program found on disk.
type ProgramFile struct {
	Channel string `json:"channel"`
	Path    string `json:"path"`
}

// ChannelFromFileName returns the channel of a "<name>_gcode.txt" file.
// The combined program and other files report false.
func ChannelFromFileName(filename string) (string, bool) {
	base := filepath.Base(filename)
	if base == CombinedFileName || !strings.HasSuffix(base, ChannelSuffix) {
		return "", false
	}
	name := strings.TrimSuffix(base, ChannelSuffix)
	if errors.ValidateChannelName(name) != nil {
		return "", false
	}
	return name, true
}

// DiscoverPrograms lists the channel program files in dir, sorted by
// channel name.
func DiscoverPrograms(dir string) ([]ProgramFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "read %s", dir)
	}
	var out []ProgramFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name, ok := ChannelFromFileName(e.Name()); ok {
			out = append(out, ProgramFile{Channel: name, Path: filepath.Join(dir, e.Name())})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out, nil
}

// ReadProgram parses the program file at path. Malformed lines are
// returned alongside the program; see [gcode.Parse].
func ReadProgram(path string) (gcode.Program, []*gcode.LineError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeIO, err, "open %s", path)
	}
	defer f.Close()

	p, bad, err := gcode.Parse(f)
	if err != nil {
		return nil, bad, fmt.Errorf("%s: %w", path, err)
	}
	return p, bad, nil
}

// ReadJSON decodes JSON from r into v.
func ReadJSON(r io.Reader, v any) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// ImportJSON reads the JSON file at path into v.
func ImportJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f, v)
}
