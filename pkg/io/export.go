package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/matzehuels/penplot/pkg/errors"
	"github.com/matzehuels/penplot/pkg/gcode"
)

// File names inside an output directory.
const (
	ChannelSuffix    = "_gcode.txt"
	CombinedFileName = "combined_gcode.txt"
	SummaryFileName  = "run.json"
)

// ChannelFileName returns "<name>_gcode.txt".
func ChannelFileName(name string) string {
	return name + ChannelSuffix
}

// WriteFileAtomic writes the output of fn to path via a temp file and a
// rename. On any error the temp file is removed and path is untouched.
// Errors carry [errors.ErrCodeIO].
func WriteFileAtomic(path string, fn func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "create %s", dir)
	}

	tmpPath := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "create temp file for %s", path)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := fn(f); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "write %s", path)
	}
	if err := f.Sync(); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "sync %s", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "close %s", path)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "rename %s", path)
	}
	return nil
}

// WriteProgram writes p to path atomically.
func WriteProgram(path string, p gcode.Program) error {
	return WriteFileAtomic(path, func(w io.Writer) error {
		_, err := p.WriteTo(w)
		return err
	})
}

// WriteChannel writes p to dir/<name>_gcode.txt and returns the path.
func WriteChannel(dir, name string, p gcode.Program) (string, error) {
	if err := errors.ValidateChannelName(name); err != nil {
		return "", err
	}
	path := filepath.Join(dir, ChannelFileName(name))
	return path, WriteProgram(path, p)
}

// WriteJSON encodes v as indented JSON.
func WriteJSON(v any, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportJSON writes v to a JSON file at path atomically.
func ExportJSON(v any, path string) error {
	return WriteFileAtomic(path, func(w io.Writer) error {
		return WriteJSON(v, w)
	})
}
