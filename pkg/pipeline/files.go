package pipeline

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/penplot/pkg/core/sequence"
	"github.com/matzehuels/penplot/pkg/core/spatial"
	"github.com/matzehuels/penplot/pkg/core/toolpath"
	"github.com/matzehuels/penplot/pkg/errors"
	"github.com/matzehuels/penplot/pkg/gcode"
	pkgio "github.com/matzehuels/penplot/pkg/io"
	"github.com/matzehuels/penplot/pkg/observability"
)

// FileResult is the outcome of re-optimizing one program file.
type FileResult struct {
	Channel  string
	Input    string
	Output   string
	BadLines []*gcode.LineError
	Report   toolpath.Report
	Stats    toolpath.Stats
	Err      error
}

// channelOfFile names the channel of a program file: "<Name>_gcode.txt"
// gives Name, anything else its base name without extension.
func channelOfFile(path string) string {
	if name, ok := pkgio.ChannelFromFileName(path); ok {
		return name
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// OptimizeFiles re-optimizes existing channel programs in parallel.
//
// Each file is parsed with malformed lines skipped and logged, its strokes
// are recovered and reordered, and the result is written to outDir under
// the same file name. An empty outDir rewrites the files in place. Files
// fail independently; the returned slice follows the order of paths.
func OptimizeFiles(ctx context.Context, paths []string, outDir string, opts Options) ([]*FileResult, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	results := make([]*FileResult, len(paths))

	g := new(errgroup.Group)
	g.SetLimit(opts.Workers)
	for i, path := range paths {
		g.Go(func() error {
			results[i] = optimizeFile(ctx, path, outDir, opts)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, errors.Wrap(errors.ErrCodeCanceled, err, "optimize canceled")
	}
	return results, nil
}

func optimizeFile(ctx context.Context, path, outDir string, opts Options) *FileResult {
	hooks := observability.Pipeline()
	start := time.Now()
	res := &FileResult{Channel: channelOfFile(path), Input: path}
	hooks.OnChannelStart(ctx, res.Channel)

	var prog *toolpath.ChannelProgram
	res.Err = func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = errors.New(errors.ErrCodeInternal, "optimize %s: internal error: %v", path, p)
			}
		}()
		code, bad, err := pkgio.ReadProgram(path)
		res.BadLines = bad
		for _, le := range bad {
			opts.Logger.Warn("skipping malformed line", "file", path, "line", le.Line, "text", le.Text, "error", le.Err)
		}
		if err != nil {
			return err
		}

		recovered := toolpath.FromProgram(res.Channel, code, opts.Machine.Origin)
		out, rep, err := toolpath.Optimize(ctx, recovered, toolpath.OptimizeOptions{
			Start:   opts.Machine.Origin,
			Backend: spatial.Backend(opts.Backend),
			Logger:  opts.Logger,
		})
		if err != nil {
			if ctx.Err() != nil {
				return errors.Wrap(errors.ErrCodeCanceled, ctx.Err(), "optimize %s", path)
			}
			return err
		}
		prog = out
		res.Report = rep

		emitted := toolpath.Emit(out, opts.Machine, opts.EmitOptions())
		res.Stats = toolpath.Measure(emitted, opts.Machine)

		res.Output = path
		if outDir != "" {
			res.Output = filepath.Join(outDir, filepath.Base(path))
		}
		return pkgio.WriteProgram(res.Output, emitted)
	}()

	hooks.OnChannelComplete(ctx, res.Channel, prog.Len(), time.Since(start), res.Err)
	if res.Err != nil {
		opts.Logger.Error("optimize failed", "file", path, "error", res.Err)
	} else {
		opts.Logger.Info("optimized", "channel", res.Channel, "commands", res.Report.Commands,
			"travel_before", res.Report.TravelBefore, "travel_after", res.Report.TravelAfter)
	}
	return res
}

// CombineResult is the outcome of sequencing a directory of channel
// programs.
type CombineResult struct {
	Files    []pkgio.ProgramFile
	Failed   map[string]error // channel -> read error
	Combined *sequence.Combined
	Code     []byte
	Path     string
}

// CombineDir sequences the "<Name>_gcode.txt" files in dir into
// dir/combined_gcode.txt. Unreadable files are skipped and reported in
// Failed; the strokes of each file are used in the order they appear.
func CombineDir(ctx context.Context, dir string, opts Options) (*CombineResult, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	files, err := pkgio.DiscoverPrograms(dir)
	if err != nil {
		return nil, err
	}
	res := &CombineResult{Files: files, Failed: make(map[string]error)}

	var channels []sequence.Channel
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return res, errors.Wrap(errors.ErrCodeCanceled, err, "combine canceled")
		}
		code, bad, err := pkgio.ReadProgram(f.Path)
		for _, le := range bad {
			opts.Logger.Warn("skipping malformed line", "file", f.Path, "line", le.Line, "text", le.Text, "error", le.Err)
		}
		if err != nil {
			res.Failed[f.Channel] = err
			opts.Logger.Error("skipping channel", "channel", f.Channel, "error", err)
			continue
		}
		prog := toolpath.FromProgram(f.Channel, code, opts.Machine.Origin)
		channels = append(channels, sequence.Channel{
			Program: prog,
			Body:    toolpath.Body(prog, opts.Machine, opts.EmitOptions()),
		})
	}

	start := time.Now()
	combined, err := sequence.Sequence(channels, opts.ToolTable(), opts.SequenceOptions())
	if err != nil {
		observability.Pipeline().OnSequence(ctx, 0, len(channels), time.Since(start), err)
		return res, err
	}
	observability.Pipeline().OnSequence(ctx, len(combined.Channels), len(combined.Skipped), time.Since(start), nil)
	res.Combined = combined

	var buf bytes.Buffer
	if _, err := combined.WriteTo(&buf); err != nil {
		return res, errors.Wrap(errors.ErrCodeInternal, err, "render combined program")
	}
	res.Code = buf.Bytes()

	res.Path = filepath.Join(dir, pkgio.CombinedFileName)
	return res, writeBytes(res.Path, res.Code)
}

// writeBytes writes data to path atomically.
func writeBytes(path string, data []byte) error {
	return pkgio.WriteFileAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}
