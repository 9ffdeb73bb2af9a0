// Package pkg provides the core libraries of penplot, which turns per-colour
// raster masks into G-code for a pen plotter.
//
// # Overview
//
// A drawing arrives as one mask image per pen colour. Each mask becomes a
// channel program, and the channel programs are sequenced into a single
// program that swaps pens between colours. The pkg directory is organized
// into these areas:
//
//  1. [core] - Geometry and toolpath logic (raster, extract, reduce, merge,
//     toolpath, sequence)
//  2. [pipeline] - Orchestration of the stages over many channels
//  3. [cache], [history], [io], [config] - Infrastructure
//  4. [render] - Debug output (SVG/PNG previews, connectivity graphs)
//  5. [gcode] - The G-code instruction model, writer and parser
//
// # Architecture
//
// The data flow for one channel:
//
//	mask image
//	     ↓
//	[core/raster] (decode, scale, binarize)
//	     ↓
//	[core/extract] (circles, scanline segments or outlines)
//	     ↓
//	[core/reduce] + [core/merge] (join circles, fuse collinear segments)
//	     ↓
//	[core/toolpath] (compile, nearest-neighbour tour, emit)
//	     ↓
//	<Channel>_gcode.txt
//
// All channels then pass through [core/sequence], which adds the pen
// pickups and returns and writes combined_gcode.txt.
//
// # Quick Start
//
//	runner := pipeline.NewRunner(cache.NewNullCache(), nil, logger)
//	res, err := runner.Execute(ctx, pipeline.Options{
//	    InputDir:  "masks",
//	    OutputDir: "gcode",
//	})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.CombinedPath)
//
// # Errors
//
// Errors crossing package boundaries carry a code from [errors]; use
// errors.GetCode to branch on them and errors.UserMessage to show them.
package pkg
