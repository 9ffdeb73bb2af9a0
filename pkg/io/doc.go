// Package io reads and writes the files a plotting run produces.
//
// # Layout
//
// A run writes into one output directory:
//
//	Red_gcode.txt        optimized program for the Red channel
//	Green_gcode.txt      ...
//	combined_gcode.txt   sequenced multi-pen program
//	run.json             run summary (see pipeline.Summary)
//
// Channel files are plain G-code, one instruction per line, with ";"
// comments. [ChannelFromFileName] recovers the channel name from a file
// name, so a directory of channel files can be sequenced again later.
//
// # Atomic writes
//
// Every file is written through [WriteFileAtomic]: the content goes to a
// uniquely named temp file in the same directory, which is synced and then
// renamed over the target. A crash leaves either the old file or the new
// one, never a truncated program.
//
// # JSON
//
// [WriteJSON] and [ExportJSON] write indented JSON; [ReadJSON] and
// [ImportJSON] read it back into any value.
package io
