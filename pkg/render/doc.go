// Package render groups the visual debugging outputs of penplot.
//
//   - [nodelink]: the reducer's connectivity graph as DOT or SVG, laid out
//     by Graphviz
//   - [preview]: extracted primitives as SVG, and G-code programs replayed
//     as SVG or PNG
//
// None of these outputs feed back into the plotting pipeline; they exist
// so a mask, a channel program or a combined program can be inspected
// before it is sent to the machine.
package render
