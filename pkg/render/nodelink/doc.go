// Package nodelink renders the connectivity graph built by the reducer as a
// node-link diagram.
//
// Each circle becomes a node and each adjacency an undirected edge. This is
// a debugging view: it shows which edge-point circles were joined into
// segments and which were left isolated.
//
//	res := reduce.Reduce(prims, reduce.Options{})
//	dot := nodelink.ToDOT(res.Graph, nodelink.Options{Name: "Red"})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// Nodes carry a pinned pos attribute, so the DOT can also be laid out with
// `neato -n` to place circles at their mask coordinates.
//
// SVG rendering runs Graphviz in-process through
// [github.com/goccy/go-graphviz].
package nodelink
