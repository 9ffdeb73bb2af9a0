package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/penplot/pkg/core/reduce"
)

// Options configures connectivity diagram rendering.
type Options struct {
	// Detailed adds the circle centre, radius and degree to node labels.
	// When false, only the node index is shown.
	Detailed bool

	// Name is written as the graph label, typically the channel name.
	Name string
}

// ToDOT converts a connectivity graph to undirected Graphviz DOT. Node i is
// circle i; isolated circles are drawn dashed on a grey fill since they
// pass through the reducer unchanged.
func ToDOT(g reduce.Graph, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("graph G {\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	if opts.Name != "" {
		fmt.Fprintf(&buf, "  label=%q;\n", opts.Name)
	}
	buf.WriteString("  node [shape=circle, style=filled, fillcolor=white, fontsize=12];\n")
	buf.WriteString("  nodesep=0.2;\n")
	buf.WriteString("\n")

	deg := g.Degree()
	for i, c := range g.Circles {
		attrs := []string{fmt.Sprintf("label=%q", fmtLabel(i, c.Center.X, c.Center.Y, c.Radius, deg[i], opts.Detailed))}
		attrs = append(attrs, fmt.Sprintf("pos=\"%s,%s!\"", fmtNum(c.Center.X), fmtNum(-c.Center.Y)))
		if deg[i] == 0 {
			attrs = append(attrs, "style=\"filled,dashed\"", "fillcolor=lightgrey")
		}
		fmt.Fprintf(&buf, "  n%d [%s];\n", i, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range g.Edges {
		fmt.Fprintf(&buf, "  n%d -- n%d;\n", e.I, e.J)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(i int, x, y, r float64, degree int, detailed bool) string {
	if !detailed {
		return strconv.Itoa(i)
	}
	return fmt.Sprintf("%d\n(%s, %s)\nr: %s\ndeg: %d", i, fmtNum(x), fmtNum(y), fmtNum(r), degree)
}

func fmtNum(v float64) string {
	if v == 0 {
		v = 0 // drop the sign of -0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's point-based svg header with one whose
// viewBox starts at the origin and whose size matches it.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	header := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(header))
}
