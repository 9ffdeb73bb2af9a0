package merge

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/matzehuels/penplot/pkg/core/vector"
)

func seg(x1, y1, x2, y2 float64) vector.Segment {
	return vector.Segment{P1: vector.Point{X: x1, Y: y1}, P2: vector.Point{X: x2, Y: y2}}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name string
		in   []vector.Segment
		tol  float64
		want []vector.Segment
	}{
		{
			name: "row gap within tolerance",
			in:   []vector.Segment{seg(0, 0, 5, 0), seg(6, 0, 10, 0)},
			tol:  1,
			want: []vector.Segment{seg(0, 0, 10, 0)},
		},
		{
			name: "row gap with zero tolerance",
			in:   []vector.Segment{seg(0, 0, 5, 0), seg(6, 0, 10, 0)},
			tol:  0,
			want: []vector.Segment{seg(0, 0, 5, 0), seg(6, 0, 10, 0)},
		},
		{
			name: "different rows stay apart",
			in:   []vector.Segment{seg(0, 0, 5, 0), seg(6, 1, 10, 1)},
			tol:  1,
			want: []vector.Segment{seg(0, 0, 5, 0), seg(6, 1, 10, 1)},
		},
		{
			name: "reversed and overlapping",
			in:   []vector.Segment{seg(8, 2, 3, 2), seg(0, 2, 4, 2)},
			tol:  0,
			want: []vector.Segment{seg(0, 2, 8, 2)},
		},
		{
			name: "contained segment",
			in:   []vector.Segment{seg(0, 0, 10, 0), seg(2, 0, 3, 0)},
			tol:  0,
			want: []vector.Segment{seg(0, 0, 10, 0)},
		},
		{
			name: "collinear diagonal with shared endpoint",
			in:   []vector.Segment{seg(0, 0, 2, 2), seg(2, 2, 5, 5)},
			tol:  0,
			want: []vector.Segment{seg(0, 0, 5, 5)},
		},
		{
			name: "vertical",
			in:   []vector.Segment{seg(3, 0, 3, 4), seg(3, 5, 3, 9)},
			tol:  1,
			want: []vector.Segment{seg(3, 0, 3, 9)},
		},
		{
			name: "corner is not straightened",
			in:   []vector.Segment{seg(0, 0, 5, 0), seg(5, 0, 5, 5)},
			tol:  1,
			want: []vector.Segment{seg(0, 0, 5, 0), seg(5, 0, 5, 5)},
		},
		{
			name: "covered point absorbed",
			in:   []vector.Segment{seg(0, 0, 5, 0), seg(3, 0, 3, 0)},
			tol:  1,
			want: []vector.Segment{seg(0, 0, 5, 0)},
		},
		{
			name: "isolated point kept",
			in:   []vector.Segment{seg(0, 0, 5, 0), seg(3, 4, 3, 4)},
			tol:  1,
			want: []vector.Segment{seg(0, 0, 5, 0), seg(3, 4, 3, 4)},
		},
		{
			name: "empty",
			in:   nil,
			tol:  1,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(tt.in, tt.tol)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Merge() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMergeIdempotent(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for round := 0; round < 20; round++ {
		var in []vector.Segment
		for i := 0; i < 60; i++ {
			y := float64(r.Intn(8))
			x := float64(r.Intn(30))
			switch r.Intn(3) {
			case 0:
				in = append(in, seg(x, y, x+float64(r.Intn(5)), y))
			case 1:
				in = append(in, seg(x, y, x, y+float64(r.Intn(5))))
			default:
				d := float64(r.Intn(4))
				in = append(in, seg(x, y, x+d, y+d))
			}
		}

		for _, tol := range []float64{0, 1, 2} {
			once := Merge(in, tol)
			twice := Merge(once, tol)
			if !slices.Equal(once, twice) {
				t.Fatalf("round %d tol %v: Merge is not idempotent\nonce:  %v\ntwice: %v", round, tol, once, twice)
			}
		}
	}
}

func TestDedupe(t *testing.T) {
	in := []vector.Segment{
		seg(0, 0, 5, 0),
		seg(5, 0, 0, 0),
		seg(1, 1, 2, 2),
		seg(1, 1, 2, 2),
		seg(4, 4, 4, 4),
	}
	want := []vector.Segment{seg(0, 0, 5, 0), seg(1, 1, 2, 2), seg(4, 4, 4, 4)}

	if got := Dedupe(in); !slices.Equal(got, want) {
		t.Errorf("Dedupe() = %v, want %v", got, want)
	}
	if got := Dedupe(nil); got != nil {
		t.Errorf("Dedupe(nil) = %v, want nil", got)
	}
}

func TestSort(t *testing.T) {
	segs := []vector.Segment{seg(0, 2, 1, 2), seg(5, 0, 6, 0), seg(1, 0, 2, 0)}
	Sort(segs)
	want := []vector.Segment{seg(1, 0, 2, 0), seg(5, 0, 6, 0), seg(0, 2, 1, 2)}
	if !slices.Equal(segs, want) {
		t.Errorf("Sort() = %v, want %v", segs, want)
	}
}
