package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

// quietSpinner returns a spinner drawing into a buffer instead of stderr.
func quietSpinner(ctx context.Context, msg string) (*Spinner, *bytes.Buffer) {
	var buf bytes.Buffer
	s := newSpinnerWithContext(ctx, msg)
	s.w = &buf
	return s, &buf
}

func TestSpinnerDrawsAndUpdates(t *testing.T) {
	s, buf := quietSpinner(context.Background(), "Rendering graph...")
	s.Start()
	time.Sleep(120 * time.Millisecond)
	s.Update("Writing SVG...")
	time.Sleep(120 * time.Millisecond)
	s.Stop()

	out := buf.String()
	for _, want := range []string{"Rendering graph...", "Writing SVG..."} {
		if !strings.Contains(out, want) {
			t.Errorf("spinner output does not contain %q", want)
		}
	}
	if !strings.HasSuffix(out, "\r") {
		t.Error("spinner did not clear its line on Stop")
	}
}

func TestSpinnerStopTwice(t *testing.T) {
	s, _ := quietSpinner(context.Background(), "Rendering graph...")
	s.Start()
	s.Stop()
	s.Stop()
}

func TestSpinnerCanceledByContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s, _ := quietSpinner(ctx, "Rendering graph...")
	s.Start()

	if s.Cancelled() {
		t.Fatal("spinner canceled before its context")
	}
	cancel()
	time.Sleep(50 * time.Millisecond)
	if !s.Cancelled() {
		t.Error("spinner not canceled after its context")
	}
	s.Stop()
}

func TestSpinnerStopWithError(t *testing.T) {
	var ui bytes.Buffer
	prev := out
	out = &ui
	t.Cleanup(func() { out = prev })

	s, _ := quietSpinner(context.Background(), "Rendering graph...")
	s.Start()
	s.StopWithError("Rendering failed")

	if !strings.Contains(ui.String(), "Rendering failed") {
		t.Errorf("StopWithError printed %q", ui.String())
	}
}
