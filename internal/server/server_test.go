package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/penplot/pkg/history"
	"github.com/matzehuels/penplot/pkg/observability"
	"github.com/matzehuels/penplot/pkg/pipeline"
)

func maskPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for x := 1; x <= 5; x++ {
		img.SetGray(x, 2, color.Gray{Y: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestServer(t *testing.T) (*Server, history.Store) {
	t.Helper()
	store, err := history.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	logger := log.New(io.Discard)
	runner := pipeline.NewRunner(nil, nil, logger)
	runner.History = store
	srv := New(runner, Config{Base: pipeline.Options{Strategy: "edge-points", Workers: 2}}, logger)
	return srv, store
}

// upload builds a multipart request with the given files and options.
func upload(t *testing.T, files map[string][]byte, options string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, data := range files {
		fw, err := mw.CreateFormFile("masks", name)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(data)
	}
	if options != "" {
		mw.WriteField("options", options)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/runs", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /healthz = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["version"] == "" {
		t.Errorf("GET /healthz body = %v", body)
	}
}

func TestCreateRun(t *testing.T) {
	srv, _ := newTestServer(t)
	req := upload(t, map[string][]byte{
		"red_mask.png":   maskPNG(t),
		"mauve_mask.png": maskPNG(t),
		"blue_mask.png":  []byte("not an image"),
	}, `{"merge_tolerance": 2}`)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /v1/runs = %d: %s", rec.Code, rec.Body)
	}

	var resp RunResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Sequenced) != 1 || resp.Sequenced[0] != "Red" {
		t.Errorf("Sequenced = %v, want [Red]", resp.Sequenced)
	}
	if len(resp.Skipped) != 1 || resp.Skipped[0].Channel != "Mauve" {
		t.Errorf("Skipped = %v, want Mauve", resp.Skipped)
	}
	if len(resp.Channels) != 3 {
		t.Fatalf("Channels = %d, want 3", len(resp.Channels))
	}
	if resp.Channels[0].Name != "Blue" || resp.Channels[0].Code != "INPUT_ERROR" {
		t.Errorf("Blue = %+v, want an input error", resp.Channels[0])
	}
	if !strings.HasPrefix(resp.Program, "G90") || !strings.Contains(resp.Program, "M3") {
		t.Errorf("Program does not look like a combined program:\n%s", resp.Program)
	}
}

func TestCreateRunErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name  string
		files map[string][]byte
		opts  string
		want  int
	}{
		{"no files", nil, "", http.StatusBadRequest},
		{"bad options", map[string][]byte{"red.png": maskPNG(t)}, "{", http.StatusBadRequest},
		{"hidden file", map[string][]byte{".red.png": maskPNG(t)}, "", http.StatusBadRequest},
		{"invalid strategy", map[string][]byte{"red.png": maskPNG(t)}, `{"strategy":"spiral"}`, http.StatusBadRequest},
		{"nothing usable", map[string][]byte{"red.png": []byte("x")}, "", http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, upload(t, tt.files, tt.opts))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestRunHistory(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, upload(t, map[string][]byte{"red.png": maskPNG(t)}, ""))
	var created RunResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs", nil))
	var list []history.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != created.ID {
		t.Errorf("GET /v1/runs = %+v, want run %s", list, created.ID)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/"+created.ID, nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET run = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET missing run = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs?limit=x", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("GET /v1/runs?limit=x = %d, want 400", rec.Code)
	}
}

type recordingHooks struct {
	observability.NoopServerHooks
	mu     sync.Mutex
	routes []string
}

func (h *recordingHooks) OnResponse(_ context.Context, method, route string, status int, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.routes = append(h.routes, method+" "+route)
}

func TestObserveUsesRoutePattern(t *testing.T) {
	hooks := &recordingHooks{}
	observability.SetServerHooks(hooks)
	t.Cleanup(observability.Reset)

	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/abc", nil))

	if len(hooks.routes) != 1 || hooks.routes[0] != "GET /v1/runs/{id}" {
		t.Errorf("routes = %v, want [GET /v1/runs/{id}]", hooks.routes)
	}
}

func TestStatusOf(t *testing.T) {
	if got := statusOf(context.Canceled); got != http.StatusInternalServerError {
		t.Errorf("statusOf(plain error) = %d, want 500", got)
	}
}
