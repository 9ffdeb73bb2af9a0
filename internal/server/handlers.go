package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/penplot/pkg/buildinfo"
	"github.com/matzehuels/penplot/pkg/core/raster"
	"github.com/matzehuels/penplot/pkg/errors"
	"github.com/matzehuels/penplot/pkg/history"
	"github.com/matzehuels/penplot/pkg/pipeline"
)

// RunRequest holds the per-request overrides sent in the "options" form
// field as JSON. Zero values keep the server defaults.
type RunRequest struct {
	Strategy       string   `json:"strategy,omitempty"`
	Threshold      uint8    `json:"threshold,omitempty"`
	Radius         float64  `json:"radius,omitempty"`
	Step           int      `json:"step,omitempty"`
	EdgeDetect     bool     `json:"edge_detect,omitempty"`
	Smooth         bool     `json:"smooth,omitempty"`
	Scale          float64  `json:"scale,omitempty"`
	Epsilon        float64  `json:"epsilon,omitempty"`
	MergeTolerance float64  `json:"merge_tolerance,omitempty"`
	LiftThreshold  float64  `json:"lift_threshold,omitempty"`
	Disabled       []string `json:"disabled,omitempty"`
	SkipOptimize   bool     `json:"skip_optimize,omitempty"`
	Unoptimized    bool     `json:"unoptimized,omitempty"`
	Refresh        bool     `json:"refresh,omitempty"`
}

// apply copies the non-zero fields of req onto opts.
func (req RunRequest) apply(opts *pipeline.Options) {
	if req.Strategy != "" {
		opts.Strategy = req.Strategy
	}
	if req.Threshold != 0 {
		opts.Threshold = req.Threshold
	}
	if req.Radius != 0 {
		opts.Radius = req.Radius
	}
	if req.Step != 0 {
		opts.Step = req.Step
	}
	if req.Scale != 0 {
		opts.Scale = req.Scale
	}
	if req.Epsilon != 0 {
		opts.Epsilon = req.Epsilon
	}
	if req.MergeTolerance != 0 {
		opts.MergeTolerance = req.MergeTolerance
	}
	if req.LiftThreshold != 0 {
		opts.LiftThreshold = req.LiftThreshold
	}
	if len(req.Disabled) > 0 {
		opts.Disabled = append(append([]string(nil), opts.Disabled...), req.Disabled...)
	}
	opts.EdgeDetect = opts.EdgeDetect || req.EdgeDetect
	opts.Smooth = opts.Smooth || req.Smooth
	opts.SkipOptimize = opts.SkipOptimize || req.SkipOptimize
	opts.Unoptimized = opts.Unoptimized || req.Unoptimized
	opts.Refresh = opts.Refresh || req.Refresh
}

// RunResponse is the body of POST /v1/runs.
type RunResponse struct {
	pipeline.Summary
	Program string `json:"program,omitempty"`
	Error   string `json:"error,omitempty"`
}

type errorResponse struct {
	Error string      `json:"error"`
	Code  errors.Code `json:"code,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		buildinfo.Info
	}{"ok", buildinfo.Get()})
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInput, err, "parse upload"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	opts := s.cfg.Base
	if raw := r.FormValue("options"); raw != "" {
		var req RunRequest
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			s.writeError(w, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode options"))
			return
		}
		req.apply(&opts)
	}

	inputs, err := readMasks(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RunTimeout)
	defer cancel()
	res, err := s.runner.Run(ctx, inputs, opts)
	if res == nil {
		s.writeError(w, err)
		return
	}

	resp := RunResponse{Summary: res.Summary(), Program: string(res.CombinedCode)}
	status := http.StatusOK
	if err != nil {
		resp.Error = errors.UserMessage(err)
		status = statusOf(err)
	}
	writeJSON(w, status, resp)
}

// readMasks collects the "masks" files of a multipart form. The channel of
// each file comes from its name, as for masks on disk.
func readMasks(r *http.Request) ([]pipeline.Input, error) {
	files := r.MultipartForm.File["masks"]
	if len(files) == 0 {
		return nil, errors.New(errors.ErrCodeInput, `no files in form field "masks"`)
	}
	seen := make(map[string]bool, len(files))
	inputs := make([]pipeline.Input, 0, len(files))
	for _, fh := range files {
		if err := errors.ValidateFilename(fh.Filename); err != nil {
			return nil, err
		}
		channel := raster.ChannelName(fh.Filename)
		if err := errors.ValidateChannelName(channel); err != nil {
			return nil, err
		}
		if seen[channel] {
			return nil, errors.New(errors.ErrCodeInput, "channel %s uploaded twice", channel)
		}
		seen[channel] = true

		f, err := fh.Open()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeIO, err, "open upload %s", fh.Filename)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeIO, err, "read upload %s", fh.Filename)
		}
		inputs = append(inputs, pipeline.Input{Channel: channel, Data: data})
	}
	return inputs, nil
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	store := s.runner.History
	if store == nil {
		s.writeError(w, errors.New(errors.ErrCodeNotFound, "run history is disabled"))
		return
	}
	limit := history.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, errors.New(errors.ErrCodeInput, "invalid limit %q", v))
			return
		}
		limit = n
	}
	recs, err := store.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeIO, err, "list runs"))
		return
	}
	if recs == nil {
		recs = []*history.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	store := s.runner.History
	if store == nil {
		s.writeError(w, errors.New(errors.ErrCodeNotFound, "run history is disabled"))
		return
	}
	id := chi.URLParam(r, "id")
	rec, err := store.Get(r.Context(), id)
	if stderrors.Is(err, history.ErrNotFound) {
		s.writeError(w, errors.New(errors.ErrCodeNotFound, "run %s not found", id))
		return
	}
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeIO, err, "get run %s", id))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// statusOf maps an error code to an HTTP status.
func statusOf(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeInput, errors.ErrCodeInvalidConfig, errors.ErrCodeInvalidPath, errors.ErrCodeParse:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeNoChannels, errors.ErrCodeUnknownChannel:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeCanceled:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: errors.UserMessage(err), Code: errors.GetCode(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
