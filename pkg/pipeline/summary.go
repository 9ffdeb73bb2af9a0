package pipeline

import (
	"time"

	"github.com/matzehuels/penplot/pkg/core/sequence"
	"github.com/matzehuels/penplot/pkg/core/toolpath"
	"github.com/matzehuels/penplot/pkg/core/vector"
	"github.com/matzehuels/penplot/pkg/errors"
	"github.com/matzehuels/penplot/pkg/history"
)

// Summary is the JSON report of a run, written to run.json and returned by
// the server.
type Summary struct {
	ID        string              `json:"id"`
	Channels  []ChannelSummary    `json:"channels"`
	Sequenced []string            `json:"sequenced,omitempty"`
	Skipped   []SkipSummary       `json:"skipped,omitempty"`
	Maneuvers []sequence.Maneuver `json:"maneuvers,omitempty"`
	Combined  string              `json:"combined,omitempty"` // combined program path
	Cached    bool                `json:"cached"`
	Duration  string              `json:"duration"`
}

// ChannelSummary reports one channel.
type ChannelSummary struct {
	Name       string          `json:"name"`
	Status     string          `json:"status"`
	Primitives vector.Count    `json:"primitives"`
	Joined     int             `json:"joined"`
	Segments   int             `json:"segments"`
	Report     toolpath.Report `json:"optimizer"`
	Stats      toolpath.Stats  `json:"stats"`
	Path       string          `json:"path,omitempty"`
	Duration   string          `json:"duration"`
	Error      string          `json:"error,omitempty"`
	Code       errors.Code     `json:"code,omitempty"`
}

// SkipSummary reports a channel left out of the combined program.
type SkipSummary struct {
	Channel string `json:"channel"`
	Reason  string `json:"reason"`
}

// Status returns the history status of the channel.
func (c *ChannelResult) Status() string {
	switch {
	case c.Err != nil:
		return history.StatusFailed
	case c.Cached:
		return history.StatusCached
	}
	return history.StatusOK
}

// Summary builds the run report.
func (r *Result) Summary() Summary {
	s := Summary{
		ID:        r.ID,
		Sequenced: r.Sequenced,
		Maneuvers: r.Maneuvers,
		Combined:  r.CombinedPath,
		Cached:    r.CombinedCached,
		Duration:  r.Duration.Round(time.Millisecond).String(),
	}
	for _, c := range r.Channels {
		cs := ChannelSummary{
			Name:       c.Channel,
			Status:     c.Status(),
			Primitives: c.Counts,
			Joined:     c.Joined,
			Segments:   c.Segments,
			Report:     c.Report,
			Stats:      c.Stats,
			Path:       c.Path,
			Duration:   c.Duration.Round(time.Millisecond).String(),
		}
		if c.Err != nil {
			cs.Error = errors.UserMessage(c.Err)
			cs.Code = errors.GetCode(c.Err)
		}
		s.Channels = append(s.Channels, cs)
	}
	for _, sk := range r.Skipped {
		s.Skipped = append(s.Skipped, SkipSummary{Channel: sk.Channel, Reason: sk.Reason})
	}
	return s
}

// Record converts the run into a history record. runErr is the error
// returned by the run, if any.
func (r *Result) Record(opts Options, runErr error) *history.Record {
	rec := history.NewRecord(opts.InputDir)
	rec.ID = r.ID
	rec.Output = opts.OutputDir
	rec.Strategy = opts.Strategy
	rec.Sequenced = r.Sequenced
	rec.Duration = r.Duration
	if runErr != nil {
		rec.Error = errors.UserMessage(runErr)
	}

	skipped := make(map[string]bool, len(r.Skipped))
	for _, sk := range r.Skipped {
		skipped[sk.Channel] = true
	}
	for _, c := range r.Channels {
		hc := history.Channel{
			Name:         c.Channel,
			Status:       c.Status(),
			Commands:     c.Program.Len(),
			Lifts:        c.Stats.Lifts,
			TravelBefore: c.Report.TravelBefore,
			TravelAfter:  c.Report.TravelAfter,
		}
		if c.Err != nil {
			hc.Error = errors.UserMessage(c.Err)
		} else if skipped[c.Channel] {
			hc.Status = history.StatusSkipped
		}
		rec.Channels = append(rec.Channels, hc)
	}
	return rec
}
