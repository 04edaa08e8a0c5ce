package pipeline

import (
	"time"

	"github.com/jonathan/portfolio-pipeline/internal/types"
)

// Error codes produced by the orchestrator itself. Validation codes come from the sanitize and
// fileval packages in upper case.
const (
	CodeRateLimited     = "RATE_LIMITED"
	CodeProcessingError = "PROCESSING_ERROR"
)

// Request is a single upload to process
type Request struct {
	Content     []byte
	Filename    string
	ContentType string
	// Options holds raw client options such as theme_preference and component_style
	Options  map[string]any
	ClientID string
	// Progress, when set, receives this run's events after the orchestrator's observers
	Progress ProgressSink
}

// StageTiming is the wall time spent in a stage
type StageTiming struct {
	Stage    Stage         `json:"stage"`
	Duration time.Duration `json:"duration"`
}

// Result is the outcome of Process. Fallbacks lists the stages whose output is substitute content.
type Result struct {
	Success        bool                    `json:"success"`
	ErrorCode      string                  `json:"error_code,omitempty"`
	Error          string                  `json:"error,omitempty"`
	SubmissionID   string                  `json:"submission_id,omitempty"`
	Fingerprint    string                  `json:"fingerprint,omitempty"`
	Profile        *types.CandidateProfile `json:"candidate_profile,omitempty"`
	Components     []types.ComponentConfig `json:"components,omitempty"`
	Theme          types.ThemePalette      `json:"theme,omitempty"`
	Options        types.Options           `json:"options"`
	ProcessingTime time.Duration           `json:"-"`
	RetryAfter     time.Duration           `json:"-"`
	Warnings       []string                `json:"warnings"`
	Fallbacks      []Stage                 `json:"fallbacks,omitempty"`
	Timings        []StageTiming           `json:"-"`
}

// ProcessingTimeMs is ProcessingTime in whole milliseconds
func (r *Result) ProcessingTimeMs() int64 {
	return r.ProcessingTime.Milliseconds()
}

// UsedFallback reports whether stage produced substitute content
func (r *Result) UsedFallback(stage Stage) bool {
	for _, s := range r.Fallbacks {
		if s == stage {
			return true
		}
	}
	return false
}
