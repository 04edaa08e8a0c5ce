package pipeline

import (
	"context"
	"time"

	"github.com/jonathan/portfolio-pipeline/internal/fileval"
	"github.com/jonathan/portfolio-pipeline/internal/ratelimit"
	"github.com/jonathan/portfolio-pipeline/internal/sanitize"
	"github.com/jonathan/portfolio-pipeline/internal/types"
)

// Extractor recovers text from an uploaded document
type Extractor interface {
	Extract(ctx context.Context, content []byte, fileType string) (types.Extraction, error)
}

// AnalysisEngine builds a candidate profile from resume text
type AnalysisEngine interface {
	Analyze(ctx context.Context, text string, opts types.Options) (*types.CandidateProfile, error)
}

// FileIntegrityChecker verifies an upload is a well-formed supported document
type FileIntegrityChecker interface {
	Check(content []byte, filename, declaredType string) fileval.FileCheck
}

// ContentValidator applies content policy and duplicate detection to an upload
type ContentValidator interface {
	ValidateContent(ctx context.Context, content []byte, filename, declaredType, clientID string) sanitize.ContentResult
}

// RateLimiter admits or denies a client
type RateLimiter interface {
	Check(ctx context.Context, id string) ratelimit.Decision
}

// ComponentSelector chooses the portfolio components for a profile
type ComponentSelector func(profile *types.CandidateProfile, opts types.Options) ([]types.ComponentConfig, error)

// Submission describes an accepted upload
type Submission struct {
	ID          string
	ClientID    string
	Filename    string
	FileType    string
	Size        int
	Fingerprint string
	CreatedAt   time.Time
}

// PersistenceGateway records run lifecycle for external bookkeeping. Failures are logged and never
// affect the run.
type PersistenceGateway interface {
	Created(ctx context.Context, s Submission) error
	StageUpdated(ctx context.Context, submissionID string, p Progress) error
	Completed(ctx context.Context, submissionID string, r *Result) error
	Failed(ctx context.Context, submissionID string, code, message string) error
}
