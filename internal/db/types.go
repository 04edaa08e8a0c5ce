package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Submission status constants
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Submission represents a submission record
type Submission struct {
	ID           uuid.UUID       `json:"id"`
	ClientID     *string         `json:"client_id,omitempty"`
	Filename     string          `json:"filename"`
	FileType     string          `json:"file_type"`
	SizeBytes    int             `json:"size_bytes"`
	Fingerprint  string          `json:"fingerprint"`
	Status       string          `json:"status"`
	Stage        string          `json:"stage"`
	Progress     int             `json:"progress"`
	Category     *string         `json:"category,omitempty"`
	Theme        *string         `json:"theme,omitempty"`
	Profile      json.RawMessage `json:"profile,omitempty"`
	ErrorCode    *string         `json:"error_code,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	Warnings     []string        `json:"warnings"`
	Fallbacks    []string        `json:"fallbacks"`
	ProcessingMs *int64          `json:"processing_ms,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// Component represents a stored component of a completed submission
type Component struct {
	ID           uuid.UUID       `json:"id"`
	SubmissionID uuid.UUID       `json:"submission_id"`
	Position     int             `json:"position"`
	Type         string          `json:"type"`
	Theme        *string         `json:"theme,omitempty"`
	Props        json.RawMessage `json:"props"`
	CreatedAt    time.Time       `json:"created_at"`
}
