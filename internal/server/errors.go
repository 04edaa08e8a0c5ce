package server

import (
	"net/http"

	"github.com/jonathan/portfolio-pipeline/internal/fileval"
	"github.com/jonathan/portfolio-pipeline/internal/pipeline"
	"github.com/jonathan/portfolio-pipeline/internal/recovery"
	"github.com/jonathan/portfolio-pipeline/internal/sanitize"
)

// Request-level error codes produced before the pipeline runs
const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeMissingFile       = "MISSING_FILE"
	CodeSuspiciousClient  = "SUSPICIOUS_CONTENT"
	CodeNotFound          = "NOT_FOUND"
	CodeNotConfigured     = "NOT_CONFIGURED"
	CodeStreamUnsupported = "STREAM_UNSUPPORTED"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Success    bool   `json:"success"`
	ErrorCode  string `json:"error_code"`
	Error      string `json:"error"`
	RetryAfter int    `json:"retry_after,omitempty"`
	// Operation and Details are set for failures of a backing service
	Operation string                 `json:"operation,omitempty"`
	Details   *recovery.ErrorDetails `json:"details,omitempty"`
}

// HTTPStatus returns the appropriate HTTP status code for a pipeline error code
func HTTPStatus(code string) int {
	switch code {
	case "":
		return http.StatusOK
	case pipeline.CodeRateLimited:
		return http.StatusTooManyRequests
	case sanitize.CodeDuplicateSubmission.Upper():
		return http.StatusConflict
	case fileval.CodeFileTooLarge.Upper():
		return http.StatusRequestEntityTooLarge
	case sanitize.CodeInvalidCharacters.Upper(),
		sanitize.CodeContentTooLong.Upper(),
		sanitize.CodeContentTooShort.Upper(),
		sanitize.CodeMaliciousPattern.Upper(),
		sanitize.CodeInvalidExtension.Upper(),
		sanitize.CodeInvalidMIMEType.Upper(),
		fileval.CodeEmptyFile.Upper(),
		fileval.CodeUnsupportedFormat.Upper(),
		fileval.CodeCorruptedFile.Upper(),
		fileval.CodeInvalidPDF.Upper(),
		fileval.CodeInvalidImage.Upper(),
		fileval.CodeMissingFilename.Upper(),
		CodeInvalidRequest,
		CodeMissingFile:
		return http.StatusBadRequest
	case CodeSuspiciousClient:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeNotConfigured:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
