// Package sanitize cleans and validates untrusted client input: filenames, free text, processing
// options and uploaded content, including duplicate submission detection.
package sanitize

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lthibault/jitterbug/v2"
)

// Code identifies why input was rejected
type Code string

// Sanitization codes
const (
	CodeNone                Code = "none"
	CodeRateLimited         Code = "rate_limited"
	CodeSuspiciousContent   Code = "suspicious_content"
	CodeInvalidCharacters   Code = "invalid_characters"
	CodeContentTooLong      Code = "content_too_long"
	CodeContentTooShort     Code = "content_too_short"
	CodeMaliciousPattern    Code = "malicious_pattern"
	CodeInvalidMIMEType     Code = "invalid_mime_type"
	CodeInvalidExtension    Code = "invalid_extension"
	CodeDuplicateSubmission Code = "duplicate_submission"
)

// Upper returns the code in the upper-case form used in pipeline results
func (c Code) Upper() string {
	return strings.ToUpper(string(c))
}

// Limits
const (
	MaxFilenameLength = 255
	MaxTextLength     = 100000
	MinContentSize    = 100
	MaxContentSize    = 10 * 1024 * 1024

	DefaultDuplicateWindow = 5 * time.Minute
)

// Result is the outcome of sanitizing a single string value
type Result struct {
	IsSafe   bool
	Code     Code
	Message  string
	Value    string
	Warnings []string
}

func reject(code Code, message string) Result {
	return Result{IsSafe: false, Code: code, Message: message, Warnings: []string{}}
}

// Sanitizer validates client input. It is safe for concurrent use.
type Sanitizer struct {
	history         HistoryStore
	duplicateWindow time.Duration
	logger          *slog.Logger
	now             func() time.Time

	cleanupTicker *jitterbug.Ticker
	cleanupStop   chan struct{}
	startOnce     sync.Once
	stopOnce      sync.Once
}

// New creates a Sanitizer. A nil history keeps submission history in memory; a non-positive
// window uses DefaultDuplicateWindow.
func New(history HistoryStore, duplicateWindow time.Duration, logger *slog.Logger) *Sanitizer {
	if history == nil {
		history = NewMemoryHistory()
	}
	if duplicateWindow <= 0 {
		duplicateWindow = DefaultDuplicateWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sanitizer{
		history:         history,
		duplicateWindow: duplicateWindow,
		logger:          logger,
		now:             time.Now,
	}
}

// StartCleanup sweeps expired submission history every interval until Stop. It does nothing for
// history stores that expire entries themselves, or for a non-positive interval.
func (s *Sanitizer) StartCleanup(interval time.Duration) {
	sw, ok := s.history.(sweeper)
	if !ok || interval <= 0 {
		return
	}
	s.startOnce.Do(func() {
		s.cleanupTicker = jitterbug.New(interval, &jitterbug.Norm{Stdev: interval / 20})
		s.cleanupStop = make(chan struct{})
		go s.cleanup(sw, s.cleanupTicker.C, s.cleanupStop)
	})
}

func (s *Sanitizer) cleanup(sw sweeper, tick <-chan time.Time, stop <-chan struct{}) {
	for {
		select {
		case <-tick:
			if n := sw.Sweep(s.now(), s.duplicateWindow); n > 0 {
				s.logger.Debug("swept idle submission history", "clients", n)
			}
		case <-stop:
			return
		}
	}
}

// Stop ends the cleanup goroutine started by StartCleanup
func (s *Sanitizer) Stop() {
	s.stopOnce.Do(func() {
		if s.cleanupTicker != nil {
			s.cleanupTicker.Stop()
		}
		if s.cleanupStop != nil {
			close(s.cleanupStop)
		}
	})
}
