package sanitize

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

var allowedExtensions = map[string]bool{"pdf": true, "png": true, "jpg": true, "jpeg": true}

var allowedMIMETypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
	"image/jpg":       true,
}

var signatures = []struct {
	magic []byte
	kind  string
}{
	{[]byte("%PDF"), "pdf"},
	{[]byte("\x89PNG"), "png"},
	{[]byte("\xff\xd8\xff"), "jpg"},
}

// ContentResult is the outcome of ValidateContent
type ContentResult struct {
	Valid        bool
	Code         Code
	Message      string
	Fingerprint  string
	Size         int
	DetectedType string
	Filename     string
	Warnings     []string
}

// Fingerprint returns the hex SHA-256 digest of content
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// DetectType returns the type indicated by the leading magic bytes, or "" if unknown
func DetectType(content []byte) string {
	for _, sig := range signatures {
		if bytes.HasPrefix(content, sig.magic) {
			return sig.kind
		}
	}
	return ""
}

func isJPEG(ext string) bool {
	return ext == "jpg" || ext == "jpeg"
}

// ValidateContent checks size bounds, filename and extension, compares the declared and detected
// types, fingerprints the content, and rejects a repeat submission from the same client within the
// duplicate window. clientID may be empty to skip duplicate detection.
func (s *Sanitizer) ValidateContent(ctx context.Context, content []byte, filename, declaredType, clientID string) ContentResult {
	size := len(content)
	if size == 0 {
		return ContentResult{Code: CodeContentTooShort, Message: "File content is empty", Warnings: []string{}}
	}
	if size < MinContentSize {
		return ContentResult{
			Code:     CodeContentTooShort,
			Message:  fmt.Sprintf("File is too small (%d bytes). Minimum size is %d bytes", size, MinContentSize),
			Size:     size,
			Warnings: []string{},
		}
	}
	if size > MaxContentSize {
		return ContentResult{
			Code:     CodeContentTooLong,
			Message:  fmt.Sprintf("File exceeds maximum size of %dMB", MaxContentSize/(1024*1024)),
			Size:     size,
			Warnings: []string{},
		}
	}

	name := SanitizeFilename(filename)
	if !name.IsSafe {
		return ContentResult{Code: name.Code, Message: name.Message, Size: size, Warnings: []string{}}
	}
	warnings := append([]string{}, name.Warnings...)

	ext := Extension(name.Value)
	if !allowedExtensions[ext] {
		return ContentResult{
			Code:     CodeInvalidExtension,
			Message:  fmt.Sprintf("Unsupported file extension: .%s. Allowed: %s", ext, allowedList()),
			Size:     size,
			Filename: name.Value,
			Warnings: warnings,
		}
	}

	detected := DetectType(content)
	if detected != "" && detected != ext && !(isJPEG(detected) && isJPEG(ext)) {
		warnings = append(warnings, fmt.Sprintf("File content type (%s) differs from extension (%s)", detected, ext))
	}
	if declaredType != "" && !allowedMIMETypes[strings.ToLower(declaredType)] {
		warnings = append(warnings, fmt.Sprintf("Declared MIME type %s is not in allowed list", declaredType))
	}
	if detected == "" {
		detected = ext
	}

	result := ContentResult{
		Valid:        true,
		Code:         CodeNone,
		Fingerprint:  Fingerprint(content),
		Size:         size,
		DetectedType: detected,
		Filename:     name.Value,
		Warnings:     warnings,
	}

	if clientID == "" {
		return result
	}

	dup, err := s.history.SeenOrRecord(ctx, clientID, result.Fingerprint, s.now(), s.duplicateWindow)
	if err != nil {
		s.logger.Warn("submission history unavailable, skipping duplicate check", "client", clientID, "error", err)
		return result
	}
	if dup {
		result.Valid = false
		result.Code = CodeDuplicateSubmission
		result.Message = "This file was recently submitted. Please wait before resubmitting."
	}
	return result
}

// AllowedExtensions returns the accepted upload extensions, sorted
func AllowedExtensions() []string {
	exts := make([]string, 0, len(allowedExtensions))
	for ext := range allowedExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func allowedList() string {
	return strings.Join(AllowedExtensions(), ", ")
}
