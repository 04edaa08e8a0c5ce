// Package fileval validates the structural integrity of uploaded resume files.
package fileval

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Code identifies why a file failed validation
type Code string

// Validation codes
const (
	CodeNone              Code = "none"
	CodeEmptyFile         Code = "empty_file"
	CodeFileTooLarge      Code = "file_too_large"
	CodeUnsupportedFormat Code = "unsupported_format"
	CodeCorruptedFile     Code = "corrupted_file"
	CodeInvalidPDF        Code = "invalid_pdf"
	CodeInvalidImage      Code = "invalid_image"
	CodeMissingFilename   Code = "missing_filename"
)

// Upper returns the code in the upper-case form used in pipeline results
func (c Code) Upper() string {
	return strings.ToUpper(string(c))
}

// Defaults
const (
	DefaultMaxSize      = 10 * 1024 * 1024
	DefaultMinSize      = 100
	DefaultMaxDimension = 50000
	// DefaultMaxPixels rejects images whose full decode would allocate unreasonably
	DefaultMaxPixels = 89_478_485
)

var supportedExtensions = map[string]bool{"pdf": true, "png": true, "jpg": true, "jpeg": true}

var magic = []struct {
	prefix []byte
	kind   string
}{
	{[]byte("%PDF"), "pdf"},
	{[]byte("\x89PNG"), "png"},
	{[]byte("\xff\xd8\xff"), "jpg"},
}

// FileCheck is the outcome of Check
type FileCheck struct {
	Valid        bool   `json:"valid"`
	Type         string `json:"type"`
	Size         int    `json:"size"`
	Code         Code   `json:"code"`
	Error        string `json:"error,omitempty"`
	DetectedMIME string `json:"detected_mime,omitempty"`
}

// Checker validates file size, format and integrity
type Checker struct {
	MaxSize      int
	MinSize      int
	MaxDimension int
	MaxPixels    int
}

// NewChecker returns a Checker with default limits
func NewChecker() *Checker {
	return &Checker{
		MaxSize:      DefaultMaxSize,
		MinSize:      DefaultMinSize,
		MaxDimension: DefaultMaxDimension,
		MaxPixels:    DefaultMaxPixels,
	}
}

func fail(code Code, size int, fileType, format string, args ...any) FileCheck {
	return FileCheck{Valid: false, Code: code, Size: size, Type: fileType, Error: fmt.Sprintf(format, args...)}
}

// Check validates content against the filename's extension. declaredType is the client supplied
// content type and is informational only.
func (c *Checker) Check(content []byte, filename, declaredType string) FileCheck {
	size := len(content)

	if strings.TrimSpace(filename) == "" {
		return fail(CodeMissingFilename, size, "", "Filename is required")
	}
	if size == 0 {
		return fail(CodeEmptyFile, 0, "", "File is empty")
	}
	if size < c.MinSize {
		return fail(CodeEmptyFile, size, "", "File is too small (%d bytes). Minimum size is %d bytes", size, c.MinSize)
	}
	if size > c.MaxSize {
		return fail(CodeFileTooLarge, size, "", "File exceeds maximum size of %s. Current size: %s",
			formatSize(c.MaxSize), formatSize(size))
	}

	ext := extension(filename)
	if !supportedExtensions[ext] {
		return fail(CodeUnsupportedFormat, size, ext,
			"Unsupported file format: .%s. Supported formats: PDF, PNG, JPG, JPEG", ext)
	}

	detectedMIME := mimetype.Detect(content).String()

	detected := detectKind(content)
	if detected != "" && detected != ext && !(isJPEG(detected) && isJPEG(ext)) {
		check := fail(CodeCorruptedFile, size, ext,
			"File content does not match extension. Expected %s, detected %s", ext, detected)
		check.DetectedMIME = detectedMIME
		return check
	}

	var check FileCheck
	if ext == "pdf" {
		check = c.checkPDF(content)
	} else {
		check = c.checkImage(content)
	}
	check.Size = size
	check.Type = ext
	check.DetectedMIME = detectedMIME
	return check
}

func (c *Checker) checkPDF(content []byte) FileCheck {
	if !bytes.HasPrefix(content, []byte("%PDF")) {
		return FileCheck{Code: CodeInvalidPDF, Error: "Invalid PDF: Missing PDF header signature"}
	}
	if !bytes.Contains(content, []byte("%%EOF")) {
		return FileCheck{Code: CodeInvalidPDF, Error: "Invalid PDF: Missing EOF marker. File may be truncated or corrupted"}
	}
	if !bytes.Contains(content, []byte("obj")) || !bytes.Contains(content, []byte("endobj")) {
		return FileCheck{Code: CodeInvalidPDF, Error: "Invalid PDF: Missing required PDF structure elements"}
	}
	return FileCheck{Valid: true, Code: CodeNone}
}

func (c *Checker) checkImage(content []byte) FileCheck {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return FileCheck{Code: CodeInvalidImage, Error: "Invalid image: Cannot identify image format. File may be corrupted"}
	}

	if cfg.Width <= 0 || cfg.Height <= 0 {
		return FileCheck{Code: CodeInvalidImage, Error: "Invalid image: Image has zero or negative dimensions"}
	}
	if cfg.Width > c.MaxDimension || cfg.Height > c.MaxDimension {
		return FileCheck{Code: CodeInvalidImage, Error: fmt.Sprintf(
			"Invalid image: Dimensions too large (%dx%d). Maximum is %dx%d",
			cfg.Width, cfg.Height, c.MaxDimension, c.MaxDimension)}
	}
	if c.MaxPixels > 0 && cfg.Width*cfg.Height > c.MaxPixels {
		return FileCheck{Code: CodeInvalidImage, Error: "Invalid image: Image is too large (potential decompression bomb)"}
	}

	if _, _, err := image.Decode(bytes.NewReader(content)); err != nil {
		return FileCheck{Code: CodeCorruptedFile, Error: fmt.Sprintf("Error validating image: %v", err)}
	}
	return FileCheck{Valid: true, Code: CodeNone}
}

func extension(filename string) string {
	ext := path.Ext(strings.TrimSpace(filename))
	if ext == "" {
		return ""
	}
	return strings.ToLower(ext[1:])
}

func detectKind(content []byte) string {
	for _, m := range magic {
		if bytes.HasPrefix(content, m.prefix) {
			return m.kind
		}
	}
	return ""
}

func isJPEG(kind string) bool {
	return kind == "jpg" || kind == "jpeg"
}

func formatSize(n int) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d bytes", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}
