package sanitize

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"
)

var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// dangerousPatterns is a single alternation so one pass strips every match
var dangerousPatterns = regexp.MustCompile(`(?i)` + strings.Join([]string{
	`<script[^>]*>`,
	`</script>`,
	`javascript:`,
	`on\w+\s*=`,
	`data:text/html`,
	`vbscript:`,
	`expression\s*\(`,
	`eval\s*\(`,
	`document\.`,
	`window\.`,
}, "|"))

// SanitizeFilename strips path components and unsafe characters from a client filename. It only
// fails when the name is empty, too long, or collapses to nothing.
func SanitizeFilename(name string) Result {
	if name == "" {
		return reject(CodeInvalidCharacters, "Filename is required")
	}

	sanitized := strings.TrimSpace(name)
	if utf8.RuneCountInString(sanitized) > MaxFilenameLength {
		return reject(CodeContentTooLong,
			fmt.Sprintf("Filename exceeds maximum length of %d characters", MaxFilenameLength))
	}

	warnings := []string{}

	before := sanitized
	sanitized = strings.ReplaceAll(sanitized, "..", "")
	sanitized = lastSegment(sanitized, "/")
	sanitized = lastSegment(sanitized, `\`)
	if sanitized != before {
		warnings = append(warnings, "Path components were removed from filename")
	}

	before = sanitized
	sanitized = unsafeFilenameChars.ReplaceAllString(sanitized, "_")
	if sanitized != before {
		warnings = append(warnings, "Unsafe characters were replaced in filename")
	}

	if sanitized == "" || sanitized == "." {
		return reject(CodeInvalidCharacters, "Filename contains only invalid characters")
	}

	if strings.HasPrefix(sanitized, ".") {
		sanitized = "_" + sanitized[1:]
		warnings = append(warnings, "Leading dot was replaced to prevent hidden file")
	}

	return Result{IsSafe: true, Code: CodeNone, Value: sanitized, Warnings: warnings}
}

func lastSegment(s, sep string) string {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[i+len(sep):]
	}
	return s
}

// Extension returns the lower-cased extension of a filename without the dot
func Extension(filename string) string {
	ext := path.Ext(filename)
	if ext == "" {
		return ""
	}
	return strings.ToLower(ext[1:])
}

// SanitizeText neutralizes script-like content in free text. Apart from the length limit it never
// refuses input; dangerous fragments are removed instead.
func SanitizeText(text string) Result {
	if utf8.RuneCountInString(text) > MaxTextLength {
		return reject(CodeContentTooLong,
			fmt.Sprintf("Text exceeds maximum length of %d characters", MaxTextLength))
	}

	warnings := []string{}

	if matches := dangerousPatterns.FindAllStringIndex(text, -1); len(matches) > 0 {
		warnings = append(warnings,
			fmt.Sprintf("Suspicious patterns detected and will be removed: %d occurrences", len(matches)))
	}
	sanitized := dangerousPatterns.ReplaceAllString(text, "")

	if strings.Contains(sanitized, "\x00") {
		sanitized = strings.ReplaceAll(sanitized, "\x00", "")
		warnings = append(warnings, "Null bytes were removed")
	}

	return Result{IsSafe: true, Code: CodeNone, Value: sanitized, Warnings: warnings}
}
