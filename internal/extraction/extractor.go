// Package extraction implements the document text extractor and resume analysis engine on top of
// the llm client.
package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/jonathan/portfolio-pipeline/internal/llm"
	"github.com/jonathan/portfolio-pipeline/internal/recovery"
	"github.com/jonathan/portfolio-pipeline/internal/types"
)

var mimeTypes = map[string]string{
	"pdf":  "application/pdf",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
}

// MIMEType returns the content type sent to the model for a file extension
func MIMEType(fileType string) (string, bool) {
	m, ok := mimeTypes[strings.ToLower(strings.TrimPrefix(fileType, "."))]
	return m, ok
}

// GeminiExtractor transcribes resume documents with a multimodal model
type GeminiExtractor struct {
	client llm.Client
	tier   llm.ModelTier
	logger *slog.Logger
}

// NewGeminiExtractor creates an extractor using the lite tier
func NewGeminiExtractor(client llm.Client, logger *slog.Logger) *GeminiExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiExtractor{client: client, tier: llm.TierLite, logger: logger}
}

// WithTier returns a copy of the extractor that uses tier
func (e *GeminiExtractor) WithTier(tier llm.ModelTier) *GeminiExtractor {
	c := *e
	c.tier = tier
	return &c
}

// Extract returns the document text and a confidence derived from how much of it is readable
func (e *GeminiExtractor) Extract(ctx context.Context, content []byte, fileType string) (types.Extraction, error) {
	mimeType, ok := MIMEType(fileType)
	if !ok {
		return types.Extraction{}, recovery.Permanent(fmt.Sprintf("unsupported file type for extraction: %s", fileType), nil)
	}

	text, err := e.client.GenerateFromDocument(ctx, llm.TranscriptionPrompt, llm.Document{
		MIMEType: mimeType,
		Data:     content,
	}, e.tier)
	if err != nil {
		return types.Extraction{}, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return types.Extraction{}, recovery.Permanent("no text found in document", nil)
	}

	confidence := readableRatio(text)
	e.logger.Debug("extracted document text", "file_type", fileType, "chars", len(text), "confidence", confidence)
	return types.Extraction{Text: text, Confidence: confidence}, nil
}

// readableRatio is the fraction of runes that are letters, digits, punctuation or whitespace
func readableRatio(text string) float64 {
	total, readable := 0, 0
	for _, r := range text {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
			readable++
		}
	}
	if total == 0 {
		return 0
	}
	return types.ClampConfidence(float64(readable) / float64(total))
}
