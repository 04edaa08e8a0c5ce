// Package llm - extractor.go provides generic LLM-based structured extraction.
package llm

import (
	"fmt"
	"strings"

	"github.com/jonathan/portfolio-pipeline/internal/prompts"
)

const promptFile = "extraction.json"

// ExtractionSchema defines the structure for LLM-based content extraction.
// It provides a reusable way to define what information to extract from text.
type ExtractionSchema struct {
	Name        string        // Schema name (e.g., "JobRequirements", "BrandVoice")
	Description string        // System prompt preamble describing the extraction task
	Fields      []SchemaField // Expected output fields
}

// SchemaField defines a single field in the extraction output.
type SchemaField struct {
	Name        string // JSON field name
	Type        string // Type hint: "string", "[]string", "map[string]string"
	Description string // Description for the LLM
	Required    bool   // Whether this field is required
}

// BuildExtractionPrompt constructs the LLM prompt from schema and input text.
func BuildExtractionPrompt(schema ExtractionSchema, inputText string) string {
	var sb strings.Builder

	// System description
	sb.WriteString(schema.Description)
	sb.WriteString("\n\n")

	// Output schema
	sb.WriteString("Return ONLY valid JSON matching this exact structure:\n{\n")
	for i, field := range schema.Fields {
		typeHint := field.Type
		if typeHint == "" {
			typeHint = "string"
		}
		requiredHint := ""
		if field.Required {
			requiredHint = " (required)"
		}
		sb.WriteString(fmt.Sprintf("  \"%s\": %s%s", field.Name, typeHint, requiredHint))
		if field.Description != "" {
			sb.WriteString(fmt.Sprintf(" // %s", field.Description))
		}
		if i < len(schema.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n\n")

	sb.WriteString(prompts.MustGet(promptFile, "extraction-rules"))
	sb.WriteString("\n\n")

	// Input text
	sb.WriteString("Input text:\n\"\"\"\n")
	sb.WriteString(inputText)
	sb.WriteString("\n\"\"\"\n")

	return sb.String()
}

// --- Predefined Schemas ---

// CandidateProfileSchema returns the extraction schema for resume analysis.
// Extracts identity, professional category, skills, history and headline stats.
func CandidateProfileSchema() ExtractionSchema {
	return ExtractionSchema{
		Name: "CandidateProfile",
		Description: prompts.MustGet(promptFile, "candidate-profile"),
		Fields: []SchemaField{
			{Name: "name", Type: "\"string\"", Description: "Candidate full name", Required: true},
			{Name: "title", Type: "\"string\"", Description: "Current or target job title", Required: true},
			{
				Name:        "professional_category",
				Type:        "\"creative\" | \"technical\" | \"corporate\" | \"hybrid\"",
				Description: "Best fitting category",
				Required:    true,
			},
			{Name: "confidence", Type: "number", Description: "Your confidence in this profile, 0.0 to 1.0", Required: true},
			{Name: "summary", Type: "\"string\"", Description: "One or two sentence professional summary", Required: false},
			{
				Name:        "skills",
				Type:        "[{\"name\": \"string\", \"level\": 1-5, \"category\": \"string\"}]",
				Description: "Skills with proficiency and a grouping such as Languages or Design",
				Required:    true,
			},
			{
				Name:        "experience",
				Type:        "[{\"company\": \"string\", \"title\": \"string\", \"start_date\": \"string\", \"end_date\": \"string\", \"description\": \"string\", \"highlights\": [\"string\"]}]",
				Description: "Roles, most recent first",
				Required:    true,
			},
			{
				Name:        "education",
				Type:        "[{\"institution\": \"string\", \"degree\": \"string\", \"field\": \"string\", \"graduation_date\": \"string\"}]",
				Description: "Degrees and programs",
				Required:    false,
			},
			{
				Name:        "projects",
				Type:        "[{\"name\": \"string\", \"description\": \"string\", \"technologies\": [\"string\"], \"url\": \"string\"}]",
				Description: "Notable projects",
				Required:    false,
			},
			{
				Name:        "contact",
				Type:        "{\"email\": \"string\", \"phone\": \"string\", \"location\": \"string\", \"links\": {\"key\": \"url\"}}",
				Description: "Contact details that appear in the text",
				Required:    false,
			},
			{
				Name:        "achievements",
				Type:        "[{\"label\": \"string\", \"value\": \"string\"}]",
				Description: "Headline stats such as Years Experience: 8+",
				Required:    false,
			},
		},
	}
}

// TranscriptionPrompt instructs a multimodal model to return the plain text of a resume document
var TranscriptionPrompt = prompts.MustGet(promptFile, "transcribe-document")
