package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonathan/portfolio-pipeline/internal/fallback"
	"github.com/jonathan/portfolio-pipeline/internal/llm"
	"github.com/jonathan/portfolio-pipeline/internal/recovery"
	"github.com/jonathan/portfolio-pipeline/internal/schemas"
	"github.com/jonathan/portfolio-pipeline/internal/types"
)

// Defaults applied to model output that omits a value
const (
	DefaultConfidence    = 0.8
	DefaultSkillLevel    = 3
	DefaultSkillCategory = "General"
)

// GeminiAnalyzer turns resume text into a candidate profile
type GeminiAnalyzer struct {
	client llm.Client
	tier   llm.ModelTier
	logger *slog.Logger
}

// NewGeminiAnalyzer creates an analyzer using the standard tier
func NewGeminiAnalyzer(client llm.Client, logger *slog.Logger) *GeminiAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiAnalyzer{client: client, tier: llm.TierStandard, logger: logger}
}

// WithTier returns a copy of the analyzer that uses tier
func (a *GeminiAnalyzer) WithTier(tier llm.ModelTier) *GeminiAnalyzer {
	c := *a
	c.tier = tier
	return &c
}

// profileResponse mirrors the model's JSON. Pointers distinguish omitted values from zero.
type profileResponse struct {
	Name         string              `json:"name"`
	Title        string              `json:"title"`
	Category     string              `json:"professional_category"`
	Confidence   *float64            `json:"confidence"`
	Summary      string              `json:"summary"`
	Skills       []skillResponse     `json:"skills"`
	Experience   []types.Experience  `json:"experience"`
	Education    []types.Education   `json:"education"`
	Projects     []types.Project     `json:"projects"`
	Contact      types.Contact       `json:"contact"`
	Achievements []types.Achievement `json:"achievements"`
}

type skillResponse struct {
	Name     string `json:"name"`
	Level    *int   `json:"level"`
	Category string `json:"category"`
}

// Analyze asks the model for a profile, gates the JSON through the candidate profile schema and
// normalizes the result. Malformed or off-schema output is a permanent failure.
func (a *GeminiAnalyzer) Analyze(ctx context.Context, text string, _ types.Options) (*types.CandidateProfile, error) {
	if strings.TrimSpace(text) == "" {
		return nil, recovery.Permanent("no text to analyze", nil)
	}

	prompt := llm.BuildExtractionPrompt(llm.CandidateProfileSchema(), text)
	raw, err := a.client.GenerateJSON(ctx, prompt, a.tier)
	if err != nil {
		return nil, err
	}

	if err := schemas.ValidateProfileJSON([]byte(raw)); err != nil {
		a.logger.Warn("model output failed schema validation", "error", err)
		return nil, recovery.Permanent("profile response did not match schema", err)
	}

	var resp profileResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, recovery.Permanent("failed to parse profile response",
			fmt.Errorf("failed to unmarshal JSON: %w (content: %s)", err, truncate(raw, 200)))
	}

	profile := resp.toProfile()
	profile.ExtractedText = text
	profile.Normalize()
	return profile, nil
}

func (r profileResponse) toProfile() *types.CandidateProfile {
	p := &types.CandidateProfile{
		Name:         r.Name,
		Title:        r.Title,
		Category:     types.ProfessionalCategory(r.Category),
		Confidence:   DefaultConfidence,
		Summary:      r.Summary,
		Experience:   r.Experience,
		Education:    r.Education,
		Projects:     r.Projects,
		Contact:      r.Contact,
		Achievements: r.Achievements,
	}
	if r.Confidence != nil {
		p.Confidence = *r.Confidence
	}

	for _, s := range r.Skills {
		level := DefaultSkillLevel
		if s.Level != nil {
			level = *s.Level
		}
		category := s.Category
		if strings.TrimSpace(category) == "" {
			category = DefaultSkillCategory
		}
		p.Skills = append(p.Skills, types.Skill{Name: s.Name, Level: level, Category: category})
	}

	if len(p.Skills) == 0 {
		p.Skills = fallback.DefaultSkills()
	}
	if len(p.Achievements) == 0 {
		p.Achievements = fallback.DefaultAchievements()
	}
	return p
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
