// Package fallback produces default profiles, component layouts and themes used when upstream
// extraction, analysis or selection fails. Every function is pure and deterministic.
package fallback

import (
	"fmt"

	"github.com/jonathan/portfolio-pipeline/internal/types"
)

// Placeholder content
const (
	PlaceholderName    = "Portfolio User"
	PlaceholderTitle   = "Professional"
	DefaultProfileID   = "00000000-0000-0000-0000-000000000000"
	DefaultSummary     = "Professional portfolio generated with default settings."
	DefaultConfidence  = 0.3
	softSkillsCategory = "Soft Skills"
	placeholderLevel   = 4
)

// Hero sub-themes, distinct from the page palette
const (
	HeroThemeSunset = "sunset"
	HeroThemeMatrix = "matrix"
	HeroThemeOcean  = "ocean"
)

var subtitles = map[types.ProfessionalCategory]string{
	types.CategoryCreative:  "Creative professional",
	types.CategoryCorporate: "Welcome to my portfolio",
	types.CategoryHybrid:    "Welcome to my portfolio",
}

// DefaultSkills returns the soft-skill placeholders
func DefaultSkills() []types.Skill {
	return []types.Skill{
		{Name: "Communication", Level: placeholderLevel, Category: softSkillsCategory},
		{Name: "Problem Solving", Level: placeholderLevel, Category: softSkillsCategory},
		{Name: "Teamwork", Level: placeholderLevel, Category: softSkillsCategory},
	}
}

// DefaultAchievements returns the headline stat placeholders
func DefaultAchievements() []types.Achievement {
	return []types.Achievement{
		{ID: "1", Label: "Years Experience", Value: "5+"},
		{ID: "2", Label: "Projects", Value: "10+"},
	}
}

// DefaultProfile returns the hybrid profile used when analysis fails
func DefaultProfile() *types.CandidateProfile {
	return &types.CandidateProfile{
		ID:           DefaultProfileID,
		Name:         PlaceholderName,
		Title:        PlaceholderTitle,
		Category:     types.CategoryHybrid,
		Confidence:   DefaultConfidence,
		Summary:      DefaultSummary,
		Skills:       DefaultSkills(),
		Experience:   []types.Experience{},
		Education:    []types.Education{},
		Projects:     []types.Project{},
		Contact:      types.Contact{Links: map[string]string{}},
		Achievements: DefaultAchievements(),
	}
}

// EmptyExtraction is the extraction result used when text extraction fails
func EmptyExtraction() types.Extraction {
	return types.Extraction{Text: "", Confidence: 0}
}

// Theme maps a category to its page palette. Unknown categories use neon blue.
func Theme(category types.ProfessionalCategory) types.ThemePalette {
	switch category {
	case types.CategoryCreative:
		return types.ThemeCyberPink
	case types.CategoryCorporate:
		return types.ThemeEmeraldGreen
	default:
		return types.ThemeNeonBlue
	}
}

// fields is the subset of a profile used to populate components, with placeholders filled in
type fields struct {
	name         string
	title        string
	summary      string
	skills       []types.Skill
	experience   []types.Experience
	projects     []types.Project
	achievements []types.Achievement
}

func fieldsFor(category types.ProfessionalCategory, p *types.CandidateProfile) fields {
	f := fields{
		name:         PlaceholderName,
		title:        PlaceholderTitle,
		summary:      subtitles[category],
		skills:       DefaultSkills(),
		experience:   []types.Experience{},
		projects:     []types.Project{},
		achievements: DefaultAchievements(),
	}
	if f.summary == "" {
		f.summary = subtitles[types.CategoryHybrid]
	}
	if p == nil {
		return f
	}
	if p.Name != "" {
		f.name = p.Name
	}
	if p.Title != "" {
		f.title = p.Title
	}
	if p.Summary != "" {
		f.summary = p.Summary
	}
	if len(p.Skills) > 0 {
		f.skills = p.Skills
	}
	if p.Experience != nil {
		f.experience = p.Experience
	}
	if p.Projects != nil {
		f.projects = p.Projects
	}
	if len(p.Achievements) > 0 {
		f.achievements = p.Achievements
	}
	return f
}

// Components returns the four-component layout for category populated from profile, which may be
// nil or partial. The result always validates with types.ValidateComponents.
func Components(category types.ProfessionalCategory, profile *types.CandidateProfile) []types.ComponentConfig {
	f := fieldsFor(category, profile)

	stats := types.ComponentConfig{
		Type:  types.ComponentStatsBento,
		Props: map[string]any{"achievements": f.achievements},
		Order: 3,
	}

	switch category {
	case types.CategoryCreative:
		return []types.ComponentConfig{
			heroPrism(f, HeroThemeSunset),
			{
				Type:  types.ComponentExpMasonry,
				Props: map[string]any{"experiences": f.experience, "projects": f.projects},
				Order: 1,
			},
			{
				Type:  types.ComponentSkillsDots,
				Props: map[string]any{"skills": f.skills, "maxLevel": types.MaxSkillLevel},
				Order: 2,
			},
			stats,
		}
	case types.CategoryTechnical:
		return []types.ComponentConfig{
			{
				Type: types.ComponentHeroTerminal,
				Props: map[string]any{
					"name":  f.name,
					"title": f.title,
					"theme": HeroThemeMatrix,
					"commands": []string{
						fmt.Sprintf("whoami -> %s", f.name),
						fmt.Sprintf("cat title.txt -> %s", f.title),
						"ls skills/ -> [loading...]",
					},
				},
				Order: 0,
				Theme: HeroThemeMatrix,
			},
			timeline(f),
			radar(f),
			stats,
		}
	default:
		return []types.ComponentConfig{
			heroPrism(f, HeroThemeOcean),
			timeline(f),
			radar(f),
			stats,
		}
	}
}

func heroPrism(f fields, theme string) types.ComponentConfig {
	return types.ComponentConfig{
		Type: types.ComponentHeroPrism,
		Props: map[string]any{
			"name":     f.name,
			"title":    f.title,
			"subtitle": f.summary,
			"theme":    theme,
		},
		Order: 0,
		Theme: theme,
	}
}

func timeline(f fields) types.ComponentConfig {
	return types.ComponentConfig{
		Type:  types.ComponentExpTimeline,
		Props: map[string]any{"experiences": f.experience},
		Order: 1,
	}
}

func radar(f fields) types.ComponentConfig {
	return types.ComponentConfig{
		Type:  types.ComponentSkillsRadar,
		Props: map[string]any{"skills": f.skills},
		Order: 2,
	}
}
