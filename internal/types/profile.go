// Package types provides type definitions for structured data used throughout the portfolio pipeline.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ProfessionalCategory classifies a candidate for layout and theme decisions
type ProfessionalCategory string

// Professional categories
const (
	CategoryCreative  ProfessionalCategory = "creative"
	CategoryTechnical ProfessionalCategory = "technical"
	CategoryCorporate ProfessionalCategory = "corporate"
	CategoryHybrid    ProfessionalCategory = "hybrid"
)

// ParseCategory maps a free-form string to a known category. Unknown values map to hybrid.
func ParseCategory(s string) ProfessionalCategory {
	switch ProfessionalCategory(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryCreative:
		return CategoryCreative
	case CategoryTechnical:
		return CategoryTechnical
	case CategoryCorporate:
		return CategoryCorporate
	default:
		return CategoryHybrid
	}
}

// Skill level bounds
const (
	MinSkillLevel = 1
	MaxSkillLevel = 5
)

// CandidateProfile is the structured representation of a resume
type CandidateProfile struct {
	ID            string               `json:"id" validate:"required"`
	Name          string               `json:"name"`
	Title         string               `json:"title"`
	Category      ProfessionalCategory `json:"professional_category" validate:"oneof=creative technical corporate hybrid"`
	Confidence    float64              `json:"confidence" validate:"gte=0,lte=1"`
	Summary       string               `json:"summary"`
	Skills        []Skill              `json:"skills" validate:"dive"`
	Experience    []Experience         `json:"experience"`
	Education     []Education          `json:"education"`
	Projects      []Project            `json:"projects"`
	Contact       Contact              `json:"contact"`
	Achievements  []Achievement        `json:"achievements"`
	ExtractedText string               `json:"extracted_text,omitempty"`
}

// Skill is a named competency with a 1-5 proficiency level
type Skill struct {
	Name     string `json:"name" validate:"required"`
	Level    int    `json:"level" validate:"gte=1,lte=5"`
	Category string `json:"category"`
}

// Experience is a single role held by the candidate
type Experience struct {
	ID          string   `json:"id"`
	Company     string   `json:"company"`
	Title       string   `json:"title"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	Description string   `json:"description"`
	Highlights  []string `json:"highlights"`
}

// Education is a degree or program entry
type Education struct {
	ID             string `json:"id"`
	Institution    string `json:"institution"`
	Degree         string `json:"degree"`
	Field          string `json:"field"`
	GraduationDate string `json:"graduation_date"`
}

// Project is a portfolio project entry
type Project struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
	URL          string   `json:"url,omitempty"`
}

// Contact holds the candidate's contact details
type Contact struct {
	Email    string            `json:"email,omitempty"`
	Phone    string            `json:"phone,omitempty"`
	Location string            `json:"location,omitempty"`
	Links    map[string]string `json:"links"`
}

// Achievement is a headline stat such as "Years Experience: 5+"
type Achievement struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// ClampConfidence bounds a confidence score to [0,1]
func ClampConfidence(c float64) float64 {
	if c != c { // NaN
		return 0
	}
	return max(0, min(1, c))
}

// ClampSkillLevel bounds a skill level to [1,5]
func ClampSkillLevel(level int) int {
	return max(MinSkillLevel, min(MaxSkillLevel, level))
}

// Normalize enforces the profile invariants in place: clamped confidence and skill levels,
// known category, trimmed strings, non-nil collections and stable IDs.
func (p *CandidateProfile) Normalize() {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.Name = strings.TrimSpace(p.Name)
	p.Title = strings.TrimSpace(p.Title)
	p.Summary = strings.TrimSpace(p.Summary)
	p.Category = ParseCategory(string(p.Category))
	p.Confidence = ClampConfidence(p.Confidence)

	skills := make([]Skill, 0, len(p.Skills))
	for _, s := range p.Skills {
		s.Name = strings.TrimSpace(s.Name)
		if s.Name == "" {
			continue
		}
		s.Category = strings.TrimSpace(s.Category)
		s.Level = ClampSkillLevel(s.Level)
		skills = append(skills, s)
	}
	p.Skills = skills

	if p.Experience == nil {
		p.Experience = []Experience{}
	}
	for i := range p.Experience {
		e := &p.Experience[i]
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		e.Company = strings.TrimSpace(e.Company)
		e.Title = strings.TrimSpace(e.Title)
		e.StartDate = strings.TrimSpace(e.StartDate)
		e.EndDate = strings.TrimSpace(e.EndDate)
		e.Description = strings.TrimSpace(e.Description)
		if e.Highlights == nil {
			e.Highlights = []string{}
		}
	}

	if p.Education == nil {
		p.Education = []Education{}
	}
	for i := range p.Education {
		if p.Education[i].ID == "" {
			p.Education[i].ID = uuid.New().String()
		}
	}

	if p.Projects == nil {
		p.Projects = []Project{}
	}
	for i := range p.Projects {
		if p.Projects[i].ID == "" {
			p.Projects[i].ID = uuid.New().String()
		}
		if p.Projects[i].Technologies == nil {
			p.Projects[i].Technologies = []string{}
		}
	}

	if p.Contact.Links == nil {
		p.Contact.Links = map[string]string{}
	}

	achievements := make([]Achievement, 0, len(p.Achievements))
	for _, a := range p.Achievements {
		a.Label = strings.TrimSpace(a.Label)
		if a.Label == "" {
			continue
		}
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		a.Value = strings.TrimSpace(a.Value)
		achievements = append(achievements, a)
	}
	p.Achievements = achievements
}

// Validate checks struct constraints on a normalized profile
func (p *CandidateProfile) Validate() error {
	validate := validator.New()
	return validate.Struct(p)
}
