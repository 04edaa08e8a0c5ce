package fallback

import (
	"testing"

	"github.com/jonathan/portfolio-pipeline/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allCategories = []types.ProfessionalCategory{
	types.CategoryCreative,
	types.CategoryTechnical,
	types.CategoryCorporate,
	types.CategoryHybrid,
	"unknown",
}

func TestComponents_AlwaysValid(t *testing.T) {
	profiles := map[string]*types.CandidateProfile{
		"nil":     nil,
		"empty":   {},
		"default": DefaultProfile(),
		"partial": {Name: "Grace Hopper", Skills: []types.Skill{{Name: "COBOL", Level: 5}}},
	}
	for _, category := range allCategories {
		for name, p := range profiles {
			t.Run(string(category)+"/"+name, func(t *testing.T) {
				list := Components(category, p)
				require.Len(t, list, 4)
				for i, c := range list {
					assert.Equal(t, i, c.Order)
				}
				assert.NoError(t, types.ValidateComponents(list))
			})
		}
	}
}

func TestComponents_Templates(t *testing.T) {
	want := map[types.ProfessionalCategory][]types.ComponentType{
		types.CategoryCreative:  {types.ComponentHeroPrism, types.ComponentExpMasonry, types.ComponentSkillsDots, types.ComponentStatsBento},
		types.CategoryTechnical: {types.ComponentHeroTerminal, types.ComponentExpTimeline, types.ComponentSkillsRadar, types.ComponentStatsBento},
		types.CategoryCorporate: {types.ComponentHeroPrism, types.ComponentExpTimeline, types.ComponentSkillsRadar, types.ComponentStatsBento},
		types.CategoryHybrid:    {types.ComponentHeroPrism, types.ComponentExpTimeline, types.ComponentSkillsRadar, types.ComponentStatsBento},
	}
	for category, kinds := range want {
		list := Components(category, nil)
		got := make([]types.ComponentType, len(list))
		for i, c := range list {
			got[i] = c.Type
		}
		assert.Equal(t, kinds, got, "category %s", category)
	}
}

func TestComponents_HeroThemes(t *testing.T) {
	assert.Equal(t, HeroThemeSunset, Components(types.CategoryCreative, nil)[0].Theme)
	assert.Equal(t, HeroThemeMatrix, Components(types.CategoryTechnical, nil)[0].Theme)
	assert.Equal(t, HeroThemeOcean, Components(types.CategoryCorporate, nil)[0].Theme)
	assert.Equal(t, HeroThemeOcean, Components(types.CategoryHybrid, nil)[0].Theme)
}

func TestComponents_Placeholders(t *testing.T) {
	list := Components(types.CategoryHybrid, nil)
	hero := list[0].Props
	assert.Equal(t, PlaceholderName, hero["name"])
	assert.Equal(t, PlaceholderTitle, hero["title"])
	assert.Equal(t, "Welcome to my portfolio", hero["subtitle"])
	assert.Equal(t, DefaultSkills(), list[2].Props["skills"])
	assert.Equal(t, DefaultAchievements(), list[3].Props["achievements"])

	assert.Equal(t, "Creative professional", Components(types.CategoryCreative, nil)[0].Props["subtitle"])
	assert.Equal(t, 5, Components(types.CategoryCreative, nil)[2].Props["maxLevel"])
}

func TestComponents_UsesProfileFields(t *testing.T) {
	p := &types.CandidateProfile{
		Name:    "Linus",
		Title:   "Kernel Hacker",
		Summary: "Writes operating systems.",
		Skills:  []types.Skill{{Name: "C", Level: 5}},
	}
	list := Components(types.CategoryTechnical, p)
	props := list[0].Props
	assert.Equal(t, "Linus", props["name"])
	assert.Equal(t, []string{
		"whoami -> Linus",
		"cat title.txt -> Kernel Hacker",
		"ls skills/ -> [loading...]",
	}, props["commands"])
	assert.Equal(t, p.Skills, list[2].Props["skills"])

	hero := Components(types.CategoryCorporate, p)[0].Props
	assert.Equal(t, "Writes operating systems.", hero["subtitle"])
}

func TestComponents_Deterministic(t *testing.T) {
	for _, category := range allCategories {
		assert.Equal(t, Components(category, DefaultProfile()), Components(category, DefaultProfile()))
	}
}

func TestDefaultProfile(t *testing.T) {
	p := DefaultProfile()
	assert.Equal(t, types.CategoryHybrid, p.Category)
	assert.InDelta(t, 0.3, p.Confidence, 1e-9)
	assert.Equal(t, DefaultSummary, p.Summary)
	assert.Len(t, p.Skills, 3)
	assert.Len(t, p.Achievements, 2)
	assert.NotNil(t, p.Experience)
	assert.NoError(t, p.Validate())
	assert.Equal(t, DefaultProfile(), p)
}

func TestTheme(t *testing.T) {
	assert.Equal(t, types.ThemeCyberPink, Theme(types.CategoryCreative))
	assert.Equal(t, types.ThemeNeonBlue, Theme(types.CategoryTechnical))
	assert.Equal(t, types.ThemeEmeraldGreen, Theme(types.CategoryCorporate))
	assert.Equal(t, types.ThemeNeonBlue, Theme(types.CategoryHybrid))
	assert.Equal(t, types.ThemeNeonBlue, Theme("astronaut"))
}

func TestEmptyExtraction(t *testing.T) {
	e := EmptyExtraction()
	assert.True(t, e.IsEmpty())
	assert.Zero(t, e.Confidence)
}
