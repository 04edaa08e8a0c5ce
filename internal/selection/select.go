package selection

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jonathan/portfolio-pipeline/internal/fallback"
	"github.com/jonathan/portfolio-pipeline/internal/types"
)

// Selection errors
var (
	ErrNoProfile        = errors.New("profile is required")
	ErrInvalidSelection = errors.New("selected components are invalid")
)

// minRadarSkills is the fewest skills a radar chart can plot meaningfully
const minRadarSkills = 3

// section is a candidate body component with a content weight used for ordering
type section struct {
	component types.ComponentConfig
	weight    int
}

// SelectComponents picks a hero followed by body sections for the profile. Sections with no content
// are omitted, the rest are ordered by how much content backs them, heaviest first. The result
// satisfies types.ValidateComponents.
func SelectComponents(profile *types.CandidateProfile, opts types.Options) ([]types.ComponentConfig, error) {
	if profile == nil {
		return nil, ErrNoProfile
	}

	category := types.ParseCategory(string(profile.Category))
	style := opts.ComponentStyle
	if style == "" {
		style = types.StyleModern
	}

	components := []types.ComponentConfig{selectHero(profile, category, style)}

	sections := make([]section, 0, 3)
	if s, ok := selectExperience(profile, category, style); ok {
		sections = append(sections, s)
	}
	if s, ok := selectSkills(profile, category, style); ok {
		sections = append(sections, s)
	}
	if style != types.StyleMinimal {
		if s, ok := selectStats(profile); ok {
			sections = append(sections, s)
		}
	}

	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].weight > sections[j].weight
	})
	for _, s := range sections {
		components = append(components, s.component)
	}

	components = types.Reorder(components)
	if err := types.ValidateComponents(components); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSelection, err)
	}
	return components, nil
}

func displayName(p *types.CandidateProfile) string {
	if p.Name != "" {
		return p.Name
	}
	return fallback.PlaceholderName
}

func displayTitle(p *types.CandidateProfile) string {
	if p.Title != "" {
		return p.Title
	}
	return fallback.PlaceholderTitle
}

func selectHero(p *types.CandidateProfile, category types.ProfessionalCategory, style types.ComponentStyle) types.ComponentConfig {
	name, title := displayName(p), displayTitle(p)

	if category == types.CategoryTechnical && style != types.StyleClassic {
		commands := []string{
			fmt.Sprintf("whoami -> %s", name),
			fmt.Sprintf("cat title.txt -> %s", title),
		}
		if n := len(p.Skills); n > 0 {
			commands = append(commands, fmt.Sprintf("ls skills/ -> %d entries", n))
		}
		return types.ComponentConfig{
			Type: types.ComponentHeroTerminal,
			Props: map[string]any{
				"name":     name,
				"title":    title,
				"commands": commands,
				"theme":    fallback.HeroThemeMatrix,
			},
			Theme: fallback.HeroThemeMatrix,
		}
	}

	theme := fallback.HeroThemeOcean
	if category == types.CategoryCreative {
		theme = fallback.HeroThemeSunset
	}
	subtitle := p.Summary
	if subtitle == "" {
		subtitle = title
	}
	return types.ComponentConfig{
		Type: types.ComponentHeroPrism,
		Props: map[string]any{
			"name":     name,
			"title":    title,
			"subtitle": subtitle,
			"theme":    theme,
		},
		Theme: theme,
	}
}

// selectExperience prefers a masonry grid when projects dominate or the candidate is creative,
// and a timeline otherwise. Classic style always uses the timeline.
func selectExperience(p *types.CandidateProfile, category types.ProfessionalCategory, style types.ComponentStyle) (section, bool) {
	nExp, nProj := len(p.Experience), len(p.Projects)
	if nExp == 0 && nProj == 0 {
		return section{}, false
	}

	masonry := style != types.StyleClassic &&
		nProj > 0 &&
		(category == types.CategoryCreative || nProj > nExp)
	if masonry {
		return section{
			component: types.ComponentConfig{
				Type:  types.ComponentExpMasonry,
				Props: map[string]any{"experiences": p.Experience, "projects": p.Projects},
			},
			weight: 2*nExp + nProj,
		}, true
	}

	if nExp == 0 {
		return section{}, false
	}
	return section{
		component: types.ComponentConfig{
			Type:  types.ComponentExpTimeline,
			Props: map[string]any{"experiences": p.Experience},
		},
		weight: 2 * nExp,
	}, true
}

// selectSkills uses a radar for technical or broad skill sets and dots otherwise
func selectSkills(p *types.CandidateProfile, category types.ProfessionalCategory, style types.ComponentStyle) (section, bool) {
	n := len(p.Skills)
	if n == 0 {
		return section{}, false
	}

	radar := n >= minRadarSkills &&
		category != types.CategoryCreative &&
		style != types.StyleClassic
	if radar {
		return section{
			component: types.ComponentConfig{
				Type:  types.ComponentSkillsRadar,
				Props: map[string]any{"skills": p.Skills},
			},
			weight: n,
		}, true
	}
	return section{
		component: types.ComponentConfig{
			Type:  types.ComponentSkillsDots,
			Props: map[string]any{"skills": p.Skills, "maxLevel": types.MaxSkillLevel},
		},
		weight: n,
	}, true
}

func selectStats(p *types.CandidateProfile) (section, bool) {
	if len(p.Achievements) == 0 {
		return section{}, false
	}
	return section{
		component: types.ComponentConfig{
			Type:  types.ComponentStatsBento,
			Props: map[string]any{"achievements": p.Achievements},
		},
		weight: len(p.Achievements),
	}, true
}
