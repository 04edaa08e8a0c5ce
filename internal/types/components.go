package types

import (
	"fmt"
	"sort"
	"strings"
)

// ComponentType identifies a UI building block
type ComponentType string

// Component types
const (
	ComponentHeroPrism    ComponentType = "tool_hero_prism"
	ComponentHeroTerminal ComponentType = "tool_hero_terminal"
	ComponentExpTimeline  ComponentType = "tool_exp_timeline"
	ComponentExpMasonry   ComponentType = "tool_exp_masonry"
	ComponentSkillsDots   ComponentType = "tool_skills_dots"
	ComponentSkillsRadar  ComponentType = "tool_skills_radar"
	ComponentStatsBento   ComponentType = "tool_stats_bento"
)

// RequiredProps lists the props each component type must carry
var RequiredProps = map[ComponentType][]string{
	ComponentHeroPrism:    {"name", "title", "subtitle", "theme"},
	ComponentHeroTerminal: {"name", "title", "commands", "theme"},
	ComponentExpTimeline:  {"experiences"},
	ComponentExpMasonry:   {"experiences", "projects"},
	ComponentSkillsDots:   {"skills", "maxLevel"},
	ComponentSkillsRadar:  {"skills"},
	ComponentStatsBento:   {"achievements"},
}

// ComponentConfig is one selected component in a generated layout
type ComponentConfig struct {
	Type  ComponentType  `json:"type"`
	Props map[string]any `json:"props"`
	Order int            `json:"order"`
	Theme string         `json:"theme"`
}

// ComponentError describes why a component list is invalid
type ComponentError struct {
	Index   int
	Type    ComponentType
	Message string
}

func (e *ComponentError) Error() string {
	return fmt.Sprintf("component %d (%s): %s", e.Index, e.Type, e.Message)
}

// ValidateComponents checks that a component list is non-empty, that order values are exactly
// 0..n-1 and that every component carries its required props.
func ValidateComponents(components []ComponentConfig) error {
	if len(components) == 0 {
		return &ComponentError{Index: -1, Message: "component list is empty"}
	}

	orders := make([]int, 0, len(components))
	for i, c := range components {
		required, ok := RequiredProps[c.Type]
		if !ok {
			return &ComponentError{Index: i, Type: c.Type, Message: "unknown component type"}
		}
		var missing []string
		for _, key := range required {
			if _, present := c.Props[key]; !present {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			return &ComponentError{Index: i, Type: c.Type, Message: "missing props: " + strings.Join(missing, ", ")}
		}
		orders = append(orders, c.Order)
	}

	sort.Ints(orders)
	for i, o := range orders {
		if o != i {
			return &ComponentError{Index: i, Message: fmt.Sprintf("order values must be 0..%d without gaps, got %v", len(components)-1, orders)}
		}
	}
	return nil
}

// Reorder assigns contiguous zero-based order values in slice order
func Reorder(components []ComponentConfig) []ComponentConfig {
	for i := range components {
		components[i].Order = i
	}
	return components
}
