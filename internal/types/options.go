package types

// ThemePalette is a color palette for the generated portfolio
type ThemePalette string

// Theme palettes
const (
	ThemeNeonBlue     ThemePalette = "neon_blue"
	ThemeEmeraldGreen ThemePalette = "emerald_green"
	ThemeCyberPink    ThemePalette = "cyber_pink"
)

// ThemeAuto lets the pipeline pick a palette from the professional category
const ThemeAuto = "auto"

// ComponentStyle is the visual density requested by the client
type ComponentStyle string

// Component styles
const (
	StyleModern  ComponentStyle = "modern"
	StyleClassic ComponentStyle = "classic"
	StyleMinimal ComponentStyle = "minimal"
)

// Option keys accepted from clients
const (
	OptionThemePreference = "theme_preference"
	OptionComponentStyle  = "component_style"
)

// Options are the sanitized processing choices for a run
type Options struct {
	ThemePreference string         `json:"theme_preference"`
	ComponentStyle  ComponentStyle `json:"component_style"`
}

// DefaultOptions returns the options used when a client supplies none
func DefaultOptions() Options {
	return Options{
		ThemePreference: ThemeAuto,
		ComponentStyle:  StyleModern,
	}
}
