package sanitize

import (
	"fmt"
	"strings"

	"github.com/jonathan/portfolio-pipeline/internal/types"
)

var validThemes = map[string]bool{
	types.ThemeAuto:                 true,
	string(types.ThemeNeonBlue):     true,
	string(types.ThemeEmeraldGreen): true,
	string(types.ThemeCyberPink):    true,
}

var validStyles = map[types.ComponentStyle]bool{
	types.StyleModern:  true,
	types.StyleClassic: true,
	types.StyleMinimal: true,
}

// OptionsResult carries sanitized options; it always holds a usable value
type OptionsResult struct {
	Options  types.Options
	Warnings []string
}

// ValidateOptions normalizes raw client options against the accepted themes and styles. Invalid
// or missing entries are replaced with defaults and each substitution adds a warning.
func ValidateOptions(raw map[string]any) OptionsResult {
	defaults := types.DefaultOptions()
	out := OptionsResult{Options: defaults, Warnings: []string{}}

	if v, ok := raw[types.OptionThemePreference]; ok {
		s, isString := v.(string)
		switch {
		case !isString:
			out.warn("%s must be a string, defaulting to %q", types.OptionThemePreference, defaults.ThemePreference)
		case validThemes[normalizeChoice(s)]:
			out.Options.ThemePreference = normalizeChoice(s)
		default:
			out.warn("Invalid %s %q, defaulting to %q", types.OptionThemePreference, normalizeChoice(s), defaults.ThemePreference)
		}
	}

	if v, ok := raw[types.OptionComponentStyle]; ok {
		s, isString := v.(string)
		switch {
		case !isString:
			out.warn("%s must be a string, defaulting to %q", types.OptionComponentStyle, defaults.ComponentStyle)
		case validStyles[types.ComponentStyle(normalizeChoice(s))]:
			out.Options.ComponentStyle = types.ComponentStyle(normalizeChoice(s))
		default:
			out.warn("Invalid %s %q, defaulting to %q", types.OptionComponentStyle, normalizeChoice(s), defaults.ComponentStyle)
		}
	}

	return out
}

func (r *OptionsResult) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func normalizeChoice(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
