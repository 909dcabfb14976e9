package services

import "strings"

// ThemePlaceholder is substituted with the requested theme in script prompts.
const ThemePlaceholder = "{theme}"

// ScriptPrompt renders a prompt template for the given theme. Templates
// without a placeholder get the theme appended on its own line.
func ScriptPrompt(template, theme string) string {
	template = strings.TrimSpace(template)
	theme = strings.TrimSpace(theme)
	if strings.Contains(template, ThemePlaceholder) {
		return strings.ReplaceAll(template, ThemePlaceholder, theme)
	}
	if theme == "" {
		return template
	}
	return template + "\n" + theme
}
