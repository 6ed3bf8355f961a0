package runtime

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholder = regexp.MustCompile(`\{([a-z_][a-z0-9_]*)\}`)

// MissingPlaceholdersError is returned when a template references values that are not available.
type MissingPlaceholdersError struct {
	Template string
	Missing  []string
}

func (e *MissingPlaceholdersError) Error() string {
	return fmt.Sprintf("template %q requires values that are missing: %v", e.Template, e.Missing)
}

// Placeholders lists the distinct placeholder names of tpl in order of appearance.
func Placeholders(tpl string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholder.FindAllStringSubmatch(tpl, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Render substitutes {name} placeholders. It never returns partially rendered text:
// any unresolved or empty value yields a *MissingPlaceholdersError.
func Render(name, tpl string, values map[string]string) (string, error) {
	var missing []string
	for _, key := range Placeholders(tpl) {
		if strings.TrimSpace(values[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return "", &MissingPlaceholdersError{Template: name, Missing: missing}
	}

	return placeholder.ReplaceAllStringFunc(tpl, func(m string) string {
		return values[m[1:len(m)-1]]
	}), nil
}
