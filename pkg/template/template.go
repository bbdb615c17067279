// Package template interpolates task inputs into query templates.
package template

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
	"time"
)

// DatetimeLayout is how time.Time inputs are rendered into a query.
const DatetimeLayout = "2006-01-02 15:04:05"

var (
	ErrMissingInput = errors.New("placeholder has no matching input")
	ErrUnusedInput  = errors.New("input is not referenced by the template")
)

// placeholder matches {{ .inputs.<name> }} with any inner spacing.
var placeholder = regexp.MustCompile(`(?i)\{\{\s*\.inputs\.(\w+)\s*\}\}`)

// Placeholders returns the distinct input names referenced by tmpl in order
// of first appearance.
func Placeholders(tmpl string) []string {
	var names []string

	for _, match := range placeholder.FindAllStringSubmatch(tmpl, -1) {
		if !slices.Contains(names, match[1]) {
			names = append(names, match[1])
		}
	}

	return names
}

// Interpolate replaces every placeholder with its input. A placeholder with
// no input and an input with no placeholder are both errors.
func Interpolate(tmpl string, inputs map[string]any) (string, error) {
	names := Placeholders(tmpl)

	for _, name := range names {
		if _, ok := inputs[name]; !ok {
			return "", fmt.Errorf("%w: %q (inputs: %s)", ErrMissingInput, name, strings.Join(slices.Sorted(maps.Keys(inputs)), ", "))
		}
	}

	var unused []string

	for name := range inputs {
		if !slices.Contains(names, name) {
			unused = append(unused, name)
		}
	}

	if len(unused) > 0 {
		slices.Sort(unused)

		return "", fmt.Errorf("%w: %s", ErrUnusedInput, strings.Join(unused, ", "))
	}

	return placeholder.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := placeholder.FindStringSubmatch(match)[1]

		return Format(inputs[name])
	}), nil
}

// Format renders a single input value as query text.
func Format(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return v.UTC().Format(DatetimeLayout)
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
