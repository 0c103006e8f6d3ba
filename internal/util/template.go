package util

import (
	"fmt"
	"strings"
	"text/template"
)

var promptFuncs = template.FuncMap{
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"title": titleCase,
	"default": func(fallback, val any) any {
		if val == nil || val == "" {
			return fallback
		}
		return val
	},
	"join": joinAny,
}

// RenderTemplate expands {{.key}} references in text against the given state
// map using text/template. Text without template markers is returned as-is,
// so plain instructions never pay the parse cost.
func RenderTemplate(text string, state map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := template.New("instruction").Funcs(promptFuncs).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse instruction template: %w", err)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, state); err != nil {
		return "", fmt.Errorf("render instruction template: %w", err)
	}

	return sb.String(), nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}

	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

func joinAny(sep string, items []any) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = fmt.Sprint(item)
	}

	return strings.Join(parts, sep)
}
