package schema

import (
	"fmt"
	"regexp"
	"strings"
)

type Issue struct {
	Entity  string `json:"entity"`
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Lint проверяет базовые противоречия в определении сущности:
// пустые/дублирующиеся имена полей, неизвестные типы, ограничения,
// не соответствующие типу. Возвращает все проблемы разом, не первую.
func Lint(e *Entity) []Issue {
	var issues []Issue
	add := func(field, code, msg string) {
		issues = append(issues, Issue{Entity: e.Name, Field: field, Code: code, Message: msg})
	}

	if strings.TrimSpace(e.Name) == "" {
		add("", "entity_name_empty", "entity name must not be empty")
	}
	if len(e.Fields) == 0 {
		add("", "no_fields", "entity must declare at least one field")
	}

	seen := make(map[string]struct{}, len(e.Fields))
	for _, f := range e.Fields {
		if strings.TrimSpace(f.Name) == "" {
			add(f.Name, "field_name_empty", "field name must not be empty")
			continue
		}
		if _, dup := seen[f.Name]; dup {
			add(f.Name, "field_name_duplicate", fmt.Sprintf("field %q declared twice", f.Name))
			continue
		}
		seen[f.Name] = struct{}{}

		if !KnownType(f.Type) {
			add(f.Name, "type_unknown", fmt.Sprintf("unknown field type %q", f.Type))
			continue
		}

		// строковые ограничения — только для string-подобных типов
		if !StringLike(f.Type) {
			if f.MinLength != nil || f.MaxLength != nil || f.Pattern != "" {
				add(f.Name, "constraint_mismatch",
					fmt.Sprintf("minLength/maxLength/pattern not applicable to type %q", f.Type))
			}
		}
		// числовые ограничения — только для number
		if f.Type != TypeNumber && (f.Min != nil || f.Max != nil) {
			add(f.Name, "constraint_mismatch",
				fmt.Sprintf("min/max not applicable to type %q", f.Type))
		}
		if f.MinLength != nil && f.MaxLength != nil && *f.MinLength > *f.MaxLength {
			add(f.Name, "constraint_inverted", "minLength greater than maxLength")
		}
		if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
			add(f.Name, "constraint_inverted", "min greater than max")
		}
		if f.Pattern != "" {
			if _, err := regexp.Compile(f.Pattern); err != nil {
				add(f.Name, "pattern_invalid", fmt.Sprintf("bad pattern: %v", err))
			}
		}
	}
	return issues
}
