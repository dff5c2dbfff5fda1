package schema

import "strings"

// Типы полей, которые можно объявить в определении сущности.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeEmail   = "email"
	TypeDate    = "date"
	TypeURL     = "url"
)

// Field описывает одно поле сущности: имя, тип и ограничения.
// Ограничения длины/паттерна применимы только к строковым типам,
// min/max — только к числовому.
type Field struct {
	Name      string   `json:"name" yaml:"name"`
	Type      string   `json:"type" yaml:"type"`
	Required  bool     `json:"required,omitempty" yaml:"required,omitempty"`
	Unique    bool     `json:"unique,omitempty" yaml:"unique,omitempty"`
	MinLength *int     `json:"minLength,omitempty" yaml:"min_length,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty" yaml:"max_length,omitempty"`
	Pattern   string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Min       *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max       *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Default   any      `json:"defaultValue,omitempty" yaml:"default,omitempty"`
}

// Entity описывает сущность: имя (уникальное в рамках организации)
// и упорядоченный список полей.
type Entity struct {
	Name   string  `json:"name" yaml:"name"`
	Fields []Field `json:"fields" yaml:"fields"`
}

// FieldByName ищет поле по имени. Сравнение точное — имена полей
// считаем case-sensitive, как ключи в data.
func (e *Entity) FieldByName(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// KnownType — распознан ли тип поля.
func KnownType(t string) bool {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case TypeString, TypeNumber, TypeBoolean, TypeEmail, TypeDate, TypeURL:
		return true
	}
	return false
}

// StringLike — строковые типы (string/email/url): к ним применимы
// minLength/maxLength/pattern и строковые операторы фильтра.
func StringLike(t string) bool {
	switch strings.ToLower(t) {
	case TypeString, TypeEmail, TypeURL:
		return true
	}
	return false
}
