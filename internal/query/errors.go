package query

import "fmt"

// Коды ошибок конвейера parse → validate → compile.
// Все они — клиентские ошибки запроса, не фатальные.
const (
	CodeMalformedFilter      = "malformed_filter"
	CodeUnknownField         = "unknown_field"
	CodeIncompatibleOperator = "incompatible_operator"
	CodeInvalidSortDirection = "invalid_sort_direction"
	CodeInvalidSchema        = "invalid_schema"
)

// Error — структурированная ошибка разбора/валидации запроса.
// Конвейер fail-fast: первая же проблема прерывает весь запрос.
type Error struct {
	Code      string   `json:"code"`
	Field     string   `json:"field,omitempty"`
	Operator  Operator `json:"operator,omitempty"`
	FieldType string   `json:"fieldType,omitempty"`
	Fragment  string   `json:"fragment,omitempty"` // проблемный кусок строки фильтра
}

func (e *Error) Error() string {
	switch e.Code {
	case CodeMalformedFilter:
		return fmt.Sprintf("malformed filter near %q", e.Fragment)
	case CodeUnknownField:
		return fmt.Sprintf("unknown field %q", e.Field)
	case CodeIncompatibleOperator:
		return fmt.Sprintf("operator %q not allowed for field %q of type %q", e.Operator, e.Field, e.FieldType)
	case CodeInvalidSortDirection:
		return fmt.Sprintf("invalid sort direction %q (want asc|desc)", e.Fragment)
	case CodeInvalidSchema:
		return fmt.Sprintf("field %q has unrecognized type %q in schema", e.Field, e.FieldType)
	}
	return e.Code
}

func errMalformed(fragment string) *Error {
	return &Error{Code: CodeMalformedFilter, Fragment: fragment}
}

func errUnknownField(field string) *Error {
	return &Error{Code: CodeUnknownField, Field: field}
}

func errIncompatible(field string, op Operator, fieldType string) *Error {
	return &Error{Code: CodeIncompatibleOperator, Field: field, Operator: op, FieldType: fieldType}
}

func errSortDirection(dir string) *Error {
	return &Error{Code: CodeInvalidSortDirection, Fragment: dir}
}

func errInvalidSchema(field, fieldType string) *Error {
	return &Error{Code: CodeInvalidSchema, Field: field, FieldType: fieldType}
}
