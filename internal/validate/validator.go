package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"osnova/internal/schema"

	playground "github.com/go-playground/validator/v10"
)

// Mode — полная (create/PUT) или частичная (PATCH) валидация.
// В partial ВСЕ поля становятся опциональными, включая required:
// клиент с частичным payload не обязан пересылать несвязанные поля.
type Mode int

const (
	Full Mode = iota
	Partial
)

type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Коды ошибок валидации значений.
const (
	ErrRequired        = "required"
	ErrTypeMismatch    = "type_mismatch"
	ErrTooShort        = "min_length"
	ErrTooLong         = "max_length"
	ErrPattern         = "pattern_mismatch"
	ErrTooSmall        = "min"
	ErrTooBig          = "max"
	ErrFormat          = "format_invalid"
	ErrUniqueViolation = "unique_violation"
	ErrNotFound        = "not_found"
	ErrVersionConflict = "version_conflict"
)

// formats — движок форматных проверок (email/url); тот же, что gin
// использует для binding-тегов.
var formats = playground.New()

// rule — предсобранное правило по одному полю (скомпилированный pattern).
type rule struct {
	field   schema.Field
	pattern *regexp.Regexp
}

// Validator — валидатор значений, сгенерированный из списка полей.
// Иммутабелен после генерации; в кэше заменяется подменой указателя.
type Validator struct {
	entity *schema.Entity
	rules  []rule
}

// Generate собирает валидатор по определению сущности. Ошибка —
// только если сама схема дефектна (неизвестный тип, кривой pattern).
func Generate(e *schema.Entity) (*Validator, error) {
	v := &Validator{entity: e, rules: make([]rule, 0, len(e.Fields))}
	for _, f := range e.Fields {
		if !schema.KnownType(f.Type) {
			return nil, fmt.Errorf("field %q: unknown type %q", f.Name, f.Type)
		}
		r := rule{field: f}
		if f.Pattern != "" {
			re, err := regexp.Compile(f.Pattern)
			if err != nil {
				return nil, fmt.Errorf("field %q: bad pattern: %w", f.Name, err)
			}
			r.pattern = re
		}
		v.rules = append(v.rules, r)
	}
	return v, nil
}

// Apply валидирует и НОРМАЛИЗУЕТ payload. Ошибки накапливаются по всем
// полям (не fail-fast — клиент чинит всё за один проход). Возвращает
// санированные данные: только известные поля, значения приведены.
func (v *Validator) Apply(data map[string]any, mode Mode) (map[string]any, []FieldError) {
	var errs []FieldError
	out := make(map[string]any, len(data))

	for _, r := range v.rules {
		f := r.field
		val, present := data[f.Name]

		if !present {
			// дефолт подставляется только при полной валидации:
			// в partial отсутствие поля значит «не трогать»
			if f.Default != nil && mode == Full {
				out[f.Name] = f.Default
				continue
			}
			if f.Required && mode == Full {
				errs = append(errs, ferr(ErrRequired, f.Name, "Field '"+f.Name+"' is required"))
			}
			continue
		}
		if val == nil {
			if f.Required {
				errs = append(errs, ferr(ErrRequired, f.Name, "Field '"+f.Name+"' must not be null"))
				continue
			}
			out[f.Name] = nil
			continue
		}

		norm, ferrs := r.check(val)
		if len(ferrs) > 0 {
			errs = append(errs, ferrs...)
			continue
		}
		out[f.Name] = norm
	}
	return out, errs
}

// check — проверка типа, потом ограничения поверх нормализованного значения.
func (r rule) check(val any) (any, []FieldError) {
	f := r.field
	var errs []FieldError

	switch strings.ToLower(f.Type) {
	case schema.TypeString, schema.TypeEmail, schema.TypeURL:
		s, ok := val.(string)
		if !ok {
			return nil, []FieldError{ferr(ErrTypeMismatch, f.Name, "Field '"+f.Name+"' must be string")}
		}
		if f.Type == schema.TypeEmail {
			if err := formats.Var(s, "email"); err != nil {
				return nil, []FieldError{ferr(ErrFormat, f.Name, "Field '"+f.Name+"' must be a valid email")}
			}
		}
		if f.Type == schema.TypeURL {
			if err := formats.Var(s, "url"); err != nil {
				return nil, []FieldError{ferr(ErrFormat, f.Name, "Field '"+f.Name+"' must be a valid URL")}
			}
		}
		if f.MinLength != nil && len(s) < *f.MinLength {
			errs = append(errs, ferr(ErrTooShort, f.Name,
				fmt.Sprintf("Field '%s' must be at least %d characters", f.Name, *f.MinLength)))
		}
		if f.MaxLength != nil && len(s) > *f.MaxLength {
			errs = append(errs, ferr(ErrTooLong, f.Name,
				fmt.Sprintf("Field '%s' must be at most %d characters", f.Name, *f.MaxLength)))
		}
		if r.pattern != nil && !r.pattern.MatchString(s) {
			errs = append(errs, ferr(ErrPattern, f.Name, "Field '"+f.Name+"' does not match pattern"))
		}
		if len(errs) > 0 {
			return nil, errs
		}
		return s, nil

	case schema.TypeNumber:
		n, err := toNumber(val)
		if err != nil {
			return nil, []FieldError{ferr(ErrTypeMismatch, f.Name, "Field '"+f.Name+"' must be number")}
		}
		if f.Min != nil && n < *f.Min {
			errs = append(errs, ferr(ErrTooSmall, f.Name,
				fmt.Sprintf("Field '%s' must be >= %v", f.Name, *f.Min)))
		}
		if f.Max != nil && n > *f.Max {
			errs = append(errs, ferr(ErrTooBig, f.Name,
				fmt.Sprintf("Field '%s' must be <= %v", f.Name, *f.Max)))
		}
		if len(errs) > 0 {
			return nil, errs
		}
		return n, nil

	case schema.TypeBoolean:
		b, err := toBool(val)
		if err != nil {
			return nil, []FieldError{ferr(ErrTypeMismatch, f.Name, "Field '"+f.Name+"' must be boolean")}
		}
		return b, nil

	case schema.TypeDate:
		s, err := toDate(val)
		if err != nil {
			return nil, []FieldError{ferr(ErrFormat, f.Name, "Field '"+f.Name+"' "+err.Error())}
		}
		return s, nil
	}

	// Generate не пропустил бы неизвестный тип
	return nil, []FieldError{ferr(ErrTypeMismatch, f.Name, "Field '"+f.Name+"' has unsupported type")}
}

func toNumber(v any) (float64, error) {
	switch t := v.(type) {
	case float64: // JSON-числа приходят как float64
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("must be number")
		}
		return n, nil
	default:
		return 0, fmt.Errorf("must be number")
	}
}

func toBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "y", "on":
			return true, nil
		case "false", "0", "no", "n", "off":
			return false, nil
		}
	}
	return false, fmt.Errorf("must be boolean")
}

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// toDate принимает "YYYY-MM-DD", RFC3339 или time.Time; нормализует
// в строку, как она и лежит в data.
func toDate(v any) (string, error) {
	switch t := v.(type) {
	case string:
		if dateRe.MatchString(t) {
			if _, err := time.Parse("2006-01-02", t); err != nil {
				return "", fmt.Errorf("invalid date")
			}
			return t, nil
		}
		if _, err := time.Parse(time.RFC3339, t); err == nil {
			return t, nil
		}
		return "", fmt.Errorf("must be YYYY-MM-DD or RFC3339")
	case time.Time:
		return t.UTC().Format(time.RFC3339), nil
	default:
		return "", fmt.Errorf("must be date string")
	}
}

func ferr(code, field, msg string) FieldError {
	return FieldError{Code: code, Field: field, Message: msg}
}
