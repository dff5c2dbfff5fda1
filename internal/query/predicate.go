package query

import (
	"strconv"
	"strings"
	"time"

	"osnova/internal/schema"
)

// ClauseKind — вид предиката по одному полю. Tagged variant поверх
// пути в JSON-документе записи: бэкенд (память, SQL c JSON-путями,
// документная БД) переводит его в свою форму сам, ядро про SQL не знает.
type ClauseKind string

const (
	KindEquals         ClauseKind = "equals"
	KindNotEquals      ClauseKind = "not_equals"
	KindContains       ClauseKind = "contains"    // подстрока, регистронезависимо
	KindStartsWith     ClauseKind = "starts_with" // регистронезависимо
	KindEndsWith       ClauseKind = "ends_with"   // регистронезависимо
	KindLessThan       ClauseKind = "less_than"
	KindLessOrEqual    ClauseKind = "less_or_equal"
	KindGreaterThan    ClauseKind = "greater_than"
	KindGreaterOrEqual ClauseKind = "greater_or_equal"
	KindAnyOf          ClauseKind = "any_of"  // IN: OR по равенствам
	KindNoneOf         ClauseKind = "none_of" // NOT IN: AND по неравенствам
	// Канонический null-предикат: истинен, когда поля нет в документе
	// ЛИБО оно явно null. Комплемент — отдельный вид, не NOT-обёртка:
	// не все бэкенды умеют отрицание поверх проверки отсутствия ключа.
	KindAbsentOrNull   ClauseKind = "absent_or_null"
	KindPresentNotNull ClauseKind = "present_not_null"
	// Никогда не истинен. Выдаётся компилятором для упорядочивающего
	// условия, чьё значение не привелось к типу поля: текстовое
	// сравнение "50" < "abc" совпало бы со всеми числами подряд.
	KindNever ClauseKind = "never"
)

// Clause — предикат по одному полю документа.
type Clause struct {
	Field  string     `json:"field"`
	Kind   ClauseKind `json:"kind"`
	Value  any        `json:"value,omitempty"`
	Values []any      `json:"values,omitempty"` // для AnyOf/NoneOf
}

// Predicate — AND по списку Clause. Пустой список — всегда истинный
// предикат (фильтра нет).
type Predicate struct {
	Clauses []Clause `json:"clauses,omitempty"`
}

// AlwaysTrue — предикат без условий, пропускает всё.
func (p Predicate) AlwaysTrue() bool { return len(p.Clauses) == 0 }

var condKinds = map[Operator]ClauseKind{
	OpEq:  KindEquals,
	OpNe:  KindNotEquals,
	OpLk:  KindContains,
	OpSw:  KindStartsWith,
	OpEw:  KindEndsWith,
	OpLt:  KindLessThan,
	OpLte: KindLessOrEqual,
	OpGt:  KindGreaterThan,
	OpGte: KindGreaterOrEqual,
}

// Compile переводит валидированные условия в нейтральное дерево
// предикатов. Условия соединяются по AND. Значения приводятся
// ТИПО-НАПРАВЛЕННО: по объявленному типу поля, а не по форме строки —
// строковое поле сравнивается со строкой "123", а не с числом 123.
func Compile(conds []Condition, e *schema.Entity) (Predicate, error) {
	if len(conds) == 0 {
		return Predicate{}, nil
	}

	clauses := make([]Clause, 0, len(conds))
	for _, c := range conds {
		f, ok := e.FieldByName(c.Field)
		if !ok {
			// Compile всегда идёт после ValidateFilter; сюда можно
			// попасть только при нарушении порядка вызовов
			return Predicate{}, errUnknownField(c.Field)
		}

		switch c.Op {
		case OpTrue:
			clauses = append(clauses, Clause{Field: c.Field, Kind: KindEquals, Value: true})
		case OpFalse:
			clauses = append(clauses, Clause{Field: c.Field, Kind: KindEquals, Value: false})
		case OpNull:
			clauses = append(clauses, Clause{Field: c.Field, Kind: KindAbsentOrNull})
		case OpNotNull:
			clauses = append(clauses, Clause{Field: c.Field, Kind: KindPresentNotNull})
		case OpIn, OpNin:
			vals := make([]any, 0, len(c.Values))
			for _, raw := range c.Values {
				vals = append(vals, anchorValue(f, raw))
			}
			kind := KindAnyOf
			if c.Op == OpNin {
				kind = KindNoneOf
			}
			clauses = append(clauses, Clause{Field: c.Field, Kind: kind, Values: vals})
		case OpLk, OpSw, OpEw:
			// подстрочные операторы всегда строковые
			clauses = append(clauses, Clause{Field: c.Field, Kind: condKinds[c.Op], Value: c.Raw})
		case OpLt, OpLte, OpGt, OpGte:
			// валидатор пропускает упорядочивание только для number/date;
			// строка после анкеровки значит, что токен не распарсился —
			// такое условие не совпадает ни с одной записью
			v := anchorValue(f, c.Raw)
			if _, unparsed := v.(string); unparsed {
				clauses = append(clauses, Clause{Field: c.Field, Kind: KindNever})
				continue
			}
			clauses = append(clauses, Clause{Field: c.Field, Kind: condKinds[c.Op], Value: v})
		default:
			clauses = append(clauses, Clause{Field: c.Field, Kind: condKinds[c.Op], Value: anchorValue(f, c.Raw)})
		}
	}
	return Predicate{Clauses: clauses}, nil
}

// anchorValue приводит сырой токен к объявленному типу поля.
// Если токен не парсится в целевой тип, остаётся строкой — такой
// предикат просто ничего не найдёт, это не ошибка запроса.
func anchorValue(f schema.Field, raw string) any {
	switch strings.ToLower(f.Type) {
	case schema.TypeNumber:
		if n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return n
		}
	case schema.TypeBoolean:
		switch strings.TrimSpace(raw) {
		case "true":
			return true
		case "false":
			return false
		}
	case schema.TypeDate:
		trimmed := strings.TrimSpace(raw)
		if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
			return t
		}
		if len(trimmed) >= 10 {
			if t, err := time.Parse("2006-01-02", trimmed[:10]); err == nil {
				return t
			}
		}
	}
	return raw
}
