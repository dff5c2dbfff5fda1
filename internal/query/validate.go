package query

import (
	"strings"

	"osnova/internal/schema"
)

// Таблица совместимости оператор/тип. Совместимость проверяется по
// ОПЕРАТОРУ, не по runtime-типу значения: число-образное значение на
// строковом поле — валидный фильтр.
var allowedOps = map[string]map[Operator]struct{}{
	schema.TypeString:  opsSet(OpEq, OpNe, OpLk, OpSw, OpEw, OpIn, OpNin, OpNull, OpNotNull),
	schema.TypeEmail:   opsSet(OpEq, OpNe, OpLk, OpSw, OpEw, OpIn, OpNin, OpNull, OpNotNull),
	schema.TypeURL:     opsSet(OpEq, OpNe, OpLk, OpSw, OpEw, OpIn, OpNin, OpNull, OpNotNull),
	schema.TypeNumber:  opsSet(OpEq, OpNe, OpLt, OpLte, OpGt, OpGte, OpIn, OpNin, OpNull, OpNotNull),
	schema.TypeBoolean: opsSet(OpEq, OpNe, OpTrue, OpFalse, OpNull, OpNotNull),
	schema.TypeDate:    opsSet(OpEq, OpNe, OpLt, OpLte, OpGt, OpGte, OpIn, OpNin, OpNull, OpNotNull),
}

func opsSet(ops ...Operator) map[Operator]struct{} {
	m := make(map[Operator]struct{}, len(ops))
	for _, op := range ops {
		m[op] = struct{}{}
	}
	return m
}

// ValidateFilter проверяет условия против схемы: существование поля и
// допустимость оператора для его типа. Fail-fast: первая ошибка
// прерывает всё.
func ValidateFilter(conds []Condition, e *schema.Entity) error {
	for _, c := range conds {
		f, ok := e.FieldByName(c.Field)
		if !ok {
			return errUnknownField(c.Field)
		}
		ft := strings.ToLower(f.Type)
		set, ok := allowedOps[ft]
		if !ok {
			// тип в самой схеме не распознан
			return errInvalidSchema(f.Name, f.Type)
		}
		if _, ok := set[c.Op]; !ok {
			return errIncompatible(c.Field, c.Op, ft)
		}
	}
	return nil
}
