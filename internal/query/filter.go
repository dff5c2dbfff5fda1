package query

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Operator — оператор условия фильтра.
type Operator string

const (
	OpEq      Operator = "eq"
	OpNe      Operator = "ne"
	OpLt      Operator = "lt"
	OpLte     Operator = "lte"
	OpGt      Operator = "gt"
	OpGte     Operator = "gte"
	OpLk      Operator = "lk" // contains
	OpSw      Operator = "sw" // starts with
	OpEw      Operator = "ew" // ends with
	OpIn      Operator = "in"
	OpNin     Operator = "nin"
	OpTrue    Operator = "true"
	OpFalse   Operator = "false"
	OpNull    Operator = "null"
	OpNotNull Operator = "notnull"
)

// Condition — одно разобранное условие фильтра. Value — значение после
// общей (по форме) коэрсии; Raw — исходный токен, по нему компилятор
// делает типо-направленную коэрсию, зная схему. Для in/nin значения
// лежат в Values (сырые токены из скобок).
type Condition struct {
	Field  string
	Op     Operator
	Value  any
	Raw    string
	Values []string
}

// Префиксы операторов в порядке убывания длины. Порядок несущий:
// "gte" обязан проверяться раньше "gt", иначе "gte5" прочитается
// как gt("e5"). Явная упорядоченная таблица вместо цепочки HasPrefix.
var opPrefixes = []Operator{
	OpGte, OpLte, OpSw, OpEw, OpNe, OpLk, // трёх- и двухбуквенные
	OpGt, OpLt, OpEq, // однозначные остатки
}

// ParseFilter разбирает строку вида "field1:op1val1;field2:op2val2".
// Пустая строка — пустой список условий (фильтра нет).
func ParseFilter(s string) ([]Condition, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var out []Condition
	for _, seg := range strings.Split(s, ";") {
		if strings.TrimSpace(seg) == "" {
			continue
		}
		cond, err := parseCondition(seg)
		if err != nil {
			return nil, err
		}
		out = append(out, cond)
	}
	return out, nil
}

func parseCondition(seg string) (Condition, error) {
	// делим по ПЕРВОМУ двоеточию: слева имя поля, справа операторЗначение
	i := strings.Index(seg, ":")
	if i < 0 {
		return Condition{}, errMalformed(seg)
	}
	field := strings.TrimSpace(seg[:i])
	opval := seg[i+1:]
	if field == "" || opval == "" {
		return Condition{}, errMalformed(seg)
	}

	// 1) точные литералы — булевы и null-проверки
	switch opval {
	case "true":
		return Condition{Field: field, Op: OpTrue, Value: true, Raw: "true"}, nil
	case "false":
		return Condition{Field: field, Op: OpFalse, Value: false, Raw: "false"}, nil
	case "null":
		return Condition{Field: field, Op: OpNull}, nil
	case "notnull":
		return Condition{Field: field, Op: OpNotNull}, nil
	}

	// 2) множественные операторы in[...]/nin[...]
	for _, op := range []Operator{OpNin, OpIn} {
		prefix := string(op) + "["
		if strings.HasPrefix(opval, prefix) && strings.HasSuffix(opval, "]") {
			inner := opval[len(prefix) : len(opval)-1]
			return Condition{Field: field, Op: op, Raw: inner, Values: splitListValues(inner)}, nil
		}
	}

	// 3) префиксные операторы по упорядоченной таблице; префикс без
	// остатка оператором не считаем — уйдёт в eq целиком
	for _, op := range opPrefixes {
		tok := string(op)
		if strings.HasPrefix(opval, tok) && len(opval) > len(tok) {
			raw := opval[len(tok):]
			return Condition{Field: field, Op: op, Value: coerceScalar(raw), Raw: raw}, nil
		}
	}

	// 4) оператор не распознан — равенство со всей строкой
	return Condition{Field: field, Op: OpEq, Value: coerceScalar(opval), Raw: opval}, nil
}

func splitListValues(inner string) []string {
	if strings.TrimSpace(inner) == "" {
		return nil
	}
	parts := strings.Split(inner, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

var isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// coerceScalar — общая коэрсия значения по его форме: число → булево →
// дата с ISO-префиксом → строка. Best-effort; окончательное значение
// определяет компилятор по объявленному типу поля.
func coerceScalar(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return n
		}
	}
	switch trimmed {
	case "true":
		return true
	case "false":
		return false
	}
	if isoDateRe.MatchString(trimmed) {
		if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
			return t
		}
		if t, err := time.Parse("2006-01-02", trimmed[:10]); err == nil {
			return t
		}
	}
	return raw
}
