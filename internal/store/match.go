package store

import (
	"strconv"
	"strings"
	"time"

	"osnova/internal/query"
)

// Matches — in-memory интерпретация нейтрального дерева предикатов:
// AND по клаузам, пустое дерево пропускает всё.
func Matches(data map[string]any, p query.Predicate) bool {
	for _, cl := range p.Clauses {
		if !matchClause(data, cl) {
			return false
		}
	}
	return true
}

func matchClause(data map[string]any, cl query.Clause) bool {
	got, present := data[cl.Field]

	switch cl.Kind {
	case query.KindNever:
		return false
	case query.KindAbsentOrNull:
		return !present || got == nil
	case query.KindPresentNotNull:
		return present && got != nil
	case query.KindEquals:
		return present && valueEquals(got, cl.Value)
	case query.KindNotEquals:
		// отсутствующее поле неравно любому значению
		return !present || !valueEquals(got, cl.Value)
	case query.KindAnyOf:
		if !present {
			return false
		}
		for _, w := range cl.Values {
			if valueEquals(got, w) {
				return true
			}
		}
		return false
	case query.KindNoneOf:
		if !present {
			return true
		}
		for _, w := range cl.Values {
			if valueEquals(got, w) {
				return false
			}
		}
		return true
	case query.KindContains, query.KindStartsWith, query.KindEndsWith:
		if !present || got == nil {
			return false
		}
		gs := strings.ToLower(stringify(got))
		ws := strings.ToLower(stringify(cl.Value))
		switch cl.Kind {
		case query.KindStartsWith:
			return strings.HasPrefix(gs, ws)
		case query.KindEndsWith:
			return strings.HasSuffix(gs, ws)
		default:
			return strings.Contains(gs, ws)
		}
	case query.KindLessThan, query.KindLessOrEqual, query.KindGreaterThan, query.KindGreaterOrEqual:
		if !present || got == nil {
			return false
		}
		rel, ok := compareValues(got, cl.Value)
		if !ok {
			return false
		}
		switch cl.Kind {
		case query.KindLessThan:
			return rel < 0
		case query.KindLessOrEqual:
			return rel <= 0
		case query.KindGreaterThan:
			return rel > 0
		default:
			return rel >= 0
		}
	}
	return false
}

// valueEquals — равенство с учётом типов: числа сравниваются как числа,
// даты как моменты времени, остальное — строго по строке.
func valueEquals(got, want any) bool {
	if wn, ok := asNumber(want); ok {
		gn, ok := asNumber(got)
		return ok && gn == wn
	}
	if wb, ok := want.(bool); ok {
		gb, ok := got.(bool)
		return ok && gb == wb
	}
	if wt, ok := want.(time.Time); ok {
		gt, ok := asTime(got)
		return ok && gt.Equal(wt)
	}
	return stringify(got) == stringify(want)
}

// compareValues — трёхзначное сравнение для lt/lte/gt/gte.
func compareValues(got, want any) (int, bool) {
	if wn, ok := asNumber(want); ok {
		gn, ok := asNumber(got)
		if !ok {
			return 0, false
		}
		switch {
		case gn < wn:
			return -1, true
		case gn > wn:
			return 1, true
		}
		return 0, true
	}
	if wt, ok := want.(time.Time); ok {
		gt, ok := asTime(got)
		if !ok {
			return 0, false
		}
		switch {
		case gt.Before(wt):
			return -1, true
		case gt.After(wt):
			return 1, true
		}
		return 0, true
	}
	gs, ws := stringify(got), stringify(want)
	return strings.Compare(gs, ws), true
}

func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return n, err == nil
	}
	return 0, false
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return ts, true
		}
		if len(t) >= 10 {
			if ts, err := time.Parse("2006-01-02", t[:10]); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmtAny(v))
	}
}
