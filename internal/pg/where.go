package pg

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"osnova/internal/query"
)

// buildWhere транслирует нейтральный предикат в SQL-условия по
// jsonb-полям. Значения уже типизированы компилятором: по Go-типу
// значения выбирается каст (::numeric/::boolean/::timestamptz).
// Пустой предикат — только базовый scope-фильтр.
func buildWhere(scope, entity string, p query.Predicate) (string, []any) {
	var b strings.Builder
	args := []any{scope, entity}
	b.WriteString(`org = $1 AND entity = $2 AND NOT deleted`)

	for _, cl := range p.Clauses {
		b.WriteString(` AND `)
		writeClause(&b, &args, cl)
	}
	return b.String(), args
}

func writeClause(b *strings.Builder, args *[]any, cl query.Clause) {
	field := quoteLiteral(cl.Field)

	switch cl.Kind {
	case query.KindNever:
		b.WriteString(`false`)
	case query.KindAbsentOrNull:
		// отсутствие ключа ЛИБО явный null — один канонический предикат
		fmt.Fprintf(b, `(NOT data ? %s OR data->%s = 'null'::jsonb)`, field, field)
	case query.KindPresentNotNull:
		fmt.Fprintf(b, `(data ? %s AND data->%s <> 'null'::jsonb)`, field, field)

	case query.KindEquals:
		b.WriteString(`coalesce(` + typedExpr(cl.Field, cl.Value) + ` = ` + bind(args, cl.Value) + `, false)`)
	case query.KindNotEquals:
		// отсутствующее поле неравно любому значению, отсюда NOT coalesce
		b.WriteString(`NOT coalesce(` + typedExpr(cl.Field, cl.Value) + ` = ` + bind(args, cl.Value) + `, false)`)

	case query.KindAnyOf:
		// IN — это OR по равенствам
		if len(cl.Values) == 0 {
			b.WriteString(`false`)
			return
		}
		parts := make([]string, 0, len(cl.Values))
		for _, v := range cl.Values {
			parts = append(parts, `coalesce(`+typedExpr(cl.Field, v)+` = `+bind(args, v)+`, false)`)
		}
		b.WriteString(`(` + strings.Join(parts, ` OR `) + `)`)
	case query.KindNoneOf:
		// NOT IN — AND по неравенствам
		if len(cl.Values) == 0 {
			b.WriteString(`true`)
			return
		}
		parts := make([]string, 0, len(cl.Values))
		for _, v := range cl.Values {
			parts = append(parts, `NOT coalesce(`+typedExpr(cl.Field, v)+` = `+bind(args, v)+`, false)`)
		}
		b.WriteString(`(` + strings.Join(parts, ` AND `) + `)`)

	case query.KindContains:
		b.WriteString(`data->>` + field + ` ILIKE ` + bind(args, `%`+escapeLike(stringifyArg(cl.Value))+`%`))
	case query.KindStartsWith:
		b.WriteString(`data->>` + field + ` ILIKE ` + bind(args, escapeLike(stringifyArg(cl.Value))+`%`))
	case query.KindEndsWith:
		b.WriteString(`data->>` + field + ` ILIKE ` + bind(args, `%`+escapeLike(stringifyArg(cl.Value))))

	case query.KindLessThan, query.KindLessOrEqual, query.KindGreaterThan, query.KindGreaterOrEqual:
		op := map[query.ClauseKind]string{
			query.KindLessThan:       `<`,
			query.KindLessOrEqual:    `<=`,
			query.KindGreaterThan:    `>`,
			query.KindGreaterOrEqual: `>=`,
		}[cl.Kind]
		b.WriteString(`coalesce(` + typedExpr(cl.Field, cl.Value) + ` ` + op + ` ` + bind(args, cl.Value) + `, false)`)

	default:
		// неизвестный вид — ничего не матчим, чтобы не отдать лишнего
		b.WriteString(`false`)
	}
}

// typedExpr — выражение извлечения поля с кастом по Go-типу значения.
// Касты через try_* (см. ddl.go): неприводимое историческое значение
// даёт NULL вместо ошибки, строка остаётся инертной для условия.
func typedExpr(field string, value any) string {
	expr := `data->>` + quoteLiteral(field)
	switch value.(type) {
	case float64, float32, int, int64:
		return `try_numeric(` + expr + `)`
	case bool:
		return `try_boolean(` + expr + `)`
	case time.Time:
		return `try_timestamptz(` + expr + `)`
	}
	return expr
}

// bind добавляет аргумент и возвращает его placeholder.
func bind(args *[]any, v any) string {
	switch t := v.(type) {
	case time.Time:
		*args = append(*args, t)
	case float64, float32, int, int64, bool, string:
		*args = append(*args, t)
	default:
		*args = append(*args, fmt.Sprintf("%v", t))
	}
	return `$` + strconv.Itoa(len(*args))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

// quoteLiteral — строковый литерал для имени jsonb-ключа.
// Имена полей валидируются схемой до этого места, кавычки экранируем
// на всякий случай.
func quoteLiteral(s string) string {
	return `'` + strings.ReplaceAll(s, `'`, `''`) + `'`
}

func stringifyArg(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
