package query

import (
	"strconv"
	"strings"

	"osnova/internal/schema"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// SortKey — директива сортировки. Отсутствие сортировки (nil) значит
// «по умолчанию»: хранилище само отсортирует по created_at DESC.
type SortKey struct {
	Field string
	Desc  bool
}

// Page — запрошенная страница. Offset уже посчитан.
type Page struct {
	Page   int
	Limit  int
	Offset int
}

// Options — разобранный и валидированный план запроса: готов к передаче
// в хранилище.
type Options struct {
	Predicate Predicate
	Sort      *SortKey
	Page      *Page // nil — пагинация не запрошена
	Select    []string
}

// Raw — сырые фрагменты query-строки, как их отдаёт HTTP-слой.
type Raw struct {
	Search string
	Sort   string
	Page   string
	Limit  string
	Select string
}

// Parse прогоняет все фрагменты через полный конвейер:
// фильтр parse → validate → compile, плюс sort/пагинация/select.
// Порядок несущий: валидация строго до компиляции.
func Parse(raw Raw, e *schema.Entity) (Options, error) {
	conds, err := ParseFilter(raw.Search)
	if err != nil {
		return Options{}, err
	}
	if err := ValidateFilter(conds, e); err != nil {
		return Options{}, err
	}
	pred, err := Compile(conds, e)
	if err != nil {
		return Options{}, err
	}

	sort, err := ParseSort(raw.Sort, e)
	if err != nil {
		return Options{}, err
	}
	sel, err := ParseSelect(raw.Select, e)
	if err != nil {
		return Options{}, err
	}

	return Options{
		Predicate: pred,
		Sort:      sort,
		Page:      ParsePage(raw.Page, raw.Limit),
		Select:    sel,
	}, nil
}

// ParseSort разбирает директиву "field:asc|desc". Пустая строка — nil.
func ParseSort(s string, e *schema.Entity) (*SortKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return nil, errSortDirection(s)
	}
	field := strings.TrimSpace(parts[0])
	dir := strings.ToLower(strings.TrimSpace(parts[1]))
	if dir != "asc" && dir != "desc" {
		return nil, errSortDirection(parts[1])
	}
	if _, ok := e.FieldByName(field); !ok {
		return nil, errUnknownField(field)
	}
	return &SortKey{Field: field, Desc: dir == "desc"}, nil
}

// ParsePage разбирает page/limit. Оба пустые — пагинация не запрошена.
// Значения вне диапазона зажимаются, не отклоняются: page floor 1,
// limit в [1,100], дефолт 50.
func ParsePage(pageStr, limitStr string) *Page {
	pageStr = strings.TrimSpace(pageStr)
	limitStr = strings.TrimSpace(limitStr)
	if pageStr == "" && limitStr == "" {
		return nil
	}

	page := 1
	if n, err := strconv.Atoi(pageStr); err == nil {
		page = n
	}
	if page < 1 {
		page = 1
	}

	limit := DefaultLimit
	if n, err := strconv.Atoi(limitStr); err == nil {
		limit = n
	}
	if limit < 1 {
		limit = 1
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return &Page{Page: page, Limit: limit, Offset: (page - 1) * limit}
}

// ParseSelect разбирает список полей для проекции. Каждое имя должно
// существовать в схеме. Пустая строка — без проекции (полная запись).
func ParseSelect(s string, e *schema.Entity) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := e.FieldByName(p); !ok {
			return nil, errUnknownField(p)
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
