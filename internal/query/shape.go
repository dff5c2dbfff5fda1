package query

// ProjectData оставляет в data только ключи из sel, присутствующие в
// самой записи: отсутствующие просто опускаются, без дефолтов и ошибок.
// Пустой sel — данные возвращаются как есть.
func ProjectData(data map[string]any, sel []string) map[string]any {
	if len(sel) == 0 {
		return data
	}
	out := make(map[string]any, len(sel))
	for _, name := range sel {
		if v, ok := data[name]; ok {
			out[name] = v
		}
	}
	return out
}

// BuildPaginationMeta строит метаданные ответа по общему числу записей.
// Без пагинации — {total, hasMore:false}; с ней — page/limit/totalPages
// и флаги next/prev. При total=0 totalPages=0 и оба флага false.
func BuildPaginationMeta(total int, page *Page) map[string]any {
	if page == nil {
		return map[string]any{"total": total, "hasMore": false}
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + page.Limit - 1) / page.Limit
	}
	hasNext := false
	hasPrev := false
	if totalPages > 0 {
		hasNext = page.Page < totalPages
		hasPrev = page.Page > 1
	}
	return map[string]any{
		"total":       total,
		"page":        page.Page,
		"limit":       page.Limit,
		"totalPages":  totalPages,
		"hasNextPage": hasNext,
		"hasPrevPage": hasPrev,
	}
}
