package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProjectData(t *testing.T) {
	data := map[string]any{"a": 1, "b": 2, "c": 3}

	// no projection: data passes through untouched
	assert.Equal(t, data, ProjectData(data, nil))

	// missing keys are silently dropped, never defaulted
	out := ProjectData(data, []string{"a", "z"})
	assert.Equal(t, map[string]any{"a": 1}, out)
}

func TestBuildPaginationMetaUnpaged(t *testing.T) {
	meta := BuildPaginationMeta(7, nil)
	assert.Equal(t, map[string]any{"total": 7, "hasMore": false}, meta)
}

func TestBuildPaginationMetaPaged(t *testing.T) {
	meta := BuildPaginationMeta(25, &Page{Page: 2, Limit: 10, Offset: 10})
	assert.Equal(t, map[string]any{
		"total":       25,
		"page":        2,
		"limit":       10,
		"totalPages":  3,
		"hasNextPage": true,
		"hasPrevPage": true,
	}, meta)

	// last page: no next
	meta = BuildPaginationMeta(25, &Page{Page: 3, Limit: 10, Offset: 20})
	assert.Equal(t, false, meta["hasNextPage"])
	assert.Equal(t, true, meta["hasPrevPage"])

	// exact fit: 20 records at limit 10 is exactly two pages
	meta = BuildPaginationMeta(20, &Page{Page: 2, Limit: 10, Offset: 10})
	assert.Equal(t, 2, meta["totalPages"])
	assert.Equal(t, false, meta["hasNextPage"])
}

func TestBuildPaginationMetaEmptyResult(t *testing.T) {
	meta := BuildPaginationMeta(0, &Page{Page: 1, Limit: 50, Offset: 0})
	assert.Equal(t, 0, meta["totalPages"])
	assert.Equal(t, false, meta["hasNextPage"])
	assert.Equal(t, false, meta["hasPrevPage"])
}
