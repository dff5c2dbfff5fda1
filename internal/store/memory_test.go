package store

import (
	"context"
	"testing"
	"time"

	"osnova/internal/query"
	"osnova/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func productEntity() *schema.Entity {
	return &schema.Entity{
		Name: "product",
		Fields: []schema.Field{
			{Name: "name", Type: schema.TypeString},
			{Name: "price", Type: schema.TypeNumber},
			{Name: "active", Type: schema.TypeBoolean},
			{Name: "released", Type: schema.TypeDate},
		},
	}
}

func parseOptions(t *testing.T, raw query.Raw) query.Options {
	t.Helper()
	opts, err := query.Parse(raw, productEntity())
	require.NoError(t, err)
	return opts
}

func seedProducts(t *testing.T, m *Memory) []*Record {
	t.Helper()
	ctx := context.Background()
	rows := []map[string]any{
		{"name": "alpha", "price": float64(50), "active": true, "released": "2024-01-10"},
		{"name": "bravo", "price": float64(150), "active": true, "released": "2024-02-10"},
		{"name": "charlie", "price": float64(250), "active": false},
		{"name": "delta", "active": true}, // price absent
		{"name": "echo", "price": float64(120), "active": false, "released": "2024-03-10"},
	}
	out := make([]*Record, 0, len(rows))
	for _, row := range rows {
		rec, err := m.Insert(ctx, "acme", "product", row)
		require.NoError(t, err)
		out = append(out, rec)
		time.Sleep(2 * time.Millisecond) // distinct created_at for ordering tests
	}
	return out
}

func TestMemoryInsertGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	rec, err := m.Insert(ctx, "acme", "product", map[string]any{"name": "alpha"})
	require.NoError(t, err)
	assert.Len(t, rec.ID, 26) // ULID
	assert.Equal(t, int64(1), rec.Version)
	assert.Equal(t, "acme", rec.Scope)

	got, err := m.Get(ctx, "acme", "product", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	// scope isolation: same id under another org does not resolve
	_, err = m.Get(ctx, "other", "product", rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.Get(ctx, "acme", "product", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryReplaceVersioning(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	rec, err := m.Insert(ctx, "acme", "product", map[string]any{"name": "alpha"})
	require.NoError(t, err)

	_, err = m.Replace(ctx, "acme", "product", rec.ID, 99, map[string]any{"name": "x"})
	assert.ErrorIs(t, err, ErrVersionConflict)

	upd, err := m.Replace(ctx, "acme", "product", rec.ID, 1, map[string]any{"name": "beta"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), upd.Version)
	assert.Equal(t, "beta", upd.Data["name"])
	// replace is wholesale: fields not in the new data are gone
	_, present := upd.Data["price"]
	assert.False(t, present)
}

func TestMemoryMergePatchesData(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	rec, err := m.Insert(ctx, "acme", "product", map[string]any{"name": "alpha", "price": float64(10)})
	require.NoError(t, err)

	upd, err := m.Merge(ctx, "acme", "product", rec.ID, 1, map[string]any{"price": float64(20)})
	require.NoError(t, err)
	assert.Equal(t, "alpha", upd.Data["name"], "untouched field survives the merge")
	assert.Equal(t, float64(20), upd.Data["price"])
	assert.Equal(t, int64(2), upd.Version)
}

func TestMemorySoftDeleteRestore(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	rec, err := m.Insert(ctx, "acme", "product", map[string]any{"name": "alpha"})
	require.NoError(t, err)

	require.NoError(t, m.SoftDelete(ctx, "acme", "product", rec.ID))
	_, err = m.Get(ctx, "acme", "product", rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	// double delete is a not-found, the record is already invisible
	assert.ErrorIs(t, m.SoftDelete(ctx, "acme", "product", rec.ID), ErrNotFound)

	back, err := m.Restore(ctx, "acme", "product", rec.ID)
	require.NoError(t, err)
	assert.False(t, back.Deleted)
	got, err := m.Get(ctx, "acme", "product", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	// restore of a live record is a no-op, not an error
	again, err := m.Restore(ctx, "acme", "product", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, back.Version, again.Version)
}

func TestMemoryListFilter(t *testing.T) {
	m := NewMemory()
	seedProducts(t, m)
	ctx := context.Background()

	recs, total, err := m.List(ctx, "acme", "product", parseOptions(t, query.Raw{Search: "price:gt100"}))
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, recs, 3)

	recs, total, err = m.List(ctx, "acme", "product", parseOptions(t, query.Raw{Search: "name:in[alpha,bravo,charlie]"}))
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	names := map[string]bool{}
	for _, r := range recs {
		names[r.Data["name"].(string)] = true
	}
	assert.True(t, names["alpha"] && names["bravo"] && names["charlie"])

	// absent field is "null" for filtering purposes
	_, total, err = m.List(ctx, "acme", "product", parseOptions(t, query.Raw{Search: "price:null"}))
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, total, err = m.List(ctx, "acme", "product", parseOptions(t, query.Raw{Search: "active:true;price:lte120"}))
	require.NoError(t, err)
	assert.Equal(t, 1, total) // only alpha: delta has no price

	_, total, err = m.List(ctx, "acme", "product", parseOptions(t, query.Raw{Search: "name:swal"}))
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, total, err = m.List(ctx, "acme", "product", parseOptions(t, query.Raw{Search: "released:gte2024-02-01"}))
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	// empty filter matches everything
	_, total, err = m.List(ctx, "acme", "product", parseOptions(t, query.Raw{}))
	require.NoError(t, err)
	assert.Equal(t, 5, total)
}

func TestMemoryListSort(t *testing.T) {
	m := NewMemory()
	seedProducts(t, m)
	ctx := context.Background()

	recs, _, err := m.List(ctx, "acme", "product", parseOptions(t, query.Raw{Sort: "price:asc"}))
	require.NoError(t, err)
	require.Len(t, recs, 5)
	assert.Equal(t, "alpha", recs[0].Data["name"])
	assert.Equal(t, "charlie", recs[3].Data["name"])
	// record without the sort field goes last regardless of direction
	assert.Equal(t, "delta", recs[4].Data["name"])

	recs, _, err = m.List(ctx, "acme", "product", parseOptions(t, query.Raw{Sort: "price:desc"}))
	require.NoError(t, err)
	assert.Equal(t, "charlie", recs[0].Data["name"])
	assert.Equal(t, "delta", recs[4].Data["name"])

	// default order: newest first
	recs, _, err = m.List(ctx, "acme", "product", parseOptions(t, query.Raw{}))
	require.NoError(t, err)
	assert.Equal(t, "echo", recs[0].Data["name"])
	assert.Equal(t, "alpha", recs[4].Data["name"])
}

func TestMemoryListPagination(t *testing.T) {
	m := NewMemory()
	seedProducts(t, m)
	ctx := context.Background()

	recs, total, err := m.List(ctx, "acme", "product", parseOptions(t, query.Raw{
		Sort: "name:asc", Page: "2", Limit: "2",
	}))
	require.NoError(t, err)
	assert.Equal(t, 5, total, "total counts all matches, not the page")
	require.Len(t, recs, 2)
	assert.Equal(t, "charlie", recs[0].Data["name"])
	assert.Equal(t, "delta", recs[1].Data["name"])

	// page past the end: empty slice, same total
	recs, total, err = m.List(ctx, "acme", "product", parseOptions(t, query.Raw{Page: "9", Limit: "10"}))
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Empty(t, recs)
}

func TestMemoryCount(t *testing.T) {
	m := NewMemory()
	seedProducts(t, m)
	ctx := context.Background()

	n, err := m.Count(ctx, "acme", "product", query.Predicate{})
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	opts := parseOptions(t, query.Raw{Search: "active:false"})
	n, err = m.Count(ctx, "acme", "product", opts.Predicate)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemoryDeleteAll(t *testing.T) {
	m := NewMemory()
	seedProducts(t, m)
	ctx := context.Background()

	require.NoError(t, m.DeleteAll(ctx, "acme", "product"))
	n, err := m.Count(ctx, "acme", "product", query.Predicate{})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMemoryFieldValueExists(t *testing.T) {
	m := NewMemory()
	recs := seedProducts(t, m)
	ctx := context.Background()

	ok, err := m.FieldValueExists(ctx, "acme", "product", "name", "alpha", "")
	require.NoError(t, err)
	assert.True(t, ok)

	// the record itself is excluded on update
	ok, err = m.FieldValueExists(ctx, "acme", "product", "name", "alpha", recs[0].ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m.FieldValueExists(ctx, "acme", "product", "name", "zulu", "")
	require.NoError(t, err)
	assert.False(t, ok)

	// soft-deleted records do not hold unique values
	require.NoError(t, m.SoftDelete(ctx, "acme", "product", recs[0].ID))
	ok, err = m.FieldValueExists(ctx, "acme", "product", "name", "alpha", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

// Упорядочивающий фильтр с нераспарсившимся значением не совпадает ни с
// одной записью: текстовое "50" < "abc" дало бы ложные совпадения.
func TestMemoryListUnparsableOrderingValue(t *testing.T) {
	m := NewMemory()
	seedProducts(t, m)
	ctx := context.Background()

	_, total, err := m.List(ctx, "acme", "product", parseOptions(t, query.Raw{Search: "price:ltabc"}))
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	_, total, err = m.List(ctx, "acme", "product", parseOptions(t, query.Raw{Search: "released:gtnotadate"}))
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

// Читатели листинга работают с данными уже без блокировки; конкурентный
// PATCH не должен с ними гоняться. Ловится только под -race.
func TestMemoryConcurrentListAndMerge(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	rec, err := m.Insert(ctx, "acme", "product", map[string]any{
		"name": "alpha", "price": float64(150), "active": true,
	})
	require.NoError(t, err)

	opts := parseOptions(t, query.Raw{Search: "price:gt100;name:lkal", Sort: "price:asc"})

	done := make(chan struct{})
	go func() {
		defer close(done)
		version := int64(1)
		for i := 0; i < 500; i++ {
			upd, err := m.Merge(ctx, "acme", "product", rec.ID, version, map[string]any{
				"price": float64(100 + i),
			})
			if err != nil {
				return
			}
			version = upd.Version
		}
	}()

	for i := 0; i < 500; i++ {
		recs, _, err := m.List(ctx, "acme", "product", opts)
		require.NoError(t, err)
		for _, r := range recs {
			for k := range r.Data {
				_ = k
			}
		}
	}
	<-done
}

func TestMemorySoftDeletedInvisibleToList(t *testing.T) {
	m := NewMemory()
	recs := seedProducts(t, m)
	ctx := context.Background()

	require.NoError(t, m.SoftDelete(ctx, "acme", "product", recs[0].ID))
	_, total, err := m.List(ctx, "acme", "product", parseOptions(t, query.Raw{}))
	require.NoError(t, err)
	assert.Equal(t, 4, total)
}
