package pg

import (
	"context"
	"database/sql"
	"testing"

	"osnova/internal/query"
	"osnova/internal/schema"
	"osnova/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
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

// Поднимает одноразовый Postgres в контейнере. Семантика стора обязана
// совпадать с in-memory реализацией, сценарии ниже зеркалят её тесты.
func setupPG(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres integration test, skipped in -short")
	}
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("osnova_test"),
		tcpostgres.WithUsername("osnova"),
		tcpostgres.WithPassword("osnova"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(ctx) })

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, ApplyDDL(db))
	// повторный накат должен быть no-op
	require.NoError(t, ApplyDDL(db))
	return db
}

func newTestStore(db *sql.DB) *Store {
	return NewStore(db, func(scope, entity string) (*schema.Entity, bool) {
		return productEntity(), true
	})
}

func parseOptions(t *testing.T, raw query.Raw) query.Options {
	t.Helper()
	opts, err := query.Parse(raw, productEntity())
	require.NoError(t, err)
	return opts
}

func seed(t *testing.T, s *Store, scope string) []*store.Record {
	t.Helper()
	ctx := context.Background()
	rows := []map[string]any{
		{"name": "alpha", "price": float64(50), "active": true, "released": "2024-01-10"},
		{"name": "bravo", "price": float64(150), "active": true, "released": "2024-02-10"},
		{"name": "charlie", "price": float64(250), "active": false},
		{"name": "delta", "active": true},
		{"name": "echo", "price": float64(120), "active": false, "released": "2024-03-10"},
	}
	out := make([]*store.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := s.Insert(ctx, scope, "product", row)
		require.NoError(t, err)
		out = append(out, rec)
	}
	return out
}

func TestPostgresStore(t *testing.T) {
	db := setupPG(t)
	s := newTestStore(db)
	ctx := context.Background()

	t.Run("insert and get", func(t *testing.T) {
		rec, err := s.Insert(ctx, "crud", "product", map[string]any{"name": "alpha", "price": float64(10)})
		require.NoError(t, err)
		assert.Len(t, rec.ID, 26)
		assert.Equal(t, int64(1), rec.Version)

		got, err := s.Get(ctx, "crud", "product", rec.ID)
		require.NoError(t, err)
		assert.Equal(t, "alpha", got.Data["name"])
		assert.Equal(t, float64(10), got.Data["price"])

		_, err = s.Get(ctx, "other", "product", rec.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("replace and version conflict", func(t *testing.T) {
		rec, err := s.Insert(ctx, "ver", "product", map[string]any{"name": "alpha", "price": float64(1)})
		require.NoError(t, err)

		_, err = s.Replace(ctx, "ver", "product", rec.ID, 99, map[string]any{"name": "x"})
		assert.ErrorIs(t, err, store.ErrVersionConflict)
		_, err = s.Replace(ctx, "ver", "product", "missing", 1, map[string]any{"name": "x"})
		assert.ErrorIs(t, err, store.ErrNotFound)

		upd, err := s.Replace(ctx, "ver", "product", rec.ID, 1, map[string]any{"name": "beta"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), upd.Version)
		_, present := upd.Data["price"]
		assert.False(t, present, "replace is wholesale")
	})

	t.Run("merge patches top-level keys", func(t *testing.T) {
		rec, err := s.Insert(ctx, "merge", "product", map[string]any{"name": "alpha", "price": float64(10)})
		require.NoError(t, err)

		upd, err := s.Merge(ctx, "merge", "product", rec.ID, 1, map[string]any{"price": float64(20)})
		require.NoError(t, err)
		assert.Equal(t, "alpha", upd.Data["name"])
		assert.Equal(t, float64(20), upd.Data["price"])
		assert.Equal(t, int64(2), upd.Version)
	})

	t.Run("soft delete and restore", func(t *testing.T) {
		rec, err := s.Insert(ctx, "del", "product", map[string]any{"name": "alpha"})
		require.NoError(t, err)

		require.NoError(t, s.SoftDelete(ctx, "del", "product", rec.ID))
		_, err = s.Get(ctx, "del", "product", rec.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.ErrorIs(t, s.SoftDelete(ctx, "del", "product", rec.ID), store.ErrNotFound)

		back, err := s.Restore(ctx, "del", "product", rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, back.ID)
	})

	t.Run("list with filters", func(t *testing.T) {
		seed(t, s, "list")

		_, total, err := s.List(ctx, "list", "product", parseOptions(t, query.Raw{Search: "price:gt100"}))
		require.NoError(t, err)
		assert.Equal(t, 3, total)

		_, total, err = s.List(ctx, "list", "product", parseOptions(t, query.Raw{Search: "name:in[alpha,bravo,charlie]"}))
		require.NoError(t, err)
		assert.Equal(t, 3, total)

		_, total, err = s.List(ctx, "list", "product", parseOptions(t, query.Raw{Search: "price:null"}))
		require.NoError(t, err)
		assert.Equal(t, 1, total)

		_, total, err = s.List(ctx, "list", "product", parseOptions(t, query.Raw{Search: "price:notnull"}))
		require.NoError(t, err)
		assert.Equal(t, 4, total)

		// отсутствующее поле неравно любому значению
		_, total, err = s.List(ctx, "list", "product", parseOptions(t, query.Raw{Search: "price:ne150"}))
		require.NoError(t, err)
		assert.Equal(t, 4, total)

		_, total, err = s.List(ctx, "list", "product", parseOptions(t, query.Raw{Search: "name:swAL"}))
		require.NoError(t, err)
		assert.Equal(t, 1, total, "substring match is case-insensitive")

		_, total, err = s.List(ctx, "list", "product", parseOptions(t, query.Raw{Search: "released:gte2024-02-01"}))
		require.NoError(t, err)
		assert.Equal(t, 2, total)

		_, total, err = s.List(ctx, "list", "product", parseOptions(t, query.Raw{Search: "active:false;price:gte200"}))
		require.NoError(t, err)
		assert.Equal(t, 1, total)

		_, total, err = s.List(ctx, "list", "product", parseOptions(t, query.Raw{Search: "name:nin[alpha,bravo]"}))
		require.NoError(t, err)
		assert.Equal(t, 3, total)

		// нераспарсившееся значение упорядочивания — пустой результат,
		// текстовое сравнение с числами не допускается
		_, total, err = s.List(ctx, "list", "product", parseOptions(t, query.Raw{Search: "price:ltabc"}))
		require.NoError(t, err)
		assert.Equal(t, 0, total)
	})

	t.Run("historical non-conforming values stay inert", func(t *testing.T) {
		// схему сменили, старая запись хранит строку там, где теперь число:
		// она не матчится и не роняет запрос кастом
		_, err := s.Insert(ctx, "hist", "product", map[string]any{"name": "old", "price": "oops"})
		require.NoError(t, err)
		_, err = s.Insert(ctx, "hist", "product", map[string]any{"name": "new", "price": float64(150)})
		require.NoError(t, err)

		recs, total, err := s.List(ctx, "hist", "product", parseOptions(t, query.Raw{Search: "price:gt100"}))
		require.NoError(t, err)
		require.Equal(t, 1, total)
		assert.Equal(t, "new", recs[0].Data["name"])

		// сортировка по тому же полю тоже не падает; некастуемое — в конце
		recs, _, err = s.List(ctx, "hist", "product", parseOptions(t, query.Raw{Sort: "price:asc"}))
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "new", recs[0].Data["name"])
		assert.Equal(t, "old", recs[1].Data["name"])
	})

	t.Run("list sort and pagination", func(t *testing.T) {
		seed(t, s, "page")

		recs, total, err := s.List(ctx, "page", "product", parseOptions(t, query.Raw{Sort: "price:asc"}))
		require.NoError(t, err)
		require.Equal(t, 5, total)
		assert.Equal(t, "alpha", recs[0].Data["name"])
		// запись без поля сортировки — в конце
		assert.Equal(t, "delta", recs[4].Data["name"])

		recs, total, err = s.List(ctx, "page", "product", parseOptions(t, query.Raw{
			Sort: "name:asc", Page: "2", Limit: "2",
		}))
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		require.Len(t, recs, 2)
		assert.Equal(t, "charlie", recs[0].Data["name"])
		assert.Equal(t, "delta", recs[1].Data["name"])
	})

	t.Run("count", func(t *testing.T) {
		seed(t, s, "count")
		n, err := s.Count(ctx, "count", "product", query.Predicate{})
		require.NoError(t, err)
		assert.Equal(t, 5, n)

		opts := parseOptions(t, query.Raw{Search: "active:true"})
		n, err = s.Count(ctx, "count", "product", opts.Predicate)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("field value exists", func(t *testing.T) {
		recs := seed(t, s, "uniq")

		ok, err := s.FieldValueExists(ctx, "uniq", "product", "name", "alpha", "")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.FieldValueExists(ctx, "uniq", "product", "name", "alpha", recs[0].ID)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = s.FieldValueExists(ctx, "uniq", "product", "name", "zulu", "")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete all", func(t *testing.T) {
		seed(t, s, "wipe")
		require.NoError(t, s.DeleteAll(ctx, "wipe", "product"))
		n, err := s.Count(ctx, "wipe", "product", query.Predicate{})
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})
}

func TestPostgresDefinitions(t *testing.T) {
	db := setupPG(t)
	ctx := context.Background()

	e := productEntity()
	require.NoError(t, SaveDefinition(ctx, db, "acme", e))
	// upsert: повторное сохранение заменяет поля
	e.Fields = e.Fields[:2]
	require.NoError(t, SaveDefinition(ctx, db, "acme", e))
	require.NoError(t, SaveDefinition(ctx, db, "globex", productEntity()))

	defs, err := LoadDefinitions(ctx, db)
	require.NoError(t, err)
	require.Len(t, defs["acme"], 1)
	assert.Len(t, defs["acme"][0].Fields, 2)
	require.Len(t, defs["globex"], 1)

	require.NoError(t, DeleteDefinition(ctx, db, "acme", "product"))
	defs, err = LoadDefinitions(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, defs["acme"])
}
