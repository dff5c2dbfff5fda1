package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"osnova/internal/query"
	"osnova/internal/schema"
	"osnova/internal/store"

	"github.com/oklog/ulid/v2"
)

// SchemaResolver отдаёт схему сущности — нужна, чтобы правильно
// типизировать ORDER BY по jsonb-полю.
type SchemaResolver func(scope, entity string) (*schema.Entity, bool)

// Store — Postgres-реализация store.Store. Записи лежат в одной
// таблице records с jsonb-данными; предикат транслируется в условия
// по data->>'field' с кастами по типу значения.
type Store struct {
	db      *sql.DB
	resolve SchemaResolver
	entropy io.Reader
}

func NewStore(db *sql.DB, resolve SchemaResolver) *Store {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Store{db: db, resolve: resolve, entropy: ulid.Monotonic(src, 0)}
}

func (s *Store) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *Store) Insert(ctx context.Context, scope, entity string, data map[string]any) (*store.Record, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	rec := &store.Record{
		ID:        s.newID(),
		Entity:    entity,
		Scope:     scope,
		Version:   1,
		CreatedAt: time.Now().UTC(),
		Data:      data,
	}
	rec.UpdatedAt = rec.CreatedAt

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (org, entity, id, version, deleted, created_at, updated_at, data)
		 VALUES ($1, $2, $3, $4, false, $5, $6, $7)`,
		scope, entity, rec.ID, rec.Version, rec.CreatedAt, rec.UpdatedAt, raw)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) Get(ctx context.Context, scope, entity, id string) (*store.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, version, created_at, updated_at, data
		 FROM records WHERE org = $1 AND entity = $2 AND id = $3 AND NOT deleted`,
		scope, entity, id)
	return scanRecord(row, scope, entity)
}

func (s *Store) Replace(ctx context.Context, scope, entity, id string, version int64, data map[string]any) (*store.Record, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET data = $1, version = version + 1, updated_at = $2
		 WHERE org = $3 AND entity = $4 AND id = $5 AND NOT deleted AND version = $6`,
		raw, now, scope, entity, id, version)
	if err != nil {
		return nil, err
	}
	if err := s.mutationOutcome(ctx, res, scope, entity, id); err != nil {
		return nil, err
	}
	return s.Get(ctx, scope, entity, id)
}

func (s *Store) Merge(ctx context.Context, scope, entity, id string, version int64, patch map[string]any) (*store.Record, error) {
	raw, err := json.Marshal(patch)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	// jsonb || — merge верхнего уровня, ровно как partial-merge в памяти
	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET data = data || $1::jsonb, version = version + 1, updated_at = $2
		 WHERE org = $3 AND entity = $4 AND id = $5 AND NOT deleted AND version = $6`,
		raw, now, scope, entity, id, version)
	if err != nil {
		return nil, err
	}
	if err := s.mutationOutcome(ctx, res, scope, entity, id); err != nil {
		return nil, err
	}
	return s.Get(ctx, scope, entity, id)
}

// mutationOutcome различает not found и version conflict, когда
// UPDATE никого не задел.
func (s *Store) mutationOutcome(ctx context.Context, res sql.Result, scope, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT true FROM records WHERE org = $1 AND entity = $2 AND id = $3 AND NOT deleted`,
		scope, entity, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	return store.ErrVersionConflict
}

func (s *Store) SoftDelete(ctx context.Context, scope, entity, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET deleted = true, version = version + 1, updated_at = $1
		 WHERE org = $2 AND entity = $3 AND id = $4 AND NOT deleted`,
		time.Now().UTC(), scope, entity, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Restore(ctx context.Context, scope, entity, id string) (*store.Record, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE records SET deleted = false, version = version + 1, updated_at = $1
		 WHERE org = $2 AND entity = $3 AND id = $4 AND deleted`,
		time.Now().UTC(), scope, entity, id)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, scope, entity, id)
}

func (s *Store) DeleteAll(ctx context.Context, scope, entity string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE org = $1 AND entity = $2`, scope, entity)
	return err
}

func (s *Store) List(ctx context.Context, scope, entity string, opts query.Options) ([]*store.Record, int, error) {
	where, args := buildWhere(scope, entity, opts.Predicate)

	// total — ПОСЛЕ фильтра, до пагинации
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM records WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT id, version, created_at, updated_at, data FROM records WHERE ` + where +
		` ORDER BY ` + s.orderBy(scope, entity, opts.Sort)
	if opts.Page != nil {
		q += fmt.Sprintf(` LIMIT %d OFFSET %d`, opts.Page.Limit, opts.Page.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*store.Record
	for rows.Next() {
		rec, err := scanRecord(rows, scope, entity)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

func (s *Store) Count(ctx context.Context, scope, entity string, pred query.Predicate) (int, error) {
	where, args := buildWhere(scope, entity, pred)
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM records WHERE `+where, args...).Scan(&total)
	return total, err
}

func (s *Store) FieldValueExists(ctx context.Context, scope, entity, field string, value any, excludeID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT true FROM records
		 WHERE org = $1 AND entity = $2 AND NOT deleted AND id <> $3 AND data->>`+quoteLiteral(field)+` = $4
		 LIMIT 1`,
		scope, entity, excludeID, stringifyArg(value)).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return exists, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner, scope, entity string) (*store.Record, error) {
	rec := &store.Record{Scope: scope, Entity: entity}
	var raw []byte
	err := row.Scan(&rec.ID, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt, &raw)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &rec.Data); err != nil {
		return nil, err
	}
	return rec, nil
}

// orderBy строит ORDER BY: без директивы — created_at DESC; с ней —
// типизированное выражение по jsonb-полю, null'ы в конце.
func (s *Store) orderBy(scope, entity string, k *query.SortKey) string {
	if k == nil {
		return `created_at DESC, id DESC`
	}
	expr := `data->>` + quoteLiteral(k.Field)
	if s.resolve != nil {
		if e, ok := s.resolve(scope, entity); ok {
			if f, ok := e.FieldByName(k.Field); ok {
				switch strings.ToLower(f.Type) {
				case schema.TypeNumber:
					expr = `try_numeric(` + expr + `)`
				case schema.TypeDate:
					expr = `try_timestamptz(` + expr + `)`
				case schema.TypeBoolean:
					expr = `try_boolean(` + expr + `)`
				}
			}
		}
	}
	dir := ` ASC`
	if k.Desc {
		dir = ` DESC`
	}
	return expr + dir + ` NULLS LAST, id`
}
