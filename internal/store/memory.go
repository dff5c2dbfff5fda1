package store

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"time"

	"osnova/internal/query"

	"github.com/oklog/ulid/v2"
)

// Memory — in-memory хранилище: map "scope.entity" -> id -> запись.
// Используется без Postgres (dev/тесты) и как референс семантики
// для SQL-бэкенда.
type Memory struct {
	mu      sync.RWMutex
	data    map[string]map[string]*Record
	entropy io.Reader
}

func NewMemory() *Memory {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Memory{
		data:    make(map[string]map[string]*Record),
		entropy: ulid.Monotonic(src, 0),
	}
}

func (m *Memory) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), m.entropy).String()
}

func key(scope, entity string) string { return scope + "." + entity }

// copyRec — снимок записи для выдачи наружу. Поля копируются под
// блокировкой; карта data разделяется по указателю, это безопасно:
// писатели её не мутируют на месте, а подменяют целиком (copy-on-write
// в Merge, новая карта в Replace). Читатель держит либо старую карту
// целиком, либо новую — как с валидаторами в кэше.
func copyRec(rec *Record) *Record {
	c := *rec
	return &c
}

func (m *Memory) Insert(_ context.Context, scope, entity string, data map[string]any) (*Record, error) {
	now := time.Now().UTC()
	rec := &Record{
		ID:        m.newID(),
		Entity:    entity,
		Scope:     scope,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		Data:      data,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(scope, entity)
	if m.data[k] == nil {
		m.data[k] = make(map[string]*Record)
	}
	m.data[k][rec.ID] = rec
	return copyRec(rec), nil
}

func (m *Memory) Get(_ context.Context, scope, entity, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec := m.data[key(scope, entity)][id]
	if rec == nil || rec.Deleted {
		return nil, ErrNotFound
	}
	return copyRec(rec), nil
}

func (m *Memory) Replace(_ context.Context, scope, entity, id string, version int64, data map[string]any) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.data[key(scope, entity)][id]
	if rec == nil || rec.Deleted {
		return nil, ErrNotFound
	}
	if rec.Version != version {
		return nil, ErrVersionConflict
	}
	rec.Data = data
	rec.Version++
	rec.UpdatedAt = time.Now().UTC()
	return copyRec(rec), nil
}

func (m *Memory) Merge(_ context.Context, scope, entity, id string, version int64, patch map[string]any) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.data[key(scope, entity)][id]
	if rec == nil || rec.Deleted {
		return nil, ErrNotFound
	}
	if rec.Version != version {
		return nil, ErrVersionConflict
	}
	// copy-on-write: старую карту могут прямо сейчас читать List/flatten
	// за пределами блокировки, мутировать её на месте нельзя
	merged := make(map[string]any, len(rec.Data)+len(patch))
	for k, v := range rec.Data {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	rec.Data = merged
	rec.Version++
	rec.UpdatedAt = time.Now().UTC()
	return copyRec(rec), nil
}

func (m *Memory) SoftDelete(_ context.Context, scope, entity, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.data[key(scope, entity)][id]
	if rec == nil || rec.Deleted {
		return ErrNotFound
	}
	rec.Deleted = true
	rec.UpdatedAt = time.Now().UTC()
	rec.Version++
	return nil
}

func (m *Memory) Restore(_ context.Context, scope, entity, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.data[key(scope, entity)][id]
	if rec == nil {
		return nil, ErrNotFound
	}
	if rec.Deleted {
		rec.Deleted = false
		rec.UpdatedAt = time.Now().UTC()
		rec.Version++
	}
	return copyRec(rec), nil
}

func (m *Memory) DeleteAll(_ context.Context, scope, entity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key(scope, entity))
	return nil
}

func (m *Memory) List(_ context.Context, scope, entity string, opts query.Options) ([]*Record, int, error) {
	all := m.alive(scope, entity)

	filtered := all[:0:0]
	for _, r := range all {
		if Matches(r.Data, opts.Predicate) {
			filtered = append(filtered, r)
		}
	}
	total := len(filtered)

	sortRecords(filtered, opts.Sort)

	if opts.Page != nil {
		start := opts.Page.Offset
		if start > total {
			start = total
		}
		end := start + opts.Page.Limit
		if end > total {
			end = total
		}
		filtered = filtered[start:end]
	}
	return filtered, total, nil
}

func (m *Memory) Count(_ context.Context, scope, entity string, pred query.Predicate) (int, error) {
	all := m.alive(scope, entity)
	n := 0
	for _, r := range all {
		if Matches(r.Data, pred) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) FieldValueExists(_ context.Context, scope, entity, field string, value any, excludeID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, rec := range m.data[key(scope, entity)] {
		if rec.Deleted || id == excludeID {
			continue
		}
		if v, ok := rec.Data[field]; ok && valueEquals(v, value) {
			return true, nil
		}
	}
	return false, nil
}

// alive — снимок живых записей под RLock. Отдаются копии: фильтрация
// и сортировка идут уже без блокировки и не должны гоняться с
// конкурентными мутациями version/updated_at/data.
func (m *Memory) alive(scope, entity string) []*Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byID := m.data[key(scope, entity)]
	out := make([]*Record, 0, len(byID))
	for _, r := range byID {
		if !r.Deleted {
			out = append(out, copyRec(r))
		}
	}
	return out
}

// sortRecords — стабильная сортировка страницы. Без директивы —
// самые свежие сверху (created_at DESC, тай-брейк по id для
// детерминизма). С директивой — по значению поля, null'ы в конце
// независимо от направления.
func sortRecords(records []*Record, k *query.SortKey) {
	if k == nil {
		sort.SliceStable(records, func(i, j int) bool {
			if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
				return records[i].CreatedAt.After(records[j].CreatedAt)
			}
			return records[i].ID > records[j].ID
		})
		return
	}

	sort.SliceStable(records, func(i, j int) bool {
		return cmpByField(records[i], records[j], k.Field, k.Desc) < 0
	})
}

func cmpByField(a, b *Record, field string, desc bool) int {
	va, oka := a.Data[field]
	vb, okb := b.Data[field]
	na := !oka || va == nil
	nb := !okb || vb == nil

	// null'ы всегда в конец
	if na && nb {
		return 0
	}
	if na {
		return +1
	}
	if nb {
		return -1
	}

	rel, ok := compareValues(va, vb)
	if !ok {
		rel = 0
	}
	if desc {
		rel = -rel
	}
	return rel
}

func fmtAny(v any) string {
	return fmt.Sprintf("%v", v)
}
