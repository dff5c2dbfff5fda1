package store

import (
	"context"
	"errors"
	"time"

	"osnova/internal/query"
)

// Record — экземпляр сущности. Данные лежат схемонезависимо:
// JSON-объект по именам полей. Исторические записи при смене схемы
// НЕ мигрируются — data отражает схему на момент записи.
type Record struct {
	ID        string         `json:"id"`
	Entity    string         `json:"entity"`
	Scope     string         `json:"scope"` // организация-владелец
	Version   int64          `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Deleted   bool           `json:"-"`
	Data      map[string]any `json:"data"`
}

var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("version conflict")
)

// Store — контракт хранилища записей. Ядро отдаёт сюда уже
// скомпилированный предикат и опции; изоляцию по scope обеспечивает
// вызывающий, передавая корректную организацию в каждый вызов.
type Store interface {
	Insert(ctx context.Context, scope, entity string, data map[string]any) (*Record, error)
	Get(ctx context.Context, scope, entity, id string) (*Record, error)
	// Replace/Merge проверяют ожидаемую версию (optimistic lock).
	Replace(ctx context.Context, scope, entity, id string, version int64, data map[string]any) (*Record, error)
	Merge(ctx context.Context, scope, entity, id string, version int64, patch map[string]any) (*Record, error)
	SoftDelete(ctx context.Context, scope, entity, id string) error
	Restore(ctx context.Context, scope, entity, id string) (*Record, error)
	// DeleteAll каскадно убирает все записи сущности (схему удалили).
	DeleteAll(ctx context.Context, scope, entity string) error
	// List возвращает страницу и общее число записей ПОСЛЕ фильтра.
	// Отсутствие sort — порядок по умолчанию: created_at DESC.
	List(ctx context.Context, scope, entity string, opts query.Options) ([]*Record, int, error)
	Count(ctx context.Context, scope, entity string, pred query.Predicate) (int, error)
	// FieldValueExists — есть ли живая запись с таким значением поля
	// (для unique-ограничений); excludeID исключает саму запись при update.
	FieldValueExists(ctx context.Context, scope, entity, field string, value any, excludeID string) (bool, error)
}
