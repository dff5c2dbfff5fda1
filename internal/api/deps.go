package api

import (
	"database/sql"

	"osnova/internal/schema"
	"osnova/internal/store"
	"osnova/internal/validate"
)

// Deps — зависимости HTTP-слоя. Кэш валидаторов и реестр схем
// передаются явно, не через глобальное состояние: тесты поднимают
// свои экземпляры.
type Deps struct {
	Registry *schema.Registry
	Store    store.Store
	Cache    *validate.Cache
	DB       *sql.DB // nil в in-memory режиме; нужен только для персистентности схем
}

// resolve возвращает FQN и схему по паре {org, entity} из пути.
func (d *Deps) resolve(org, entity string) (string, *schema.Entity, bool) {
	fqn, ok := d.Registry.Resolve(org, entity)
	if !ok {
		return "", nil, false
	}
	sch, ok := d.Registry.Get(fqn)
	if !ok {
		return "", nil, false
	}
	return fqn, sch, true
}

// validatorFor достаёт валидатор из кэша; на промахе генерирует и
// кладёт (подстраховка — при штатной работе кэш прогрет на старте
// и обновляется на define/replace).
func (d *Deps) validatorFor(fqn string, sch *schema.Entity) (*validate.Validator, error) {
	if v, ok := d.Cache.Get(fqn); ok {
		return v, nil
	}
	return d.Cache.Regenerate(fqn, sch)
}
