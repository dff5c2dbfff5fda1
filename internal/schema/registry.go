package schema

import (
	"strings"
	"sync"
)

// Registry — реестр определений сущностей по организациям.
// Ключ — FQN "org.entity". Единственная разделяемая структура
// вместе с кэшем валидаторов; замена схемы — атомарная подмена
// указателя под write-lock.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*Entity // FQN -> схема
}

func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*Entity)}
}

// FQN строит ключ реестра.
func FQN(org, entity string) string { return org + "." + entity }

// Resolve возвращает FQN по паре {org, entity}, регистронезависимо
// по имени сущности (org сравниваем как есть).
func (r *Registry) Resolve(org, entity string) (string, bool) {
	if org == "" || entity == "" {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	// сначала прямой ключ
	direct := FQN(org, entity)
	if _, ok := r.schemas[direct]; ok {
		return direct, true
	}
	el := strings.ToLower(entity)
	prefix := org + "."
	for fqn := range r.schemas {
		if !strings.HasPrefix(fqn, prefix) {
			continue
		}
		if strings.ToLower(fqn[len(prefix):]) == el {
			return fqn, true
		}
	}
	return "", false
}

// Get возвращает схему по FQN.
func (r *Registry) Get(fqn string) (*Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.schemas[fqn]
	return e, ok
}

// Put кладёт (или заменяет) схему. Возвращает FQN.
func (r *Registry) Put(org string, e *Entity) string {
	fqn := FQN(org, e.Name)
	r.mu.Lock()
	r.schemas[fqn] = e
	r.mu.Unlock()
	return fqn
}

// Delete убирает схему. ok=false, если её не было.
func (r *Registry) Delete(fqn string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schemas[fqn]; !ok {
		return false
	}
	delete(r.schemas, fqn)
	return true
}

// ListOrg возвращает схемы одной организации.
func (r *Registry) ListOrg(org string) []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	prefix := org + "."
	out := make([]*Entity, 0)
	for fqn, e := range r.schemas {
		if strings.HasPrefix(fqn, prefix) {
			out = append(out, e)
		}
	}
	return out
}

// All возвращает снимок всего реестра (для прогрева кэша валидаторов на старте).
func (r *Registry) All() map[string]*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*Entity, len(r.schemas))
	for k, v := range r.schemas {
		out[k] = v
	}
	return out
}
