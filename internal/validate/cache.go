package validate

import (
	"fmt"
	"sync"

	"osnova/internal/schema"
)

// Cache — кэш валидаторов по FQN ("org.entity"). Единственное
// разделяемое мутабельное состояние ядра. Обновление — атомарная
// подмена указателя под write-lock: читатель видит либо старый
// валидатор целиком, либо новый, никогда половину.
//
// Кэш передаётся в точки входа явно (DI), не глобален — тесты
// поднимают независимые экземпляры.
type Cache struct {
	mu         sync.RWMutex
	validators map[string]*Validator
}

func NewCache() *Cache {
	return &Cache{validators: make(map[string]*Validator)}
}

// Get возвращает валидатор, если он сгенерирован.
func (c *Cache) Get(fqn string) (*Validator, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.validators[fqn]
	return v, ok
}

// Regenerate собирает валидатор заново и подменяет запись.
// Вызывается при define/replace схемы.
func (c *Cache) Regenerate(fqn string, e *schema.Entity) (*Validator, error) {
	v, err := Generate(e)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.validators[fqn] = v
	c.mu.Unlock()
	return v, nil
}

// Invalidate убирает валидатор (сущность удалена).
func (c *Cache) Invalidate(fqn string) {
	c.mu.Lock()
	delete(c.validators, fqn)
	c.mu.Unlock()
}

// Warm прогревает кэш по всем известным схемам. Запускается на старте:
// без прогрева первая запись в существующую сущность после рестарта
// падала бы на холодном кэше.
func (c *Cache) Warm(all map[string]*schema.Entity) error {
	for fqn, e := range all {
		if _, err := c.Regenerate(fqn, e); err != nil {
			return fmt.Errorf("warm %s: %w", fqn, err)
		}
	}
	return nil
}
