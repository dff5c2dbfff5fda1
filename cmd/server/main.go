package main

import (
	"context"
	"fmt"
	"log"

	"osnova/internal/api"
	"osnova/internal/config"
	"osnova/internal/pg"
	"osnova/internal/schema"
	"osnova/internal/store"
	"osnova/internal/validate"
)

func main() {
	cfg := config.LoadWithPath("osnova.json")

	// 1. Seed-каталоги определений из YAML
	catalogs, err := schema.LoadCatalogs(cfg.SchemasDir)
	if err != nil {
		log.Fatalf("Ошибка загрузки каталогов схем: %v", err)
	}

	registry := schema.NewRegistry()
	for org, ents := range catalogs {
		for _, e := range ents {
			registry.Put(org, e)
		}
	}

	deps := &api.Deps{
		Registry: registry,
		Cache:    validate.NewCache(),
	}

	// 2. Хранилище: Postgres, если задан DBURL, иначе in-memory
	if cfg.DBURL != "" {
		db, err := pg.Open(context.Background(), cfg.DBURL)
		if err != nil {
			log.Fatalf("Ошибка подключения к Postgres: %v", err)
		}
		if err := pg.ApplyDDL(db); err != nil {
			log.Fatalf("Ошибка применения DDL: %v", err)
		}
		// определённые через API схемы переживают рестарт —
		// подмешиваем их поверх seed-каталогов
		persisted, err := pg.LoadDefinitions(context.Background(), db)
		if err != nil {
			log.Fatalf("Ошибка загрузки определений из БД: %v", err)
		}
		for org, ents := range persisted {
			for _, e := range ents {
				registry.Put(org, e)
			}
		}
		deps.DB = db
		deps.Store = pg.NewStore(db, func(scope, entity string) (*schema.Entity, bool) {
			fqn, ok := registry.Resolve(scope, entity)
			if !ok {
				return nil, false
			}
			return registry.Get(fqn)
		})
	} else {
		deps.Store = store.NewMemory()
	}

	// 3. Прогрев кэша валидаторов: без него первая запись в
	// существующую сущность после рестарта упала бы на холодном кэше
	if err := deps.Cache.Warm(registry.All()); err != nil {
		log.Fatalf("Ошибка прогрева валидаторов: %v", err)
	}
	fmt.Printf("Загружено сущностей: %d\n", len(registry.All()))

	// 4. REST API
	fmt.Printf("Стартуем сервер Osnova на :%s...\n", cfg.Port)
	api.RunServer(":"+cfg.Port, deps)
}
