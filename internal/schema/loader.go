package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog — один YAML-файл с набором сущностей для организации.
// Используется как seed при старте: то, что было определено через API
// и сохранено в БД, подмешивается поверх.
type Catalog struct {
	Org      string   `yaml:"org"`
	Entities []Entity `yaml:"entities"`
}

// LoadCatalogs читает все *.yaml/*.yml из папки со схемами.
// Ключ результата — имя организации.
func LoadCatalogs(dir string) (map[string][]*Entity, error) {
	result := make(map[string][]*Entity)

	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			// папки может не быть — это не ошибка, просто пустой seed
			return result, nil
		}
		return nil, err
	}

	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var cat Catalog
		if err := yaml.Unmarshal(data, &cat); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		// имя организации — из файла или из имени файла
		org := strings.TrimSpace(cat.Org)
		if org == "" {
			org = strings.TrimSuffix(name, filepath.Ext(name))
		}
		for i := range cat.Entities {
			e := cat.Entities[i]
			if issues := Lint(&e); len(issues) > 0 {
				return nil, fmt.Errorf("catalog %s, entity %q: %s", path, e.Name, issues[0].Message)
			}
			result[org] = append(result[org], &e)
		}
	}
	return result, nil
}
