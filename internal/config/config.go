package config

import (
	"encoding/json"
	"flag"
	"os"
	"strings"
)

type Config struct {
	Port       string `json:"port"`
	SchemasDir string `json:"schemasDir"` // YAML seed-каталоги определений
	DBURL      string `json:"dbUrl"`      // пусто = in-memory
}

func def() Config {
	return Config{
		Port:       "8080",
		SchemasDir: "schemas",
		DBURL:      "",
	}
}

func loadJSON(path string) (Config, error) {
	c := def()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, err
	}
	return c, nil
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

// LoadWithPath читает JSON по указанному пути, потом применяет ENV и флаги.
func LoadWithPath(jsonPath string) Config {
	cfg := def()

	// JSON (если файл существует)
	if st, err := os.Stat(jsonPath); err == nil && !st.IsDir() {
		if c2, err := loadJSON(jsonPath); err == nil {
			cfg = c2
		}
	}

	// ENV overrides
	cfg.Port = getenv("OSNOVA_PORT", cfg.Port)
	cfg.SchemasDir = getenv("OSNOVA_SCHEMAS_DIR", cfg.SchemasDir)
	cfg.DBURL = getenv("OSNOVA_DB_URL", cfg.DBURL)

	// Flags overrides
	configPath := flag.String("config", jsonPath, "Path to config JSON")
	port := flag.String("port", cfg.Port, "HTTP port")
	schemas := flag.String("schemas", cfg.SchemasDir, "Path to schema catalogs directory")
	db := flag.String("db", cfg.DBURL, "Postgres URL (empty = in-memory)")

	flag.Parse()

	// Если через флаг передали другой конфиг — перечитаем
	if *configPath != jsonPath {
		return LoadWithPath(*configPath)
	}

	cfg.Port = strings.TrimSpace(*port)
	cfg.SchemasDir = strings.TrimSpace(*schemas)
	cfg.DBURL = strings.TrimSpace(*db)

	return cfg
}
