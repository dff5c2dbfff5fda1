package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Схема фиксированная: одна таблица записей на все сущности
// (данные в jsonb) плюс таблица персистентных определений.
var ddlStatements = []string{
	`CREATE TABLE IF NOT EXISTS records (
		org        text        NOT NULL,
		entity     text        NOT NULL,
		id         text        NOT NULL,
		version    bigint      NOT NULL,
		deleted    boolean     NOT NULL DEFAULT false,
		created_at timestamptz NOT NULL,
		updated_at timestamptz NOT NULL,
		data       jsonb       NOT NULL,
		PRIMARY KEY (org, entity, id)
	)`,
	`CREATE INDEX IF NOT EXISTS records_data_gin ON records USING gin (data)`,
	`CREATE INDEX IF NOT EXISTS records_listing ON records (org, entity, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS entity_defs (
		org        text        NOT NULL,
		name       text        NOT NULL,
		fields     jsonb       NOT NULL,
		updated_at timestamptz NOT NULL,
		PRIMARY KEY (org, name)
	)`,
	// Безопасные касты для jsonb-значений. Исторические записи не
	// мигрируются при смене схемы: в data может лежать значение, не
	// приводимое к текущему типу поля. Голый ::numeric уронил бы весь
	// запрос; try_* возвращает NULL, и такая строка просто не матчится.
	`CREATE OR REPLACE FUNCTION try_numeric(v text) RETURNS numeric
		LANGUAGE plpgsql IMMUTABLE AS
		$$ BEGIN RETURN v::numeric; EXCEPTION WHEN others THEN RETURN NULL; END $$`,
	`CREATE OR REPLACE FUNCTION try_boolean(v text) RETURNS boolean
		LANGUAGE plpgsql IMMUTABLE AS
		$$ BEGIN RETURN v::boolean; EXCEPTION WHEN others THEN RETURN NULL; END $$`,
	`CREATE OR REPLACE FUNCTION try_timestamptz(v text) RETURNS timestamptz
		LANGUAGE plpgsql IMMUTABLE AS
		$$ BEGIN RETURN v::timestamptz; EXCEPTION WHEN others THEN RETURN NULL; END $$`,
}

// ApplyDDL накатывает idempotent DDL. duplicate_object (42710)
// игнорируем — повторный старт не должен падать.
func ApplyDDL(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for _, stmt := range ddlStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "42710" {
				log.Printf("DDL skipped (already exists): %s", strings.TrimSpace(pgErr.Message))
				continue
			}
			e := strings.ToLower(err.Error())
			if strings.Contains(e, "already exists") || strings.Contains(e, "duplicate") {
				log.Printf("DDL skipped (already exists): %v", err)
				continue
			}
			return fmt.Errorf("DDL apply failed: %w", err)
		}
	}
	return nil
}
