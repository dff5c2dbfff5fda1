package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"osnova/internal/schema"
)

// Персистентность определений сущностей: то, что определили через API,
// переживает рестарт (и прогревает кэш валидаторов при старте).

func SaveDefinition(ctx context.Context, db *sql.DB, org string, e *schema.Entity) error {
	raw, err := json.Marshal(e.Fields)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO entity_defs (org, name, fields, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (org, name) DO UPDATE SET fields = $3, updated_at = $4`,
		org, e.Name, raw, time.Now().UTC())
	return err
}

func DeleteDefinition(ctx context.Context, db *sql.DB, org, name string) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM entity_defs WHERE org = $1 AND name = $2`, org, name)
	return err
}

// LoadDefinitions читает все сохранённые определения: org -> сущности.
func LoadDefinitions(ctx context.Context, db *sql.DB) (map[string][]*schema.Entity, error) {
	rows, err := db.QueryContext(ctx, `SELECT org, name, fields FROM entity_defs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]*schema.Entity)
	for rows.Next() {
		var org, name string
		var raw []byte
		if err := rows.Scan(&org, &name, &raw); err != nil {
			return nil, err
		}
		var fields []schema.Field
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
		out[org] = append(out[org], &schema.Entity{Name: name, Fields: fields})
	}
	return out, rows.Err()
}
