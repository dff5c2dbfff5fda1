package api

import (
	"net/http"

	"osnova/internal/pg"
	"osnova/internal/schema"

	"github.com/gin-gonic/gin"
)

type defineReq struct {
	Fields []schema.Field `json:"fields"`
}

// POST /api/:org/_schema/:entity — определить новую сущность.
func DefineSchemaHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		org := c.Param("org")
		name := c.Param("entity")

		if _, ok := d.Registry.Resolve(org, name); ok {
			c.JSON(http.StatusConflict, gin.H{"error": "Entity already defined"})
			return
		}
		e, ok := bindAndLint(c, name)
		if !ok {
			return
		}
		if err := d.applySchema(c, org, e); err != nil {
			return
		}
		c.JSON(http.StatusCreated, gin.H{"ok": true, "entity": e.Name, "fields": len(e.Fields)})
	}
}

// PUT /api/:org/_schema/:entity — заменить список полей.
// Существующие записи НЕ перевалидируются задним числом; валидатор
// в кэше регенерируется атомарно.
func ReplaceSchemaHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		org := c.Param("org")

		fqn, ok := d.Registry.Resolve(org, c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		cur, _ := d.Registry.Get(fqn)

		e, ok := bindAndLint(c, cur.Name)
		if !ok {
			return
		}
		if err := d.applySchema(c, org, e); err != nil {
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "entity": e.Name, "fields": len(e.Fields)})
	}
}

// DELETE /api/:org/_schema/:entity — удалить сущность: каскад на все
// её записи, валидатор выбрасывается из кэша.
func DeleteSchemaHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		org := c.Param("org")

		fqn, sch, ok := d.resolve(org, c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}

		if err := d.Store.DeleteAll(c.Request.Context(), org, sch.Name); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		d.Registry.Delete(fqn)
		d.Cache.Invalidate(fqn)
		if d.DB != nil {
			if err := pg.DeleteDefinition(c.Request.Context(), d.DB, org, sch.Name); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}
		c.Status(http.StatusNoContent)
	}
}

// bindAndLint читает список полей и прогоняет линт определения.
func bindAndLint(c *gin.Context, name string) (*schema.Entity, bool) {
	var req defineReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return nil, false
	}
	e := &schema.Entity{Name: name, Fields: req.Fields}
	if issues := schema.Lint(e); len(issues) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "schema has blocking issues",
			"issues": issues,
		})
		return nil, false
	}
	return e, true
}

// applySchema — реестр + регенерация валидатора + персистентность.
// Порядок несущий: валидатор обязан смениться вместе со схемой.
func (d *Deps) applySchema(c *gin.Context, org string, e *schema.Entity) error {
	fqn := d.Registry.Put(org, e)
	if _, err := d.Cache.Regenerate(fqn, e); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return err
	}
	if d.DB != nil {
		if err := pg.SaveDefinition(c.Request.Context(), d.DB, org, e); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return err
		}
	}
	return nil
}
