package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ===== META HANDLERS =====

type metaEntityListItem struct {
	Name   string `json:"name"`
	Fields int    `json:"fields"`
}

// GET /api/:org/_meta
func MetaListHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ents := d.Registry.ListOrg(c.Param("org"))
		out := make([]metaEntityListItem, 0, len(ents))
		for _, e := range ents {
			out = append(out, metaEntityListItem{Name: e.Name, Fields: len(e.Fields)})
		}
		c.JSON(http.StatusOK, out)
	}
}

// GET /api/:org/_meta/:entity — определение целиком (фронту для форм).
func MetaEntityHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, sch, ok := d.resolve(c.Param("org"), c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		c.JSON(http.StatusOK, sch)
	}
}
