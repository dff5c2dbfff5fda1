// api/router.go
package api

import (
	"github.com/gin-gonic/gin"
)

func NewRouter(d *Deps) *gin.Engine {
	r := gin.Default()

	apiGroup := r.Group("/api/:org")
	{
		// статические "служебные" маршруты — СНАЧАЛА
		apiGroup.GET("/_meta", MetaListHandler(d))
		apiGroup.GET("/_meta/:entity", MetaEntityHandler(d))
		apiGroup.POST("/_schema/:entity", DefineSchemaHandler(d))
		apiGroup.PUT("/_schema/:entity", ReplaceSchemaHandler(d))
		apiGroup.DELETE("/_schema/:entity", DeleteSchemaHandler(d))
		apiGroup.GET("/:entity/_count", CountHandler(d))
		apiGroup.POST("/:entity/:id/restore", RestoreHandler(d))

		// обычные CRUD
		apiGroup.POST("/:entity", CreateHandler(d))
		apiGroup.GET("/:entity", ListHandler(d))
		apiGroup.GET("/:entity/:id", GetOneHandler(d))
		apiGroup.PUT("/:entity/:id", UpdateHandler(d))
		apiGroup.PATCH("/:entity/:id", UpdatePartialHandler(d))
		apiGroup.DELETE("/:entity/:id", DeleteHandler(d))
	}

	return r
}

func RunServer(addr string, d *Deps) {
	_ = NewRouter(d).Run(addr)
}
