package api

import (
	"fmt"
	"net/http"
	"strconv"

	"osnova/internal/query"
	"osnova/internal/validate"

	"github.com/gin-gonic/gin"
)

// POST /api/:org/:entity
func CreateHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		fqn, sch, ok := d.resolve(c.Param("org"), c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}

		var obj map[string]any
		if err := c.ShouldBindJSON(&obj); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}

		v, err := d.validatorFor(fqn, sch)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		// полная валидация: required обязательны, дефолты подставляются
		data, errs := v.Apply(obj, validate.Full)
		if len(errs) == 0 {
			uniq, err := checkUnique(c.Request.Context(), d, c.Param("org"), sch, data, "")
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			errs = append(errs, uniq...)
		}
		if len(errs) > 0 {
			c.JSON(statusForErrors(errs), gin.H{"errors": errs})
			return
		}

		rec, err := d.Store.Insert(c.Request.Context(), c.Param("org"), sch.Name, data)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.JSON(http.StatusCreated, flatten(rec, nil))
	}
}

// GET /api/:org/:entity
// ?search=field:opval;...&sort=field:asc&page=2&limit=50&select=a,b
func ListHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, sch, ok := d.resolve(c.Param("org"), c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}

		// полный конвейер: parse → validate → compile + sort/page/select
		opts, err := query.Parse(query.Raw{
			Search: c.Query("search"),
			Sort:   c.Query("sort"),
			Page:   c.Query("page"),
			Limit:  c.Query("limit"),
			Select: c.Query("select"),
		}, sch)
		if err != nil {
			respondQueryError(c, err)
			return
		}

		records, total, err := d.Store.List(c.Request.Context(), c.Param("org"), sch.Name, opts)
		if err != nil {
			respondStoreError(c, err)
			return
		}

		data := make([]map[string]any, 0, len(records))
		for _, rec := range records {
			data = append(data, flatten(rec, opts.Select))
		}
		c.Header("X-Total-Count", strconv.Itoa(total))
		c.JSON(http.StatusOK, gin.H{
			"data": data,
			"meta": query.BuildPaginationMeta(total, opts.Page),
		})
	}
}

// GET /api/:org/:entity/_count
func CountHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, sch, ok := d.resolve(c.Param("org"), c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}

		conds, err := query.ParseFilter(c.Query("search"))
		if err == nil {
			err = query.ValidateFilter(conds, sch)
		}
		var pred query.Predicate
		if err == nil {
			pred, err = query.Compile(conds, sch)
		}
		if err != nil {
			respondQueryError(c, err)
			return
		}

		total, err := d.Store.Count(c.Request.Context(), c.Param("org"), sch.Name, pred)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"total": total})
	}
}

// GET /api/:org/:entity/:id
func GetOneHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, sch, ok := d.resolve(c.Param("org"), c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		rec, err := d.Store.Get(c.Request.Context(), c.Param("org"), sch.Name, c.Param("id"))
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.Header("ETag", fmt.Sprintf(`"%d"`, rec.Version))
		c.JSON(http.StatusOK, flatten(rec, nil))
	}
}

// PUT /api/:org/:entity/:id — полная замена data, полная валидация.
func UpdateHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		fqn, sch, ok := d.resolve(c.Param("org"), c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		id := c.Param("id")

		var obj map[string]any
		if err := c.ShouldBindJSON(&obj); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		expVer, okExp := readExpectedVersion(c, obj)

		cur, err := d.Store.Get(c.Request.Context(), c.Param("org"), sch.Name, id)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		if !okExp || expVer != cur.Version {
			c.JSON(http.StatusConflict, gin.H{
				"errors": []validate.FieldError{{
					Code:    validate.ErrVersionConflict,
					Field:   "version",
					Message: fmt.Sprintf("expected version %d", cur.Version),
				}},
			})
			return
		}

		v, err := d.validatorFor(fqn, sch)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		data, errs := v.Apply(obj, validate.Full)
		if len(errs) == 0 {
			uniq, err := checkUnique(c.Request.Context(), d, c.Param("org"), sch, data, id)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			errs = append(errs, uniq...)
		}
		if len(errs) > 0 {
			c.JSON(statusForErrors(errs), gin.H{"errors": errs})
			return
		}

		rec, err := d.Store.Replace(c.Request.Context(), c.Param("org"), sch.Name, id, expVer, data)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, flatten(rec, nil))
	}
}

// PATCH /api/:org/:entity/:id — merge, ЧАСТИЧНАЯ валидация: required
// поля не обязаны присутствовать, клиент шлёт только изменённое.
func UpdatePartialHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		fqn, sch, ok := d.resolve(c.Param("org"), c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		id := c.Param("id")

		var patch map[string]any
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		expVer, okExp := readExpectedVersion(c, patch)

		cur, err := d.Store.Get(c.Request.Context(), c.Param("org"), sch.Name, id)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		if !okExp || expVer != cur.Version {
			c.JSON(http.StatusConflict, gin.H{
				"errors": []validate.FieldError{{
					Code:    validate.ErrVersionConflict,
					Field:   "version",
					Message: fmt.Sprintf("expected version %d", cur.Version),
				}},
			})
			return
		}

		v, err := d.validatorFor(fqn, sch)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		data, errs := v.Apply(patch, validate.Partial)
		if len(errs) == 0 {
			uniq, err := checkUnique(c.Request.Context(), d, c.Param("org"), sch, data, id)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			errs = append(errs, uniq...)
		}
		if len(errs) > 0 {
			c.JSON(statusForErrors(errs), gin.H{"errors": errs})
			return
		}

		rec, err := d.Store.Merge(c.Request.Context(), c.Param("org"), sch.Name, id, expVer, data)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, flatten(rec, nil))
	}
}

// DELETE /api/:org/:entity/:id (soft delete)
func DeleteHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, sch, ok := d.resolve(c.Param("org"), c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		if err := d.Store.SoftDelete(c.Request.Context(), c.Param("org"), sch.Name, c.Param("id")); err != nil {
			respondStoreError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// POST /api/:org/:entity/:id/restore
func RestoreHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, sch, ok := d.resolve(c.Param("org"), c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		rec, err := d.Store.Restore(c.Request.Context(), c.Param("org"), sch.Name, c.Param("id"))
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, flatten(rec, nil))
	}
}
