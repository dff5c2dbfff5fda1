package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"osnova/internal/query"
	"osnova/internal/schema"
	"osnova/internal/store"
	"osnova/internal/validate"

	"github.com/gin-gonic/gin"
)

// flatten — «плоский» ответ: служебные поля + данные записи.
// Пользовательское поле с именем служебного не перетирает его.
func flatten(rec *store.Record, sel []string) map[string]any {
	out := map[string]any{
		"id":         rec.ID,
		"version":    rec.Version,
		"created_at": rec.CreatedAt.Format(time.RFC3339),
		"updated_at": rec.UpdatedAt.Format(time.RFC3339),
	}
	for k, v := range query.ProjectData(rec.Data, sel) {
		if _, clash := out[k]; clash {
			out["data."+k] = v
			continue
		}
		out[k] = v
	}
	return out
}

// respondQueryError — все ошибки конвейера parse/validate/compile
// клиентские: 400 со структурированным телом.
func respondQueryError(c *gin.Context, err error) {
	var qe *query.Error
	if errors.As(err, &qe) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": qe.Error(),
			"code":  qe.Code,
			"field": qe.Field,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func respondStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
	case errors.Is(err, store.ErrVersionConflict):
		c.JSON(http.StatusConflict, gin.H{
			"errors": []validate.FieldError{{
				Code:    validate.ErrVersionConflict,
				Field:   "version",
				Message: "record was modified concurrently",
			}},
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// statusForErrors — 409, если среди ошибок есть конфликт уникальности.
func statusForErrors(errs []validate.FieldError) int {
	for _, e := range errs {
		if e.Code == validate.ErrUniqueViolation {
			return http.StatusConflict
		}
	}
	return http.StatusBadRequest
}

// checkUnique проверяет unique-поля по живым записям хранилища.
// excludeID исключает саму запись при обновлении.
func checkUnique(ctx context.Context, d *Deps, scope string, sch *schema.Entity, data map[string]any, excludeID string) ([]validate.FieldError, error) {
	var errs []validate.FieldError
	for _, f := range sch.Fields {
		if !f.Unique {
			continue
		}
		v, ok := data[f.Name]
		if !ok || v == nil {
			continue
		}
		exists, err := d.Store.FieldValueExists(ctx, scope, sch.Name, f.Name, v, excludeID)
		if err != nil {
			return nil, err
		}
		if exists {
			errs = append(errs, validate.FieldError{
				Code:    validate.ErrUniqueViolation,
				Field:   f.Name,
				Message: "Field '" + f.Name + "' must be unique",
			})
		}
	}
	return errs, nil
}

// readExpectedVersion читает ожидаемую версию из If-Match либо из
// payload["version"]. Поле version убирается из payload, чтобы не
// попасть в data.
func readExpectedVersion(c *gin.Context, payload map[string]any) (int64, bool) {
	ifMatch := strings.TrimSpace(c.GetHeader("If-Match"))
	if ifMatch != "" {
		if strings.HasPrefix(ifMatch, "W/") {
			ifMatch = strings.TrimPrefix(ifMatch, "W/")
		}
		ifMatch = strings.Trim(ifMatch, `"'`)
		if v, err := strconv.ParseInt(ifMatch, 10, 64); err == nil {
			delete(payload, "version")
			return v, true
		}
	}
	if payload != nil {
		if raw, ok := payload["version"]; ok {
			delete(payload, "version")
			switch t := raw.(type) {
			case float64:
				return int64(t), true
			case string:
				if v, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
					return v, true
				}
			}
		}
	}
	return 0, false
}
