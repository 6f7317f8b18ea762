package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/briefkasten-app/briefkasten/interfaces"
	er "github.com/briefkasten-app/briefkasten/internal/errors"
	"github.com/briefkasten-app/briefkasten/internal/tracing"
)

// TriggerSync starts one sync pass for an account. Runs inline: the desktop
// UI shows progress and needs the result in the response.
func TriggerSync(syncService interfaces.SyncService) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "TriggerSync")
		defer span.Finish()
		tracing.TagComponentRest(span)

		result, err := syncService.SyncAccount(ctx, c.Param("id"))
		if err != nil {
			tracing.TraceErr(span, err)
			switch err {
			case er.ErrSyncInProgress:
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			case er.ErrAccountNotFound:
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			default:
				if result == nil {
					result = &interfaces.SyncResult{Success: false, Error: err.Error()}
				}
				c.JSON(http.StatusBadGateway, result)
			}
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func TriggerSyncAll(syncService interfaces.SyncService) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "TriggerSyncAll")
		defer span.Finish()
		tracing.TagComponentRest(span)

		c.JSON(http.StatusOK, gin.H{"results": syncService.SyncAll(ctx)})
	}
}

func SyncStatus(syncService interfaces.SyncService) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, _ := opentracing.StartSpanFromContext(c.Request.Context(), "SyncStatus")
		defer span.Finish()
		tracing.TagComponentRest(span)

		status, err := syncService.Status(c.Param("id"))
		if err != nil {
			if err == er.ErrAccountNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, status)
	}
}
