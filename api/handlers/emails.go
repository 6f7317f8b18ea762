package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/briefkasten-app/briefkasten/interfaces"
	"github.com/briefkasten-app/briefkasten/internal/enum"
	er "github.com/briefkasten-app/briefkasten/internal/errors"
	"github.com/briefkasten-app/briefkasten/internal/tracing"
)

type FlagRequest struct {
	AccountID string `json:"accountId" binding:"required"`
	Folder    string `json:"folder" binding:"required"`
	UID       uint32 `json:"uid" binding:"required"`
	Flag      string `json:"flag" binding:"required"`
	Value     *bool  `json:"value" binding:"required"`
}

type DeleteEmailRequest struct {
	AccountID string `json:"accountId" binding:"required"`
	Folder    string `json:"folder" binding:"required"`
	UID       uint32 `json:"uid" binding:"required"`
}

func ListEmails(repos *interfaces.Repositories) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "ListEmails")
		defer span.Finish()
		tracing.TagComponentRest(span)

		accountID := c.Query("accountId")
		if accountID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "accountId is required"})
			return
		}

		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		emails, err := repos.EmailRepository.ListByAccount(ctx, accountID, c.Query("folder"), limit, offset)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"emails": emails})
	}
}

// SetEmailFlag mutates \Seen or \Flagged on the server, then locally.
func SetEmailFlag(syncService interfaces.SyncService) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "SetEmailFlag")
		defer span.Finish()
		tracing.TagComponentRest(span)

		var req FlagRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		flag, ok := enum.DecodeEmailFlag(req.Flag)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "flag must be 'read' or 'flagged'"})
			return
		}

		err := syncService.SetFlag(ctx, req.AccountID, req.Folder, req.UID, flag, *req.Value)
		if err != nil {
			tracing.TraceErr(span, err)
			writeMutationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func DeleteEmail(syncService interfaces.SyncService) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "DeleteEmail")
		defer span.Finish()
		tracing.TagComponentRest(span)

		var req DeleteEmailRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		err := syncService.DeleteEmail(ctx, req.AccountID, req.Folder, req.UID)
		if err != nil {
			tracing.TraceErr(span, err)
			writeMutationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func writeMutationError(c *gin.Context, err error) {
	switch {
	case err == er.ErrEmailNotFound || err == er.ErrAccountNotFound || err == er.ErrFolderNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		if _, isConn := er.AsConnectionError(err); isConn {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
