package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/briefkasten-app/briefkasten/interfaces"
	"github.com/briefkasten-app/briefkasten/internal/enum"
	"github.com/briefkasten-app/briefkasten/internal/models"
	"github.com/briefkasten-app/briefkasten/internal/tracing"
	"github.com/briefkasten-app/briefkasten/internal/utils"
)

type CreateCategoryRequest struct {
	Name string `json:"name" binding:"required"`
}

type RenameCategoryRequest struct {
	NewName string `json:"newName" binding:"required"`
}

func ListCategories(repos *interfaces.Repositories) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "ListCategories")
		defer span.Finish()
		tracing.TagComponentRest(span)

		categories, err := repos.CategoryRepository.GetAll(ctx)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"categories": categories})
	}
}

func CreateCategory(repos *interfaces.Repositories) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "CreateCategory")
		defer span.Finish()
		tracing.TagComponentRest(span)

		var req CreateCategoryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		existing, err := repos.CategoryRepository.GetByName(ctx, req.Name)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if existing != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "category already exists"})
			return
		}

		category := &models.Category{
			Name:      req.Name,
			Type:      enum.CategoryTypeCustom,
			CreatedAt: utils.Now(),
			UpdatedAt: utils.Now(),
		}
		if err := repos.CategoryRepository.Create(ctx, category); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, category)
	}
}

// RenameCategory moves the category and every email referencing it. Renaming
// onto an existing name merges into it.
func RenameCategory(repos *interfaces.Repositories) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "RenameCategory")
		defer span.Finish()
		tracing.TagComponentRest(span)

		var req RenameCategoryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := repos.CategoryRepository.Rename(ctx, c.Param("name"), req.NewName); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// DeleteCategory removes the category; referencing emails lose their label.
func DeleteCategory(repos *interfaces.Repositories) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "DeleteCategory")
		defer span.Finish()
		tracing.TagComponentRest(span)

		if err := repos.CategoryRepository.Delete(ctx, c.Param("name")); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
