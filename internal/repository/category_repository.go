package repository

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/briefkasten-app/briefkasten/interfaces"
	"github.com/briefkasten-app/briefkasten/internal/enum"
	"github.com/briefkasten-app/briefkasten/internal/models"
	"github.com/briefkasten-app/briefkasten/internal/tracing"
	"github.com/briefkasten-app/briefkasten/internal/utils"
)

type categoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) interfaces.CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) GetAll(ctx context.Context) ([]*models.Category, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "categoryRepository.GetAll")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var categories []*models.Category
	if err := r.db.WithContext(ctx).Order("name asc").Find(&categories).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

func (r *categoryRepository) GetByName(ctx context.Context, name string) (*models.Category, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "categoryRepository.GetByName")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var category models.Category
	result := r.db.WithContext(ctx).Where("name = ?", name).First(&category)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get category: %w", result.Error)
	}
	return &category, nil
}

func (r *categoryRepository) Create(ctx context.Context, category *models.Category) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "categoryRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if err := r.db.WithContext(ctx).Create(category).Error; err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

// EnsureFolderCategory registers a discovered folder as a folder-typed
// category. An existing custom category with the same name is promoted to
// the folder type, so the physical folder stays the source of truth.
func (r *categoryRepository) EnsureFolderCategory(ctx context.Context, name string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "categoryRepository.EnsureFolderCategory")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var category models.Category
	result := r.db.WithContext(ctx).Where("name = ?", name).First(&category)
	if result.Error != nil {
		if result.Error != gorm.ErrRecordNotFound {
			tracing.TraceErr(span, result.Error)
			return fmt.Errorf("failed to look up category: %w", result.Error)
		}
		category = models.Category{
			Name:      name,
			Type:      enum.CategoryTypeFolder,
			CreatedAt: utils.Now(),
			UpdatedAt: utils.Now(),
		}
		if err := r.db.WithContext(ctx).Create(&category).Error; err != nil {
			tracing.TraceErr(span, err)
			return fmt.Errorf("failed to create folder category: %w", err)
		}
		return nil
	}

	if category.Type == enum.CategoryTypeFolder {
		return nil
	}

	err := r.db.WithContext(ctx).
		Model(&models.Category{}).
		Where("name = ?", name).
		Updates(map[string]interface{}{
			"type":       enum.CategoryTypeFolder,
			"updated_at": utils.Now(),
		}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to promote category to folder type: %w", err)
	}
	return nil
}

// Rename moves the category and rewrites smart_category on its emails in one
// transaction. Renaming onto an existing category merges into it.
func (r *categoryRepository) Rename(ctx context.Context, oldName, newName string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "categoryRepository.Rename")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target models.Category
		targetErr := tx.Where("name = ?", newName).First(&target).Error
		targetExists := targetErr == nil
		if targetErr != nil && targetErr != gorm.ErrRecordNotFound {
			return targetErr
		}

		if targetExists {
			// Merge: drop the old category, its emails move to the target.
			if err := tx.Where("name = ?", oldName).Delete(&models.Category{}).Error; err != nil {
				return err
			}
		} else {
			result := tx.Model(&models.Category{}).
				Where("name = ?", oldName).
				Updates(map[string]interface{}{
					"name":       newName,
					"updated_at": utils.Now(),
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
		}

		return tx.Model(&models.Email{}).
			Where("smart_category = ?", oldName).
			Updates(map[string]interface{}{
				"smart_category": newName,
				"updated_at":     utils.Now(),
			}).Error
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to rename category: %w", err)
	}
	return nil
}

// Delete removes the category and clears smart_category on every email that
// referenced it, atomically.
func (r *categoryRepository) Delete(ctx context.Context, name string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "categoryRepository.Delete")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("name = ?", name).Delete(&models.Category{}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Email{}).
			Where("smart_category = ?", name).
			Updates(map[string]interface{}{
				"smart_category": nil,
				"updated_at":     utils.Now(),
			}).Error
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return nil
}
