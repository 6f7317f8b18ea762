package repository

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/briefkasten-app/briefkasten/interfaces"
	"github.com/briefkasten-app/briefkasten/internal/models"
	"github.com/briefkasten-app/briefkasten/internal/tracing"
	"github.com/briefkasten-app/briefkasten/internal/utils"
)

type emailRepository struct {
	db *gorm.DB
}

func NewEmailRepository(db *gorm.DB) interfaces.EmailRepository {
	return &emailRepository{db: db}
}

// Upsert writes an email keyed by (account_id, folder, uid). Re-syncing the
// same UID refreshes the stored copy instead of duplicating it.
func (r *emailRepository) Upsert(ctx context.Context, email *models.Email) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.Upsert")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, email.AccountID)

	email.UpdatedAt = utils.Now()
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}, {Name: "folder"}, {Name: "uid"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"sender", "sender_email", "subject", "body_text", "body_html",
			"sent_at", "is_read", "is_flagged", "raw_flags", "updated_at",
		}),
	}).Create(email)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to upsert email: %w", result.Error)
	}
	return nil
}

func (r *emailRepository) GetByUID(ctx context.Context, accountID, folder string, uid uint32) (*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.GetByUID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	var email models.Email
	result := r.db.WithContext(ctx).
		Where("account_id = ? AND folder = ? AND uid = ?", accountID, folder, uid).
		First(&email)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get email: %w", result.Error)
	}
	return &email, nil
}

func (r *emailRepository) ListByAccount(ctx context.Context, accountID string, folder string, limit, offset int) ([]*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.ListByAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	query := r.db.WithContext(ctx).Where("account_id = ?", accountID)
	if folder != "" {
		query = query.Where("folder = ?", folder)
	}
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}

	var emails []*models.Email
	if err := query.Order("sent_at desc NULLS LAST").Find(&emails).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list emails: %w", err)
	}
	return emails, nil
}

func (r *emailRepository) GetUIDsByFolder(ctx context.Context, accountID, folder string) ([]uint32, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.GetUIDsByFolder")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	var uids []uint32
	err := r.db.WithContext(ctx).
		Model(&models.Email{}).
		Where("account_id = ? AND folder = ?", accountID, folder).
		Order("uid asc").
		Pluck("uid", &uids).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to get uids: %w", err)
	}
	return uids, nil
}

func (r *emailRepository) GetMaxUIDForFolder(ctx context.Context, accountID, folder string) (uint32, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.GetMaxUIDForFolder")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	var maxUID *uint32
	err := r.db.WithContext(ctx).
		Model(&models.Email{}).
		Where("account_id = ? AND folder = ?", accountID, folder).
		Select("MAX(uid)").
		Scan(&maxUID).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, fmt.Errorf("failed to get max uid: %w", err)
	}
	if maxUID == nil {
		return 0, nil
	}
	return *maxUID, nil
}

func (r *emailRepository) DeleteByUIDs(ctx context.Context, accountID, folder string, uids []uint32) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.DeleteByUIDs")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	if len(uids) == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).
		Where("account_id = ? AND folder = ? AND uid IN ?", accountID, folder, uids).
		Delete(&models.Email{})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to delete emails: %w", result.Error)
	}
	return nil
}

func (r *emailRepository) UpdateFlags(ctx context.Context, accountID, folder string, uid uint32, isRead, isFlagged bool, rawFlags []string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.UpdateFlags")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	result := r.db.WithContext(ctx).
		Model(&models.Email{}).
		Where("account_id = ? AND folder = ? AND uid = ?", accountID, folder, uid).
		Updates(map[string]interface{}{
			"is_read":    isRead,
			"is_flagged": isFlagged,
			"raw_flags":  pq.StringArray(rawFlags),
			"updated_at": utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to update flags: %w", result.Error)
	}
	return nil
}

// MigrateFolder rewrites the folder key on every email in oldFolder. Used
// when folder resolution changes the canonical name of an existing folder.
func (r *emailRepository) MigrateFolder(ctx context.Context, accountID, oldFolder, newFolder string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.MigrateFolder")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	result := r.db.WithContext(ctx).
		Model(&models.Email{}).
		Where("account_id = ? AND folder = ?", accountID, oldFolder).
		Updates(map[string]interface{}{
			"folder":     newFolder,
			"updated_at": utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to migrate folder: %w", result.Error)
	}
	return nil
}

func (r *emailRepository) ClearSmartCategory(ctx context.Context, categoryName string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.ClearSmartCategory")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).
		Model(&models.Email{}).
		Where("smart_category = ?", categoryName).
		Updates(map[string]interface{}{
			"smart_category": nil,
			"updated_at":     utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to clear smart category: %w", result.Error)
	}
	return nil
}

func (r *emailRepository) RenameSmartCategory(ctx context.Context, oldName, newName string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.RenameSmartCategory")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).
		Model(&models.Email{}).
		Where("smart_category = ?", oldName).
		Updates(map[string]interface{}{
			"smart_category": newName,
			"updated_at":     utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to rename smart category: %w", result.Error)
	}
	return nil
}

func (r *emailRepository) DeleteByAccount(ctx context.Context, accountID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.DeleteByAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	result := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Delete(&models.Email{})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to delete account emails: %w", result.Error)
	}
	return nil
}
