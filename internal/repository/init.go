package repository

import (
	"gorm.io/gorm"

	"github.com/briefkasten-app/briefkasten/interfaces"
	"github.com/briefkasten-app/briefkasten/internal/models"
)

func InitRepositories(db *gorm.DB) *interfaces.Repositories {
	return &interfaces.Repositories{
		AccountRepository:         NewAccountRepository(db),
		EmailRepository:           NewEmailRepository(db),
		CategoryRepository:        NewCategoryRepository(db),
		FolderSyncStateRepository: NewFolderSyncStateRepository(db),
	}
}

func MigrateDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxOpenConns(5)

	return db.AutoMigrate(
		&models.Account{},
		&models.Email{},
		&models.Category{},
		&models.FolderSyncState{},
	)
}
