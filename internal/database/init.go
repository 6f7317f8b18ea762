package database

import (
	"log"

	"gorm.io/gorm"

	"github.com/briefkasten-app/briefkasten/config"
)

func InitDatabase(dbConfig *config.PostgresConfig) (*gorm.DB, error) {
	db, err := NewConnection(dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to the database: %v", err)
	}

	return db, nil
}
