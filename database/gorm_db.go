package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/genomatch/dnalabbackend/models"
)

// InitGormDB initializes and returns a GORM database instance
func InitGormDB(dataSourceName string) (*gorm.DB, error) {
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	// Transactions begin with an immediate write lock so a concurrent upload
	// of the same person waits and re-resolves against committed rows instead
	// of reading a stale no-match view.
	dsn := fmt.Sprintf("%s?_txlock=immediate&_busy_timeout=5000", dataSourceName)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database using GORM: %w", err)
	}

	// write-ahead logging for better concurrency between uploads
	if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
		log.Printf("warning: failed to set WAL mode: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("GORM Database initialized successfully at", dataSourceName)
	return db, nil
}

// AutoMigrateModels can be called after InitGormDB to migrate schemas
func AutoMigrateModels(db *gorm.DB) error {
	if err := db.SetupJoinTable(&models.Person{}, "Files", &models.PersonFile{}); err != nil {
		return fmt.Errorf("failed to set up person_files join table: %w", err)
	}
	if err := db.SetupJoinTable(&models.UploadedFile{}, "Persons", &models.PersonFile{}); err != nil {
		return fmt.Errorf("failed to set up person_files join table: %w", err)
	}

	err := db.AutoMigrate(
		&models.Person{},
		&models.DNALocus{},
		&models.UploadedFile{},
		&models.PersonFile{},
	)
	if err != nil {
		return fmt.Errorf("GORM AutoMigrate failed: %w", err)
	}
	log.Println("GORM AutoMigrate completed successfully.")
	return nil
}
