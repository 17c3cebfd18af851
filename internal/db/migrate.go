package db

import (
	"fmt"

	"github.com/zulandar/tally/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Branch{},
		&models.User{},
		&models.Teacher{},
		&models.Student{},
		&models.Group{},
		&models.Subject{},
		&models.TeachingAssignment{},
		&models.ManagementAssignment{},
		&models.Cycle{},
		&models.Task{},
		&models.Question{},
		&models.QuestionSet{},
		&models.Submission{},
		&models.Answer{},
		&models.BiqClassResult{},
		&models.PkpdExamResult{},
		&models.PkpdPortfolio{},
		&models.PkpdAchievement{},
		&models.PkpdDecision{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// Reset drops every table and migrates again. Used by "db reset" for
// drivers without CREATE DATABASE.
func Reset(db *gorm.DB) error {
	if err := db.Migrator().DropTable(AllModels()...); err != nil {
		return fmt.Errorf("db: drop tables: %w", err)
	}
	return AutoMigrate(db)
}
