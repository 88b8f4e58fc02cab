package migration_1

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type FineTuneJob struct {
	Hyperparameters datatypes.JSON
}

type JobStatusChange struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	JobId     uuid.UUID `gorm:"type:uuid;index"`
	OldStatus string    `gorm:"size:20"`
	NewStatus string    `gorm:"size:20;not null"`
	Timestamp time.Time
}

func Migration(db *gorm.DB) error {
	if err := db.Migrator().AddColumn(&FineTuneJob{}, "Hyperparameters"); err != nil {
		return fmt.Errorf("error adding Hyperparameters column: %w", err)
	}

	if err := db.AutoMigrate(&JobStatusChange{}); err != nil {
		return fmt.Errorf("error creating job_status_changes table: %w", err)
	}

	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropTable(&JobStatusChange{}); err != nil {
		return fmt.Errorf("error dropping job_status_changes table: %w", err)
	}

	if err := db.Migrator().DropColumn(&FineTuneJob{}, "Hyperparameters"); err != nil {
		return fmt.Errorf("error dropping Hyperparameters column: %w", err)
	}

	return nil
}
