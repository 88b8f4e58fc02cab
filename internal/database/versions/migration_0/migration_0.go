package migration_0

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TrainingFile struct {
	Id       uuid.UUID `gorm:"type:uuid;primaryKey"`
	RemoteId string    `gorm:"uniqueIndex;not null"`

	Filename     string
	Source       string
	Purpose      string `gorm:"size:40;not null"`
	Bytes        int64
	CreationTime time.Time
}

type FineTuneJob struct {
	Id       uuid.UUID `gorm:"type:uuid;primaryKey"`
	RemoteId string    `gorm:"uniqueIndex;not null"`

	TrainingFileId   string
	ValidationFileId sql.NullString
	BaseModel        string
	Suffix           string
	Status           string `gorm:"size:20;not null"`
	FineTunedModel   sql.NullString
	Error            sql.NullString

	CreationTime   time.Time
	CompletionTime sql.NullTime
}

func Migration(db *gorm.DB) error {
	if err := db.AutoMigrate(&TrainingFile{}, &FineTuneJob{}); err != nil {
		return fmt.Errorf("initial migration failed: %w", err)
	}
	return nil
}
