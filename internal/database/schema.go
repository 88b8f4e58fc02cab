package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
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
	Hyperparameters  datatypes.JSON

	CreationTime   time.Time
	CompletionTime sql.NullTime

	StatusChanges []JobStatusChange `gorm:"foreignKey:JobId;constraint:OnDelete:CASCADE"`
}

type JobStatusChange struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	JobId     uuid.UUID `gorm:"type:uuid;index"`
	OldStatus string    `gorm:"size:20"`
	NewStatus string    `gorm:"size:20;not null"`
	Timestamp time.Time
}
