package database

import (
	"log/slog"

	"rise-finetune/internal/database/versions/migration_0"
	"rise-finetune/internal/database/versions/migration_1"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

var ledgerMigrations = []*gormigrate.Migration{
	{ID: "0", Migrate: migration_0.Migration},
	{ID: "1", Migrate: migration_1.Migration, Rollback: migration_1.Rollback},
}

// GetMigrator returns the ledger migrator. A fresh database is created directly at the
// latest schema instead of replaying every migration.
func GetMigrator(db *gorm.DB) *gormigrate.Gormigrate {
	migrator := gormigrate.New(db, gormigrate.DefaultOptions, ledgerMigrations)

	migrator.InitSchema(func(txn *gorm.DB) error {
		slog.Info("empty ledger detected, creating latest schema", "dialect", db.Dialector.Name())

		if isSqlite(db) {
			// Needed for the status change cascade.
			if err := txn.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
				slog.Error("error enabling sqlite foreign keys", "error", err)
			}
		}

		return txn.AutoMigrate(&TrainingFile{}, &FineTuneJob{}, &JobStatusChange{})
	})

	return migrator
}

func isSqlite(db *gorm.DB) bool {
	name := db.Dialector.Name()
	return name == "sqlite" || name == "sqlite3"
}
