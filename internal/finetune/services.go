package finetune

import (
	"rise-finetune/internal/messaging"
	"rise-finetune/internal/notify"
	"rise-finetune/internal/storage"

	"gorm.io/gorm"
)

type ServiceConfig struct {
	BaseModel string
	Suffix    string
}

// Services bundles the operations over one client, file store and run ledger.
type Services struct {
	Files    *storage.Provider
	DB       *gorm.DB
	Uploader *Uploader
	Starter  *Starter
	Tracker  *Tracker

	closers []func()
}

func NewServices(client Client, files *storage.Provider, db *gorm.DB, publisher messaging.Publisher, notifier notify.Notifier, cfg ServiceConfig) *Services {
	return &Services{
		Files:    files,
		DB:       db,
		Uploader: NewUploader(client, files, db),
		Starter:  NewStarter(client, db, cfg.BaseModel, cfg.Suffix),
		Tracker:  NewTracker(client, db, publisher, notifier),
	}
}

// OnClose registers f to run when the services are closed, last registered first.
func (s *Services) OnClose(f func()) {
	s.closers = append(s.closers, f)
}

func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
