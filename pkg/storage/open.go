package storage

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/img-rotator/pkg/config"
	"github.com/Sriram-PR/img-rotator/pkg/models"
	"github.com/Sriram-PR/img-rotator/pkg/utils"
)

// Open returns the StatusStore for the configured driver. runID tags every row this process inserts.
func Open(ctx context.Context, cfg config.StoreConfig, runID string, log *logrus.Entry) (StatusStore, error) {
	switch cfg.Driver {
	case "", config.StoreDriverNone:
		return NopStore{}, nil
	case config.StoreDriverSQLite:
		return NewSQLiteStore(cfg.Path, runID, log)
	case config.StoreDriverBadger:
		return NewBadgerStore(ctx, cfg.Path, runID, log)
	}
	return nil, fmt.Errorf("%w: unknown store driver '%s'", utils.ErrConfigValidation, cfg.Driver)
}

// NopStore keeps no durable state, records only live in memory for the run
type NopStore struct{}

func (NopStore) Insert(context.Context, *models.ImageRecord) (int64, error) { return 0, nil }

func (NopStore) UpdateStatus(context.Context, int64, models.ImageStatus) error { return nil }

func (NopStore) WasProcessed(context.Context, string) (bool, error) { return false, nil }

func (NopStore) Rows(context.Context) ([]models.PersistedRow, error) { return nil, nil }

func (NopStore) Close() error { return nil }

// checkStatus rejects statuses without a persisted form
func checkStatus(status models.ImageStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: invalid image status %+v", utils.ErrDatabase, status)
	}
	return nil
}

// knownStatus drops rows whose status string no longer parses
func knownStatus(row models.PersistedRow, log *logrus.Entry) bool {
	if _, err := models.ParseImageStatus(row.Status); err != nil {
		log.WithField("row_id", row.ID).Warnf("Skipping row: %v", err)
		return false
	}
	return true
}
