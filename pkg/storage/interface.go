package storage

import (
	"context"

	"github.com/Sriram-PR/img-rotator/pkg/models"
)

// StatusStore is the optional durable mirror of image records.
// Reruns append rows; nothing reconciles against earlier runs unless the caller asks via WasProcessed.
type StatusStore interface {
	// Insert appends a row for a newly admitted record and returns its generated id
	Insert(ctx context.Context, rec *models.ImageRecord) (int64, error)

	// UpdateStatus changes the status of an existing row
	UpdateStatus(ctx context.Context, id int64, status models.ImageStatus) error

	// WasProcessed reports whether any run recorded url as processed
	WasProcessed(ctx context.Context, url string) (bool, error)

	// Rows returns every row in id order
	Rows(ctx context.Context) ([]models.PersistedRow, error)

	// Close cleanly closes the database connection
	Close() error
}
