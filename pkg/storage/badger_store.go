package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/img-rotator/pkg/log"
	"github.com/Sriram-PR/img-rotator/pkg/models"
	"github.com/Sriram-PR/img-rotator/pkg/utils"
)

const (
	imageKeyPrefix = "img:"  // Prefix for image row keys, followed by the zero-padded id
	doneKeyPrefix  = "done:" // Prefix for URLs recorded as processed by any run
	sequenceKey    = "seq:images"
	seqBandwidth   = 100
)

// BadgerStore implements StatusStore using BadgerDB. Rows are JSON encoded PersistedRow values.
type BadgerStore struct {
	db    *badger.DB
	seq   *badger.Sequence
	runID string
	log   *logrus.Entry

	closeOnce sync.Once
	closeErr  error
}

// NewBadgerStore opens (or creates) the state directory at path
func NewBadgerStore(ctx context.Context, path, runID string, logger *logrus.Entry) (*BadgerStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create state directory %s: %w", utils.ErrFilesystem, path, err)
	}

	logger.Infof("Opening status database at: %s", path)
	opts := badger.DefaultOptions(path).
		WithLogger(log.NewBadgerLogrusAdapter(logger)).
		WithNumVersionsToKeep(1) // Only the latest row state matters

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %s: %w", utils.ErrDatabase, path, err)
	}

	seq, err := db.GetSequence([]byte(sequenceKey), seqBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: leasing id sequence: %w", utils.ErrDatabase, err)
	}

	return &BadgerStore{db: db, seq: seq, runID: runID, log: logger}, nil
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
// Conflicts resolve in microseconds, so a tight loop is sufficient.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

func rowKey(id int64) []byte {
	return fmt.Appendf(nil, "%s%020d", imageKeyPrefix, id)
}

// Insert implements StatusStore. Ids start at 1 and keep increasing across reopen.
func (s *BadgerStore) Insert(ctx context.Context, rec *models.ImageRecord) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := checkStatus(rec.Status); err != nil {
		return 0, err
	}
	next, err := s.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("%w: next id: %w", utils.ErrDatabase, err)
	}
	row := models.NewPersistedRow(rec, s.runID)
	row.ID = int64(next) + 1

	val, err := json.Marshal(row)
	if err != nil {
		return 0, fmt.Errorf("%w: encoding row for '%s': %w", utils.ErrParsing, rec.URL, err)
	}
	err = s.dbUpdate(func(txn *badger.Txn) error {
		if err := txn.Set(rowKey(row.ID), val); err != nil {
			return err
		}
		if rec.Status == models.Processed {
			return txn.Set([]byte(doneKeyPrefix+rec.URL), nil)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: inserting row for '%s': %w", utils.ErrDatabase, rec.URL, err)
	}
	return row.ID, nil
}

// UpdateStatus implements StatusStore
func (s *BadgerStore) UpdateStatus(ctx context.Context, id int64, status models.ImageStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkStatus(status); err != nil {
		return err
	}
	key := rowKey(id)
	err := s.dbUpdate(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		var row models.PersistedRow
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &row) }); err != nil {
			return err
		}
		row.Status = status.String()
		val, err := json.Marshal(row)
		if err != nil {
			return err
		}
		if err := txn.Set(key, val); err != nil {
			return err
		}
		if status == models.Processed {
			return txn.Set([]byte(doneKeyPrefix+row.URL), nil)
		}
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: no row with id %d", utils.ErrDatabase, id)
	}
	if err != nil {
		s.log.WithField("key", string(key)).Errorf("DB Update error in UpdateStatus: %v", err)
		return fmt.Errorf("%w: updating row %d: %w", utils.ErrDatabase, id, err)
	}
	return nil
}

// WasProcessed implements StatusStore
func (s *BadgerStore) WasProcessed(ctx context.Context, url string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(doneKeyPrefix + url))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: looking up '%s': %w", utils.ErrDatabase, url, err)
	}
	return found, nil
}

// Rows implements StatusStore. Keys are zero padded, so iteration order is id order.
func (s *BadgerStore) Rows(ctx context.Context) ([]models.PersistedRow, error) {
	var rows []models.PersistedRow
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(imageKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var row models.PersistedRow
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &row) }); err != nil {
				s.log.Warnf("Skipping undecodable row '%s': %v", string(item.Key()), err)
				continue
			}
			if knownStatus(row, s.log) {
				rows = append(rows, row)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing rows: %w", utils.ErrDatabase, err)
	}
	return rows, nil
}

// Close releases the id lease and closes the database. Safe to call more than once.
func (s *BadgerStore) Close() error {
	s.closeOnce.Do(func() {
		if err := s.seq.Release(); err != nil {
			s.log.Warnf("Error releasing id sequence: %v", err)
		}
		s.log.Info("Closing status DB...")
		if err := s.db.Close(); err != nil {
			s.log.Errorf("Error closing status DB: %v", err)
			s.closeErr = err
		}
	})
	return s.closeErr
}
