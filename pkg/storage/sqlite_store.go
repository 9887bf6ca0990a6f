package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Sriram-PR/img-rotator/pkg/log"
	"github.com/Sriram-PR/img-rotator/pkg/models"
	"github.com/Sriram-PR/img-rotator/pkg/utils"
)

// imageRow is the gorm model of the images table
type imageRow struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	URL       string `gorm:"column:url;type:text;index"`
	Dirname   string `gorm:"type:text"`
	Filename  string `gorm:"type:text"`
	Status    string `gorm:"type:text"`
	CreatedAt int64  `gorm:"type:numeric;autoCreateTime"` // Unix seconds
	RunID     string `gorm:"type:text;index"`
}

func (imageRow) TableName() string { return "images" }

func (r imageRow) toPersisted() models.PersistedRow {
	return models.PersistedRow{
		ID:        r.ID,
		URL:       r.URL,
		Dirname:   r.Dirname,
		Filename:  r.Filename,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
		RunID:     r.RunID,
	}
}

// SQLiteStore implements StatusStore with gorm over a SQLite file
type SQLiteStore struct {
	db    *gorm.DB
	runID string
	log   *logrus.Entry
}

// NewSQLiteStore opens (or creates) the database at path and migrates the images table
func NewSQLiteStore(path, runID string, logger *logrus.Entry) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: creating database directory '%s': %w", utils.ErrFilesystem, dir, err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: log.NewGormLogrusAdapter(logger, 200*time.Millisecond),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: opening sqlite database '%s': %w", utils.ErrDatabase, path, err)
	}
	return newSQLiteStore(db, runID, logger)
}

func newSQLiteStore(db *gorm.DB, runID string, logger *logrus.Entry) (*SQLiteStore, error) {
	if err := db.AutoMigrate(&imageRow{}); err != nil {
		return nil, fmt.Errorf("%w: migrating images table: %w", utils.ErrDatabase, err)
	}
	logger.Debug("SQLite status store ready")
	return &SQLiteStore{db: db, runID: runID, log: logger}, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, rec *models.ImageRecord) (int64, error) {
	if err := checkStatus(rec.Status); err != nil {
		return 0, err
	}
	row := imageRow{
		URL:      rec.URL,
		Dirname:  rec.Dirname,
		Filename: rec.Filename,
		Status:   rec.Status.String(),
		RunID:    s.runID,
	}
	if !rec.CreatedAt.IsZero() {
		row.CreatedAt = rec.CreatedAt.Unix()
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("%w: inserting row for '%s': %w", utils.ErrDatabase, rec.URL, err)
	}
	return row.ID, nil
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, id int64, status models.ImageStatus) error {
	if err := checkStatus(status); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&imageRow{}).Where("id = ?", id).Update("status", status.String())
	if res.Error != nil {
		return fmt.Errorf("%w: updating row %d: %w", utils.ErrDatabase, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: no row with id %d", utils.ErrDatabase, id)
	}
	return nil
}

func (s *SQLiteStore) WasProcessed(ctx context.Context, url string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&imageRow{}).
		Where("url = ? AND status = ?", url, models.Processed.String()).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("%w: looking up '%s': %w", utils.ErrDatabase, url, err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) Rows(ctx context.Context) ([]models.PersistedRow, error) {
	var rows []imageRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: listing rows: %w", utils.ErrDatabase, err)
	}
	out := make([]models.PersistedRow, 0, len(rows))
	for _, r := range rows {
		if row := r.toPersisted(); knownStatus(row, s.log) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("%w: %w", utils.ErrDatabase, err)
	}
	return sqlDB.Close()
}
