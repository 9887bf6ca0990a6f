package log

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogrusAdapter implements gorm's logger.Interface on top of logrus
type GormLogrusAdapter struct {
	entry         *logrus.Entry
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// NewGormLogrusAdapter routes gorm logs through entry, SQL traces only at trace level
func NewGormLogrusAdapter(entry *logrus.Entry, slowThreshold time.Duration) *GormLogrusAdapter {
	return &GormLogrusAdapter{
		entry:         entry.WithField("component", "gorm"),
		level:         gormlogger.Warn,
		slowThreshold: slowThreshold,
	}
}

func (l *GormLogrusAdapter) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogrusAdapter) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.entry.Infof(msg, args...)
	}
}

func (l *GormLogrusAdapter) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.entry.Warnf(msg, args...)
	}
}

func (l *GormLogrusAdapter) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.entry.Errorf(msg, args...)
	}
}

// Trace logs failed and slow statements. Record-not-found is an expected lookup miss.
func (l *GormLogrusAdapter) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		sql, rows := fc()
		l.entry.WithFields(logrus.Fields{"elapsed": elapsed, "rows": rows, "sql": sql}).Errorf("SQL error: %v", err)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		sql, rows := fc()
		l.entry.WithFields(logrus.Fields{"elapsed": elapsed, "rows": rows, "sql": sql}).Warn("Slow SQL")
	case l.entry.Logger.IsLevelEnabled(logrus.TraceLevel):
		sql, rows := fc()
		l.entry.WithFields(logrus.Fields{"elapsed": elapsed, "rows": rows}).Trace(sql)
	}
}
