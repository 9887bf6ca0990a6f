package log

import "github.com/sirupsen/logrus"

// BadgerLogrusAdapter implements badger.Logger interface using logrus
type BadgerLogrusAdapter struct {
	*logrus.Entry
}

// NewBadgerLogrusAdapter tags badger's internal logs with the store component
func NewBadgerLogrusAdapter(entry *logrus.Entry) *BadgerLogrusAdapter {
	return &BadgerLogrusAdapter{entry.WithField("component", "badger")}
}

func (l *BadgerLogrusAdapter) Errorf(f string, v ...interface{}) { l.Entry.Errorf(f, v...) }

func (l *BadgerLogrusAdapter) Warningf(f string, v ...interface{}) { l.Entry.Warningf(f, v...) }

// Infof is demoted to debug, badger is chatty at info on open/close
func (l *BadgerLogrusAdapter) Infof(f string, v ...interface{}) { l.Entry.Debugf(f, v...) }

func (l *BadgerLogrusAdapter) Debugf(f string, v ...interface{}) { l.Entry.Tracef(f, v...) }
