package log

import "github.com/sirupsen/logrus"

// BadgerLogrusAdapter satisfies badger.Logger so the report store's internal
// logging flows through the same logrus entry as the rest of the pipeline.
type BadgerLogrusAdapter struct {
	*logrus.Entry
}

func NewBadgerLogrusAdapter(entry *logrus.Entry) *BadgerLogrusAdapter {
	return &BadgerLogrusAdapter{entry}
}

func (l *BadgerLogrusAdapter) Errorf(f string, v ...interface{}) { l.Entry.Errorf(f, v...) }

// Warningf maps badger's warning level onto logrus's Warnf.
func (l *BadgerLogrusAdapter) Warningf(f string, v ...interface{}) { l.Entry.Warnf(f, v...) }

func (l *BadgerLogrusAdapter) Infof(f string, v ...interface{}) { l.Entry.Infof(f, v...) }

func (l *BadgerLogrusAdapter) Debugf(f string, v ...interface{}) { l.Entry.Debugf(f, v...) }
