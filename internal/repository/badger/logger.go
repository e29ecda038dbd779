package badger

import (
	badgerdb "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// zapLogger routes badger's internal logging to zap.
type zapLogger struct{ s *zap.SugaredLogger }

var _ badgerdb.Logger = zapLogger{}

func (l zapLogger) Errorf(f string, v ...any)   { l.s.Errorf(f, v...) }
func (l zapLogger) Warningf(f string, v ...any) { l.s.Warnf(f, v...) }
func (l zapLogger) Infof(f string, v ...any)    { l.s.Debugf(f, v...) }
func (l zapLogger) Debugf(f string, v ...any)   { l.s.Debugf(f, v...) }
