package logging

import (
	"time"

	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"
)

// SlowQueryThreshold is the duration above which gorm reports a query as slow
const SlowQueryThreshold = 200 * time.Millisecond

type gormWriter struct {
	logger zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.logger.Warn().Msgf(format, args...)
}

// NewGormLogger routes gorm warnings, errors and slow queries to logger.
// Lookups that find nothing are normal outcomes and are not logged.
func NewGormLogger(logger zerolog.Logger) gormlogger.Interface {
	return gormlogger.New(
		gormWriter{logger: logger.With().Str("component", "gorm").Logger()},
		gormlogger.Config{
			SlowThreshold:             SlowQueryThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
}
