package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/agromart/agromart-backend/pkg/logger"
)

// maxLoggedSQL caps the statement text attached to a log line.
const maxLoggedSQL = 512

// queryLogger routes GORM diagnostics through the service logger. Only
// failed statements and statements slower than the threshold are logged.
type queryLogger struct {
	logg      *logger.Logger
	level     gormlogger.LogLevel
	threshold time.Duration
}

func newQueryLogger(logg *logger.Logger, threshold time.Duration) gormlogger.Interface {
	if logg == nil {
		return gormlogger.Discard
	}
	return &queryLogger{logg: logg, level: gormlogger.Warn, threshold: threshold}
}

func (q *queryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *q
	clone.level = level
	return &clone
}

func (q *queryLogger) Info(ctx context.Context, msg string, args ...any) {
	if q.level >= gormlogger.Info {
		q.logg.Debug(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Warn(ctx context.Context, msg string, args ...any) {
	if q.level >= gormlogger.Warn {
		q.logg.Warn(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Error(ctx context.Context, msg string, args ...any) {
	if q.level >= gormlogger.Error {
		q.logg.Error(ctx, "gorm", fmt.Errorf(msg, args...))
	}
}

func (q *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if q.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	slow := q.threshold > 0 && elapsed > q.threshold
	if !failed && !slow {
		return
	}

	statement, rows := fc()
	if len(statement) > maxLoggedSQL {
		statement = statement[:maxLoggedSQL] + "..."
	}
	ctx = q.logg.WithFields(ctx, map[string]any{
		"sql":         statement,
		"rows":        rows,
		"duration_ms": elapsed.Milliseconds(),
	})

	if q.level < gormlogger.Warn {
		return
	}
	if failed {
		q.logg.Warn(q.logg.WithField(ctx, "error", err.Error()), "db.query.failed")
		return
	}
	q.logg.Warn(ctx, "db.query.slow")
}
