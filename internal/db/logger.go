package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmed20kamel/project-management-api/internal/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SlowQueryThreshold marks queries logged as slow at warn level.
const SlowQueryThreshold = 200 * time.Millisecond

// zapLogger adapts zap to gorm's logger.Interface.
type zapLogger struct {
	log   *zap.Logger
	level logger.LogLevel
}

// NewLogger returns a gorm logger that writes through log.
func NewLogger(log *zap.Logger, level logger.LogLevel) logger.Interface {
	return &zapLogger{log: log.Named("gorm"), level: level}
}

func (l *zapLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &zapLogger{log: l.log, level: level}
}

func (l *zapLogger) Info(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Info {
		l.log.Info(fmt.Sprintf(msg, args...), logging.ContextFields(ctx)...)
	}
}

func (l *zapLogger) Warn(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Warn {
		l.log.Warn(fmt.Sprintf(msg, args...), logging.ContextFields(ctx)...)
	}
}

func (l *zapLogger) Error(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Error {
		l.log.Error(fmt.Sprintf(msg, args...), logging.ContextFields(ctx)...)
	}
}

// Trace logs failed statements at error, slow ones at warn and everything
// at debug when the level is info. Not-found is not a failure.
func (l *zapLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	fields := func() []zap.Field {
		sql, rows := fc()
		return append(logging.ContextFields(ctx),
			zap.Duration("elapsed", elapsed),
			zap.Int64("rows", rows),
			zap.String("sql", sql),
		)
	}

	switch {
	case err != nil && l.level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		l.log.Error("query failed", append(fields(), zap.Error(err))...)
	case elapsed > SlowQueryThreshold && l.level >= logger.Warn:
		l.log.Warn("slow query", fields()...)
	case l.level >= logger.Info:
		l.log.Debug("query", fields()...)
	}
}
