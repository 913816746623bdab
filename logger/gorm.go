package logger

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes gorm's logs through Log.
type GormLogger struct {
	Level         gormlogger.LogLevel
	SlowThreshold time.Duration
}

func NewGormLogger() *GormLogger {
	return &GormLogger{Level: gormlogger.Warn, SlowThreshold: 200 * time.Millisecond}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *l
	c.Level = level
	return &c
}

func (l *GormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.Level >= gormlogger.Info {
		Log.Infof(msg, args...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.Level >= gormlogger.Warn {
		Log.Warnf(msg, args...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.Level >= gormlogger.Error {
		Log.Errorf(msg, args...)
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.Level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.Level >= gormlogger.Error:
		sql, rows := fc()
		Log.Errorw("gorm query failed", "err", err, "elapsed", elapsed, "rows", rows, "sql", sql)
	case l.SlowThreshold > 0 && elapsed > l.SlowThreshold && l.Level >= gormlogger.Warn:
		sql, rows := fc()
		Log.Warnw("gorm slow query", "elapsed", elapsed, "rows", rows, "sql", sql)
	case l.Level >= gormlogger.Info:
		sql, rows := fc()
		Log.Debugw("gorm query", "elapsed", elapsed, "rows", rows, "sql", sql)
	}
}
