package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ahmed20kamel/project-management-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type widget struct {
	ID   uint   `gorm:"primaryKey"`
	Code string `gorm:"uniqueIndex;size:32"`
}

func TestOpen_SQLite(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	gdb, err := Open(config.DatabaseConfig{
		Driver:          "sqlite",
		DSN:             config.Secret("file:open_test?mode=memory&cache=shared"),
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: config.Duration(time.Minute),
		LogLevel:        "warn",
	}, zap.New(core))
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(gdb) })

	assert.NoError(t, Ping(gdb))
	assert.Equal(t, 1, observed.FilterMessage("database connected").Len())

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	assert.Equal(t, 5, sqlDB.Stats().MaxOpenConnections)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "mysql", DSN: "x"}, nil)
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestMigrate(t *testing.T) {
	gdb := NewTestDB(t)
	assert.ErrorIs(t, Migrate(gdb), ErrNoModels)

	require.NoError(t, Migrate(gdb, &widget{}))
	assert.True(t, gdb.Migrator().HasTable(&widget{}))
}

func TestNewTestDB_Isolated(t *testing.T) {
	a := NewTestDB(t, &widget{})
	b := NewTestDB(t, &widget{})

	require.NoError(t, a.Create(&widget{Code: "w-1"}).Error)

	var count int64
	require.NoError(t, b.Model(&widget{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestIsDuplicate(t *testing.T) {
	gdb := NewTestDB(t, &widget{})

	require.NoError(t, gdb.Create(&widget{Code: "dup"}).Error)
	err := gdb.Create(&widget{Code: "dup"}).Error
	require.Error(t, err)
	assert.True(t, IsDuplicate(err))
	assert.False(t, IsDuplicate(errors.New("other")))
}

func TestIsNotFound(t *testing.T) {
	gdb := NewTestDB(t, &widget{})

	var w widget
	err := gdb.First(&w, 999).Error
	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(nil))
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]logger.LogLevel{
		"silent":  logger.Silent,
		"error":   logger.Error,
		"WARN":    logger.Warn,
		"info":    logger.Info,
		"verbose": logger.Warn,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLogger_Trace(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	l := NewLogger(zap.New(core), logger.Warn)
	ctx := context.Background()
	sql := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(ctx, time.Now(), sql, nil)
	assert.Zero(t, observed.Len(), "fast successful queries are quiet at warn")

	l.Trace(ctx, time.Now(), sql, gorm.ErrRecordNotFound)
	assert.Zero(t, observed.Len(), "not found is not an error")

	l.Trace(ctx, time.Now(), sql, errors.New("syntax error"))
	assert.Equal(t, 1, observed.FilterMessage("query failed").Len())

	l.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	assert.Equal(t, 1, observed.FilterMessage("slow query").Len())

	l.LogMode(logger.Info).Trace(ctx, time.Now(), sql, nil)
	assert.Equal(t, 1, observed.FilterMessage("query").Len())

	l.LogMode(logger.Silent).Trace(ctx, time.Now(), sql, errors.New("ignored"))
	assert.Equal(t, 1, observed.FilterMessage("query failed").Len())
}
