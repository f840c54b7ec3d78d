package audit

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/avelardi/atelia-backend/pkg/db/models"
	"github.com/avelardi/atelia-backend/pkg/enums"
)

func setupAuditDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.AuditLog{}))
	return db
}

func TestRecordAndListByTarget(t *testing.T) {
	db := setupAuditDB(t)
	rec := NewRecorder(db)
	admin := uuid.New()
	target := uuid.New()

	err := rec.Record(context.Background(), nil, Entry{
		ActorID:    admin,
		ActorRole:  enums.ActorRoleAdmin,
		Action:     "dispute.status_changed",
		TargetType: "dispute",
		TargetID:   target,
		Before:     map[string]string{"status": "open"},
		After:      map[string]string{"status": "investigating"},
	})
	require.NoError(t, err)

	rows, err := rec.ListByTarget(context.Background(), target, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "dispute.status_changed", rows[0].Action)
	require.Contains(t, string(rows[0].BeforeValue), "open")
	require.Contains(t, string(rows[0].AfterValue), "investigating")
}

func TestRecordValidation(t *testing.T) {
	db := setupAuditDB(t)
	rec := NewRecorder(db)

	err := rec.Record(context.Background(), nil, Entry{
		ActorRole:  enums.ActorRoleAdmin,
		Action:     "dispute.resolved",
		TargetType: "dispute",
		TargetID:   uuid.New(),
	})
	require.Error(t, err)

	err = rec.Record(context.Background(), nil, Entry{
		ActorID:    uuid.New(),
		ActorRole:  enums.ActorRoleAdmin,
		TargetType: "dispute",
		TargetID:   uuid.New(),
	})
	require.Error(t, err)
}

func TestRecordUsesTransaction(t *testing.T) {
	db := setupAuditDB(t)
	rec := NewRecorder(db)
	target := uuid.New()

	tx := db.Begin()
	require.NoError(t, tx.Error)
	err := rec.Record(context.Background(), tx, Entry{
		ActorID:    uuid.New(),
		ActorRole:  enums.ActorRoleAdmin,
		Action:     "dispute.resolved",
		TargetType: "dispute",
		TargetID:   target,
	})
	require.NoError(t, err)
	tx.Rollback()

	rows, err := rec.ListByTarget(context.Background(), target, 10)
	require.NoError(t, err)
	require.Empty(t, rows)
}
