package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upDeviceMetas, downDeviceMetas)
}

type DeviceMeta struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	DeviceID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_device_metas_key,priority:1"`
	Key        string    `gorm:"type:text;not null;uniqueIndex:ux_device_metas_key,priority:2"`
	Value      string    `gorm:"type:text"`
	CreatorID  string    `gorm:"type:text;not null"`
	ModifierID string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"type:timestamptz;not null;default:now()"`
	ModifiedAt time.Time `gorm:"type:timestamptz;not null;default:now()"`
	Device     Device    `gorm:"foreignKey:DeviceID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func upDeviceMetas(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openTx(tx)
	if err != nil {
		return err
	}
	db := gormDB.WithContext(ctx)
	if err := db.AutoMigrate(&DeviceMeta{}); err != nil {
		return err
	}
	if m := db.Migrator(); !m.HasConstraint(&DeviceMeta{}, "Device") {
		return m.CreateConstraint(&DeviceMeta{}, "Device")
	}
	return nil
}

func downDeviceMetas(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openTx(tx)
	if err != nil {
		return err
	}
	return gormDB.WithContext(ctx).Migrator().DropTable(&DeviceMeta{})
}
