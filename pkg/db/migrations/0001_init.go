package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

type Customer struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name       string    `gorm:"type:text;not null"`
	ImageURL   string    `gorm:"type:text"`
	CreatorID  string    `gorm:"type:text;not null"`
	ModifierID string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"type:timestamptz;not null;default:now()"`
	ModifiedAt time.Time `gorm:"type:timestamptz;not null;default:now()"`
}

type Device struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	CustomerID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name       string    `gorm:"type:text;not null"`
	APIKey     string    `gorm:"type:text"`
	ImageURL   string    `gorm:"type:text"`
	CreatorID  string    `gorm:"type:text;not null"`
	ModifierID string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"type:timestamptz;not null;default:now()"`
	ModifiedAt time.Time `gorm:"type:timestamptz;not null;default:now()"`
	Customer   Customer  `gorm:"foreignKey:CustomerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

type Resource struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ParentID     *uuid.UUID `gorm:"type:uuid;index:idx_resources_parent_slug,priority:1;index:idx_resources_parent_name,priority:1"`
	Type         string     `gorm:"type:text;not null"`
	Name         string     `gorm:"type:text;not null;index:idx_resources_parent_name,priority:2"`
	Slug         string     `gorm:"type:text;not null;index:idx_resources_parent_slug,priority:2"`
	OrderNumber  int        `gorm:"not null;default:0"`
	Data         string     `gorm:"type:text"`
	ProtectionID string     `gorm:"type:text"`
	CreatorID    string     `gorm:"type:text;not null"`
	ModifierID   string     `gorm:"type:text;not null"`
	CreatedAt    time.Time  `gorm:"type:timestamptz;not null;default:now()"`
	ModifiedAt   time.Time  `gorm:"type:timestamptz;not null;default:now()"`
	Parent       *Resource  `gorm:"foreignKey:ParentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

type ResourceProperty struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ResourceID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_resource_properties_key,priority:1"`
	Key        string    `gorm:"type:text;not null;uniqueIndex:ux_resource_properties_key,priority:2"`
	Value      string    `gorm:"type:text"`
	CreatorID  string    `gorm:"type:text;not null"`
	ModifierID string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"type:timestamptz;not null;default:now()"`
	ModifiedAt time.Time `gorm:"type:timestamptz;not null;default:now()"`
	Resource   Resource  `gorm:"foreignKey:ResourceID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type ResourceStyle struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ResourceID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_resource_styles_key,priority:1"`
	Key        string    `gorm:"type:text;not null;uniqueIndex:ux_resource_styles_key,priority:2"`
	Value      string    `gorm:"type:text"`
	CreatorID  string    `gorm:"type:text;not null"`
	ModifierID string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"type:timestamptz;not null;default:now()"`
	ModifiedAt time.Time `gorm:"type:timestamptz;not null;default:now()"`
	Resource   Resource  `gorm:"foreignKey:ResourceID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type Application struct {
	ID                     uuid.UUID  `gorm:"type:uuid;primaryKey"`
	DeviceID               uuid.UUID  `gorm:"type:uuid;not null;index"`
	Name                   string     `gorm:"type:text;not null"`
	RootResourceID         uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex"`
	ActiveContentVersionID *uuid.UUID `gorm:"type:uuid"`
	CreatorID              string     `gorm:"type:text;not null"`
	ModifierID             string     `gorm:"type:text;not null"`
	CreatedAt              time.Time  `gorm:"type:timestamptz;not null;default:now()"`
	ModifiedAt             time.Time  `gorm:"type:timestamptz;not null;default:now()"`
	Device                 Device     `gorm:"foreignKey:DeviceID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	RootResource           Resource   `gorm:"foreignKey:RootResourceID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	ActiveContentVersion   *Resource  `gorm:"foreignKey:ActiveContentVersionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

type ResourceLock struct {
	ID            uuid.UUID   `gorm:"type:uuid;primaryKey"`
	ApplicationID uuid.UUID   `gorm:"type:uuid;not null;index"`
	ResourceID    uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex"`
	UserID        string      `gorm:"type:text;not null"`
	ExpiresAt     time.Time   `gorm:"type:timestamptz;not null;index"`
	CreatedAt     time.Time   `gorm:"type:timestamptz;not null;default:now()"`
	Application   Application `gorm:"foreignKey:ApplicationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Resource      Resource    `gorm:"foreignKey:ResourceID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type Media struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	CustomerID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Type        string    `gorm:"type:text;not null"`
	FileName    string    `gorm:"type:text;not null"`
	ContentType string    `gorm:"type:text;not null"`
	ObjectKey   string    `gorm:"type:text;not null"`
	URL         string    `gorm:"type:text;not null"`
	CreatorID   string    `gorm:"type:text;not null"`
	ModifierID  string    `gorm:"type:text;not null"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null;default:now()"`
	ModifiedAt  time.Time `gorm:"type:timestamptz;not null;default:now()"`
	Customer    Customer  `gorm:"foreignKey:CustomerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (Media) TableName() string { return "medias" }

type Audit struct {
	ID      int64             `gorm:"type:bigserial;primaryKey"`
	Actor   string            `gorm:"type:text;not null"`
	Action  string            `gorm:"type:text;not null"`
	Obj     string            `gorm:"type:text;index"`
	Details datatypes.JSONMap `gorm:"type:jsonb"`
	At      time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime;index"`
}

func (Audit) TableName() string { return "audit" }

type constraint struct {
	model any
	name  string
}

func openTx(tx *sql.Tx) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
}

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openTx(tx)
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).AutoMigrate(
		&Customer{},
		&Device{},
		&Resource{},
		&ResourceProperty{},
		&ResourceStyle{},
		&Application{},
		&ResourceLock{},
		&Media{},
		&Audit{},
	); err != nil {
		return err
	}

	m := gormDB.WithContext(ctx).Migrator()
	for _, c := range []constraint{
		{&Device{}, "Customer"},
		{&Resource{}, "Parent"},
		{&ResourceProperty{}, "Resource"},
		{&ResourceStyle{}, "Resource"},
		{&Application{}, "Device"},
		{&Application{}, "RootResource"},
		{&Application{}, "ActiveContentVersion"},
		{&ResourceLock{}, "Application"},
		{&ResourceLock{}, "Resource"},
		{&Media{}, "Customer"},
	} {
		if m.HasConstraint(c.model, c.name) {
			continue
		}
		if err := m.CreateConstraint(c.model, c.name); err != nil {
			return err
		}
	}

	return nil
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openTx(tx)
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Migrator().DropTable(
		&Audit{},
		&Media{},
		&ResourceLock{},
		&Application{},
		&ResourceStyle{},
		&ResourceProperty{},
		&Resource{},
		&Device{},
		&Customer{},
	)
}
