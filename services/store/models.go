package store

import (
	"time"

	"github.com/google/uuid"
)

type resourceModel struct {
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
	CreatedAt    time.Time  `gorm:"not null"`
	ModifiedAt   time.Time  `gorm:"not null"`
}

func (resourceModel) TableName() string { return "resources" }

func (m resourceModel) toDomain() Resource {
	return Resource{
		ID:           m.ID,
		ParentID:     m.ParentID,
		Type:         ResourceType(m.Type),
		Name:         m.Name,
		Slug:         m.Slug,
		OrderNumber:  m.OrderNumber,
		Data:         m.Data,
		ProtectionID: m.ProtectionID,
		CreatorID:    m.CreatorID,
		ModifierID:   m.ModifierID,
		CreatedAt:    m.CreatedAt,
		ModifiedAt:   m.ModifiedAt,
	}
}

func resourceFromDomain(r Resource) resourceModel {
	return resourceModel{
		ID:           r.ID,
		ParentID:     r.ParentID,
		Type:         string(r.Type),
		Name:         r.Name,
		Slug:         r.Slug,
		OrderNumber:  r.OrderNumber,
		Data:         r.Data,
		ProtectionID: r.ProtectionID,
		CreatorID:    r.CreatorID,
		ModifierID:   r.ModifierID,
		CreatedAt:    r.CreatedAt,
		ModifiedAt:   r.ModifiedAt,
	}
}

// attributeModel is used for queries against both attribute tables; the table
// is selected per call from the AttributeKind.
type attributeModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ResourceID uuid.UUID `gorm:"type:uuid;not null"`
	Key        string    `gorm:"type:text;not null"`
	Value      string    `gorm:"type:text"`
	CreatorID  string    `gorm:"type:text;not null"`
	ModifierID string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"not null"`
	ModifiedAt time.Time `gorm:"not null"`
}

func (m attributeModel) toDomain() Attribute {
	return Attribute{
		ID:         m.ID,
		ResourceID: m.ResourceID,
		Key:        m.Key,
		Value:      m.Value,
		CreatorID:  m.CreatorID,
		ModifierID: m.ModifierID,
		CreatedAt:  m.CreatedAt,
		ModifiedAt: m.ModifiedAt,
	}
}

func attributeFromDomain(a Attribute) attributeModel {
	return attributeModel{
		ID:         a.ID,
		ResourceID: a.ResourceID,
		Key:        a.Key,
		Value:      a.Value,
		CreatorID:  a.CreatorID,
		ModifierID: a.ModifierID,
		CreatedAt:  a.CreatedAt,
		ModifiedAt: a.ModifiedAt,
	}
}

// propertyTable and styleTable only carry schema for AutoMigrate; index names
// must be unique per database.
type propertyTable struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ResourceID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_resource_properties_key,priority:1"`
	Key        string    `gorm:"type:text;not null;uniqueIndex:ux_resource_properties_key,priority:2"`
	Value      string    `gorm:"type:text"`
	CreatorID  string    `gorm:"type:text;not null"`
	ModifierID string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"not null"`
	ModifiedAt time.Time `gorm:"not null"`
}

func (propertyTable) TableName() string { return KindProperty.table() }

type styleTable struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ResourceID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_resource_styles_key,priority:1"`
	Key        string    `gorm:"type:text;not null;uniqueIndex:ux_resource_styles_key,priority:2"`
	Value      string    `gorm:"type:text"`
	CreatorID  string    `gorm:"type:text;not null"`
	ModifierID string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"not null"`
	ModifiedAt time.Time `gorm:"not null"`
}

func (styleTable) TableName() string { return KindStyle.table() }

type customerModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name       string    `gorm:"type:text;not null"`
	ImageURL   string    `gorm:"type:text"`
	CreatorID  string    `gorm:"type:text;not null"`
	ModifierID string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"not null"`
	ModifiedAt time.Time `gorm:"not null"`
}

func (customerModel) TableName() string { return "customers" }

func (m customerModel) toDomain() Customer {
	return Customer{
		ID:         m.ID,
		Name:       m.Name,
		ImageURL:   m.ImageURL,
		CreatorID:  m.CreatorID,
		ModifierID: m.ModifierID,
		CreatedAt:  m.CreatedAt,
		ModifiedAt: m.ModifiedAt,
	}
}

type deviceModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	CustomerID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name       string    `gorm:"type:text;not null"`
	APIKey     string    `gorm:"type:text"`
	ImageURL   string    `gorm:"type:text"`
	CreatorID  string    `gorm:"type:text;not null"`
	ModifierID string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"not null"`
	ModifiedAt time.Time `gorm:"not null"`
}

func (deviceModel) TableName() string { return "devices" }

func (m deviceModel) toDomain() Device {
	return Device{
		ID:         m.ID,
		CustomerID: m.CustomerID,
		Name:       m.Name,
		APIKey:     m.APIKey,
		ImageURL:   m.ImageURL,
		CreatorID:  m.CreatorID,
		ModifierID: m.ModifierID,
		CreatedAt:  m.CreatedAt,
		ModifiedAt: m.ModifiedAt,
	}
}

type deviceMetaModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	DeviceID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_device_metas_key,priority:1"`
	Key        string    `gorm:"type:text;not null;uniqueIndex:ux_device_metas_key,priority:2"`
	Value      string    `gorm:"type:text"`
	CreatorID  string    `gorm:"type:text;not null"`
	ModifierID string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"not null"`
	ModifiedAt time.Time `gorm:"not null"`
}

func (deviceMetaModel) TableName() string { return "device_metas" }

func (m deviceMetaModel) toDomain() DeviceMeta {
	return DeviceMeta{
		ID:         m.ID,
		DeviceID:   m.DeviceID,
		Key:        m.Key,
		Value:      m.Value,
		CreatorID:  m.CreatorID,
		ModifierID: m.ModifierID,
		CreatedAt:  m.CreatedAt,
		ModifiedAt: m.ModifiedAt,
	}
}

type applicationModel struct {
	ID                     uuid.UUID  `gorm:"type:uuid;primaryKey"`
	DeviceID               uuid.UUID  `gorm:"type:uuid;not null;index"`
	Name                   string     `gorm:"type:text;not null"`
	RootResourceID         uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex"`
	ActiveContentVersionID *uuid.UUID `gorm:"type:uuid"`
	CreatorID              string     `gorm:"type:text;not null"`
	ModifierID             string     `gorm:"type:text;not null"`
	CreatedAt              time.Time  `gorm:"not null"`
	ModifiedAt             time.Time  `gorm:"not null"`
}

func (applicationModel) TableName() string { return "applications" }

func (m applicationModel) toDomain() Application {
	return Application{
		ID:                     m.ID,
		DeviceID:               m.DeviceID,
		Name:                   m.Name,
		RootResourceID:         m.RootResourceID,
		ActiveContentVersionID: m.ActiveContentVersionID,
		CreatorID:              m.CreatorID,
		ModifierID:             m.ModifierID,
		CreatedAt:              m.CreatedAt,
		ModifiedAt:             m.ModifiedAt,
	}
}

func applicationFromDomain(a Application) applicationModel {
	return applicationModel{
		ID:                     a.ID,
		DeviceID:               a.DeviceID,
		Name:                   a.Name,
		RootResourceID:         a.RootResourceID,
		ActiveContentVersionID: a.ActiveContentVersionID,
		CreatorID:              a.CreatorID,
		ModifierID:             a.ModifierID,
		CreatedAt:              a.CreatedAt,
		ModifiedAt:             a.ModifiedAt,
	}
}

type lockModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	ApplicationID uuid.UUID `gorm:"type:uuid;not null;index"`
	ResourceID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	UserID        string    `gorm:"type:text;not null"`
	ExpiresAt     time.Time `gorm:"not null;index"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (lockModel) TableName() string { return "resource_locks" }

func (m lockModel) toDomain() Lock {
	return Lock{
		ID:            m.ID,
		ApplicationID: m.ApplicationID,
		ResourceID:    m.ResourceID,
		UserID:        m.UserID,
		ExpiresAt:     m.ExpiresAt,
		CreatedAt:     m.CreatedAt,
	}
}

type mediaModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	CustomerID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Type        string    `gorm:"type:text;not null"`
	FileName    string    `gorm:"type:text;not null"`
	ContentType string    `gorm:"type:text;not null"`
	ObjectKey   string    `gorm:"type:text;not null"`
	URL         string    `gorm:"type:text;not null"`
	CreatorID   string    `gorm:"type:text;not null"`
	ModifierID  string    `gorm:"type:text;not null"`
	CreatedAt   time.Time `gorm:"not null"`
	ModifiedAt  time.Time `gorm:"not null"`
}

func (mediaModel) TableName() string { return "medias" }

func (m mediaModel) toDomain() Media {
	return Media{
		ID:          m.ID,
		CustomerID:  m.CustomerID,
		Type:        MediaType(m.Type),
		FileName:    m.FileName,
		ContentType: m.ContentType,
		ObjectKey:   m.ObjectKey,
		URL:         m.URL,
		CreatorID:   m.CreatorID,
		ModifierID:  m.ModifierID,
		CreatedAt:   m.CreatedAt,
		ModifiedAt:  m.ModifiedAt,
	}
}
