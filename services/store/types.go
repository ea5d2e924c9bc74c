package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ResourceType enumerates the node variants of a content tree.
type ResourceType string

const (
	TypeRoot           ResourceType = "ROOT"
	TypeContentVersion ResourceType = "CONTENT_VERSION"
	TypeIntro          ResourceType = "INTRO"
	TypeLanguageMenu   ResourceType = "LANGUAGE_MENU"
	TypeLanguage       ResourceType = "LANGUAGE"
	TypeMenu           ResourceType = "MENU"
	TypeSlideshow      ResourceType = "SLIDESHOW"
	TypeSlideshowPDF   ResourceType = "SLIDESHOW_PDF"
	TypePage           ResourceType = "PAGE"
	TypeApplication    ResourceType = "APPLICATION"
	TypeResource       ResourceType = "RESOURCE"
	TypePDF            ResourceType = "PDF"
	TypeImage          ResourceType = "IMAGE"
	TypeVideo          ResourceType = "VIDEO"
	TypeText           ResourceType = "TEXT"
)

var resourceTypes = map[ResourceType]struct{}{
	TypeRoot: {}, TypeContentVersion: {}, TypeIntro: {}, TypeLanguageMenu: {}, TypeLanguage: {},
	TypeMenu: {}, TypeSlideshow: {}, TypeSlideshowPDF: {}, TypePage: {}, TypeApplication: {},
	TypeResource: {}, TypePDF: {}, TypeImage: {}, TypeVideo: {}, TypeText: {},
}

// ParseResourceType validates s as a resource type name.
func ParseResourceType(s string) (ResourceType, error) {
	t := ResourceType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := resourceTypes[t]; !ok {
		return "", fmt.Errorf("unknown resource type %q", s)
	}
	return t, nil
}

// IsLeaf reports whether nodes of this type carry content only and cannot have children.
func (t ResourceType) IsLeaf() bool {
	switch t {
	case TypeImage, TypeVideo, TypePDF, TypeText:
		return true
	default:
		return false
	}
}

// Resource is one node of a content tree.
type Resource struct {
	ID           uuid.UUID    `json:"id"`
	ParentID     *uuid.UUID   `json:"parentId,omitempty"`
	Type         ResourceType `json:"type"`
	Name         string       `json:"name"`
	Slug         string       `json:"slug"`
	OrderNumber  int          `json:"orderNumber"`
	Data         string       `json:"data,omitempty"`
	ProtectionID string       `json:"-"`
	CreatorID    string       `json:"creatorId"`
	ModifierID   string       `json:"lastModifierId"`
	CreatedAt    time.Time    `json:"createdAt"`
	ModifiedAt   time.Time    `json:"modifiedAt"`
}

// AttributeKind selects between the two key/value sets owned by a resource.
type AttributeKind string

const (
	KindProperty AttributeKind = "property"
	KindStyle    AttributeKind = "style"
)

func (k AttributeKind) table() string {
	if k == KindStyle {
		return "resource_styles"
	}
	return "resource_properties"
}

// Attribute is a property or style entry of a resource.
type Attribute struct {
	ID         uuid.UUID `json:"id"`
	ResourceID uuid.UUID `json:"resourceId"`
	Key        string    `json:"key"`
	Value      string    `json:"value"`
	CreatorID  string    `json:"creatorId"`
	ModifierID string    `json:"lastModifierId"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// Customer is the top-level tenant.
type Customer struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	CreatorID  string    `json:"creatorId"`
	ModifierID string    `json:"lastModifierId"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// Device is a physical kiosk or wall owned by a customer.
type Device struct {
	ID         uuid.UUID `json:"id"`
	CustomerID uuid.UUID `json:"customerId"`
	Name       string    `json:"name"`
	APIKey     string    `json:"apiKey,omitempty"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	CreatorID  string    `json:"creatorId"`
	ModifierID string    `json:"lastModifierId"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// DeviceMeta is a free-form key/value entry describing a device.
type DeviceMeta struct {
	ID         uuid.UUID `json:"id"`
	DeviceID   uuid.UUID `json:"deviceId"`
	Key        string    `json:"key"`
	Value      string    `json:"value"`
	CreatorID  string    `json:"creatorId"`
	ModifierID string    `json:"lastModifierId"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// Application binds a content tree to a device.
type Application struct {
	ID                     uuid.UUID  `json:"id"`
	DeviceID               uuid.UUID  `json:"deviceId"`
	Name                   string     `json:"name"`
	RootResourceID         uuid.UUID  `json:"rootResourceId"`
	ActiveContentVersionID *uuid.UUID `json:"activeContentVersionResourceId,omitempty"`
	CreatorID              string     `json:"creatorId"`
	ModifierID             string     `json:"lastModifierId"`
	CreatedAt              time.Time  `json:"createdAt"`
	ModifiedAt             time.Time  `json:"modifiedAt"`
}

// Lock is an advisory edit lock on a resource.
type Lock struct {
	ID            uuid.UUID `json:"id"`
	ApplicationID uuid.UUID `json:"applicationId"`
	ResourceID    uuid.UUID `json:"resourceId"`
	UserID        string    `json:"userId"`
	ExpiresAt     time.Time `json:"expiresAt"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Expired reports whether the lock no longer holds at now.
func (l Lock) Expired(now time.Time) bool {
	return l.ExpiresAt.Before(now)
}

// MediaType classifies an uploaded media file.
type MediaType string

const (
	MediaImage MediaType = "IMAGE"
	MediaVideo MediaType = "VIDEO"
	MediaPDF   MediaType = "PDF"
	MediaOther MediaType = "OTHER"
)

// Media is a file in a customer's media library.
type Media struct {
	ID          uuid.UUID `json:"id"`
	CustomerID  uuid.UUID `json:"customerId"`
	Type        MediaType `json:"type"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	ObjectKey   string    `json:"-"`
	URL         string    `json:"url"`
	CreatorID   string    `json:"creatorId"`
	ModifierID  string    `json:"lastModifierId"`
	CreatedAt   time.Time `json:"createdAt"`
	ModifiedAt  time.Time `json:"modifiedAt"`
}
