package store

import (
	"context"

	"github.com/google/uuid"
)

// ListAttributes returns the properties or styles of one resource ordered by key.
func (s *Store) ListAttributes(ctx context.Context, kind AttributeKind, resourceID uuid.UUID) ([]Attribute, error) {
	var models []attributeModel
	err := s.conn(ctx).Table(kind.table()).
		Where("resource_id = ?", resourceID).
		Order("key ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return toAttributes(models), nil
}

// ListAttributesOf returns the properties or styles of every given resource.
func (s *Store) ListAttributesOf(ctx context.Context, kind AttributeKind, resourceIDs []uuid.UUID) ([]Attribute, error) {
	if len(resourceIDs) == 0 {
		return nil, nil
	}
	var models []attributeModel
	err := s.conn(ctx).Table(kind.table()).
		Where("resource_id IN ?", resourceIDs).
		Order("resource_id ASC").Order("key ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return toAttributes(models), nil
}

func (s *Store) CreateAttribute(ctx context.Context, kind AttributeKind, a Attribute) error {
	model := attributeFromDomain(a)
	return s.conn(ctx).Table(kind.table()).Create(&model).Error
}

// UpdateAttribute rewrites the value and modification stamp of an entry.
func (s *Store) UpdateAttribute(ctx context.Context, kind AttributeKind, a Attribute) error {
	result := s.conn(ctx).Table(kind.table()).Where("id = ?", a.ID).Updates(map[string]any{
		"value":       a.Value,
		"modifier_id": a.ModifierID,
		"modified_at": a.ModifiedAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAttributes(ctx context.Context, kind AttributeKind, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return s.conn(ctx).Table(kind.table()).Where("id IN ?", ids).Delete(&attributeModel{}).Error
}

// DeleteAttributesOf removes every property or style owned by the given resources.
func (s *Store) DeleteAttributesOf(ctx context.Context, kind AttributeKind, resourceIDs []uuid.UUID) error {
	if len(resourceIDs) == 0 {
		return nil
	}
	return s.conn(ctx).Table(kind.table()).Where("resource_id IN ?", resourceIDs).Delete(&attributeModel{}).Error
}

func toAttributes(models []attributeModel) []Attribute {
	out := make([]Attribute, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out
}
