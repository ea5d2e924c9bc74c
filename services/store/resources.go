package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

// CreateResource inserts a new node.
func (s *Store) CreateResource(ctx context.Context, r Resource) error {
	model := resourceFromDomain(r)
	return s.conn(ctx).Create(&model).Error
}

// GetResource loads a node by id.
func (s *Store) GetResource(ctx context.Context, id uuid.UUID) (Resource, error) {
	var model resourceModel
	if err := s.conn(ctx).First(&model, "id = ?", id).Error; err != nil {
		return Resource{}, notFound(err)
	}
	return model.toDomain(), nil
}

// GetResourceForUpdate loads a node and holds a row lock on it until the
// surrounding transaction ends. Dialects without row locks ignore the clause.
func (s *Store) GetResourceForUpdate(ctx context.Context, id uuid.UUID) (Resource, error) {
	var model resourceModel
	err := s.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, "id = ?", id).Error
	if err != nil {
		return Resource{}, notFound(err)
	}
	return model.toDomain(), nil
}

// GetResources loads the given nodes keyed by id. Unknown ids are skipped.
func (s *Store) GetResources(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Resource, error) {
	out := make(map[uuid.UUID]Resource, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var models []resourceModel
	if err := s.conn(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}
	for _, m := range models {
		out[m.ID] = m.toDomain()
	}
	return out, nil
}

// UpdateResource replaces every mutable column of an existing node.
func (s *Store) UpdateResource(ctx context.Context, r Resource) error {
	result := s.conn(ctx).Model(&resourceModel{}).Where("id = ?", r.ID).Updates(map[string]any{
		"parent_id":    r.ParentID,
		"type":         string(r.Type),
		"name":         r.Name,
		"slug":         r.Slug,
		"order_number": r.OrderNumber,
		"data":         r.Data,
		"modifier_id":  r.ModifierID,
		"modified_at":  r.ModifiedAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteResources removes the given nodes in the order supplied, so callers
// pass children before their parents.
func (s *Store) DeleteResources(ctx context.Context, ids []uuid.UUID) error {
	for _, id := range ids {
		if err := s.conn(ctx).Delete(&resourceModel{}, "id = ?", id).Error; err != nil {
			return err
		}
	}
	return nil
}

// ListChildren returns the children of parentID ordered by order number. When
// types are given only children of those types are returned.
func (s *Store) ListChildren(ctx context.Context, parentID uuid.UUID, types ...ResourceType) ([]Resource, error) {
	q := s.conn(ctx).Where("parent_id = ?", parentID)
	if len(types) > 0 {
		names := make([]string, 0, len(types))
		for _, t := range types {
			names = append(names, string(t))
		}
		q = q.Where("type IN ?", names)
	}

	var models []resourceModel
	if err := q.Order("order_number ASC").Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return toResources(models), nil
}

// ListChildrenOf returns the children of every given parent in one query,
// ordered by parent then order number.
func (s *Store) ListChildrenOf(ctx context.Context, parentIDs []uuid.UUID) ([]Resource, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	var models []resourceModel
	err := s.conn(ctx).
		Where("parent_id IN ?", parentIDs).
		Order("parent_id ASC").Order("order_number ASC").Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return toResources(models), nil
}

// FindByParentAndSlug returns the first child of parentID with the given slug.
func (s *Store) FindByParentAndSlug(ctx context.Context, parentID uuid.UUID, slug string) (Resource, error) {
	var model resourceModel
	err := s.conn(ctx).Where("parent_id = ? AND slug = ?", parentID, slug).Order("order_number ASC").First(&model).Error
	if err != nil {
		return Resource{}, notFound(err)
	}
	return model.toDomain(), nil
}

// FindByParentAndName returns the first child of parentID with the given name.
func (s *Store) FindByParentAndName(ctx context.Context, parentID uuid.UUID, name string) (Resource, error) {
	var model resourceModel
	err := s.conn(ctx).Where("parent_id = ? AND name = ?", parentID, name).Order("order_number ASC").First(&model).Error
	if err != nil {
		return Resource{}, notFound(err)
	}
	return model.toDomain(), nil
}

// SubtreeIDs returns rootID and the ids of all its descendants in breadth
// first order, so every parent precedes its children. The walk is iterative,
// one query per tree level.
func (s *Store) SubtreeIDs(ctx context.Context, rootID uuid.UUID) ([]uuid.UUID, error) {
	ids := []uuid.UUID{rootID}
	seen := map[uuid.UUID]struct{}{rootID: {}}
	frontier := []uuid.UUID{rootID}

	for len(frontier) > 0 {
		var next []uuid.UUID
		err := s.conn(ctx).Model(&resourceModel{}).
			Where("parent_id IN ?", frontier).
			Order("order_number ASC").Order("id ASC").
			Pluck("id", &next).Error
		if err != nil {
			return nil, err
		}
		frontier = frontier[:0]
		for _, id := range next {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
			frontier = append(frontier, id)
		}
	}
	return ids, nil
}

func toResources(models []resourceModel) []Resource {
	out := make([]Resource, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out
}
