package store

import (
	"context"

	"github.com/google/uuid"
)

func (s *Store) CreateMedia(ctx context.Context, m Media) error {
	model := mediaModel{
		ID:          m.ID,
		CustomerID:  m.CustomerID,
		Type:        string(m.Type),
		FileName:    m.FileName,
		ContentType: m.ContentType,
		ObjectKey:   m.ObjectKey,
		URL:         m.URL,
		CreatorID:   m.CreatorID,
		ModifierID:  m.ModifierID,
		CreatedAt:   m.CreatedAt,
		ModifiedAt:  m.ModifiedAt,
	}
	return s.conn(ctx).Create(&model).Error
}

func (s *Store) GetMedia(ctx context.Context, id uuid.UUID) (Media, error) {
	var model mediaModel
	if err := s.conn(ctx).First(&model, "id = ?", id).Error; err != nil {
		return Media{}, notFound(err)
	}
	return model.toDomain(), nil
}

// ListMedia returns a customer's media, optionally filtered by type.
func (s *Store) ListMedia(ctx context.Context, customerID uuid.UUID, mediaType MediaType) ([]Media, error) {
	q := s.conn(ctx).Where("customer_id = ?", customerID)
	if mediaType != "" {
		q = q.Where("type = ?", string(mediaType))
	}
	var models []mediaModel
	if err := q.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]Media, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (s *Store) DeleteMedia(ctx context.Context, id uuid.UUID) error {
	result := s.conn(ctx).Delete(&mediaModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
