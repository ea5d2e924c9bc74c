package store

import (
	"context"

	"github.com/google/uuid"
)

func (s *Store) CreateApplication(ctx context.Context, a Application) error {
	model := applicationFromDomain(a)
	return s.conn(ctx).Create(&model).Error
}

func (s *Store) GetApplication(ctx context.Context, id uuid.UUID) (Application, error) {
	var model applicationModel
	if err := s.conn(ctx).First(&model, "id = ?", id).Error; err != nil {
		return Application{}, notFound(err)
	}
	return model.toDomain(), nil
}

// GetApplicationByRoot returns the application whose tree starts at rootID.
func (s *Store) GetApplicationByRoot(ctx context.Context, rootID uuid.UUID) (Application, error) {
	var model applicationModel
	if err := s.conn(ctx).First(&model, "root_resource_id = ?", rootID).Error; err != nil {
		return Application{}, notFound(err)
	}
	return model.toDomain(), nil
}

func (s *Store) ListApplications(ctx context.Context, deviceID uuid.UUID) ([]Application, error) {
	var models []applicationModel
	if err := s.conn(ctx).Where("device_id = ?", deviceID).Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]Application, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (s *Store) CountApplications(ctx context.Context, deviceID uuid.UUID) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&applicationModel{}).Where("device_id = ?", deviceID).Count(&n).Error
	return n, err
}

func (s *Store) UpdateApplication(ctx context.Context, a Application) error {
	result := s.conn(ctx).Model(&applicationModel{}).Where("id = ?", a.ID).Updates(map[string]any{
		"name":                      a.Name,
		"active_content_version_id": a.ActiveContentVersionID,
		"modifier_id":               a.ModifierID,
		"modified_at":               a.ModifiedAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearActiveContentVersion unsets the active content version of any
// application pointing at one of the given resources.
func (s *Store) ClearActiveContentVersion(ctx context.Context, resourceIDs []uuid.UUID) error {
	if len(resourceIDs) == 0 {
		return nil
	}
	return s.conn(ctx).Model(&applicationModel{}).
		Where("active_content_version_id IN ?", resourceIDs).
		Update("active_content_version_id", nil).Error
}

func (s *Store) DeleteApplication(ctx context.Context, id uuid.UUID) error {
	result := s.conn(ctx).Delete(&applicationModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
