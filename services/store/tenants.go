package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (s *Store) CreateCustomer(ctx context.Context, c Customer) error {
	model := customerModel{
		ID:         c.ID,
		Name:       c.Name,
		ImageURL:   c.ImageURL,
		CreatorID:  c.CreatorID,
		ModifierID: c.ModifierID,
		CreatedAt:  c.CreatedAt,
		ModifiedAt: c.ModifiedAt,
	}
	return s.conn(ctx).Create(&model).Error
}

func (s *Store) GetCustomer(ctx context.Context, id uuid.UUID) (Customer, error) {
	var model customerModel
	if err := s.conn(ctx).First(&model, "id = ?", id).Error; err != nil {
		return Customer{}, notFound(err)
	}
	return model.toDomain(), nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]Customer, error) {
	var models []customerModel
	if err := s.conn(ctx).Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]Customer, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, c Customer) error {
	result := s.conn(ctx).Model(&customerModel{}).Where("id = ?", c.ID).Updates(map[string]any{
		"name":        c.Name,
		"image_url":   c.ImageURL,
		"modifier_id": c.ModifierID,
		"modified_at": c.ModifiedAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	result := s.conn(ctx).Delete(&customerModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) CountDevices(ctx context.Context, customerID uuid.UUID) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&deviceModel{}).Where("customer_id = ?", customerID).Count(&n).Error
	return n, err
}

func (s *Store) CreateDevice(ctx context.Context, d Device) error {
	model := deviceModel{
		ID:         d.ID,
		CustomerID: d.CustomerID,
		Name:       d.Name,
		APIKey:     d.APIKey,
		ImageURL:   d.ImageURL,
		CreatorID:  d.CreatorID,
		ModifierID: d.ModifierID,
		CreatedAt:  d.CreatedAt,
		ModifiedAt: d.ModifiedAt,
	}
	return s.conn(ctx).Create(&model).Error
}

func (s *Store) GetDevice(ctx context.Context, id uuid.UUID) (Device, error) {
	var model deviceModel
	if err := s.conn(ctx).First(&model, "id = ?", id).Error; err != nil {
		return Device{}, notFound(err)
	}
	return model.toDomain(), nil
}

func (s *Store) ListDevices(ctx context.Context, customerID uuid.UUID) ([]Device, error) {
	var models []deviceModel
	if err := s.conn(ctx).Where("customer_id = ?", customerID).Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]Device, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (s *Store) UpdateDevice(ctx context.Context, d Device) error {
	result := s.conn(ctx).Model(&deviceModel{}).Where("id = ?", d.ID).Updates(map[string]any{
		"name":        d.Name,
		"api_key":     d.APIKey,
		"image_url":   d.ImageURL,
		"modifier_id": d.ModifierID,
		"modified_at": d.ModifiedAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDevice removes a device together with its metadata.
func (s *Store) DeleteDevice(ctx context.Context, id uuid.UUID) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("device_id = ?", id).Delete(&deviceMetaModel{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&deviceModel{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
