package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// GetLockByResource returns the lock row of a resource, expired or not.
func (s *Store) GetLockByResource(ctx context.Context, resourceID uuid.UUID) (Lock, error) {
	var model lockModel
	if err := s.conn(ctx).First(&model, "resource_id = ?", resourceID).Error; err != nil {
		return Lock{}, notFound(err)
	}
	return model.toDomain(), nil
}

func (s *Store) CreateLock(ctx context.Context, l Lock) error {
	model := lockModel{
		ID:            l.ID,
		ApplicationID: l.ApplicationID,
		ResourceID:    l.ResourceID,
		UserID:        l.UserID,
		ExpiresAt:     l.ExpiresAt,
		CreatedAt:     l.CreatedAt,
	}
	return s.conn(ctx).Create(&model).Error
}

// ExtendLock moves the expiry of an existing lock.
func (s *Store) ExtendLock(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	result := s.conn(ctx).Model(&lockModel{}).Where("id = ?", id).Update("expires_at", expiresAt)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteLock(ctx context.Context, id uuid.UUID) error {
	result := s.conn(ctx).Delete(&lockModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteLocksOf removes every lock on the given resources.
func (s *Store) DeleteLocksOf(ctx context.Context, resourceIDs []uuid.UUID) error {
	if len(resourceIDs) == 0 {
		return nil
	}
	return s.conn(ctx).Where("resource_id IN ?", resourceIDs).Delete(&lockModel{}).Error
}

// ListLocksOf returns every lock on the given resources, expired or not.
func (s *Store) ListLocksOf(ctx context.Context, resourceIDs []uuid.UUID) ([]Lock, error) {
	if len(resourceIDs) == 0 {
		return nil, nil
	}
	var models []lockModel
	if err := s.conn(ctx).Where("resource_id IN ?", resourceIDs).Find(&models).Error; err != nil {
		return nil, err
	}
	return toLocks(models), nil
}

// ListActiveLocks returns locks of an application that have not expired at
// now, optionally limited to one resource.
func (s *Store) ListActiveLocks(ctx context.Context, applicationID uuid.UUID, resourceID *uuid.UUID, now time.Time) ([]Lock, error) {
	q := s.conn(ctx).Where("application_id = ? AND expires_at >= ?", applicationID, now)
	if resourceID != nil {
		q = q.Where("resource_id = ?", *resourceID)
	}
	var models []lockModel
	if err := q.Order("expires_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return toLocks(models), nil
}

// ListExpiredLocks returns every lock whose expiry is strictly before now.
func (s *Store) ListExpiredLocks(ctx context.Context, now time.Time) ([]Lock, error) {
	var models []lockModel
	if err := s.conn(ctx).Where("expires_at < ?", now).Find(&models).Error; err != nil {
		return nil, err
	}
	return toLocks(models), nil
}

// DeleteExpiredLocks removes the given locks only if they are still expired at
// now, so a lock renewed since it was listed survives.
func (s *Store) DeleteExpiredLocks(ctx context.Context, ids []uuid.UUID, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := s.conn(ctx).Where("id IN ? AND expires_at < ?", ids, now).Delete(&lockModel{})
	return result.RowsAffected, result.Error
}

// HasForeignActiveLock reports whether any of the given resources carries a
// lock unexpired at now and held by someone other than userID.
func (s *Store) HasForeignActiveLock(ctx context.Context, resourceIDs []uuid.UUID, userID string, now time.Time) (bool, error) {
	if len(resourceIDs) == 0 {
		return false, nil
	}
	var n int64
	err := s.conn(ctx).Model(&lockModel{}).
		Where("resource_id IN ? AND expires_at >= ? AND user_id <> ?", resourceIDs, now, userID).
		Count(&n).Error
	return n > 0, err
}

func toLocks(models []lockModel) []Lock {
	out := make([]Lock, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out
}
