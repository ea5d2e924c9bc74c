package store

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (s *Store) ListDeviceMetas(ctx context.Context, deviceID uuid.UUID) ([]DeviceMeta, error) {
	return s.ListDeviceMetasOf(ctx, []uuid.UUID{deviceID})
}

// ListDeviceMetasOf returns the metadata of every given device ordered by
// device and key.
func (s *Store) ListDeviceMetasOf(ctx context.Context, deviceIDs []uuid.UUID) ([]DeviceMeta, error) {
	if len(deviceIDs) == 0 {
		return nil, nil
	}
	var models []deviceMetaModel
	err := s.conn(ctx).
		Where("device_id IN ?", deviceIDs).
		Order("device_id ASC").Order("key ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]DeviceMeta, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

// ReplaceDeviceMetas makes desired the complete metadata set of a device.
// Entries are matched by key: matches keep their id and only change when the
// value differs, new keys are created and the rest are deleted.
func (s *Store) ReplaceDeviceMetas(ctx context.Context, deviceID uuid.UUID, desired map[string]string, actorID string, now time.Time) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []deviceMetaModel
		if err := tx.Where("device_id = ?", deviceID).Find(&existing).Error; err != nil {
			return err
		}
		byKey := make(map[string]deviceMetaModel, len(existing))
		for _, m := range existing {
			byKey[m.Key] = m
		}

		keys := make([]string, 0, len(desired))
		for k := range desired {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			value := desired[k]
			current, ok := byKey[k]
			if !ok {
				created := deviceMetaModel{
					ID:         uuid.New(),
					DeviceID:   deviceID,
					Key:        k,
					Value:      value,
					CreatorID:  actorID,
					ModifierID: actorID,
					CreatedAt:  now,
					ModifiedAt: now,
				}
				if err := tx.Create(&created).Error; err != nil {
					return err
				}
				continue
			}
			delete(byKey, k)
			if current.Value == value {
				continue
			}
			err := tx.Model(&deviceMetaModel{}).Where("id = ?", current.ID).Updates(map[string]any{
				"value":       value,
				"modifier_id": actorID,
				"modified_at": now,
			}).Error
			if err != nil {
				return err
			}
		}

		if len(byKey) == 0 {
			return nil
		}
		stale := make([]uuid.UUID, 0, len(byKey))
		for _, m := range byKey {
			stale = append(stale, m.ID)
		}
		return tx.Where("id IN ?", stale).Delete(&deviceMetaModel{}).Error
	})
}
