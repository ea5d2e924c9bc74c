package wall

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"kioskcm/pkg/faults"
	"kioskcm/services/store"
)

// DeviceApplication summarizes one application of a device. ModifiedAt covers
// the application, its root resource and the root's properties and styles.
type DeviceApplication struct {
	ID                     uuid.UUID         `json:"id"`
	Name                   string            `json:"name"`
	ActiveContentVersionID *uuid.UUID        `json:"activeContentVersionResourceId,omitempty"`
	Properties             map[string]string `json:"properties"`
	Styles                 map[string]string `json:"styles"`
	ModifiedAt             time.Time         `json:"modifiedAt"`
}

// DeviceExport lists what a wall device runs. ModifiedAt covers the device
// and its metadata.
type DeviceExport struct {
	ID           uuid.UUID           `json:"id"`
	Name         string              `json:"name"`
	Metas        map[string]string   `json:"metas"`
	ModifiedAt   time.Time           `json:"modifiedAt"`
	Applications []DeviceApplication `json:"applications"`
}

// ExportDevice describes a device and its applications, gated by the device
// API key.
func (a *Aggregator) ExportDevice(ctx context.Context, deviceID uuid.UUID, apiKey string) (DeviceExport, error) {
	ctx, span := a.tracer.Start(ctx, "wall.ExportDevice")
	defer span.End()
	span.SetAttributes(attribute.String("device.id", deviceID.String()))

	dev, err := a.store.GetDevice(ctx, deviceID)
	if errors.Is(err, store.ErrNotFound) {
		return DeviceExport{}, faults.NotFound("device %s not found", deviceID)
	}
	if err != nil {
		return DeviceExport{}, faults.Internal("load device", err)
	}
	if err := CheckAPIKey(dev.APIKey, apiKey); err != nil {
		return DeviceExport{}, err
	}

	metas, err := a.store.ListDeviceMetas(ctx, dev.ID)
	if err != nil {
		return DeviceExport{}, faults.Internal("load device metas", err)
	}
	out := DeviceExport{
		ID:           dev.ID,
		Name:         dev.Name,
		Metas:        make(map[string]string, len(metas)),
		ModifiedAt:   dev.ModifiedAt,
		Applications: []DeviceApplication{},
	}
	for _, m := range metas {
		out.Metas[m.Key] = m.Value
		out.ModifiedAt = maxTime(out.ModifiedAt, m.ModifiedAt)
	}

	apps, err := a.store.ListApplications(ctx, dev.ID)
	if err != nil {
		return DeviceExport{}, faults.Internal("list applications", err)
	}
	if len(apps) == 0 {
		return out, nil
	}

	rootIDs := make([]uuid.UUID, 0, len(apps))
	for _, app := range apps {
		rootIDs = append(rootIDs, app.RootResourceID)
	}
	roots, err := a.store.GetResources(ctx, rootIDs)
	if err != nil {
		return DeviceExport{}, faults.Internal("load root resources", err)
	}
	props, err := a.store.ListAttributesOf(ctx, store.KindProperty, rootIDs)
	if err != nil {
		return DeviceExport{}, faults.Internal("load properties", err)
	}
	styles, err := a.store.ListAttributesOf(ctx, store.KindStyle, rootIDs)
	if err != nil {
		return DeviceExport{}, faults.Internal("load styles", err)
	}

	byRoot := make(map[uuid.UUID]*DeviceApplication, len(apps))
	for _, app := range apps {
		entry := DeviceApplication{
			ID:                     app.ID,
			Name:                   app.Name,
			ActiveContentVersionID: app.ActiveContentVersionID,
			Properties:             map[string]string{},
			Styles:                 map[string]string{},
			ModifiedAt:             app.ModifiedAt,
		}
		if root, ok := roots[app.RootResourceID]; ok {
			entry.ModifiedAt = maxTime(entry.ModifiedAt, root.ModifiedAt)
		}
		out.Applications = append(out.Applications, entry)
	}
	for i := range out.Applications {
		byRoot[apps[i].RootResourceID] = &out.Applications[i]
	}

	for _, p := range props {
		if entry, ok := byRoot[p.ResourceID]; ok {
			entry.Properties[p.Key] = p.Value
			entry.ModifiedAt = maxTime(entry.ModifiedAt, p.ModifiedAt)
		}
	}
	for _, s := range styles {
		if entry, ok := byRoot[s.ResourceID]; ok {
			entry.Styles[s.Key] = s.Value
			entry.ModifiedAt = maxTime(entry.ModifiedAt, s.ModifiedAt)
		}
	}

	span.SetAttributes(attribute.Int("application.count", len(apps)))
	return out, nil
}
