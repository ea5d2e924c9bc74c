// Package wall builds the read-only content trees fetched by devices.
package wall

import (
	"context"
	"crypto/subtle"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"kioskcm/pkg/faults"
	"kioskcm/pkg/metrics"
	"kioskcm/services/store"
)

// Node is one exported resource with its flattened attribute sets. ModifiedAt
// covers the node and its own properties and styles, not its descendants.
type Node struct {
	ID          uuid.UUID          `json:"id"`
	Type        store.ResourceType `json:"type"`
	Name        string             `json:"name"`
	Slug        string             `json:"slug"`
	OrderNumber int                `json:"orderNumber"`
	Data        string             `json:"data,omitempty"`
	Properties  map[string]string  `json:"properties"`
	Styles      map[string]string  `json:"styles"`
	ModifiedAt  time.Time          `json:"modifiedAt"`
	Children    []*Node            `json:"children"`
}

// Export is the payload served to a device. ModifiedAt is the latest change
// anywhere in the exported subtree.
type Export struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modifiedAt"`
	Root       *Node     `json:"root"`
}

type Aggregator struct {
	store  *store.Store
	log    zerolog.Logger
	tracer trace.Tracer
}

func New(st *store.Store, logger zerolog.Logger) (*Aggregator, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	return &Aggregator{
		store:  st,
		log:    logger.With().Str("component", "wall").Logger(),
		tracer: otel.Tracer("kioskcm/services/wall"),
	}, nil
}

// CheckAPIKey gates device access. An empty stored key leaves the export open.
func CheckAPIKey(stored, presented string) error {
	if stored == "" {
		return nil
	}
	if presented == "" {
		return faults.Unauthorized("api key required")
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) != 1 {
		return faults.Forbidden("api key rejected")
	}
	return nil
}

// ExportApplication exports the active content version of an application.
func (a *Aggregator) ExportApplication(ctx context.Context, appID uuid.UUID, apiKey string) (Export, error) {
	app, err := a.authorize(ctx, appID, apiKey)
	if err != nil {
		return Export{}, err
	}
	if app.ActiveContentVersionID == nil {
		return Export{}, faults.NotFound("application %s has no active content version", app.ID)
	}
	return a.export(ctx, "application", *app.ActiveContentVersionID, app.Name)
}

// ExportContentVersion exports the content version of an application with the given slug.
func (a *Aggregator) ExportContentVersion(ctx context.Context, appID uuid.UUID, slug, apiKey string) (Export, error) {
	app, err := a.authorize(ctx, appID, apiKey)
	if err != nil {
		return Export{}, err
	}
	cv, err := a.store.FindByParentAndSlug(ctx, app.RootResourceID, slug)
	if errors.Is(err, store.ErrNotFound) || (err == nil && cv.Type != store.TypeContentVersion) {
		return Export{}, faults.NotFound("content version %q not found", slug)
	}
	if err != nil {
		return Export{}, faults.Internal("find content version", err)
	}
	return a.export(ctx, "content_version", cv.ID, app.Name)
}

// ExportTree exports the subtree rooted at rootID under the given name.
func (a *Aggregator) ExportTree(ctx context.Context, rootID uuid.UUID, name string) (Export, error) {
	return a.export(ctx, "tree", rootID, name)
}

func (a *Aggregator) authorize(ctx context.Context, appID uuid.UUID, apiKey string) (store.Application, error) {
	app, err := a.store.GetApplication(ctx, appID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Application{}, faults.NotFound("application %s not found", appID)
	}
	if err != nil {
		return store.Application{}, faults.Internal("load application", err)
	}
	dev, err := a.store.GetDevice(ctx, app.DeviceID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Application{}, faults.NotFound("device %s not found", app.DeviceID)
	}
	if err != nil {
		return store.Application{}, faults.Internal("load device", err)
	}
	if err := CheckAPIKey(dev.APIKey, apiKey); err != nil {
		return store.Application{}, err
	}
	return app, nil
}

func (a *Aggregator) export(ctx context.Context, scope string, rootID uuid.UUID, name string) (out Export, err error) {
	ctx, span := a.tracer.Start(ctx, "wall.Export")
	span.SetAttributes(attribute.String("resource.id", rootID.String()), attribute.String("wall.scope", scope))
	timer := prometheus.NewTimer(metrics.ExportDuration.WithLabelValues(scope))
	defer func() {
		timer.ObserveDuration()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	ids, err := a.store.SubtreeIDs(ctx, rootID)
	if err != nil {
		return Export{}, faults.Internal("walk subtree", err)
	}
	resources, err := a.store.GetResources(ctx, ids)
	if err != nil {
		return Export{}, faults.Internal("load resources", err)
	}
	if _, ok := resources[rootID]; !ok {
		return Export{}, faults.NotFound("resource %s not found", rootID)
	}
	props, err := a.store.ListAttributesOf(ctx, store.KindProperty, ids)
	if err != nil {
		return Export{}, faults.Internal("load properties", err)
	}
	styles, err := a.store.ListAttributesOf(ctx, store.KindStyle, ids)
	if err != nil {
		return Export{}, faults.Internal("load styles", err)
	}

	root, latest := assemble(rootID, ids, resources, props, styles)
	span.SetAttributes(attribute.Int("resource.count", len(resources)))
	a.log.Debug().Str("resource_id", rootID.String()).Int("count", len(resources)).Msg("wall export built")
	return Export{Name: name, ModifiedAt: latest, Root: root}, nil
}

// assemble links the loaded rows into a tree. ids lists parents before
// children. It returns the root node and the latest timestamp in the subtree.
func assemble(rootID uuid.UUID, ids []uuid.UUID, resources map[uuid.UUID]store.Resource, props, styles []store.Attribute) (*Node, time.Time) {
	nodes := make(map[uuid.UUID]*Node, len(resources))
	var latest time.Time
	for _, id := range ids {
		r, ok := resources[id]
		if !ok {
			continue
		}
		nodes[id] = &Node{
			ID:          r.ID,
			Type:        r.Type,
			Name:        r.Name,
			Slug:        r.Slug,
			OrderNumber: r.OrderNumber,
			Data:        r.Data,
			Properties:  map[string]string{},
			Styles:      map[string]string{},
			ModifiedAt:  r.ModifiedAt,
			Children:    []*Node{},
		}
		latest = maxTime(latest, r.ModifiedAt)
	}

	merge := func(attrs []store.Attribute, pick func(*Node) map[string]string) {
		for _, attr := range attrs {
			n, ok := nodes[attr.ResourceID]
			if !ok {
				continue
			}
			pick(n)[attr.Key] = attr.Value
			n.ModifiedAt = maxTime(n.ModifiedAt, attr.ModifiedAt)
			latest = maxTime(latest, attr.ModifiedAt)
		}
	}
	merge(props, func(n *Node) map[string]string { return n.Properties })
	merge(styles, func(n *Node) map[string]string { return n.Styles })

	for _, id := range ids {
		if id == rootID {
			continue
		}
		n, ok := nodes[id]
		if !ok {
			continue
		}
		r := resources[id]
		if r.ParentID == nil {
			continue
		}
		if parent, ok := nodes[*r.ParentID]; ok {
			parent.Children = append(parent.Children, n)
		}
	}
	for _, n := range nodes {
		sort.SliceStable(n.Children, func(i, j int) bool {
			if n.Children[i].OrderNumber != n.Children[j].OrderNumber {
				return n.Children[i].OrderNumber < n.Children[j].OrderNumber
			}
			return n.Children[i].ID.String() < n.Children[j].ID.String()
		})
	}
	return nodes[rootID], latest
}

func maxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
