// Package resources implements the content tree operations: node creation
// and update, property and style reconciliation, recursive copy and delete,
// root resolution and the application lifecycle built on them.
package resources

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"kioskcm/pkg/clock"
	"kioskcm/pkg/events"
	"kioskcm/pkg/faults"
	"kioskcm/services/protection"
	"kioskcm/services/store"
)

const publishTimeout = 2 * time.Second

// Protector creates and removes external protection records. It is
// satisfied by *protection.Gateway.
type Protector interface {
	Protect(ctx context.Context, t protection.Target) (string, error)
	Unprotect(ctx context.Context, protectionID string)
}

// Publisher is satisfied by *bus.Bus.
type Publisher interface {
	Publish(ctx context.Context, subj string, v any) error
}

// LockNotifier receives the locks removed along with deleted nodes. It is
// satisfied by *locks.BusNotifier.
type LockNotifier interface {
	NotifyLockChange(ctx context.Context, evt events.LockChanged)
}

type nopLockNotifier struct{}

func (nopLockNotifier) NotifyLockChange(context.Context, events.LockChanged) {}

// Options configures a Controller.
type Options struct {
	Clock  clock.Clock
	Events Publisher
	Locks  LockNotifier
	Logger zerolog.Logger
}

// Controller orchestrates mutations of content trees. It performs no lock
// checks; callers gate mutations through the lock controller first.
type Controller struct {
	store     *store.Store
	protector Protector
	clock     clock.Clock
	events    Publisher
	locks     LockNotifier
	log       zerolog.Logger
	tracer    trace.Tracer
}

// New constructs a Controller.
func New(st *store.Store, protector Protector, opts Options) (*Controller, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if protector == nil {
		return nil, errors.New("protector is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Locks == nil {
		opts.Locks = nopLockNotifier{}
	}
	return &Controller{
		store:     st,
		protector: protector,
		clock:     opts.Clock,
		events:    opts.Events,
		locks:     opts.Locks,
		log:       opts.Logger.With().Str("component", "resources").Logger(),
		tracer:    otel.Tracer("kioskcm/services/resources"),
	}, nil
}

// NodeInput carries the client-writable fields of a node.
type NodeInput struct {
	Type        store.ResourceType
	Name        string
	Slug        string
	OrderNumber int
	Data        string
	Properties  map[string]string
	Styles      map[string]string
}

// Get loads a node.
func (c *Controller) Get(ctx context.Context, id uuid.UUID) (store.Resource, error) {
	return getResource(ctx, c.store, id)
}

// ListChildren returns the ordered children of parentID, optionally filtered by type.
func (c *Controller) ListChildren(ctx context.Context, parentID uuid.UUID, types ...store.ResourceType) ([]store.Resource, error) {
	items, err := c.store.ListChildren(ctx, parentID, types...)
	if err != nil {
		return nil, faults.Internal("list resources", err)
	}
	return items, nil
}

// Attributes returns the properties or styles of a node.
func (c *Controller) Attributes(ctx context.Context, kind store.AttributeKind, id uuid.UUID) ([]store.Attribute, error) {
	items, err := c.store.ListAttributes(ctx, kind, id)
	if err != nil {
		return nil, faults.Internal("list attributes", err)
	}
	return items, nil
}

// ResolveRoot walks parent pointers up from id to the ROOT node of its tree.
func (c *Controller) ResolveRoot(ctx context.Context, id uuid.UUID) (store.Resource, error) {
	return resolveRoot(ctx, c.store, id)
}

// ResolveOwningApplication returns the application whose tree contains id.
func (c *Controller) ResolveOwningApplication(ctx context.Context, id uuid.UUID) (store.Application, error) {
	root, err := resolveRoot(ctx, c.store, id)
	if err != nil {
		return store.Application{}, err
	}
	app, err := c.store.GetApplicationByRoot(ctx, root.ID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Application{}, faults.NotFound("no application owns resource %s", id)
	}
	if err != nil {
		return store.Application{}, faults.Internal("find application", err)
	}
	return app, nil
}

// IsApplicationResource reports whether id lives in app's tree.
func (c *Controller) IsApplicationResource(ctx context.Context, app store.Application, id uuid.UUID) (bool, error) {
	root, err := resolveRoot(ctx, c.store, id)
	if faults.Is(err, faults.KindNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return root.ID == app.RootResourceID, nil
}

func getResource(ctx context.Context, st *store.Store, id uuid.UUID) (store.Resource, error) {
	r, err := st.GetResource(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.Resource{}, faults.NotFound("resource %s not found", id)
	}
	if err != nil {
		return store.Resource{}, faults.Internal("load resource", err)
	}
	return r, nil
}

// resolveRoot is iterative and bails out on a cycle or a broken chain.
func resolveRoot(ctx context.Context, st *store.Store, id uuid.UUID) (store.Resource, error) {
	seen := map[uuid.UUID]struct{}{}
	current, err := getResource(ctx, st, id)
	if err != nil {
		return store.Resource{}, err
	}
	for current.Type != store.TypeRoot {
		if current.ParentID == nil {
			return store.Resource{}, faults.NotFound("resource %s has no root", id)
		}
		if _, ok := seen[current.ID]; ok {
			return store.Resource{}, faults.Internal("resolve root", errors.New("cycle in resource tree"))
		}
		seen[current.ID] = struct{}{}

		current, err = getResource(ctx, st, *current.ParentID)
		if faults.Is(err, faults.KindNotFound) {
			return store.Resource{}, faults.NotFound("resource %s has no root", id)
		}
		if err != nil {
			return store.Resource{}, err
		}
	}
	return current, nil
}

// scope returns the tenant path of app for protection URIs.
func (c *Controller) scope(ctx context.Context, app store.Application) (protection.Target, error) {
	dev, err := c.store.GetDevice(ctx, app.DeviceID)
	if errors.Is(err, store.ErrNotFound) {
		return protection.Target{}, faults.NotFound("device %s not found", app.DeviceID)
	}
	if err != nil {
		return protection.Target{}, faults.Internal("load device", err)
	}
	return protection.Target{CustomerID: dev.CustomerID, DeviceID: dev.ID, ApplicationID: app.ID}, nil
}

func (c *Controller) publish(ctx context.Context, evt events.ResourceChanged) {
	if c.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := c.events.Publish(ctx, events.ResourceSubject, evt); err != nil {
		c.log.Warn().Err(err).Str("resource_id", evt.ResourceID.String()).Str("action", string(evt.Action)).Msg("publish resource change")
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func wrapStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var typed *faults.Error
	if errors.As(err, &typed) {
		return err
	}
	if errors.Is(err, store.ErrNotFound) {
		return faults.New(faults.KindNotFound, op, err)
	}
	return faults.Internal(op, err)
}
