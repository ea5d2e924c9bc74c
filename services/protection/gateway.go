// Package protection mirrors content nodes into the external authorization
// service as protected resources and resolves user display names from it.
package protection

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"kioskcm/pkg/faults"
	"kioskcm/pkg/metrics"
)

const (
	resourceType = "resource"
	uriFormat    = "/v1/%s/devices/%s/applications/%s/resources/%s"
)

// Scopes granted on every protected content node.
var Scopes = []string{
	"resource:access",
	"resource:modify",
	"resource:delete",
	"resource:create-resource",
	"resource:create-folder",
}

// Request describes a protected resource to register.
type Request struct {
	Name   string
	Type   string
	Owner  string
	URI    string
	Scopes []string
}

// Client is the subset of the authorization service used by the gateway.
// CreateResource returns an empty id when the resource already exists.
type Client interface {
	CreateResource(ctx context.Context, req Request) (string, error)
	FindByURI(ctx context.Context, uri string) ([]string, error)
	DeleteResource(ctx context.Context, id string) error
}

// Target identifies the node to protect and the tenant path it lives under.
type Target struct {
	CustomerID    uuid.UUID
	DeviceID      uuid.UUID
	ApplicationID uuid.UUID
	ResourceID    uuid.UUID
	OwnerID       string
}

// URI is the deterministic protected-resource URI of the target node.
func (t Target) URI() string {
	return fmt.Sprintf(uriFormat, t.CustomerID, t.DeviceID, t.ApplicationID, t.ResourceID)
}

// Gateway creates and removes external protection records for content nodes.
type Gateway struct {
	client Client
	log    zerolog.Logger
}

// NewGateway constructs a Gateway over client.
func NewGateway(client Client, logger zerolog.Logger) (*Gateway, error) {
	if client == nil {
		return nil, errors.New("protection client is required")
	}
	return &Gateway{client: client, log: logger.With().Str("component", "protection").Logger()}, nil
}

// Protect registers the target node and returns the external record id. When
// the record already exists it is looked up by URI instead.
func (g *Gateway) Protect(ctx context.Context, t Target) (string, error) {
	uri := t.URI()
	id, err := g.client.CreateResource(ctx, Request{
		Name:   t.ResourceID.String(),
		Type:   resourceType,
		Owner:  t.OwnerID,
		URI:    uri,
		Scopes: Scopes,
	})
	if err != nil {
		metrics.ProtectionFailures.WithLabelValues("create").Inc()
		return "", faults.Upstream("create protected resource", err)
	}
	if id != "" {
		return id, nil
	}

	ids, err := g.client.FindByURI(ctx, uri)
	if err != nil {
		metrics.ProtectionFailures.WithLabelValues("find").Inc()
		return "", faults.Upstream("find protected resource", err)
	}
	if len(ids) == 0 || ids[0] == "" {
		metrics.ProtectionFailures.WithLabelValues("find").Inc()
		return "", faults.Upstream("find protected resource", fmt.Errorf("no protected resource registered for %s", uri))
	}
	return ids[0], nil
}

// Unprotect removes an external record. Failures are logged and counted but
// never returned: the node is going away regardless.
func (g *Gateway) Unprotect(ctx context.Context, protectionID string) {
	if protectionID == "" {
		return
	}
	if err := g.client.DeleteResource(ctx, protectionID); err != nil {
		metrics.ProtectionFailures.WithLabelValues("delete").Inc()
		g.log.Warn().Err(err).Str("protection_id", protectionID).Msg("failed to delete protected resource")
	}
}
