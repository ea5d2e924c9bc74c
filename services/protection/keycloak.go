package protection

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Nerzal/gocloak/v13"

	"kioskcm/pkg/clock"
)

// tokenSkew renews the service account token this long before it expires.
const tokenSkew = 30 * time.Second

// KeycloakConfig holds the service account used for the protection API.
type KeycloakConfig struct {
	URL          string
	Realm        string
	ClientID     string
	ClientSecret string
	Clock        clock.Clock
}

// Keycloak implements Client and UserDirectory over the Keycloak protection
// and admin APIs using client credentials.
type Keycloak struct {
	gc  *gocloak.GoCloak
	cfg KeycloakConfig

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewKeycloak validates cfg and builds a client.
func NewKeycloak(cfg KeycloakConfig) (*Keycloak, error) {
	cfg.URL = strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if cfg.URL == "" {
		return nil, errors.New("keycloak url is required")
	}
	if cfg.Realm == "" {
		return nil, errors.New("keycloak realm is required")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("keycloak client id and secret are required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	return &Keycloak{gc: gocloak.NewClient(cfg.URL), cfg: cfg}, nil
}

func (k *Keycloak) accessToken(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.cfg.Clock.Now()
	if k.token != "" && now.Before(k.expires) {
		return k.token, nil
	}

	jwt, err := k.gc.LoginClient(ctx, k.cfg.ClientID, k.cfg.ClientSecret, k.cfg.Realm)
	if err != nil {
		return "", err
	}
	k.token = jwt.AccessToken
	k.expires = now.Add(time.Duration(jwt.ExpiresIn)*time.Second - tokenSkew)
	return k.token, nil
}

// CreateResource registers a protected resource. A 409 from Keycloak means
// the resource exists and yields an empty id.
func (k *Keycloak) CreateResource(ctx context.Context, req Request) (string, error) {
	token, err := k.accessToken(ctx)
	if err != nil {
		return "", err
	}

	scopes := make([]gocloak.ScopeRepresentation, 0, len(req.Scopes))
	for _, s := range req.Scopes {
		scopes = append(scopes, gocloak.ScopeRepresentation{Name: gocloak.StringP(s)})
	}

	rep := gocloak.ResourceRepresentation{
		Name:               gocloak.StringP(req.Name),
		Type:               gocloak.StringP(req.Type),
		URIs:               &[]string{req.URI},
		OwnerManagedAccess: gocloak.BoolP(true),
		ResourceScopes:     &scopes,
	}
	if req.Owner != "" {
		rep.Owner = &gocloak.ResourceOwnerRepresentation{ID: gocloak.StringP(req.Owner)}
	}

	created, err := k.gc.CreateResourceClient(ctx, token, k.cfg.Realm, rep)
	if err != nil {
		var apiErr *gocloak.APIError
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
			return "", nil
		}
		return "", err
	}
	if created == nil || created.ID == nil {
		return "", nil
	}
	return *created.ID, nil
}

// FindByURI returns the ids of resources registered under uri.
func (k *Keycloak) FindByURI(ctx context.Context, uri string) ([]string, error) {
	token, err := k.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	found, err := k.gc.GetResourcesClient(ctx, token, k.cfg.Realm, gocloak.GetResourceParams{
		URI: gocloak.StringP(uri),
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(found))
	for _, r := range found {
		if r != nil && r.ID != nil {
			ids = append(ids, *r.ID)
		}
	}
	return ids, nil
}

func (k *Keycloak) DeleteResource(ctx context.Context, id string) error {
	token, err := k.accessToken(ctx)
	if err != nil {
		return err
	}
	return k.gc.DeleteResourceClient(ctx, token, k.cfg.Realm, id)
}

// LookupUser returns the profile of a realm user.
func (k *Keycloak) LookupUser(ctx context.Context, userID string) (User, error) {
	token, err := k.accessToken(ctx)
	if err != nil {
		return User{}, err
	}

	u, err := k.gc.GetUserByID(ctx, token, k.cfg.Realm, userID)
	if err != nil {
		var apiErr *gocloak.APIError
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return User{
		FirstName: gocloak.PString(u.FirstName),
		LastName:  gocloak.PString(u.LastName),
		Email:     gocloak.PString(u.Email),
	}, nil
}
