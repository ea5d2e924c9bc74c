package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"kioskcm/pkg/clock"
	"kioskcm/pkg/telemetry"
	"kioskcm/services/audit"
	"kioskcm/services/locks"
	"kioskcm/services/media"
	"kioskcm/services/resources"
	"kioskcm/services/store"
	"kioskcm/services/wall"
)

// DisplayNameResolver is satisfied by *protection.DisplayNames.
type DisplayNameResolver interface {
	DisplayName(ctx context.Context, userID string) (string, bool)
}

// AuditReader is satisfied by *audit.Store.
type AuditReader interface {
	List(ctx context.Context, obj string, limit int) ([]audit.Entry, error)
	Count(ctx context.Context, obj string) (int64, error)
}

// Services holds the collaborators behind the HTTP handlers. Names, Media,
// Audit and Ready are optional.
type Services struct {
	Store     *store.Store
	Resources *resources.Controller
	Locks     *locks.Controller
	Wall      *wall.Aggregator
	Names     DisplayNameResolver
	Media     *media.Service
	Audit     AuditReader
	Ready     func(ctx context.Context) error
}

// Config controls runtime behaviour for the API handlers.
type Config struct {
	ServiceName        string
	AllowedOrigins     []string
	RateLimitPerMinute int
	Clock              clock.Clock
	Logger             zerolog.Logger
}

// API wires dependencies and configuration for HTTP handlers.
type API struct {
	svc    Services
	config Config
	clock  clock.Clock
	log    zerolog.Logger
}

// New validates the required services and applies defaults to cfg.
func New(svc Services, cfg Config) (*API, error) {
	if svc.Store == nil {
		return nil, errors.New("store is required")
	}
	if svc.Resources == nil {
		return nil, errors.New("resource controller is required")
	}
	if svc.Locks == nil {
		return nil, errors.New("lock controller is required")
	}
	if svc.Wall == nil {
		return nil, errors.New("wall aggregator is required")
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "kioskcm"
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}

	return &API{
		svc:    svc,
		config: cfg,
		clock:  cfg.Clock,
		log:    cfg.Logger.With().Str("component", "api").Logger(),
	}, nil
}

// Routes constructs the chi router containing all API endpoints.
func (a *API) Routes() (http.Handler, error) {
	if a == nil {
		return nil, errors.New("nil api")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(telemetry.Middleware(a.config.ServiceName, a.log))
	r.Use(middleware.Timeout(60 * time.Second))

	allowed := a.config.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", UserHeader, wallKeyHeader},
		MaxAge:         int((10 * time.Minute).Seconds()),
	}))
	if a.config.RateLimitPerMinute > 0 {
		r.Use(httprate.LimitByIP(a.config.RateLimitPerMinute, time.Minute))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", a.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(func(h http.Handler) http.Handler { return gzhttp.GzipHandler(h) })
			r.Get("/wall/applications/{applicationId}", a.handleWallApplication)
			r.Get("/wall/applications/{applicationId}/contentVersions/{slug}", a.handleWallContentVersion)
			r.Get("/wall/devices/{deviceId}", a.handleWallDevice)
		})

		r.Group(func(r chi.Router) {
			r.Use(a.requireUser)

			r.Get("/customers", a.handleListCustomers)
			r.Post("/customers", a.handleCreateCustomer)
			r.Route("/customers/{customerId}", func(r chi.Router) {
				r.Get("/", a.handleGetCustomer)
				r.Put("/", a.handleUpdateCustomer)
				r.Delete("/", a.handleDeleteCustomer)

				r.Get("/devices", a.handleListDevices)
				r.Post("/devices", a.handleCreateDevice)
				r.Route("/devices/{deviceId}", func(r chi.Router) {
					r.Get("/", a.handleGetDevice)
					r.Put("/", a.handleUpdateDevice)
					r.Delete("/", a.handleDeleteDevice)

					r.Get("/applications", a.handleListApplications)
					r.Post("/applications", a.handleCreateApplication)
					r.Route("/applications/{applicationId}", func(r chi.Router) {
						r.Get("/", a.handleGetApplication)
						r.Put("/", a.handleUpdateApplication)
						r.Delete("/", a.handleDeleteApplication)
						r.Post("/import", a.handleImport)

						r.Get("/resources", a.handleListResources)
						r.Post("/resources", a.handleCreateResource)
						r.Route("/resources/{resourceId}", func(r chi.Router) {
							r.Get("/", a.handleGetResource)
							r.Put("/", a.handleUpdateResource)
							r.Delete("/", a.handleDeleteResource)
							r.Get("/lock", a.handleGetLock)
							r.Put("/lock", a.handleAcquireLock)
							r.Delete("/lock", a.handleReleaseLock)
						})
					})
				})

				if a.svc.Media != nil {
					r.Get("/medias", a.handleListMedia)
					r.Post("/medias", a.handleCreateMedia)
					r.Get("/medias/{mediaId}", a.handleGetMedia)
					r.Delete("/medias/{mediaId}", a.handleDeleteMedia)
				}
			})

			r.Get("/applications/{applicationId}/lockedResources", a.handleLockedResources)

			if a.svc.Audit != nil {
				r.Get("/audit", a.handleListAudit)
			}
		})
	})

	return r, nil
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	check := a.svc.Ready
	if check == nil {
		check = a.svc.Store.Ping
	}
	if err := check(ctx); err != nil {
		a.log.Warn().Err(err).Msg("readiness check failed")
		respondError(w, http.StatusServiceUnavailable, errors.New("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
