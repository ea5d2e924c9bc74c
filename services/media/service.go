// Package media manages a customer's media library. File bytes live in an
// S3-compatible bucket and are uploaded by clients through presigned URLs.
package media

import (
	"context"
	"errors"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"kioskcm/pkg/clock"
	"kioskcm/pkg/faults"
	"kioskcm/services/store"
)

const DefaultUploadTTL = 15 * time.Minute

// ObjectStore is satisfied by *s3.Client.
type ObjectStore interface {
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	DeleteObject(ctx context.Context, key string) error
}

type Options struct {
	// PublicBaseURL prefixes object keys to form the URL devices download from.
	PublicBaseURL string
	UploadTTL     time.Duration
	Clock         clock.Clock
	Logger        zerolog.Logger
}

type Service struct {
	store   *store.Store
	objects ObjectStore
	baseURL string
	ttl     time.Duration
	clock   clock.Clock
	log     zerolog.Logger
}

func New(st *store.Store, objects ObjectStore, opts Options) (*Service, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if objects == nil {
		return nil, errors.New("object store is required")
	}
	if opts.UploadTTL <= 0 {
		opts.UploadTTL = DefaultUploadTTL
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	return &Service{
		store:   st,
		objects: objects,
		baseURL: strings.TrimRight(opts.PublicBaseURL, "/"),
		ttl:     opts.UploadTTL,
		clock:   opts.Clock,
		log:     opts.Logger.With().Str("component", "media").Logger(),
	}, nil
}

// Upload is a created media record plus the URL to PUT its bytes to.
type Upload struct {
	Media     store.Media `json:"media"`
	UploadURL string      `json:"uploadUrl"`
	ExpiresAt time.Time   `json:"uploadExpiresAt"`
}

// TypeFor classifies a MIME content type.
func TypeFor(contentType string) store.MediaType {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return store.MediaOther
	}
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return store.MediaImage
	case strings.HasPrefix(mediaType, "video/"):
		return store.MediaVideo
	case mediaType == "application/pdf":
		return store.MediaPDF
	default:
		return store.MediaOther
	}
}

// ParseType validates a media type filter. An empty string matches all types.
func ParseType(s string) (store.MediaType, error) {
	t := store.MediaType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case "", store.MediaImage, store.MediaVideo, store.MediaPDF, store.MediaOther:
		return t, nil
	default:
		return "", faults.InvalidRequest("unknown media type %q", s)
	}
}

// ObjectKey is the bucket key of a media file.
func ObjectKey(customerID, mediaID uuid.UUID, fileName string) string {
	return path.Join("media", customerID.String(), mediaID.String(), fileName)
}

// Create registers a media file for customerID and presigns its upload.
func (s *Service) Create(ctx context.Context, customerID uuid.UUID, fileName, contentType, actorID string) (Upload, error) {
	name := path.Base(strings.TrimSpace(strings.ReplaceAll(fileName, "\\", "/")))
	if name == "" || name == "." || name == "/" || name == ".." {
		return Upload{}, faults.InvalidRequest("fileName is required")
	}
	if strings.TrimSpace(contentType) == "" {
		return Upload{}, faults.InvalidRequest("contentType is required")
	}
	if _, err := s.customer(ctx, customerID); err != nil {
		return Upload{}, err
	}

	now := clock.Stamp(s.clock)
	id := uuid.New()
	key := ObjectKey(customerID, id, name)
	m := store.Media{
		ID:          id,
		CustomerID:  customerID,
		Type:        TypeFor(contentType),
		FileName:    name,
		ContentType: contentType,
		ObjectKey:   key,
		URL:         s.publicURL(key),
		CreatorID:   actorID,
		ModifierID:  actorID,
		CreatedAt:   now,
		ModifiedAt:  now,
	}

	uploadURL, err := s.objects.PresignPut(ctx, key, contentType, s.ttl)
	if err != nil {
		return Upload{}, faults.Upstream("presign upload", err)
	}
	if err := s.store.CreateMedia(ctx, m); err != nil {
		return Upload{}, faults.Internal("create media", err)
	}
	return Upload{Media: m, UploadURL: uploadURL, ExpiresAt: now.Add(s.ttl)}, nil
}

// Get returns a media record owned by customerID.
func (s *Service) Get(ctx context.Context, customerID, id uuid.UUID) (store.Media, error) {
	m, err := s.store.GetMedia(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && m.CustomerID != customerID) {
		return store.Media{}, faults.NotFound("media %s not found", id)
	}
	if err != nil {
		return store.Media{}, faults.Internal("load media", err)
	}
	return m, nil
}

// List returns customerID's media, optionally of one type.
func (s *Service) List(ctx context.Context, customerID uuid.UUID, mediaType store.MediaType) ([]store.Media, error) {
	if _, err := s.customer(ctx, customerID); err != nil {
		return nil, err
	}
	items, err := s.store.ListMedia(ctx, customerID, mediaType)
	if err != nil {
		return nil, faults.Internal("list media", err)
	}
	return items, nil
}

// Delete removes the record, then the stored object. A failed object
// delete is logged and does not fail the call.
func (s *Service) Delete(ctx context.Context, customerID, id uuid.UUID) error {
	m, err := s.Get(ctx, customerID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteMedia(ctx, m.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return faults.NotFound("media %s not found", id)
		}
		return faults.Internal("delete media", err)
	}
	if err := s.objects.DeleteObject(context.WithoutCancel(ctx), m.ObjectKey); err != nil {
		s.log.Warn().Err(err).Str("media_id", m.ID.String()).Str("object_key", m.ObjectKey).Msg("delete media object")
	}
	return nil
}

func (s *Service) customer(ctx context.Context, id uuid.UUID) (store.Customer, error) {
	c, err := s.store.GetCustomer(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.Customer{}, faults.NotFound("customer %s not found", id)
	}
	if err != nil {
		return store.Customer{}, faults.Internal("load customer", err)
	}
	return c, nil
}

func (s *Service) publicURL(key string) string {
	if s.baseURL == "" {
		return key
	}
	return s.baseURL + "/" + key
}
