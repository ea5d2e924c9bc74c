package protection

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
)

// ErrUserNotFound is returned by a UserDirectory for unknown users.
var ErrUserNotFound = errors.New("user not found")

// User is the profile subset needed to render a display name.
type User struct {
	FirstName string
	LastName  string
	Email     string
}

// UserDirectory looks up user profiles.
type UserDirectory interface {
	LookupUser(ctx context.Context, userID string) (User, error)
}

// DisplayNames resolves user ids to display names, caching resolved names.
type DisplayNames struct {
	dir   UserDirectory
	cache *expirable.LRU[string, string]
	log   zerolog.Logger
}

// NewDisplayNames constructs a resolver caching up to size names for ttl.
func NewDisplayNames(dir UserDirectory, size int, ttl time.Duration, logger zerolog.Logger) (*DisplayNames, error) {
	if dir == nil {
		return nil, errors.New("user directory is required")
	}
	if size <= 0 {
		size = 1024
	}
	return &DisplayNames{
		dir:   dir,
		cache: expirable.NewLRU[string, string](size, nil, ttl),
		log:   logger,
	}, nil
}

// DisplayName returns "First Last", falling back to the e-mail address. The
// second result is false when the user cannot be resolved.
func (d *DisplayNames) DisplayName(ctx context.Context, userID string) (string, bool) {
	if userID == "" {
		return "", false
	}
	if name, ok := d.cache.Get(userID); ok {
		return name, true
	}

	u, err := d.dir.LookupUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			d.log.Warn().Err(err).Str("user_id", userID).Msg("display name lookup failed")
		}
		return "", false
	}

	name := formatDisplayName(u)
	if name == "" {
		return "", false
	}
	d.cache.Add(userID, name)
	return name, true
}

func formatDisplayName(u User) string {
	first := strings.TrimSpace(u.FirstName)
	last := strings.TrimSpace(u.LastName)
	if first != "" && last != "" {
		return first + " " + last
	}
	return strings.TrimSpace(u.Email)
}
