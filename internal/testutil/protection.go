package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"kioskcm/services/protection"
)

// ProtectionClient is an in-memory protection.Client. Records are keyed by URI.
type ProtectionClient struct {
	mu sync.Mutex

	records map[string]string // id -> uri

	// FailCreateAfter makes CreateResource fail once this many records were
	// created. Zero disables the failure.
	FailCreateAfter int
	// FailDelete makes every DeleteResource call fail.
	FailDelete bool

	Creates int
	Deletes []string
}

func NewProtectionClient() *ProtectionClient {
	return &ProtectionClient{records: map[string]string{}}
}

func (c *ProtectionClient) CreateResource(_ context.Context, req protection.Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.FailCreateAfter > 0 && c.Creates >= c.FailCreateAfter {
		return "", errors.New("authorization service unavailable")
	}
	c.Creates++
	for _, uri := range c.records {
		if uri == req.URI {
			return "", nil
		}
	}
	id := uuid.NewString()
	c.records[id] = req.URI
	return id, nil
}

func (c *ProtectionClient) FindByURI(_ context.Context, uri string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var ids []string
	for id, u := range c.records {
		if u == uri {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (c *ProtectionClient) DeleteResource(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Deletes = append(c.Deletes, id)
	if c.FailDelete {
		return errors.New("authorization service unavailable")
	}
	delete(c.records, id)
	return nil
}

// Records returns the number of live protection records.
func (c *ProtectionClient) Records() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}
