package api

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"kioskcm/pkg/faults"
	"kioskcm/services/store"
)

// KeyValue is the wire form of a property or style.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Resource is a tree node with its attribute sets.
type Resource struct {
	store.Resource
	Properties []KeyValue `json:"properties"`
	Styles     []KeyValue `json:"styles"`
}

// Lock describes the holder of a resource lock.
type Lock struct {
	ResourceID      uuid.UUID `json:"resourceId"`
	ApplicationID   uuid.UUID `json:"applicationId"`
	UserID          string    `json:"userId"`
	UserDisplayName *string   `json:"userDisplayName"`
	ExpiresAt       time.Time `json:"expiresAt"`
	CreatedAt       time.Time `json:"createdAt"`
}

type resourceRequest struct {
	Type        string     `json:"type"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	OrderNumber int        `json:"orderNumber"`
	Data        string     `json:"data"`
	ParentID    *uuid.UUID `json:"parentId"`
	Properties  []KeyValue `json:"properties"`
	Styles      []KeyValue `json:"styles"`
}

// keyValueMap converts a wire list to a map. Omitted lists become empty sets;
// duplicate or blank keys are rejected.
func keyValueMap(kind string, items []KeyValue) (map[string]string, error) {
	out := make(map[string]string, len(items))
	for _, kv := range items {
		key := strings.TrimSpace(kv.Key)
		if key == "" {
			return nil, faults.InvalidRequest("%s key must not be empty", kind)
		}
		if _, dup := out[key]; dup {
			return nil, faults.InvalidRequest("duplicate %s key %q", kind, key)
		}
		out[key] = kv.Value
	}
	return out, nil
}

func keyValues(attrs []store.Attribute) []KeyValue {
	out := make([]KeyValue, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, KeyValue{Key: a.Key, Value: a.Value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
