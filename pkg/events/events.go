// Package events defines the payloads published on the message bus.
package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	// LockSubject carries LockChanged events.
	LockSubject = "kioskcm.resources.locks"
	// ResourceSubject carries ResourceChanged events.
	ResourceSubject = "kioskcm.resources.changed"

	// Stream is the JetStream stream capturing every subject above.
	Stream = "KIOSKCM_RESOURCES"
)

// Subjects lists the subjects captured by Stream.
func Subjects() []string {
	return []string{LockSubject, ResourceSubject}
}

// LockChanged is emitted whenever a lock is created or removed.
type LockChanged struct {
	ResourceID    uuid.UUID `json:"resourceId"`
	Locked        bool      `json:"locked"`
	ApplicationID uuid.UUID `json:"applicationId,omitempty"`
	UserID        string    `json:"userId,omitempty"`
	At            time.Time `json:"at"`
}

// Action names a tree mutation.
type Action string

const (
	ActionCreated  Action = "resource_created"
	ActionUpdated  Action = "resource_updated"
	ActionCopied   Action = "resource_copied"
	ActionDeleted  Action = "resource_deleted"
	ActionImported Action = "resource_imported"
)

// ResourceChanged is emitted after a tree mutation commits.
type ResourceChanged struct {
	Action     Action     `json:"action"`
	ResourceID uuid.UUID  `json:"resourceId"`
	SourceID   *uuid.UUID `json:"sourceId,omitempty"`
	Count      int        `json:"count"`
	ActorID    string     `json:"actorId"`
	At         time.Time  `json:"at"`
}
