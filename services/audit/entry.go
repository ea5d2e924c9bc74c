package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kioskcm/pkg/events"
)

const (
	actionLocked   = "resource_locked"
	actionUnlocked = "resource_unlocked"
	systemActor    = "system"
)

// Entry is one audit row.
type Entry struct {
	ID      int64          `db:"id" json:"id"`
	Actor   string         `db:"actor" json:"actor"`
	Action  string         `db:"action" json:"action"`
	Obj     string         `db:"obj" json:"obj"`
	Details map[string]any `db:"details" json:"details"`
	At      time.Time      `db:"at" json:"at"`
}

func entryFromLock(data []byte) (Entry, error) {
	var evt events.LockChanged
	if err := json.Unmarshal(data, &evt); err != nil {
		return Entry{}, fmt.Errorf("decode lock event: %w", err)
	}
	if evt.ResourceID == uuid.Nil {
		return Entry{}, errors.New("resourceId missing from lock event")
	}

	action := actionUnlocked
	if evt.Locked {
		action = actionLocked
	}
	actor := evt.UserID
	if actor == "" {
		actor = systemActor
	}
	details := map[string]any{}
	if evt.ApplicationID != uuid.Nil {
		details["application_id"] = evt.ApplicationID.String()
	}
	return Entry{
		Actor:   actor,
		Action:  action,
		Obj:     evt.ResourceID.String(),
		Details: details,
		At:      timestampOrNow(evt.At),
	}, nil
}

func entryFromResource(data []byte) (Entry, error) {
	var evt events.ResourceChanged
	if err := json.Unmarshal(data, &evt); err != nil {
		return Entry{}, fmt.Errorf("decode resource event: %w", err)
	}
	if evt.ResourceID == uuid.Nil {
		return Entry{}, errors.New("resourceId missing from resource event")
	}
	if evt.Action == "" {
		return Entry{}, errors.New("action missing from resource event")
	}

	actor := evt.ActorID
	if actor == "" {
		actor = systemActor
	}
	details := map[string]any{"count": evt.Count}
	if evt.SourceID != nil {
		details["source_id"] = evt.SourceID.String()
	}
	return Entry{
		Actor:   actor,
		Action:  string(evt.Action),
		Obj:     evt.ResourceID.String(),
		Details: details,
		At:      timestampOrNow(evt.At),
	}, nil
}

func timestampOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
